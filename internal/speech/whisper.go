// ABOUTME: Transcriber backed by a whisper-compatible inference server.
// ABOUTME: Posts the audio as a multipart "file" field and reads {"text": ...}.

package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultConfidence is reported when the server does not return one.
const DefaultConfidence = 0.9

// Transcript is the result of speech recognition.
type Transcript struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, language string) (Transcript, error)
}

// WhisperConfig configures the Whisper transcriber.
type WhisperConfig struct {
	Endpoint string
	Client   *http.Client
}

// Whisper calls a whisper.cpp-style /inference endpoint.
type Whisper struct {
	endpoint string
	client   *http.Client
}

// NewWhisper creates a Whisper transcriber. The endpoint must be absolute.
func NewWhisper(cfg WhisperConfig) (*Whisper, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || !u.IsAbs() {
		return nil, fmt.Errorf("whisper endpoint %q must be an absolute URL", cfg.Endpoint)
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Whisper{endpoint: cfg.Endpoint, client: client}, nil
}

type whisperResponse struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
}

// Transcribe implements Transcriber.
func (w *Whisper) Transcribe(ctx context.Context, audio []byte, language string) (Transcript, error) {
	if len(audio) == 0 {
		return Transcript{}, &Error{Kind: KindInvalidInput, Err: fmt.Errorf("empty audio")}
	}

	var b bytes.Buffer
	mw := multipart.NewWriter(&b)
	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return Transcript{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return Transcript{}, fmt.Errorf("write audio to form: %w", err)
	}
	if language != "" {
		// whisper wants the bare language code, "en" rather than "en-US".
		lang, _, _ := strings.Cut(language, "-")
		if err := mw.WriteField("language", strings.ToLower(lang)); err != nil {
			return Transcript{}, fmt.Errorf("write language field: %w", err)
		}
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return Transcript{}, fmt.Errorf("write format field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Transcript{}, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, &b)
	if err != nil {
		return Transcript{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		return Transcript{}, fmt.Errorf("post to whisper server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Transcript{}, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Transcript{}, &Error{Kind: KindUpstream, Err: fmt.Errorf("whisper server returned status %d: %s", resp.StatusCode, truncate(body))}
	}

	var wr whisperResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return Transcript{}, &Error{Kind: KindUpstream, Err: fmt.Errorf("unmarshal response: %w", err)}
	}

	text := strings.TrimSpace(wr.Text)
	if text == "" {
		return Transcript{}, ErrUnintelligible
	}
	confidence := DefaultConfidence
	if wr.Confidence != nil {
		confidence = *wr.Confidence
	}
	return Transcript{Text: text, Confidence: confidence}, nil
}

func truncate(b []byte) string {
	const limit = 200
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
