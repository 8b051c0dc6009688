// ABOUTME: Speech endpoints: base64 and multipart transcription, synthesis and voice listing.
// ABOUTME: Recognition failures degrade to a valid low-confidence reply instead of an error.

package gateway

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/2389/jarvis-gateway/internal/ratelimit"
	"github.com/2389/jarvis-gateway/internal/speech"
)

// UnintelligibleText is returned in place of a transcript when recognition fails.
const UnintelligibleText = "Could not understand audio"

// maxUploadMemory is the in-memory share of a multipart upload; the rest
// spills to temporary files.
const maxUploadMemory = 8 << 20

type transcribeRequest struct {
	AudioData *string `json:"audio_data"`
	Language  string  `json:"language"`
}

type transcribeResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type uploadResponse struct {
	Filename   string  `json:"filename"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type synthesizeRequest struct {
	Text string `json:"text"`
}

type synthesizeResponse struct {
	Audio  string `json:"audio"`
	Format string `json:"format"`
}

func (g *Gateway) handleSpeechToText(w http.ResponseWriter, r *http.Request) {
	var req transcribeRequest
	if err := decodeJSON(r, &req); err != nil {
		g.sendRequestError(w, r, err)
		return
	}
	if req.AudioData == nil {
		g.sendRequestError(w, r, invalid("body -> audio_data", "field required"))
		return
	}
	audio, err := decodeAudio(*req.AudioData)
	if err != nil {
		g.sendRequestError(w, r, invalid("body -> audio_data", "must be base64 encoded audio"))
		return
	}

	text, confidence, err := g.transcribe(r, audio, req.Language)
	if err != nil {
		g.sendRequestError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transcribeResponse{Text: text, Confidence: confidence})
}

func (g *Gateway) handleUploadAudio(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		if _, ok := ratelimit.IsTooLarge(err); ok {
			g.sendRequestError(w, r, err)
			return
		}
		g.sendRequestError(w, r, invalid("body -> file", "multipart form with a file field is required"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		g.sendRequestError(w, r, invalid("body -> file", "field required"))
		return
	}
	defer func() { _ = file.Close() }()

	audio, err := io.ReadAll(file)
	if err != nil {
		g.sendRequestError(w, r, err)
		return
	}

	text, confidence, err := g.transcribe(r, audio, r.FormValue("language"))
	if err != nil {
		g.sendRequestError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{Filename: header.Filename, Text: text, Confidence: confidence})
}

// transcribe runs recognition and degrades every failure except invalid
// input to the unintelligible reply.
func (g *Gateway) transcribe(r *http.Request, audio []byte, language string) (string, float64, error) {
	t, err := g.speech.Transcribe(r.Context(), audio, language)
	if err == nil {
		return t.Text, t.Confidence, nil
	}
	if speech.Classify(err) == speech.KindInvalidInput {
		return "", 0, invalid("body -> audio", "audio is empty")
	}
	return UnintelligibleText, 0, nil
}

func (g *Gateway) handleTextToSpeech(w http.ResponseWriter, r *http.Request) {
	var req synthesizeRequest
	if err := decodeJSON(r, &req); err != nil {
		g.sendRequestError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		g.sendJSONError(w, r, http.StatusBadRequest, "Text is required")
		return
	}

	audio, err := g.speech.Synthesize(r.Context(), req.Text)
	if err != nil {
		g.sendJSONError(w, r, synthesisStatus(err), synthesisMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, synthesizeResponse{
		Audio:  base64.StdEncoding.EncodeToString(audio.Data),
		Format: audio.Format,
	})
}

func (g *Gateway) handleVoices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]speech.Voice{"voices": g.speech.Voices(r.Context())})
}

func synthesisStatus(err error) int {
	switch speech.Classify(err) {
	case speech.KindInvalidInput:
		return http.StatusBadRequest
	case speech.KindUnconfigured:
		return http.StatusServiceUnavailable
	case speech.KindTimeout, speech.KindCanceled:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func synthesisMessage(err error) string {
	if errors.Is(err, speech.ErrUnconfigured) {
		return "Text-to-speech is not configured."
	}
	if speech.Classify(err) == speech.KindTimeout {
		return "Text-to-speech timed out."
	}
	return "Text-to-speech is unavailable right now."
}

// decodeAudio accepts raw base64 or a data URL.
func decodeAudio(s string) ([]byte, error) {
	if _, after, ok := strings.Cut(s, "base64,"); ok && strings.HasPrefix(s, "data:") {
		s = after
	}
	s = strings.TrimSpace(s)
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	}
	return data, nil
}
