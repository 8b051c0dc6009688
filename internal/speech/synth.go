// ABOUTME: Synthesizers: ElevenLabs cloud voices, a local piper-compatible server, and an ordered fallback chain.

package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Audio formats reported to clients.
const (
	FormatMPEG = "audio/mpeg"
	FormatWAV  = "audio/wav"
)

// DefaultElevenLabsURL is the public ElevenLabs API.
const DefaultElevenLabsURL = "https://api.elevenlabs.io"

// maxAudioBytes caps a synthesized clip held in memory.
const maxAudioBytes = 20 << 20

// Audio is synthesized speech.
type Audio struct {
	Data   []byte
	Format string
}

// Synthesizer turns text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Audio, error)
}

// Voice describes a selectable ElevenLabs voice.
type Voice struct {
	VoiceID  string `json:"voice_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// VoiceLister lists available voices.
type VoiceLister interface {
	Voices(ctx context.Context) ([]Voice, error)
}

// ElevenLabsConfig configures the ElevenLabs synthesizer.
type ElevenLabsConfig struct {
	APIKey  string
	VoiceID string
	Model   string
	BaseURL string
	Client  *http.Client
}

// ElevenLabs synthesizes speech with the ElevenLabs API.
type ElevenLabs struct {
	apiKey  string
	voiceID string
	model   string
	baseURL string
	client  *http.Client
}

// NewElevenLabs creates an ElevenLabs synthesizer. An empty key is rejected.
func NewElevenLabs(cfg ElevenLabsConfig) (*ElevenLabs, error) {
	if cfg.APIKey == "" {
		return nil, ErrUnconfigured
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultElevenLabsURL
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ElevenLabs{
		apiKey:  cfg.APIKey,
		voiceID: cfg.VoiceID,
		model:   cfg.Model,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  cfg.Client,
	}, nil
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

type elevenLabsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Synthesize implements Synthesizer.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) (Audio, error) {
	body, err := json.Marshal(elevenLabsRequest{
		Text:    text,
		ModelID: e.model,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Style:           0.3,
			UseSpeakerBoost: true,
		},
	})
	if err != nil {
		return Audio{}, fmt.Errorf("encoding request: %w", err)
	}

	endpoint := e.baseURL + "/v1/text-to-speech/" + url.PathEscape(e.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Audio{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", FormatMPEG)

	data, _, err := e.do(req)
	if err != nil {
		return Audio{}, err
	}
	return Audio{Data: data, Format: FormatMPEG}, nil
}

type voicesResponse struct {
	Voices []struct {
		VoiceID  string `json:"voice_id"`
		Name     string `json:"name"`
		Category string `json:"category"`
	} `json:"voices"`
}

// Voices implements VoiceLister.
func (e *ElevenLabs) Voices(ctx context.Context) ([]Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/v1/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("xi-api-key", e.apiKey)

	data, _, err := e.do(req)
	if err != nil {
		return nil, err
	}
	var vr voicesResponse
	if err := json.Unmarshal(data, &vr); err != nil {
		return nil, &Error{Kind: KindUpstream, Err: fmt.Errorf("decoding voices: %w", err)}
	}

	voices := make([]Voice, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		category := v.Category
		if category == "" {
			category = "unknown"
		}
		voices = append(voices, Voice{VoiceID: v.VoiceID, Name: v.Name, Category: category})
	}
	return voices, nil
}

func (e *ElevenLabs) do(req *http.Request) ([]byte, string, error) {
	return doHTTP(e.client, req, "elevenlabs")
}

// PiperConfig configures the local synthesizer.
type PiperConfig struct {
	Endpoint string
	Client   *http.Client
}

// Piper calls a local piper-compatible server that accepts a form field
// "text" and streams back WAV audio.
type Piper struct {
	endpoint string
	client   *http.Client
}

// NewPiper creates a Piper synthesizer. The endpoint must be absolute.
func NewPiper(cfg PiperConfig) (*Piper, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || !u.IsAbs() {
		return nil, fmt.Errorf("piper endpoint %q must be an absolute URL", cfg.Endpoint)
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &Piper{endpoint: cfg.Endpoint, client: client}, nil
}

// Synthesize implements Synthesizer.
func (p *Piper) Synthesize(ctx context.Context, text string) (Audio, error) {
	form := url.Values{}
	form.Set("text", text)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Audio{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	data, contentType, err := doHTTP(p.client, req, "piper")
	if err != nil {
		return Audio{}, err
	}
	format := FormatWAV
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && strings.HasPrefix(mt, "audio/") {
		format = mt
	}
	return Audio{Data: data, Format: format}, nil
}

func doHTTP(client *http.Client, req *http.Request, name string) ([]byte, string, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%s request: %w", name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, "", fmt.Errorf("%s read body: %w", name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &Error{Kind: KindUpstream, Err: fmt.Errorf("%s returned status %d: %s", name, resp.StatusCode, truncate(body))}
	}
	if len(body) == 0 {
		return nil, "", &Error{Kind: KindUpstream, Err: fmt.Errorf("%s returned no audio", name)}
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// Chain tries each synthesizer in order and returns the first success.
type Chain struct {
	links  []Synthesizer
	logger *slog.Logger
}

// NewChain builds a fallback chain. Nil entries are skipped.
func NewChain(logger *slog.Logger, links ...Synthesizer) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Chain{logger: logger}
	for _, l := range links {
		if l != nil {
			c.links = append(c.links, l)
		}
	}
	return c
}

// Len reports how many synthesizers the chain holds.
func (c *Chain) Len() int { return len(c.links) }

// Synthesize implements Synthesizer.
func (c *Chain) Synthesize(ctx context.Context, text string) (Audio, error) {
	if len(c.links) == 0 {
		return Audio{}, ErrUnconfigured
	}
	var errs []error
	for i, s := range c.links {
		audio, err := s.Synthesize(ctx, text)
		if err == nil {
			return audio, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
		if i < len(c.links)-1 {
			c.logger.Warn("synthesizer failed, falling back", "index", i, "error", err)
		}
	}
	return Audio{}, &Error{Kind: Classify(errs[len(errs)-1]), Err: errors.Join(errs...)}
}
