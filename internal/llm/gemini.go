// ABOUTME: Gemini provider backed by the Google GenAI SDK.
// ABOUTME: Falls back once to the default model when the configured one is rejected.

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured or the configured one is rejected.
const DefaultModel = "gemini-2.0-flash"

// contentGenerator is the subset of *genai.Models the provider uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig contains configuration options for the GeminiProvider.
type GeminiConfig struct {
	APIKey string
	Model  string
	// Timeout bounds each GenerateContent call. Zero leaves only the
	// caller's deadline.
	Timeout time.Duration
	Logger  *slog.Logger

	// generator overrides the SDK client in tests.
	generator contentGenerator
}

// GeminiProvider generates text with a Gemini model.
type GeminiProvider struct {
	models  contentGenerator
	timeout time.Duration
	logger  *slog.Logger

	mu    sync.RWMutex
	model string
}

// NewGemini creates a GeminiProvider. It does not contact the API.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	gen := cfg.generator
	if gen == nil {
		if cfg.APIKey == "" {
			return nil, ErrUnconfigured
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("create genai client: %w", err)
		}
		gen = client.Models
	}

	logger = logger.With("component", "gemini")
	logger.Info("generative model ready", "model", model)
	return &GeminiProvider{models: gen, timeout: cfg.Timeout, logger: logger, model: model}, nil
}

// Model returns the model currently in use.
func (g *GeminiProvider) Model() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.model
}

// Generate sends prompt with system as the system instruction. Failures are
// returned as *Error.
func (g *GeminiProvider) Generate(ctx context.Context, system, prompt string) (string, error) {
	model := g.Model()
	text, err := g.generate(ctx, model, system, prompt)
	if err != nil && model != DefaultModel && apiErrorCode(err) == http.StatusNotFound {
		g.logger.Warn("model rejected, switching to default", "model", model, "default", DefaultModel)
		g.mu.Lock()
		g.model = DefaultModel
		g.mu.Unlock()
		text, err = g.generate(ctx, DefaultModel, system, prompt)
	}
	if err != nil {
		var le *Error
		if errors.As(err, &le) {
			return "", le
		}
		return "", &Error{Kind: Classify(err), Err: err}
	}
	return text, nil
}

func (g *GeminiProvider) generate(ctx context.Context, model, system, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	var cfg *genai.GenerateContentConfig
	if system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}

	resp, err := g.models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
	if err != nil {
		return "", err
	}
	if blocked(resp) {
		return "", &Error{Kind: KindBlocked}
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &Error{Kind: KindEmpty}
	}
	return text, nil
}

func blocked(resp *genai.GenerateContentResponse) bool {
	if resp == nil {
		return false
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return true
	}
	for _, c := range resp.Candidates {
		if c != nil && c.FinishReason == genai.FinishReasonSafety {
			return true
		}
	}
	return false
}
