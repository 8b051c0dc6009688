// ABOUTME: Generative-language provider contract and construction from config.
// ABOUTME: Missing credentials yield an Unconfigured provider instead of an error.

package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/2389/jarvis-gateway/internal/config"
)

// Provider produces free-form text for a system preamble and a prompt.
type Provider interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Unconfigured is the provider used when no credentials are available.
type Unconfigured struct{}

func (Unconfigured) Generate(context.Context, string, string) (string, error) {
	return "", ErrUnconfigured
}

// IsConfigured reports whether p can reach a real model.
func IsConfigured(p Provider) bool {
	_, unconfigured := p.(Unconfigured)
	return p != nil && !unconfigured
}

// New builds the provider described by cfg. It returns Unconfigured when the
// API key is missing or still the placeholder.
func New(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Configured() {
		logger.Warn("generative model not configured, running in limited mode")
		return Unconfigured{}, nil
	}
	switch cfg.Provider {
	case "", "gemini":
		return NewGemini(ctx, GeminiConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
			Logger:  logger,
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
