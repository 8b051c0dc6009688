// ABOUTME: Speech service running transcription and synthesis behind a bounded worker pool.
// ABOUTME: Applies a per-call timeout, categorises failures and reports outcomes to an Observer.

package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/2389/jarvis-gateway/internal/config"
)

// Operation names reported to an Observer.
const (
	OpTranscribe = "stt"
	OpSynthesize = "tts"
	OpVoices     = "voices"
)

// DefaultLanguage is used when a transcription request names none.
const DefaultLanguage = "en-US"

// Observer receives one outcome per operation. Kind is "" on success.
type Observer interface {
	SpeechOutcome(operation, kind string)
}

type nopObserver struct{}

func (nopObserver) SpeechOutcome(string, string) {}

// ServiceConfig contains configuration options for the Service.
type ServiceConfig struct {
	Transcriber Transcriber
	Synthesizer Synthesizer
	VoiceLister VoiceLister
	// Workers bounds concurrent upstream calls. Zero means 4.
	Workers int
	// Timeout bounds each call including time spent waiting for a worker.
	Timeout  time.Duration
	Observer Observer
	Logger   *slog.Logger
}

// Service is the speech entry point used by the HTTP layer.
type Service struct {
	stt      Transcriber
	tts      Synthesizer
	voices   VoiceLister
	sem      *semaphore.Weighted
	timeout  time.Duration
	observer Observer
	logger   *slog.Logger
}

// NewService creates a Service. Missing providers yield KindUnconfigured.
func NewService(cfg ServiceConfig) *Service {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := cfg.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Service{
		stt:      cfg.Transcriber,
		tts:      cfg.Synthesizer,
		voices:   cfg.VoiceLister,
		sem:      semaphore.NewWeighted(int64(workers)),
		timeout:  cfg.Timeout,
		observer: observer,
		logger:   logger.With("component", "speech"),
	}
}

// New builds a Service from configuration. ElevenLabs is used when keyed,
// with the local synthesizer as fallback; either may be absent.
func New(cfg config.SpeechConfig, observer Observer, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var stt Transcriber
	if cfg.STTEndpoint != "" {
		w, err := NewWhisper(WhisperConfig{Endpoint: cfg.STTEndpoint})
		if err != nil {
			return nil, err
		}
		stt = w
	}

	var links []Synthesizer
	var voices VoiceLister
	if cfg.ElevenLabsAPIKey != "" {
		el, err := NewElevenLabs(ElevenLabsConfig{
			APIKey:  cfg.ElevenLabsAPIKey,
			VoiceID: cfg.ElevenLabsVoiceID,
			Model:   cfg.ElevenLabsModel,
		})
		if err != nil {
			return nil, err
		}
		links = append(links, el)
		voices = el
		logger.Info("ElevenLabs voice synthesis enabled", "voice_id", cfg.ElevenLabsVoiceID)
	}
	if cfg.TTSEndpoint != "" {
		p, err := NewPiper(PiperConfig{Endpoint: cfg.TTSEndpoint})
		if err != nil {
			return nil, err
		}
		links = append(links, p)
	}

	var tts Synthesizer
	if len(links) > 0 {
		tts = NewChain(logger, links...)
	}

	return NewService(ServiceConfig{
		Transcriber: stt,
		Synthesizer: tts,
		VoiceLister: voices,
		Workers:     cfg.Workers,
		Timeout:     cfg.Timeout,
		Observer:    observer,
		Logger:      logger,
	}), nil
}

// Transcribe recognises speech in audio. language defaults to en-US.
func (s *Service) Transcribe(ctx context.Context, audio []byte, language string) (Transcript, error) {
	if s.stt == nil {
		return Transcript{}, s.finish(OpTranscribe, ErrUnconfigured)
	}
	if len(audio) == 0 {
		return Transcript{}, s.finish(OpTranscribe, &Error{Kind: KindInvalidInput, Err: errors.New("audio is empty")})
	}
	if language == "" {
		language = DefaultLanguage
	}

	var out Transcript
	err := s.run(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.stt.Transcribe(ctx, audio, language)
		return err
	})
	return out, s.finish(OpTranscribe, err)
}

// Synthesize renders text as audio.
func (s *Service) Synthesize(ctx context.Context, text string) (Audio, error) {
	if s.tts == nil {
		return Audio{}, s.finish(OpSynthesize, ErrUnconfigured)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Audio{}, s.finish(OpSynthesize, &Error{Kind: KindInvalidInput, Err: errors.New("text is required")})
	}

	var out Audio
	err := s.run(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.tts.Synthesize(ctx, text)
		return err
	})
	return out, s.finish(OpSynthesize, err)
}

// Voices lists available voices. It never fails: an unconfigured or
// unreachable provider yields an empty list.
func (s *Service) Voices(ctx context.Context) []Voice {
	if s.voices == nil {
		return []Voice{}
	}
	var out []Voice
	err := s.run(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.voices.Voices(ctx)
		return err
	})
	if s.finish(OpVoices, err) != nil {
		s.logger.Warn("failed to fetch voices", "error", err)
		return []Voice{}
	}
	if out == nil {
		out = []Voice{}
	}
	return out
}

// run applies the timeout, waits for a worker and calls fn.
func (s *Service) run(ctx context.Context, fn func(context.Context) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for speech worker: %w", err)
	}
	defer s.sem.Release(1)
	return fn(ctx)
}

// finish categorises err, reports the outcome and returns a *Error.
func (s *Service) finish(op string, err error) error {
	if err == nil {
		s.observer.SpeechOutcome(op, "")
		return nil
	}
	kind := Classify(err)
	s.observer.SpeechOutcome(op, string(kind))
	if kind != KindUnintelligible && kind != KindInvalidInput {
		s.logger.Warn("speech operation failed", "operation", op, "kind", kind, "error", err)
	}
	return wrap(kind, err)
}
