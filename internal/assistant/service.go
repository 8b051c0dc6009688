// ABOUTME: Response orchestrator: tries capability handlers first, then the generative model.
// ABOUTME: Always produces a reply envelope; provider failures become categorised apologies.

package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/2389/jarvis-gateway/internal/llm"
	"github.com/2389/jarvis-gateway/internal/plugins"
)

// DefaultSessionID is used when a request carries no session.
const DefaultSessionID = "default"

// PluginSystemMarker is reported in plugin_used instead of the handler name
// when handler names are not exposed.
const PluginSystemMarker = "plugin_system"

// Preamble is the system instruction sent with every fallback prompt.
const Preamble = `You are Jarvis, an advanced AI assistant with a personality inspired by Iron Man's Jarvis.
Be helpful, professional, slightly witty, and efficient.
Always maintain a calm and composed tone.
When appropriate, use Jarvis-style responses like addressing the user as "Sir".

IMPORTANT: Always write your name as "Jarvis" (not "J.A.R.V.I.S." with dots)
because your responses are read aloud by text-to-speech.

Respond concisely but informatively.`

// LimitedModeMessages are returned when no generative model is configured.
var LimitedModeMessages = []string{
	"Systems online. I'm currently operating in limited mode. For full AI capabilities, please configure the Gemini API key.",
	"All systems ready. To enable complete AI functionality, please provide API credentials in the settings.",
	"I'm here. For advanced responses, please configure the AI API key in the environment settings.",
}

// Request is one chat turn.
type Request struct {
	Message   string
	SessionID string
}

// Envelope is the reply to a chat turn. PluginUsed is nil when the
// generative fallback answered.
type Envelope struct {
	Response   string    `json:"response"`
	SessionID  string    `json:"session_id"`
	PluginUsed *string   `json:"plugin_used"`
	Timestamp  time.Time `json:"timestamp"`
}

// Observer receives fallback outcomes, typically for metrics. Kind is ""
// on success.
type Observer interface {
	FallbackOutcome(kind string)
}

type nopObserver struct{}

func (nopObserver) FallbackOutcome(string) {}

// Dispatcher routes a message to a capability handler.
type Dispatcher interface {
	Dispatch(ctx context.Context, message string, hc plugins.HandleContext) (plugins.Result, error)
}

// Config contains configuration options for the Service.
type Config struct {
	Dispatcher        Dispatcher
	Provider          llm.Provider
	ReportHandlerName bool
	FallbackTimeout   time.Duration
	Observer          Observer
	Logger            *slog.Logger
	Now               func() time.Time
	// Pick chooses an index in [0, n). Defaults to math/rand.
	Pick func(n int) int
}

// Service produces reply envelopes.
type Service struct {
	dispatcher Dispatcher
	provider   llm.Provider
	reportName bool
	timeout    time.Duration
	observer   Observer
	logger     *slog.Logger
	now        func() time.Time
	pick       func(n int) int
}

// NewService creates a Service with the given configuration.
func NewService(cfg Config) *Service {
	s := &Service{
		dispatcher: cfg.Dispatcher,
		provider:   cfg.Provider,
		reportName: cfg.ReportHandlerName,
		timeout:    cfg.FallbackTimeout,
		observer:   cfg.Observer,
		logger:     cfg.Logger,
		now:        cfg.Now,
		pick:       cfg.Pick,
	}
	if s.provider == nil {
		s.provider = llm.Unconfigured{}
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "assistant")
	if s.now == nil {
		s.now = time.Now
	}
	if s.pick == nil {
		s.pick = rand.IntN
	}
	return s
}

// Respond answers req. It never fails: handler and provider errors are
// turned into reply text.
func (s *Service) Respond(ctx context.Context, req Request) Envelope {
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	env := Envelope{SessionID: sessionID}

	if s.dispatcher != nil {
		res, err := s.dispatcher.Dispatch(ctx, req.Message, plugins.HandleContext{SessionID: sessionID})
		switch {
		case err == nil:
			name := res.Handler
			if !s.reportName {
				name = PluginSystemMarker
			}
			env.Response = res.Response
			env.PluginUsed = &name
			env.Timestamp = s.now().UTC()
			return env
		case !errors.Is(err, plugins.ErrNoMatch):
			s.logger.Warn("dispatch aborted, using fallback", "session_id", sessionID, "error", err)
		}
	}

	env.Response = s.fallback(ctx, req.Message, sessionID)
	env.Timestamp = s.now().UTC()
	return env
}

func (s *Service) fallback(ctx context.Context, message, sessionID string) string {
	if !llm.IsConfigured(s.provider) {
		s.observer.FallbackOutcome(string(llm.KindUnconfigured))
		return LimitedModeMessages[s.pick(len(LimitedModeMessages))]
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := s.provider.Generate(ctx, Preamble, message)
	if err == nil {
		s.observer.FallbackOutcome("")
		s.logger.Debug("fallback answered", "session_id", sessionID, "duration", time.Since(start))
		return text
	}

	kind := llm.Classify(err)
	s.observer.FallbackOutcome(string(kind))
	if kind == llm.KindUnconfigured {
		return LimitedModeMessages[s.pick(len(LimitedModeMessages))]
	}
	s.logger.Warn("fallback failed",
		"session_id", sessionID,
		"kind", kind,
		"error", err,
		"duration", time.Since(start),
	)
	return Apology(kind)
}

// Apology returns the user-facing reply for a failed generation.
func Apology(kind llm.Kind) string {
	var hint string
	switch kind {
	case llm.KindTimeout:
		hint = "The language core took too long to respond. Please try again."
	case llm.KindCanceled:
		hint = "The request was cancelled before I could finish."
	case llm.KindRateLimited:
		hint = "The language core is busy at the moment. Please try again shortly."
	case llm.KindBlocked:
		hint = "I'm not able to respond to that request."
	case llm.KindEmpty:
		hint = "I couldn't formulate a response. Could you rephrase?"
	default:
		kind = llm.KindUpstream
		hint = "The language core is unreachable right now. Please try again."
	}
	return fmt.Sprintf("I apologize, Sir, but I encountered an error (%s). %s", kind, hint)
}
