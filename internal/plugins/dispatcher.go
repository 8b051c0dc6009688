// ABOUTME: Routes a message to the first enabled handler, by priority, that accepts it.
// ABOUTME: Isolates handler failures so a broken handler never blocks lower-priority ones.

package plugins

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrNoMatch is returned by Dispatch when no handler answered the message.
var ErrNoMatch = errors.New("no handler matched")

// Stage names reported to an Observer when a handler fails.
const (
	StagePredicate = "can_handle"
	StageHandle    = "handle"
)

// Observer receives dispatch outcomes, typically for metrics.
type Observer interface {
	HandlerMatched(name string)
	HandlerFailed(name, stage string)
	NoMatch()
}

type nopObserver struct{}

func (nopObserver) HandlerMatched(string)        {}
func (nopObserver) HandlerFailed(string, string) {}
func (nopObserver) NoMatch()                     {}

// Result is the answer produced by a handler.
type Result struct {
	Response string
	Handler  string
}

// Dispatcher asks the registry's handlers, in priority order, to answer.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
	observer Observer
}

// DispatcherConfig contains configuration options for the Dispatcher.
type DispatcherConfig struct {
	Registry *Registry
	Logger   *slog.Logger
	Observer Observer
}

// NewDispatcher creates a Dispatcher with the given configuration.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := cfg.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Dispatcher{
		registry: cfg.Registry,
		logger:   logger,
		observer: observer,
	}
}

// Dispatch returns the answer of the highest-priority enabled handler whose
// predicate accepts message. That answer is returned even when blank; no
// further handlers are asked. A blank message never matches. Handler errors
// and panics are logged and the next handler is tried. Returns ErrNoMatch
// when nothing answered.
func (d *Dispatcher) Dispatch(ctx context.Context, message string, hc HandleContext) (Result, error) {
	if strings.TrimSpace(message) == "" {
		d.observer.NoMatch()
		return Result{}, ErrNoMatch
	}

	for _, e := range d.registry.snapshot() {
		if !e.enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		ok, err := callPredicate(ctx, e.handler, message)
		if err != nil {
			d.logger.Warn("handler predicate failed",
				"handler", e.name,
				"error", err,
			)
			d.observer.HandlerFailed(e.name, StagePredicate)
			continue
		}
		if !ok {
			continue
		}

		d.logger.Debug("→ dispatching to handler", "handler", e.name)
		response, err := callHandle(ctx, e.handler, message, hc)
		if err != nil {
			d.logger.Warn("handler failed",
				"handler", e.name,
				"error", err,
			)
			d.observer.HandlerFailed(e.name, StageHandle)
			continue
		}

		d.logger.Debug("← handler responded", "handler", e.name)
		d.observer.HandlerMatched(e.name)
		return Result{Response: response, Handler: e.name}, nil
	}

	d.observer.NoMatch()
	return Result{}, ErrNoMatch
}

func callPredicate(ctx context.Context, h Handler, message string) (ok bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ok, err = false, fmt.Errorf("panic: %v", rec)
		}
	}()
	return h.CanHandle(ctx, message)
}

func callHandle(ctx context.Context, h Handler, message string, hc HandleContext) (resp string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			resp, err = "", fmt.Errorf("panic: %v", rec)
		}
	}()
	return h.Handle(ctx, message, hc)
}
