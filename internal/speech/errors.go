// ABOUTME: Categorised speech failures so the HTTP layer can degrade per kind.

package speech

import (
	"context"
	"errors"
	"fmt"
)

// Kind categorises a speech failure.
type Kind string

const (
	KindUnconfigured   Kind = "unconfigured"
	KindInvalidInput   Kind = "invalid_input"
	KindTimeout        Kind = "timeout"
	KindCanceled       Kind = "canceled"
	KindUpstream       Kind = "upstream"
	KindUnintelligible Kind = "unintelligible"
)

// Error is a categorised speech failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "speech: " + string(e.Kind)
	}
	return fmt.Sprintf("speech: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrUnconfigured)
// works on wrapped values.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// Sentinels for errors.Is.
var (
	ErrUnconfigured   = &Error{Kind: KindUnconfigured}
	ErrInvalidInput   = &Error{Kind: KindInvalidInput}
	ErrUnintelligible = &Error{Kind: KindUnintelligible}
)

// Classify returns the Kind of err. Unknown errors are upstream failures.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	}
	return KindUpstream
}

func wrap(kind Kind, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: kind, Err: err}
}
