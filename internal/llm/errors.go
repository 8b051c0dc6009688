// ABOUTME: Categorised provider failures so callers can pick a reply without seeing raw upstream detail.

package llm

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/genai"
)

// Kind categorises a generation failure.
type Kind string

const (
	KindUnconfigured Kind = "unconfigured"
	KindTimeout      Kind = "timeout"
	KindCanceled     Kind = "canceled"
	KindRateLimited  Kind = "rate_limited"
	KindUpstream     Kind = "upstream"
	KindEmpty        Kind = "empty"
	KindBlocked      Kind = "blocked"
)

// ErrUnconfigured is returned by providers without credentials.
var ErrUnconfigured = &Error{Kind: KindUnconfigured}

// Error is a categorised generation failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "llm: " + string(e.Kind)
	}
	return "llm: " + string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Classify maps err to a Kind. Returns "" for nil.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	}
	if code := apiErrorCode(err); code == http.StatusTooManyRequests {
		return KindRateLimited
	}
	return KindUpstream
}

func apiErrorCode(err error) int {
	var v genai.APIError
	if errors.As(err, &v) {
		return v.Code
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil {
		return p.Code
	}
	return 0
}
