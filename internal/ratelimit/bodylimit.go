// ABOUTME: Request body size ceiling middleware answering oversize bodies with a structured 413.

package ratelimit

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

type tooLarge struct {
	Error      bool   `json:"error"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	LimitBytes int64  `json:"limit_bytes"`
}

// BodyLimit rejects requests whose declared Content-Length exceeds limit and
// caps the body of every other request with http.MaxBytesReader. A limit of
// zero or less disables the check.
func BodyLimit(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				WriteTooLarge(w, limit)
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteTooLarge writes the structured 413 response.
func WriteTooLarge(w http.ResponseWriter, limit int64) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusRequestEntityTooLarge)
	_ = json.NewEncoder(w).Encode(tooLarge{
		Error:      true,
		StatusCode: http.StatusRequestEntityTooLarge,
		Message:    fmt.Sprintf("Request body too large. Maximum size is %d bytes.", limit),
		LimitBytes: limit,
	})
}

// IsTooLarge reports whether err came from reading past a BodyLimit ceiling.
// It returns the ceiling when it did.
func IsTooLarge(err error) (int64, bool) {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return mbe.Limit, true
	}
	return 0, false
}
