// ABOUTME: JSON response helpers and the structured error body shared by every endpoint.
// ABOUTME: Errors carry the request id so callers can quote it when reporting problems.

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/2389/jarvis-gateway/internal/ratelimit"
)

// InternalErrorMessage is returned for unexpected failures outside development.
const InternalErrorMessage = "Internal server error. J.A.R.V.I.S. encountered an unexpected issue."

// ValidationMessage heads every 422 response.
const ValidationMessage = "Request validation failed"

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error      bool         `json:"error"`
	StatusCode int          `json:"status_code"`
	Message    string       `json:"message"`
	Details    []FieldError `json:"details,omitempty"`
	RequestID  string       `json:"request_id"`
	Timestamp  time.Time    `json:"timestamp"`
}

// validationError is returned by request decoders.
type validationError struct {
	details []FieldError
}

func (v *validationError) Error() string {
	parts := make([]string, 0, len(v.details))
	for _, d := range v.details {
		parts = append(parts, d.Field+": "+d.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func invalid(field, message string) error {
	return &validationError{details: []FieldError{{Field: field, Message: message}}}
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// sendJSONError writes the structured error body.
func (g *Gateway) sendJSONError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:      true,
		StatusCode: status,
		Message:    message,
		RequestID:  requestIDFrom(r.Context()),
		Timestamp:  g.now(),
	})
}

// sendRequestError maps a decode failure to 413, 422 or 400.
func (g *Gateway) sendRequestError(w http.ResponseWriter, r *http.Request, err error) {
	if limit, ok := ratelimit.IsTooLarge(err); ok {
		ratelimit.WriteTooLarge(w, limit)
		return
	}
	var ve *validationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:      true,
			StatusCode: http.StatusUnprocessableEntity,
			Message:    ValidationMessage,
			Details:    ve.details,
			RequestID:  requestIDFrom(r.Context()),
			Timestamp:  g.now(),
		})
		return
	}
	g.sendJSONError(w, r, http.StatusBadRequest, err.Error())
}

// sendInternalError logs err and writes a 500 that leaks detail only in
// development.
func (g *Gateway) sendInternalError(w http.ResponseWriter, r *http.Request, err error) {
	g.logger.Error("request failed",
		"request_id", requestIDFrom(r.Context()),
		"path", r.URL.Path,
		"error", err,
	)
	message := InternalErrorMessage
	if g.config.Server.IsDevelopment() {
		message = fmt.Sprintf("%s (%v)", InternalErrorMessage, err)
	}
	g.sendJSONError(w, r, http.StatusInternalServerError, message)
}

// decodeJSON reads a JSON object body into dst. Syntax and type errors
// become validation errors naming the offending field.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if _, ok := ratelimit.IsTooLarge(err); ok {
			return err
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return invalid("body -> "+typeErr.Field, "expected "+typeErr.Type.String())
		}
		if errors.Is(err, io.EOF) {
			return invalid("body", "field required")
		}
		return invalid("body", "invalid JSON: "+err.Error())
	}
	return nil
}

// queryBool parses an optional boolean query parameter.
func queryBool(r *http.Request, name string, def bool) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(raw) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, invalid("query -> "+name, "value could not be parsed to a boolean")
}
