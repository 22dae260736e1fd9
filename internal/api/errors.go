package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	Op         string
	StatusCode int
	// Detail is the server-provided message, empty when the body carried none.
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Op, e.Detail, e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
}

// TransportError means the request never produced an HTTP response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ErrNotFound matches any 404 APIError via errors.Is.
var ErrNotFound = errors.New("not found")

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

func newAPIError(op string, status int, body []byte) *APIError {
	return &APIError{Op: op, StatusCode: status, Detail: parseDetail(body)}
}

// parseDetail extracts {"detail": ...}. Validation failures carry a list of
// {"loc": [...], "msg": "..."} objects instead of a string.
func parseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		return strings.TrimSpace(text)
	}

	var items []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err == nil && len(items) > 0 {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if len(item.Loc) > 0 {
				parts = append(parts, fmt.Sprintf("%v: %s", item.Loc[len(item.Loc)-1], item.Msg))
				continue
			}
			parts = append(parts, item.Msg)
		}
		return strings.Join(parts, "; ")
	}
	return ""
}

// Detail returns the server-provided detail message carried by err, or "".
func Detail(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return ""
}

// IsTransport reports whether err is a connection-level failure.
func IsTransport(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}
