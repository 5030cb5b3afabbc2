// Package gatekit provides an edge request gate for Chi routers and standard
// http.Handler pipelines: request correlation, session-gated authentication,
// and per-route-class rate limiting in front of every API route.
//
// This file contains the error bodies the gate writes when it terminates a
// request itself. The shape is fixed wire format: API clients match on the
// error and message fields, and on retryAfter for 429 responses.
package gatekit

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// APIError represents a structured error response written by the gate.
type APIError struct {
	Code       string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter,omitempty"`
	Status     int    `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Is implements errors.Is for comparing error codes.
func (e *APIError) Is(target error) bool {
	if e == nil {
		return target == nil
	}
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// With returns a copy of the error with a custom message.
func (e *APIError) With(message string) *APIError {
	if e == nil {
		return nil
	}
	dup := *e
	dup.Message = message
	return &dup
}

// ErrUnauthorized is the terminal response for API requests with no valid
// session on a protected route.
var ErrUnauthorized = &APIError{
	Code:    "Unauthorized",
	Message: "Authentication required",
	Status:  http.StatusUnauthorized,
}

// rateLimited builds the terminal 429 response. retryAfter is seconds until
// the client's window frees up.
func rateLimited(retryAfter int) *APIError {
	return &APIError{
		Code:       "Too Many Requests",
		Message:    fmt.Sprintf("Rate limit exceeded. Please try again in %d seconds.", retryAfter),
		RetryAfter: retryAfter,
		Status:     http.StatusTooManyRequests,
	}
}

// writeError writes an APIError as the response body.
func writeError(w http.ResponseWriter, apiErr *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	_ = json.NewEncoder(w).Encode(apiErr)
}
