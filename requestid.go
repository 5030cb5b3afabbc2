package gatekit

// Request correlation. Every request is tagged with an identifier that is
// echoed on the response and stamped onto every log field set, so one request
// can be traced end-to-end across services and logs.

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader is the header the correlation id travels in, both inbound
// and on every response the gate touches.
const RequestIDHeader = "x-request-id"

type requestIDContextKey string

const requestIDKey requestIDContextKey = "gatekit_request_id"

// requestID returns the inbound correlation id, or a freshly generated UUID
// when the header is absent or empty.
func requestID(r *http.Request) string {
	if id := r.Header.Get(RequestIDHeader); id != "" {
		return id
	}
	return uuid.NewString()
}

// withRequestID returns a context carrying the correlation id.
func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext retrieves the correlation id assigned by the gate.
// Returns the id and true if present, or empty string and false if not.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok
}
