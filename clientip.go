package gatekit

import (
	"net/http"
	"strings"
)

// unknownClient is the stable fallback identifier when no forwarding header
// is present. All such requests share one rate-limit bucket, which is the
// safe direction to fail in: an unidentifiable flood is throttled as one
// client rather than each request getting its own fresh budget.
const unknownClient = "unknown"

// ClientIP derives the rate-limit partition key for a request from the
// forwarded-IP header chain: the first X-Forwarded-For entry, then X-Real-IP.
//
// SECURITY: Only trust these headers behind a reverse proxy that sets them.
// Without a proxy, clients can spoof X-Forwarded-For to bypass rate limits.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			xff = xff[:idx]
		}
		if ip := strings.TrimSpace(xff); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	return unknownClient
}
