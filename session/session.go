// Package session provides authoritative session validation for the gate.
//
// A session cookie carries a signed token naming a server-side session. The
// signature check is cheap and local; it proves the cookie was minted by this
// deployment but not that the session is still live. Validation therefore
// always finishes with a lookup against session storage, so revoked or
// expired sessions are rejected even when their cookie still verifies.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrInvalid is returned when a token is malformed, tampered with, or names
// a session that no longer exists or has expired. Any other error from a
// Validator is an infrastructure failure and must not be treated as a plain
// authentication failure.
var ErrInvalid = errors.New("session: invalid or expired session")

// Session is an authenticated user session.
type Session struct {
	ID        string
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// Validator performs authoritative validation of a session cookie value.
type Validator interface {
	// Validate resolves a cookie token to a live session.
	// Returns ErrInvalid when the token or session is not acceptable.
	Validate(ctx context.Context, token string) (*Session, error)
}

// Store is the persistence backend the Manager validates against.
// Implementations must be safe for concurrent use.
type Store interface {
	// Create persists a session.
	Create(ctx context.Context, sess *Session) error

	// Get retrieves a session by id. Returns ErrInvalid when absent.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete revokes a session. Deleting an absent session is not an error.
	Delete(ctx context.Context, id string) error

	// Close releases any resources held by the store.
	Close() error
}

type contextKey string

const sessionKey contextKey = "gatekit_session"

// NewContext returns a context carrying the validated session.
func NewContext(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// FromContext retrieves the validated session from the request context.
// Returns the session and true if present, or nil and false if not present.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(sessionKey).(*Session)
	return sess, ok
}

// Manager validates signed cookie tokens against a Store.
type Manager struct {
	secret []byte
	store  Store
	now    func() time.Time
}

// NewManager creates a Manager signing and verifying tokens with secret and
// resolving session ids against store.
func NewManager(secret []byte, store Store) *Manager {
	return &Manager{
		secret: secret,
		store:  store,
		now:    time.Now,
	}
}

// Issue creates a session token for sess after persisting it to the store.
// The returned string is the value to set as the session cookie.
func (m *Manager) Issue(ctx context.Context, sess *Session) (string, error) {
	if err := m.store.Create(ctx, sess); err != nil {
		return "", err
	}
	return signToken(m.secret, sess.ID, sess.ExpiresAt)
}

// Validate implements Validator. The signature check runs first so forged or
// corrupted cookies never reach storage; the store lookup then decides
// whether the session is still live.
func (m *Manager) Validate(ctx context.Context, token string) (*Session, error) {
	id, err := parseToken(m.secret, token)
	if err != nil {
		return nil, ErrInvalid
	}

	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !sess.ExpiresAt.After(m.now()) {
		return nil, ErrInvalid
	}

	return sess, nil
}

// Revoke deletes the session named by token. A token that fails to parse is
// treated as already revoked.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	id, err := parseToken(m.secret, token)
	if err != nil {
		return nil
	}
	return m.store.Delete(ctx, id)
}
