package session

import (
	"context"
	"sync"
)

// Memory is an in-memory implementation of Store.
// Suitable for tests and local development; sessions do not survive a
// process restart and are not shared across instances.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemory creates an empty in-memory session store.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]Session)}
}

func (m *Memory) Create(_ context.Context, sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[sess.ID] = *sess
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrInvalid
	}
	return &sess, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}

func (m *Memory) Close() error {
	return nil
}
