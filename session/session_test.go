package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestManager_IssueAndValidate(t *testing.T) {
	store := NewMemory()
	defer store.Close()

	m := NewManager([]byte("test-secret"), store)

	sess := &Session{
		ID:        "sess-1",
		UserID:    "user-1",
		Email:     "user@example.com",
		ExpiresAt: time.Now().Add(time.Hour),
	}

	token, err := m.Issue(context.Background(), sess)
	if err != nil {
		t.Fatalf("Issue() unexpected error: %v", err)
	}
	if token == "" {
		t.Fatal("Issue() returned empty token")
	}

	got, err := m.Validate(context.Background(), token)
	if err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if got.ID != sess.ID || got.UserID != sess.UserID || got.Email != sess.Email {
		t.Errorf("Validate() = %+v, want %+v", got, sess)
	}
}

func TestManager_Validate_RejectsBadTokens(t *testing.T) {
	store := NewMemory()
	defer store.Close()

	m := NewManager([]byte("test-secret"), store)

	sess := &Session{ID: "sess-1", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}
	token, err := m.Issue(context.Background(), sess)
	if err != nil {
		t.Fatalf("Issue() unexpected error: %v", err)
	}

	// A token signed with a different secret for the same session id.
	foreign, err := signToken([]byte("other-secret"), "sess-1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("signToken() unexpected error: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "garbage token", token: "not-a-token"},
		{name: "wrong signing secret", token: foreign},
		{name: "tampered payload", token: tamper(token)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Validate(context.Background(), tt.token)
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() error = %v, want ErrInvalid", err)
			}
		})
	}
}

// tamper flips a character in the token's payload segment, leaving the
// signature untouched.
func tamper(token string) string {
	parts := strings.SplitN(token, ".", 3)
	if len(parts) != 3 || len(parts[1]) == 0 {
		return token + "x"
	}
	payload := []byte(parts[1])
	if payload[0] == 'A' {
		payload[0] = 'B'
	} else {
		payload[0] = 'A'
	}
	return parts[0] + "." + string(payload) + "." + parts[2]
}

func TestManager_Validate_RejectsUnknownSession(t *testing.T) {
	store := NewMemory()
	defer store.Close()

	m := NewManager([]byte("test-secret"), store)

	// Valid signature, but the session was never persisted. The cookie alone
	// is not proof of validity.
	token, err := signToken([]byte("test-secret"), "ghost", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("signToken() unexpected error: %v", err)
	}

	if _, err := m.Validate(context.Background(), token); !errors.Is(err, ErrInvalid) {
		t.Errorf("Validate() error = %v, want ErrInvalid", err)
	}
}

func TestManager_Validate_RejectsExpiredSession(t *testing.T) {
	store := NewMemory()
	defer store.Close()

	now := time.Now()
	m := &Manager{
		secret: []byte("test-secret"),
		store:  store,
		now:    func() time.Time { return now },
	}

	sess := &Session{ID: "sess-1", UserID: "user-1", ExpiresAt: now.Add(time.Hour)}
	token, err := m.Issue(context.Background(), sess)
	if err != nil {
		t.Fatalf("Issue() unexpected error: %v", err)
	}

	if _, err := m.Validate(context.Background(), token); err != nil {
		t.Fatalf("Validate() before expiry: unexpected error %v", err)
	}

	now = now.Add(2 * time.Hour)

	if _, err := m.Validate(context.Background(), token); !errors.Is(err, ErrInvalid) {
		t.Errorf("Validate() after expiry: error = %v, want ErrInvalid", err)
	}
}

func TestManager_Revoke(t *testing.T) {
	store := NewMemory()
	defer store.Close()

	m := NewManager([]byte("test-secret"), store)

	sess := &Session{ID: "sess-1", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}
	token, err := m.Issue(context.Background(), sess)
	if err != nil {
		t.Fatalf("Issue() unexpected error: %v", err)
	}

	if err := m.Revoke(context.Background(), token); err != nil {
		t.Fatalf("Revoke() unexpected error: %v", err)
	}

	if _, err := m.Validate(context.Background(), token); !errors.Is(err, ErrInvalid) {
		t.Errorf("Validate() after revoke: error = %v, want ErrInvalid", err)
	}

	if err := m.Revoke(context.Background(), "garbage"); err != nil {
		t.Errorf("Revoke() with unparseable token: unexpected error %v", err)
	}
}

type failingStore struct {
	err error
}

func (f *failingStore) Create(context.Context, *Session) error { return f.err }

func (f *failingStore) Get(context.Context, string) (*Session, error) { return nil, f.err }

func (f *failingStore) Delete(context.Context, string) error { return f.err }

func (f *failingStore) Close() error { return nil }

func TestManager_Validate_PropagatesStoreFailure(t *testing.T) {
	storeErr := errors.New("connection refused")
	m := NewManager([]byte("test-secret"), &failingStore{err: storeErr})

	token, err := signToken([]byte("test-secret"), "sess-1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("signToken() unexpected error: %v", err)
	}

	_, err = m.Validate(context.Background(), token)
	if errors.Is(err, ErrInvalid) {
		t.Fatal("store failure must not be reported as an invalid session")
	}
	if !errors.Is(err, storeErr) {
		t.Errorf("Validate() error = %v, want wrapped store failure", err)
	}
}

func TestFromContext(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("FromContext() on empty context should report absence")
	}

	sess := &Session{ID: "sess-1", UserID: "user-1"}
	ctx := NewContext(context.Background(), sess)

	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("FromContext() should find the session")
	}
	if got.ID != "sess-1" {
		t.Errorf("FromContext() = %+v, want %+v", got, sess)
	}
}
