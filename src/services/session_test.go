package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"socialconnect/src/models"
	"socialconnect/src/testutil"
)

type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]models.Session
	failSave error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: make(map[string]models.Session)}
}

func (m *memoryStore) Load(_ context.Context, key string) (models.Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	return s, ok, nil
}

func (m *memoryStore) Save(_ context.Context, key string, s models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave != nil {
		return m.failSave
	}
	m.sessions[key] = s
	return nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
	return nil
}

func newTestShell(t *testing.T) (*Shell, *memoryStore, *testutil.Backend) {
	t.Helper()
	backend := testutil.NewBackend()
	backend.AddUser("alice")
	store := newMemoryStore()
	auth := NewBackendAuthProvider(newTestClient(t, backend))
	return NewShell(auth, store, nil), store, backend
}

func TestShellLoginStoresSessionUnderFixedKey(t *testing.T) {
	shell, store, backend := newTestShell(t)
	ctx := context.Background()

	if _, err := shell.Require(); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("Require before login = %v, want ErrNotLoggedIn", err)
	}

	session, err := shell.Login(ctx, " alice ")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if session.User.Username != "alice" || session.Token == "" || session.IssuedAt.IsZero() {
		t.Fatalf("unexpected session: %+v", session)
	}
	if len(backend.CallsTo("/auth/alice")) != 1 {
		t.Fatalf("login must verify through /auth/alice")
	}
	stored, ok, _ := store.Load(ctx, "currentUser")
	if !ok || stored.Token != session.Token {
		t.Fatalf("session not stored under currentUser: %+v", stored)
	}

	user, err := shell.Require()
	if err != nil || user.Username != "alice" {
		t.Fatalf("Require = (%+v, %v)", user, err)
	}
}

func TestShellLoginUnknownUser(t *testing.T) {
	shell, store, _ := newTestShell(t)

	_, err := shell.Login(context.Background(), "mallory")
	if !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("Login error = %v, want ErrUnknownUser", err)
	}
	if _, ok, _ := store.Load(context.Background(), SessionKey); ok {
		t.Fatalf("failed login must not store a session")
	}
	if _, ok := shell.Current(); ok {
		t.Fatalf("failed login must not set a current session")
	}
}

func TestShellLoginSaveFailure(t *testing.T) {
	shell, store, _ := newTestShell(t)
	store.failSave = errors.New("disk full")

	if _, err := shell.Login(context.Background(), "alice"); err == nil {
		t.Fatalf("expected save error")
	}
	if _, ok := shell.Current(); ok {
		t.Fatalf("unsaved session must not become current")
	}
}

func TestShellRestoreAndLogout(t *testing.T) {
	shell, store, _ := newTestShell(t)
	ctx := context.Background()
	saved := models.Session{User: models.User{Username: "alice"}, Token: "tok", IssuedAt: time.Now()}
	if err := store.Save(ctx, SessionKey, saved); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	got, ok, err := shell.Restore(ctx)
	if err != nil || !ok || got.Token != "tok" {
		t.Fatalf("Restore = (%+v, %v, %v)", got, ok, err)
	}
	if user, err := shell.Require(); err != nil || user.Username != "alice" {
		t.Fatalf("Require after restore = (%+v, %v)", user, err)
	}

	if err := shell.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, ok, _ := store.Load(ctx, SessionKey); ok {
		t.Fatalf("logout must clear the stored session")
	}
	if _, err := shell.Require(); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("Require after logout = %v, want ErrNotLoggedIn", err)
	}
}

func TestShellRestoreDiscardsInvalidSession(t *testing.T) {
	shell, store, _ := newTestShell(t)
	ctx := context.Background()
	if err := store.Save(ctx, SessionKey, models.Session{User: models.User{Username: "alice"}}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	if _, ok, err := shell.Restore(ctx); err != nil || ok {
		t.Fatalf("Restore = (ok=%v, err=%v), want discarded", ok, err)
	}
	if _, ok, _ := store.Load(ctx, SessionKey); ok {
		t.Fatalf("invalid session must be deleted")
	}
}

func TestBackendAuthProviderIssue(t *testing.T) {
	auth := NewBackendAuthProvider(nil)
	auth.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("x", 3600)) }

	a, err := auth.Issue(context.Background(), models.User{Username: "alice"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	b, _ := auth.Issue(context.Background(), models.User{Username: "alice"})
	if a.Token == b.Token {
		t.Fatalf("tokens must be unique")
	}
	if a.IssuedAt.Location() != time.UTC {
		t.Fatalf("IssuedAt must be UTC")
	}
	if _, err := auth.Issue(context.Background(), models.User{}); err == nil {
		t.Fatalf("expected error for empty user")
	}
	if _, err := auth.Verify(context.Background(), "  "); !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("Verify blank = %v, want ErrUnknownUser", err)
	}
}
