package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"socialconnect/src/api"
	"socialconnect/src/models"
)

// SessionKey is the fixed key the current session is stored under.
const SessionKey = "currentUser"

// SessionStore persists one session per key.
type SessionStore interface {
	Load(ctx context.Context, key string) (models.Session, bool, error)
	Save(ctx context.Context, key string, session models.Session) error
	Delete(ctx context.Context, key string) error
}

// AuthProvider issues and checks sessions.
type AuthProvider interface {
	Verify(ctx context.Context, username string) (models.User, error)
	Issue(ctx context.Context, user models.User) (models.Session, error)
	Revoke(ctx context.Context, session models.Session) error
}

// UserVerifier is the API call BackendAuthProvider relies on.
type UserVerifier interface {
	VerifyUser(ctx context.Context, user models.Identity) error
}

// BackendAuthProvider accepts any username the backend knows. Tokens are
// random and local only.
type BackendAuthProvider struct {
	verifier UserVerifier
	now      func() time.Time
}

func NewBackendAuthProvider(verifier UserVerifier) *BackendAuthProvider {
	return &BackendAuthProvider{verifier: verifier, now: time.Now}
}

func (p *BackendAuthProvider) Verify(ctx context.Context, username string) (models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.User{}, fmt.Errorf("%w: username is required", ErrUnknownUser)
	}
	if err := p.verifier.VerifyUser(ctx, models.Username(username)); err != nil {
		if api.IsNotFound(err) {
			return models.User{}, fmt.Errorf("%w: %s", ErrUnknownUser, username)
		}
		return models.User{}, fmt.Errorf("verify %s: %w", username, err)
	}
	return models.User{Username: username}, nil
}

func (p *BackendAuthProvider) Issue(_ context.Context, user models.User) (models.Session, error) {
	if user.Username == "" {
		return models.Session{}, fmt.Errorf("issue session: username is required")
	}
	return models.Session{User: user, Token: uuid.NewString(), IssuedAt: p.now().UTC()}, nil
}

func (p *BackendAuthProvider) Revoke(context.Context, models.Session) error {
	return nil
}

// Shell holds the current session in memory and mirrors it to a durable
// store. Require gates everything that needs a logged-in user.
type Shell struct {
	auth   AuthProvider
	store  SessionStore
	logger *slog.Logger

	mu      sync.RWMutex
	current *models.Session
}

func NewShell(auth AuthProvider, store SessionStore, logger *slog.Logger) *Shell {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Shell{auth: auth, store: store, logger: logger}
}

// Restore loads a stored session at startup. A malformed stored session is
// discarded rather than trusted.
func (s *Shell) Restore(ctx context.Context) (models.Session, bool, error) {
	session, ok, err := s.store.Load(ctx, SessionKey)
	if err != nil {
		return models.Session{}, false, fmt.Errorf("restore session: %w", err)
	}
	if !ok {
		return models.Session{}, false, nil
	}
	if !session.Valid() {
		s.logger.Warn("discarding invalid stored session")
		if err := s.store.Delete(ctx, SessionKey); err != nil {
			return models.Session{}, false, fmt.Errorf("discard session: %w", err)
		}
		return models.Session{}, false, nil
	}

	s.mu.Lock()
	s.current = &session
	s.mu.Unlock()
	return session, true, nil
}

func (s *Shell) Login(ctx context.Context, username string) (models.Session, error) {
	user, err := s.auth.Verify(ctx, username)
	if err != nil {
		return models.Session{}, err
	}
	session, err := s.auth.Issue(ctx, user)
	if err != nil {
		return models.Session{}, err
	}
	if err := s.store.Save(ctx, SessionKey, session); err != nil {
		return models.Session{}, fmt.Errorf("save session: %w", err)
	}

	s.mu.Lock()
	s.current = &session
	s.mu.Unlock()
	s.logger.Info("logged in", "username", user.Username)
	return session, nil
}

// Logout revokes and clears the session. Clearing happens even when
// revocation fails.
func (s *Shell) Logout(ctx context.Context) error {
	s.mu.Lock()
	current := s.current
	s.current = nil
	s.mu.Unlock()

	var revokeErr error
	if current != nil {
		revokeErr = s.auth.Revoke(ctx, *current)
	}
	if err := s.store.Delete(ctx, SessionKey); err != nil {
		return errors.Join(revokeErr, fmt.Errorf("clear session: %w", err))
	}
	return revokeErr
}

func (s *Shell) Current() (models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return models.Session{}, false
	}
	return *s.current, true
}

// Require returns the logged-in user or ErrNotLoggedIn.
func (s *Shell) Require() (models.User, error) {
	session, ok := s.Current()
	if !ok {
		return models.User{}, ErrNotLoggedIn
	}
	return session.User, nil
}
