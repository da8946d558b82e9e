package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"socialconnect/src/models"
)

type PGSessionStore struct {
	pool     *pgxpool.Pool
	ownsPool bool
}

// NewPGSessionStore wraps pool. When ownsPool is set, Close closes the pool.
func NewPGSessionStore(pool *pgxpool.Pool, ownsPool bool) *PGSessionStore {
	return &PGSessionStore{pool: pool, ownsPool: ownsPool}
}

func (s *PGSessionStore) Load(ctx context.Context, key string) (models.Session, bool, error) {
	var (
		session  models.Session
		issuedAt int64
	)
	err := s.pool.QueryRow(ctx, `
		SELECT username, token, issued_at
		FROM client_sessions
		WHERE session_key = $1
	`, key).Scan(&session.User.Username, &session.Token, &issuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Session{}, false, nil
	}
	if err != nil {
		return models.Session{}, false, fmt.Errorf("load session: %w", err)
	}
	session.IssuedAt = time.Unix(issuedAt, 0).UTC()
	return session, true, nil
}

func (s *PGSessionStore) Save(ctx context.Context, key string, session models.Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO client_sessions (session_key, username, token, issued_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_key) DO UPDATE
		SET username = EXCLUDED.username,
			token = EXCLUDED.token,
			issued_at = EXCLUDED.issued_at,
			updated_at = EXCLUDED.updated_at
	`, key, session.User.Username, session.Token, session.IssuedAt.Unix(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *PGSessionStore) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM client_sessions WHERE session_key = $1`, key); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *PGSessionStore) Close() error {
	if s.ownsPool {
		s.pool.Close()
	}
	return nil
}
