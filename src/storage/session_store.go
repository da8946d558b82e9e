package storage

import (
	"context"
	"fmt"

	"socialconnect/src/lib"
	"socialconnect/src/models"
)

// SessionStore persists client sessions by key.
type SessionStore interface {
	Load(ctx context.Context, key string) (models.Session, bool, error)
	Save(ctx context.Context, key string, session models.Session) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// OpenSessionStore returns the store selected by cfg.SessionBackend.
func OpenSessionStore(ctx context.Context, cfg lib.Config) (SessionStore, error) {
	switch cfg.SessionBackend {
	case lib.SessionBackendFile:
		return NewFileSessionStore(cfg.SessionPath), nil
	case lib.SessionBackendPostgres:
		pool, err := NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := ApplyMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return NewPGSessionStore(pool, true), nil
	case lib.SessionBackendRedis:
		return NewRedisSessionStore(ctx, cfg.RedisURL)
	default:
		return nil, fmt.Errorf("unsupported session backend %q", cfg.SessionBackend)
	}
}
