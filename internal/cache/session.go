package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/greencycle/greencycle/internal/model"
	"github.com/greencycle/greencycle/internal/tokenstore"
)

const (
	tokenKey = "auth_token"
	userKey  = "user"
)

// SessionStore keeps the bearer token and cached user in Redis so several
// headless processes can share one sign-in.
type SessionStore struct {
	cache  *Cache
	logger *slog.Logger
}

var _ tokenstore.Store = (*SessionStore)(nil)

// NewSessionStore creates a SessionStore on top of c.
func NewSessionStore(c *Cache, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{cache: c, logger: logger.With("component", "tokenstore", "backend", "redis")}
}

// Save writes both keys in one pipeline. A nil user deletes the user key.
func (s *SessionStore) Save(ctx context.Context, token string, user *model.User) error {
	pipe := s.cache.client.TxPipeline()
	pipe.Set(ctx, s.cache.key(tokenKey), token, 0)
	if user != nil {
		data, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("marshal user: %w", err)
		}
		pipe.Set(ctx, s.cache.key(userKey), data, 0)
	} else {
		pipe.Del(ctx, s.cache.key(userKey))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load reads both keys. Errors and corrupt entries are treated as absent.
func (s *SessionStore) Load(ctx context.Context) tokenstore.Credentials {
	vals, err := s.cache.client.MGet(ctx, s.cache.key(tokenKey), s.cache.key(userKey)).Result()
	if err != nil {
		s.logger.Warn("session lookup failed", "error", err)
		return tokenstore.Credentials{}
	}

	var creds tokenstore.Credentials
	if tok, ok := vals[0].(string); ok {
		creds.Token = tok
	}
	if raw, ok := vals[1].(string); ok {
		var u model.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			// Corrupted cache entry - treat as miss
			s.logger.Warn("cached user corrupt, ignoring", "error", err)
		} else {
			creds.User = &u
		}
	}
	return creds
}

// Clear deletes both keys.
func (s *SessionStore) Clear(ctx context.Context) error {
	if err := s.cache.client.Del(ctx, s.cache.key(tokenKey), s.cache.key(userKey)).Err(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
