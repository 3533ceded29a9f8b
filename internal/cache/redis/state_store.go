package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/basketbot/internal/domain"
)

// StateStore implements domain.StateStore. Each session's latest trader state
// blob is a plain string at "state:{session}" that expires after ttl of
// inactivity.
type StateStore struct {
	c   *Client
	ttl time.Duration
}

// NewStateStore creates a StateStore. A ttl <= 0 keeps blobs forever.
func NewStateStore(c *Client, ttl time.Duration) *StateStore {
	return &StateStore{c: c, ttl: ttl}
}

func (s *StateStore) key(session string) string {
	return s.c.Key("state:" + session)
}

// Save stores blob as the session's latest state and refreshes its expiry.
func (s *StateStore) Save(ctx context.Context, session, blob string) error {
	ttl := s.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := s.c.Underlying().Set(ctx, s.key(session), blob, ttl).Err(); err != nil {
		return fmt.Errorf("redis: save state %s: %w", session, err)
	}
	return nil
}

// Load returns the session's latest state. It returns domain.ErrNotFound when
// nothing is stored or the blob expired.
func (s *StateStore) Load(ctx context.Context, session string) (string, error) {
	blob, err := s.c.Underlying().Get(ctx, s.key(session)).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis: load state %s: %w", session, err)
	}
	return blob, nil
}

// Compile-time interface check.
var _ domain.StateStore = (*StateStore)(nil)
