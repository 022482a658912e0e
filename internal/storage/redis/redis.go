// Package redis keeps session and sign-in state in Redis.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/storefront/internal/domain/auth"
)

const (
	sessionPrefix = "session:"
	statePrefix   = "oauth_state:"
)

// Connect parses url, opens a client and verifies the connection.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

var _ auth.Store = (*SessionStore)(nil)

// SessionStore maps session digests to user ids with expiry.
type SessionStore struct {
	client redis.UniversalClient
}

// NewSessionStore creates a SessionStore on client.
func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return &SessionStore{client: client}
}

// Put stores the session for ttl.
func (s *SessionStore) Put(ctx context.Context, key, userID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, sessionPrefix+key, userID, ttl).Err(); err != nil {
		return errors.Wrap(err, "set session")
	}
	return nil
}

// Get returns the session's user id or auth.ErrSessionNotFound.
func (s *SessionStore) Get(ctx context.Context, key string) (string, error) {
	userID, err := s.client.Get(ctx, sessionPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", auth.ErrSessionNotFound
		}
		return "", errors.Wrap(err, "get session")
	}
	return userID, nil
}

// Delete removes the session. Missing keys are not an error.
func (s *SessionStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, sessionPrefix+key).Err(); err != nil {
		return errors.Wrap(err, "delete session")
	}
	return nil
}

// StateStore holds one-time OAuth state values.
type StateStore struct {
	client redis.UniversalClient
}

// NewStateStore creates a StateStore on client.
func NewStateStore(client redis.UniversalClient) *StateStore {
	return &StateStore{client: client}
}

// Save records state as pending for ttl.
func (s *StateStore) Save(ctx context.Context, state string, ttl time.Duration) error {
	if err := s.client.Set(ctx, statePrefix+state, 1, ttl).Err(); err != nil {
		return errors.Wrap(err, "set state")
	}
	return nil
}

// Consume deletes state and reports whether it was pending.
func (s *StateStore) Consume(ctx context.Context, state string) (bool, error) {
	err := s.client.GetDel(ctx, statePrefix+state).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, errors.Wrap(err, "consume state")
	}
}
