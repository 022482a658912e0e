// Package auth resolves bearer tokens to user identities.
//
// Tokens are opaque. Only an HMAC-SHA256 digest of a token, keyed with a
// server-side pepper, is ever stored.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/user"
)

// ErrSessionNotFound is returned by a Store for unknown or expired keys.
var ErrSessionNotFound = errors.New("session not found")

// Store keeps session digests mapped to user ids.
type Store interface {
	Put(ctx context.Context, key, userID string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Users resolves the account behind a session.
type Users interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

// Identity is the authenticated caller.
type Identity struct {
	UserID   string
	Email    string
	Username string
	Role     user.Role
}

// IsAdmin reports whether the caller holds the admin role.
func (i Identity) IsAdmin() bool { return i.Role == user.RoleAdmin }

// Sessions issues tokens and authenticates them.
type Sessions struct {
	store  Store
	users  Users
	pepper []byte
	ttl    time.Duration
}

// NewSessions creates a Sessions manager.
func NewSessions(store Store, users Users, pepper []byte, ttl time.Duration) *Sessions {
	return &Sessions{store: store, users: users, pepper: pepper, ttl: ttl}
}

func (s *Sessions) key(token string) string {
	mac := hmac.New(sha256.New, s.pepper)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// Issue opens a session for userID and returns its token.
func (s *Sessions) Issue(ctx context.Context, userID string) (string, error) {
	token := uuid.New().String()
	if err := s.store.Put(ctx, s.key(token), userID, s.ttl); err != nil {
		return "", errors.Wrap(err, "store session")
	}
	return token, nil
}

// Revoke closes the session. Unknown tokens are ignored.
func (s *Sessions) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.store.Delete(ctx, s.key(token))
}

// Authenticate resolves token to the caller's identity.
func (s *Sessions) Authenticate(ctx context.Context, token string) (Identity, error) {
	unauthorized := apperr.New(apperr.Unauthorized, apperr.CodeUnauthorized, "authentication required")
	if token == "" {
		return Identity{}, unauthorized
	}

	userID, err := s.store.Get(ctx, s.key(token))
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return Identity{}, unauthorized
		}
		return Identity{}, errors.Wrap(err, "load session")
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return Identity{}, unauthorized
		}
		return Identity{}, errors.Wrap(err, "load user")
	}
	if u.IsBanned {
		return Identity{}, apperr.New(apperr.Forbidden, apperr.CodeUserBanned, "account is banned")
	}
	return Identity{UserID: u.ID, Email: u.Email, Username: u.Username, Role: u.Role}, nil
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
