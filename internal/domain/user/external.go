package user

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/storefront/internal/domain/apperr"
)

const maxUsernameAttempts = 50

// ExternalProfile is an identity asserted by a third-party sign-in provider.
type ExternalProfile struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// LoginExternal signs in the account owning the profile's email, creating
// one on first use, and opens a session.
func (s *Service) LoginExternal(ctx context.Context, p ExternalProfile) (*Session, error) {
	email := normalizeEmail(p.Email)
	if !p.EmailVerified || !validEmail(email) {
		return nil, apperr.New(apperr.Unauthorized, apperr.CodeGoogleAuthFailed, "%s account has no verified email", p.Provider)
	}

	u, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		if u, err = s.createExternal(ctx, email, p.Name); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Wrap(err, "get user")
	}
	if u.IsBanned {
		return nil, apperr.New(apperr.Forbidden, apperr.CodeUserBanned, "account is banned")
	}
	return s.open(ctx, u)
}

// createExternal registers a password-less account. The stored hash is of a
// random secret nobody knows, so password login stays closed.
func (s *Service) createExternal(ctx context.Context, email, name string) (*User, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, errors.Wrap(err, "generate secret")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(secret)), s.cost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	base := baseUsername(name, email)
	now := s.now().UTC()
	for i := 0; i < maxUsernameAttempts; i++ {
		username := base
		if i > 0 {
			username = base + strconv.Itoa(i)
		}
		u := &User{
			ID:           uuid.New().String(),
			Email:        email,
			Username:     username,
			PasswordHash: string(hash),
			Role:         RoleUser,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		err := s.users.Create(ctx, u)
		if err == nil {
			zctx.From(ctx).Info("User registered via external provider", zap.String("user_id", u.ID))
			return u, nil
		}
		if !errors.Is(err, ErrExists) {
			return nil, errors.Wrap(err, "create user")
		}
		// Lost a race on the email itself.
		if existing, err := s.users.GetByEmail(ctx, email); err == nil {
			return existing, nil
		}
	}
	return nil, apperr.New(apperr.Conflict, apperr.CodeUserExists, "could not allocate a username")
}

// baseUsername is the display name without whitespace, lower-cased, or the
// email's local part when no name is given.
func baseUsername(name, email string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, name)
	if name != "" {
		return name
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}
