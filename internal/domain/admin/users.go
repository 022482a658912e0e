package admin

import (
	"context"
	"net/mail"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/user"
)

// UserPatch holds the account fields an administrator may change.
type UserPatch struct {
	Email    *string
	Username *string
	Role     *user.Role
	IsBanned *bool
}

func userNotFound() error {
	return apperr.New(apperr.NotFound, apperr.CodeUserNotFound, "user not found")
}

// Users lists every account.
func (s *Service) Users(ctx context.Context) ([]user.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	return users, nil
}

// UpdateUser applies p to the account.
func (s *Service) UpdateUser(ctx context.Context, id string, p UserPatch) (*user.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, userNotFound()
		}
		return nil, errors.Wrap(err, "get user")
	}

	var details []string
	if p.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*p.Email))
		if a, err := mail.ParseAddress(email); err != nil || a.Address != email {
			details = append(details, "email")
		}
		u.Email = email
	}
	if p.Username != nil {
		u.Username = strings.TrimSpace(*p.Username)
		if u.Username == "" {
			details = append(details, "username")
		}
	}
	if p.Role != nil {
		if !p.Role.Valid() {
			details = append(details, "role")
		}
		u.Role = *p.Role
	}
	if len(details) > 0 {
		return nil, apperr.New(apperr.InvalidInput, apperr.CodeInvalidInput, "invalid user fields").WithDetails(details...)
	}
	if p.IsBanned != nil {
		u.IsBanned = *p.IsBanned
	}
	u.UpdatedAt = s.now().UTC()

	if err := s.users.Update(ctx, u); err != nil {
		if errors.Is(err, user.ErrExists) {
			return nil, apperr.New(apperr.Conflict, apperr.CodeUserExists, "email or username already in use")
		}
		return nil, errors.Wrap(err, "update user")
	}
	return u, nil
}

// DeleteUser removes the account.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	ok, err := s.users.DeleteUser(ctx, id)
	if err != nil {
		return errors.Wrap(err, "delete user")
	}
	if !ok {
		return userNotFound()
	}
	return nil
}
