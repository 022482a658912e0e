package user

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/storefront/internal/domain/apperr"
)

const minPasswordLen = 6

// Session is the result of a successful registration or login.
type Session struct {
	Token string
	User  *User
}

// Patch holds the fields a user may change on their own profile.
type Patch struct {
	Email    *string
	Username *string
	Address  *Address
}

// Service implements registration, login and profile management.
type Service struct {
	users    Repository
	sessions Sessions
	cost     int
	now      func() time.Time
}

// NewService creates a user Service.
func NewService(users Repository, sessions Sessions) *Service {
	return &Service{users: users, sessions: sessions, cost: bcrypt.DefaultCost, now: time.Now}
}

// Register creates a user with the default role and opens a session.
func (s *Service) Register(ctx context.Context, email, username, password string) (*Session, error) {
	email = normalizeEmail(email)
	username = strings.TrimSpace(username)

	var details []string
	if !validEmail(email) {
		details = append(details, "email")
	}
	if username == "" {
		details = append(details, "username")
	}
	if len(password) < minPasswordLen {
		details = append(details, "password")
	}
	if len(details) > 0 {
		return nil, apperr.New(apperr.InvalidInput, apperr.CodeInvalidInput, "invalid registration data").WithDetails(details...)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	now := s.now().UTC()
	u := &User{
		ID:           uuid.New().String(),
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		Role:         RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, ErrExists) {
			return nil, apperr.New(apperr.Conflict, apperr.CodeUserExists, "user already exists")
		}
		return nil, errors.Wrap(err, "create user")
	}

	zctx.From(ctx).Info("User registered", zap.String("user_id", u.ID))
	return s.open(ctx, u)
}

// Login verifies credentials and opens a session.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	invalid := apperr.New(apperr.Unauthorized, apperr.CodeInvalidCredentials, "invalid email or password")

	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, invalid
		}
		return nil, errors.Wrap(err, "get user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, invalid
	}
	if u.IsBanned {
		return nil, apperr.New(apperr.Forbidden, apperr.CodeUserBanned, "account is banned")
	}
	return s.open(ctx, u)
}

func (s *Service) open(ctx context.Context, u *User) (*Session, error) {
	token, err := s.sessions.Issue(ctx, u.ID)
	if err != nil {
		return nil, errors.Wrap(err, "issue session")
	}
	return &Session{Token: token, User: u}, nil
}

// Logout revokes the session token.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Revoke(ctx, token); err != nil {
		return errors.Wrap(err, "revoke session")
	}
	return nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, apperr.CodeUserNotFound, "user not found")
		}
		return nil, errors.Wrap(err, "get user")
	}
	return u, nil
}

// Update applies p to the user's profile.
func (s *Service) Update(ctx context.Context, id string, p Patch) (*User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Email != nil {
		email := normalizeEmail(*p.Email)
		if !validEmail(email) {
			return nil, apperr.New(apperr.InvalidInput, apperr.CodeInvalidInput, "invalid email").WithDetails("email")
		}
		u.Email = email
	}
	if p.Username != nil {
		name := strings.TrimSpace(*p.Username)
		if name == "" {
			return nil, apperr.New(apperr.InvalidInput, apperr.CodeInvalidInput, "invalid username").WithDetails("username")
		}
		u.Username = name
	}
	if p.Address != nil {
		addr := *p.Address
		u.Address = &addr
	}
	u.UpdatedAt = s.now().UTC()

	if err := s.users.Update(ctx, u); err != nil {
		if errors.Is(err, ErrExists) {
			return nil, apperr.New(apperr.Conflict, apperr.CodeUserExists, "email or username already in use")
		}
		return nil, errors.Wrap(err, "update user")
	}
	return u, nil
}
