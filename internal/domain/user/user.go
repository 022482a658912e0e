package user

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when a user does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrExists is returned when an email or username is already taken.
	ErrExists = errors.New("user already exists")
)

// Role grants access levels.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

// Address is the user's default shipping address.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
}

// User is a registered shopper or administrator.
type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	Role         Role
	Address      *Address
	IsBanned     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Repository persists users.
type Repository interface {
	// Create returns ErrExists when email or username is taken.
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// Update returns ErrExists when the new email or username is taken.
	Update(ctx context.Context, u *User) error
}

// Sessions issues and revokes bearer tokens.
type Sessions interface {
	Issue(ctx context.Context, userID string) (string, error)
	Revoke(ctx context.Context, token string) error
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func validEmail(s string) bool {
	a, err := mail.ParseAddress(s)
	return err == nil && a.Address == s
}
