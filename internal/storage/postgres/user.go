package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/admin"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/user"
)

const userColumns = `id, email, username, password_hash, role, address, is_banned, created_at, updated_at`

const (
	createUserSQL = `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	getUserByIDSQL    = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	getUserByEmailSQL = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	listUsersSQL      = `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, id`

	updateUserSQL = `UPDATE users
		SET email = $2, username = $3, role = $4, address = $5, is_banned = $6, updated_at = $7
		WHERE id = $1`

	findEmailSQL  = `SELECT email FROM users WHERE id = $1`
	deleteUserSQL = `DELETE FROM users WHERE id = $1`
)

var (
	_ user.Repository  = (*UserRepository)(nil)
	_ auth.Users       = (*UserRepository)(nil)
	_ order.UserLookup = (*UserRepository)(nil)
	_ admin.UserStore  = (*UserRepository)(nil)
)

// UserRepository stores accounts.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.CollectableRow) (user.User, error) {
	var (
		u       user.User
		role    string
		address []byte
	)
	if err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash, &role, &address,
		&u.IsBanned, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return u, err
	}
	u.Role = user.Role(role)
	if len(address) > 0 {
		u.Address = new(user.Address)
		if err := json.Unmarshal(address, u.Address); err != nil {
			return u, errors.Wrap(err, "decode address")
		}
	}
	return u, nil
}

func encodeAddress(a *user.Address) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// Create inserts u, returning user.ErrExists on a taken email or username.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	address, err := encodeAddress(u.Address)
	if err != nil {
		return errors.Wrap(err, "encode address")
	}
	_, err = r.pool.Exec(ctx, createUserSQL,
		u.ID, u.Email, u.Username, u.PasswordHash, string(u.Role), address,
		u.IsBanned, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.ErrExists
		}
		return errors.Wrap(err, "create user")
	}
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, query, arg string) (*user.User, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, errors.Wrap(err, "get user")
	}
	return &u, nil
}

// GetByID returns a user by id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	return r.getOne(ctx, getUserByIDSQL, id)
}

// GetByEmail returns a user by normalized email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.getOne(ctx, getUserByEmailSQL, email)
}

// Update overwrites the mutable fields of u.
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	address, err := encodeAddress(u.Address)
	if err != nil {
		return errors.Wrap(err, "encode address")
	}
	tag, err := r.pool.Exec(ctx, updateUserSQL,
		u.ID, u.Email, u.Username, string(u.Role), address, u.IsBanned, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.ErrExists
		}
		return errors.Wrapf(err, "update user %q", u.ID)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

// FindEmail returns the contact address of a user.
func (r *UserRepository) FindEmail(ctx context.Context, userID string) (string, error) {
	var email string
	if err := r.pool.QueryRow(ctx, findEmailSQL, userID).Scan(&email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", user.ErrNotFound
		}
		return "", errors.Wrap(err, "find email")
	}
	return email, nil
}

// ListUsers returns all accounts, newest first.
func (r *UserRepository) ListUsers(ctx context.Context) ([]user.User, error) {
	rows, err := r.pool.Query(ctx, listUsersSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	return pgx.CollectRows(rows, scanUser)
}

// DeleteUser removes an account and reports whether it existed. Carts,
// wishlists and reviews cascade; orders are kept.
func (r *UserRepository) DeleteUser(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, deleteUserSQL, id)
	if err != nil {
		return false, errors.Wrapf(err, "delete user %q", id)
	}
	return tag.RowsAffected() > 0, nil
}
