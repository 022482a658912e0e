package user

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/storefront/internal/domain/apperr"
)

type memUsers struct {
	mu   sync.Mutex
	byID map[string]*User
}

func newMemUsers() *memUsers { return &memUsers{byID: map[string]*User{}} }

func (m *memUsers) taken(u *User) bool {
	for _, x := range m.byID {
		if x.ID != u.ID && (x.Email == u.Email || x.Username == u.Username) {
			return true
		}
	}
	return false
}

func (m *memUsers) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.taken(u) {
		return ErrExists
	}
	c := *u
	m.byID[u.ID] = &c
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *u
	return &c, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memUsers) Update(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.taken(u) {
		return ErrExists
	}
	c := *u
	m.byID[u.ID] = &c
	return nil
}

type mockSessions struct {
	issued  []string
	revoked []string
}

func (m *mockSessions) Issue(_ context.Context, userID string) (string, error) {
	m.issued = append(m.issued, userID)
	return "token-" + userID, nil
}

func (m *mockSessions) Revoke(_ context.Context, token string) error {
	m.revoked = append(m.revoked, token)
	return nil
}

func newService() (*Service, *memUsers, *mockSessions) {
	users := newMemUsers()
	sessions := &mockSessions{}
	svc := NewService(users, sessions)
	svc.cost = bcrypt.MinCost
	return svc, users, sessions
}

func TestService_RegisterAndLogin(t *testing.T) {
	svc, users, sessions := newService()
	ctx := context.Background()

	reg, err := svc.Register(ctx, " Alice@Example.com ", "alice", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", reg.User.Email)
	assert.Equal(t, RoleUser, reg.User.Role)
	assert.NotEqual(t, "secret1", users.byID[reg.User.ID].PasswordHash)
	assert.Equal(t, "token-"+reg.User.ID, reg.Token)

	login, err := svc.Login(ctx, "ALICE@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, login.User.ID)
	assert.Len(t, sessions.issued, 2)
}

func TestService_RegisterValidation(t *testing.T) {
	svc, _, _ := newService()

	_, err := svc.Register(context.Background(), "not-an-email", "", "123")
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.CodeInvalidInput, ae.Code)
	assert.Equal(t, []string{"email", "username", "password"}, ae.Details)
}

func TestService_RegisterDuplicate(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@example.com", "alice", "secret1")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "b@example.com", "alice", "secret1")
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.CodeUserExists, ae.Code)
	assert.Equal(t, apperr.Conflict, ae.Kind)
}

func TestService_LoginFailures(t *testing.T) {
	svc, users, _ := newService()
	ctx := context.Background()
	reg, err := svc.Register(ctx, "a@example.com", "alice", "secret1")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "a@example.com", "wrong")
	assert.ErrorIs(t, err, &apperr.Error{Kind: apperr.Unauthorized, Code: apperr.CodeInvalidCredentials})

	_, err = svc.Login(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, &apperr.Error{Kind: apperr.Unauthorized, Code: apperr.CodeInvalidCredentials})

	users.byID[reg.User.ID].IsBanned = true
	_, err = svc.Login(ctx, "a@example.com", "secret1")
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))
}

func TestService_Update(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()
	a, err := svc.Register(ctx, "a@example.com", "alice", "secret1")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "b@example.com", "bob", "secret1")
	require.NoError(t, err)

	name := "alicia"
	addr := Address{Street: "1 Main", City: "Pune", State: "MH", Zip: "411001", Country: "IN"}
	u, err := svc.Update(ctx, a.User.ID, Patch{Username: &name, Address: &addr})
	require.NoError(t, err)
	assert.Equal(t, "alicia", u.Username)
	assert.Equal(t, "Pune", u.Address.City)

	taken := "b@example.com"
	_, err = svc.Update(ctx, a.User.ID, Patch{Email: &taken})
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	_, err = svc.Update(ctx, "missing", Patch{})
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestService_Logout(t *testing.T) {
	svc, _, sessions := newService()

	require.NoError(t, svc.Logout(context.Background(), "tok"))
	assert.Equal(t, []string{"tok"}, sessions.revoked)
}
