package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/xenking/storefront/internal/domain/apperr"
)

type memStates struct {
	mu      sync.Mutex
	pending map[string]time.Duration
}

func newMemStates() *memStates { return &memStates{pending: map[string]time.Duration{}} }

func (m *memStates) Save(_ context.Context, state string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[state] = ttl
	return nil
}

func (m *memStates) Consume(_ context.Context, state string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pending[state]
	delete(m.pending, state)
	return ok, nil
}

// fakeGoogle serves the token and userinfo endpoints.
func fakeGoogle(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"1234","email":"jane@example.com","email_verified":true,"name":"Jane Doe"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGoogle(t *testing.T, states States) *Google {
	t.Helper()
	srv := fakeGoogle(t)
	return NewGoogle(GoogleConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:8080/api/users/auth/google/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:  srv.URL + "/auth",
			TokenURL: srv.URL + "/token",
		},
		UserInfoURL: srv.URL + "/userinfo",
	}, states)
}

func TestGoogle_AuthCodeURL(t *testing.T) {
	states := newMemStates()
	g := newTestGoogle(t, states)

	raw, err := g.AuthCodeURL(context.Background())
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "client", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "openid email profile", q.Get("scope"))
	assert.Equal(t, "http://localhost:8080/api/users/auth/google/callback", q.Get("redirect_uri"))

	state := q.Get("state")
	require.NotEmpty(t, state)
	assert.Equal(t, stateTTL, states.pending[state])
}

func TestGoogle_Exchange(t *testing.T) {
	states := newMemStates()
	g := newTestGoogle(t, states)
	ctx := context.Background()
	require.NoError(t, states.Save(ctx, "st", time.Minute))

	p, err := g.Exchange(ctx, "st", "good-code")
	require.NoError(t, err)
	assert.Equal(t, "google", p.Provider)
	assert.Equal(t, "1234", p.Subject)
	assert.Equal(t, "jane@example.com", p.Email)
	assert.True(t, p.EmailVerified)
	assert.Equal(t, "Jane Doe", p.Name)

	// The state was consumed by the first callback.
	_, err = g.Exchange(ctx, "st", "good-code")
	assert.ErrorIs(t, err, &apperr.Error{Kind: apperr.Unauthorized, Code: apperr.CodeGoogleAuthFailed})
}

func TestGoogle_ExchangeFailures(t *testing.T) {
	tests := []struct {
		name  string
		state string
		code  string
	}{
		{"missing code", "st", ""},
		{"missing state", "", "good-code"},
		{"unknown state", "forged", "good-code"},
		{"rejected code", "st", "bad-code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			states := newMemStates()
			g := newTestGoogle(t, states)
			ctx := context.Background()
			require.NoError(t, states.Save(ctx, "st", time.Minute))

			_, err := g.Exchange(ctx, tt.state, tt.code)
			assert.ErrorIs(t, err, &apperr.Error{Kind: apperr.Unauthorized, Code: apperr.CodeGoogleAuthFailed})
		})
	}
}
