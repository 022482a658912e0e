// Package oauth signs users in through third-party OAuth 2.0 providers.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/user"
)

// DefaultUserInfoURL is Google's OpenID Connect userinfo endpoint.
const DefaultUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

const stateTTL = 10 * time.Minute

// States keeps pending authorization states until the callback consumes them.
type States interface {
	Save(ctx context.Context, state string, ttl time.Duration) error
	Consume(ctx context.Context, state string) (bool, error)
}

// GoogleConfig holds OAuth client credentials. Endpoint and UserInfoURL
// default to Google's production endpoints.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Endpoint     oauth2.Endpoint
	UserInfoURL  string
}

// Google runs the authorization code flow against Google.
type Google struct {
	oauth       *oauth2.Config
	userInfoURL string
	states      States
}

// NewGoogle creates a Google sign-in flow.
func NewGoogle(cfg GoogleConfig, states States) *Google {
	if cfg.Endpoint.AuthURL == "" {
		cfg.Endpoint = google.Endpoint
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = DefaultUserInfoURL
	}
	return &Google{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     cfg.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: cfg.UserInfoURL,
		states:      states,
	}
}

// AuthCodeURL starts a sign-in and returns the consent page URL.
func (g *Google) AuthCodeURL(ctx context.Context) (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "generate state")
	}
	state := base64.RawURLEncoding.EncodeToString(b)
	if err := g.states.Save(ctx, state, stateTTL); err != nil {
		return "", errors.Wrap(err, "save state")
	}
	return g.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account")), nil
}

type userInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// Exchange completes a sign-in started by AuthCodeURL and returns the
// Google profile.
func (g *Google) Exchange(ctx context.Context, state, code string) (*user.ExternalProfile, error) {
	failed := func(msg string) error {
		return apperr.New(apperr.Unauthorized, apperr.CodeGoogleAuthFailed, "%s", msg)
	}
	if state == "" || code == "" {
		return nil, failed("missing state or code")
	}
	ok, err := g.states.Consume(ctx, state)
	if err != nil {
		return nil, errors.Wrap(err, "consume state")
	}
	if !ok {
		return nil, failed("unknown or expired sign-in state")
	}

	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			zctx.From(ctx).Debug("Google code exchange rejected", zap.Error(err))
			return nil, failed("google rejected the authorization code")
		}
		return nil, errors.Wrap(err, "exchange code")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "userinfo request")
	}
	resp, err := g.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch userinfo")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("userinfo: unexpected status %d", resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, errors.Wrap(err, "decode userinfo")
	}
	return &user.ExternalProfile{
		Provider:      "google",
		Subject:       info.Sub,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		Name:          info.Name,
	}, nil
}
