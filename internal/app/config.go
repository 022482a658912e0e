package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr           string        `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL    string        `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL       string        `usage:"Redis connection URL (SHOP_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	Debug          bool          `default:"false" usage:"Expose internal errors and run gin in debug mode"`
	RequestTimeout time.Duration `default:"9s" usage:"Deadline applied to every request" flag:"request-timeout"`
	ImageBaseURL   string        `default:"" usage:"Base URL for relative product image paths" flag:"image-base-url"`
	Session        SessionConfig
	Razorpay       RazorpayConfig
	SMTP           SMTPConfig
	Google         GoogleConfig
	RateLimit      RateLimitConfig
	CORS           CORSConfig
	Graceful       GracefulConfig
}

// SessionConfig controls bearer sessions.
type SessionConfig struct {
	Pepper string        `usage:"HMAC pepper for session token digests (SHOP_SESSION_PEPPER)"`
	TTL    time.Duration `default:"168h" usage:"Session lifetime"`
}

// RazorpayConfig holds payment gateway credentials.
type RazorpayConfig struct {
	KeyID     string        `usage:"Razorpay key id" flag:"razorpay-key-id"`
	KeySecret string        `usage:"Razorpay key secret" flag:"razorpay-key-secret"`
	BaseURL   string        `default:"https://api.razorpay.com" usage:"Razorpay API base URL"`
	Currency  string        `default:"INR" usage:"Checkout currency"`
	Timeout   time.Duration `default:"8s" usage:"Gateway request timeout"`
}

// SMTPConfig holds the relay used for order confirmations. An empty host
// disables delivery.
type SMTPConfig struct {
	Host     string `usage:"SMTP host"`
	Port     int    `default:"587" usage:"SMTP port"`
	Username string `usage:"SMTP username"`
	Password string `usage:"SMTP password"`
	From     string `default:"orders@storefront.local" usage:"Sender address"`
}

// GoogleConfig enables Google sign-in when ClientID is set.
type GoogleConfig struct {
	ClientID     string `usage:"Google OAuth client id" flag:"google-client-id"`
	ClientSecret string `usage:"Google OAuth client secret" flag:"google-client-secret"`
	RedirectURL  string `default:"http://localhost:8080/api/users/auth/google/callback" usage:"OAuth callback URL registered with Google"`
	FrontendURL  string `usage:"Page receiving ?token= after sign-in; JSON response when empty"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, then applies platform defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/shop/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults(os.Getenv)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the unprefixed DATABASE_URL, REDIS_URL and
// PORT variables set by hosting platforms.
func (c *Config) applyPlatformDefaults(getenv func(string) string) {
	if c.DatabaseURL == "" {
		c.DatabaseURL = getenv("DATABASE_URL")
	}
	if c.RedisURL == "" {
		c.RedisURL = getenv("REDIS_URL")
	}
	if port := getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
	case c.RedisURL == "":
		return errors.New("redis URL is required: set SHOP_REDIS_URL or REDIS_URL")
	case c.Session.Pepper == "":
		return errors.New("session pepper is required: set SHOP_SESSION_PEPPER")
	}
	return nil
}
