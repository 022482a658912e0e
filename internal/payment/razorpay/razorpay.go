// Package razorpay is a client for the Razorpay orders API.
package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-resty/resty/v2"
	"github.com/oklog/ulid/v2"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/metrics"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.razorpay.com"

const breakerName = "razorpay"

// ErrNotConfigured is returned by CreateOrder when no API key is set.
var ErrNotConfigured = errors.New("payment gateway is not configured")

// Config holds API credentials.
type Config struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	Timeout   time.Duration
}

// APIError is a non-2xx response from the API.
type APIError struct {
	Status      int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("razorpay: %d %s: %s", e.Status, e.Code, e.Description)
}

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

var _ order.Gateway = (*Client)(nil)

// Client creates gateway orders and verifies payment signatures. Calls go
// through a circuit breaker so an unavailable gateway fails fast.
type Client struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	keyID   string
	secret  []byte
}

// New creates a Client.
func New(cfg Config, lg *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetBasicAuth(cfg.KeyID, cfg.KeySecret).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(0).
		SetPreRequestHook(func(_ *resty.Client, r *http.Request) error {
			otel.GetTextMapPropagator().Inject(r.Context(), propagation.HeaderCarrier(r.Header))
			return nil
		})

	metrics.GatewayBreakerState.WithLabelValues(breakerName).Set(0)
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    15 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.GatewayBreakerState.WithLabelValues(name).Set(stateValue(to))
			lg.Warn("Circuit breaker state changed",
				zap.String("circuit", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		http:    httpClient,
		breaker: breaker,
		keyID:   cfg.KeyID,
		secret:  []byte(cfg.KeySecret),
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// KeyID returns the public key id handed to checkout clients.
func (c *Client) KeyID() string { return c.keyID }

// State reports the circuit breaker state.
func (c *Client) State() gobreaker.State { return c.breaker.State() }

// Receipt builds a unique, time-ordered receipt id.
func Receipt() string {
	return "order_" + ulid.Make().String()
}

// CreateOrder reserves intent.Amount minor units with the gateway.
func (c *Client) CreateOrder(ctx context.Context, intent order.Intent) (*order.PaymentIntent, error) {
	if c.keyID == "" || len(c.secret) == 0 {
		return nil, ErrNotConfigured
	}

	start := time.Now()
	res, err := c.breaker.Execute(func() (any, error) {
		var (
			out    orderResponse
			apiErr errorResponse
		)
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(createOrderRequest{
				Amount:   intent.Amount,
				Currency: intent.Currency,
				Receipt:  Receipt(),
				Notes:    map[string]string{"orderId": intent.OrderID},
			}).
			SetResult(&out).
			SetError(&apiErr).
			Post("/v1/orders")
		if err != nil {
			return nil, errors.Wrap(err, "post order")
		}
		if resp.IsError() {
			return nil, &APIError{
				Status:      resp.StatusCode(),
				Code:        apiErr.Error.Code,
				Description: apiErr.Error.Description,
			}
		}
		if out.ID == "" {
			return nil, &APIError{Status: resp.StatusCode(), Description: "response without order id"}
		}
		return &out, nil
	})

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.GatewayRequestDuration.WithLabelValues("create_order", outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, errors.Wrap(err, "razorpay create order")
	}

	out := res.(*orderResponse)
	return &order.PaymentIntent{ID: out.ID, Amount: out.Amount, Currency: out.Currency}, nil
}

// Signature computes the hex HMAC-SHA256 of "<orderID>|<paymentID>".
func Signature(secret []byte, gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares signature with the expected one in constant time.
func (c *Client) VerifySignature(gatewayOrderID, paymentID, signature string) bool {
	if len(c.secret) == 0 {
		return false
	}
	expected := Signature(c.secret, gatewayOrderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Ping reports whether the gateway circuit is accepting calls.
func (c *Client) Ping(context.Context) error {
	if c.breaker.State() == gobreaker.StateOpen {
		return errors.New("payment gateway circuit is open")
	}
	return nil
}
