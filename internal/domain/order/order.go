package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by repositories when an order does not exist.
var ErrNotFound = errors.New("order not found")

// Status is the payment lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether s may move to next.
// The only edges are pending -> completed and pending -> failed.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && next.Terminal()
}

// Address is the shipping destination of an order.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
}

// Item is an order line. Price is the unit price actually charged.
type Item struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`

	Product *ProductSummary `json:"-"`
}

// LineTotal returns price times quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// AppliedDiscount records how much one code removed from an order.
type AppliedDiscount struct {
	Code   string          `json:"code"`
	Amount decimal.Decimal `json:"amount"`
}

// Order is a customer order and its payment state.
type Order struct {
	ID              string
	UserID          string
	Items           []Item
	ShippingAddress Address
	Subtotal        decimal.Decimal
	Discounts       []AppliedDiscount
	Total           decimal.Decimal
	Status          Status
	GatewayOrderID  string
	PaymentID       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ProductSummary is the catalog data shown next to order lines.
type ProductSummary struct {
	ID    string
	Name  string
	Image string
	Price decimal.Decimal
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	// Get returns ErrNotFound when the order does not exist.
	Get(ctx context.Context, id string) (*Order, error)
	SetGatewayOrder(ctx context.Context, id, gatewayOrderID string) error
	// Transition moves the order from one status to another only if it is
	// still in from. It reports whether the row was updated.
	Transition(ctx context.Context, id string, from, to Status, paymentID string) (bool, error)
	// ListByUser returns the user's orders, most recent first.
	ListByUser(ctx context.Context, userID string) ([]Order, error)
}

// ProductLookup resolves display data for ordered products, including
// products deleted since the order was placed.
type ProductLookup interface {
	FindSummaries(ctx context.Context, ids []string) ([]ProductSummary, error)
}

// UserLookup resolves the contact address of an order owner.
type UserLookup interface {
	FindEmail(ctx context.Context, userID string) (string, error)
}

// Intent is a request to the payment gateway for a payable amount.
type Intent struct {
	OrderID string
	// Amount is in minor currency units.
	Amount   int64
	Currency string
}

// PaymentIntent is the gateway's reservation of a charge.
type PaymentIntent struct {
	ID       string
	Amount   int64
	Currency string
}

// Gateway is the external payment provider.
type Gateway interface {
	CreateOrder(ctx context.Context, intent Intent) (*PaymentIntent, error)
	// VerifySignature checks the callback signature for the pair of
	// gateway order and payment references.
	VerifySignature(gatewayOrderID, paymentID, signature string) bool
	KeyID() string
}

// Notifier delivers order e-mails.
type Notifier interface {
	Send(ctx context.Context, to, subject, html string) error
}
