package discount

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
)

// Type enumerates the supported discount strategies.
type Type string

const (
	// TypePercentage removes a percentage of each applicable unit price.
	TypePercentage Type = "percentage"
	// TypeFixed removes a fixed amount from each applicable unit price.
	TypeFixed Type = "fixed"
)

// Valid reports whether t is a known discount type.
func (t Type) Valid() bool {
	return t == TypePercentage || t == TypeFixed
}

// ErrNotFound is returned by repositories when no discount matches.
var ErrNotFound = errors.New("discount not found")

// ErrExists is returned when a discount code is already taken.
var ErrExists = errors.New("discount code already exists")

// Discount is a redeemable discount definition.
type Discount struct {
	ID          string
	Code        string
	Description string
	Type        Type
	Value       decimal.Decimal
	// MinOrderValue is the smallest cart subtotal the code accepts.
	MinOrderValue decimal.NullDecimal
	// MaxDiscountAmount caps the per-unit reduction.
	MaxDiscountAmount  decimal.NullDecimal
	StartDate          time.Time
	EndDate            *time.Time
	IsActive           bool
	ApplicableProducts []string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Usable reports whether the discount can be redeemed at t.
func (d *Discount) Usable(t time.Time) bool {
	if !d.IsActive || d.StartDate.After(t) {
		return false
	}
	return d.EndDate == nil || !d.EndDate.Before(t)
}

// NormalizeCode trims and upper-cases a discount code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Normalize upper-cases the code and drops zero caps, which are stored as
// absent.
func (d *Discount) Normalize() {
	d.Code = NormalizeCode(d.Code)
	if d.MinOrderValue.Valid && d.MinOrderValue.Decimal.IsZero() {
		d.MinOrderValue = decimal.NullDecimal{}
	}
	if d.MaxDiscountAmount.Valid && d.MaxDiscountAmount.Decimal.IsZero() {
		d.MaxDiscountAmount = decimal.NullDecimal{}
	}
}

// Validate checks a definition before it is persisted.
func (d *Discount) Validate() error {
	var problems []string
	if d.Code == "" {
		problems = append(problems, "code is required")
	}
	if !d.Type.Valid() {
		problems = append(problems, fmt.Sprintf("discount type %q is not supported", d.Type))
	}
	if d.Value.IsNegative() {
		problems = append(problems, "discount value must not be negative")
	}
	if d.Type == TypePercentage && d.Value.GreaterThan(decimal.NewFromInt(100)) {
		problems = append(problems, "percentage discount must not exceed 100")
	}
	if d.MinOrderValue.Valid && d.MinOrderValue.Decimal.IsNegative() {
		problems = append(problems, "minimum order value must not be negative")
	}
	if d.MaxDiscountAmount.Valid && d.MaxDiscountAmount.Decimal.IsNegative() {
		problems = append(problems, "maximum discount amount must not be negative")
	}
	if d.EndDate != nil && d.EndDate.Before(d.StartDate) {
		problems = append(problems, "end date must not be before start date")
	}
	if len(problems) > 0 {
		return apperr.New(apperr.InvalidInput, apperr.CodeInvalidInput, "invalid discount").
			WithDetails(problems...)
	}
	return nil
}

// Reason explains why a discount code was rejected.
type Reason string

const (
	ReasonInvalidOrExpired Reason = "invalid or expired discount code"
	ReasonNotApplicable    Reason = "discount code does not apply to any cart item"
	ReasonMinOrderValue    Reason = "minimum order value not met"
	ReasonInvalidProducts  Reason = "invalid product ids"
)

// RejectedError is returned when a code cannot be applied to a cart.
type RejectedError struct {
	Code   string
	Reason Reason
	// MinOrderValue is set for ReasonMinOrderValue.
	MinOrderValue decimal.Decimal
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("discount %q rejected: %s", e.Code, e.Message())
}

// Message is the client-facing explanation.
func (e *RejectedError) Message() string {
	if e.Reason == ReasonMinOrderValue {
		return fmt.Sprintf("minimum order value of %s required", e.MinOrderValue.StringFixed(2))
	}
	return string(e.Reason)
}

// ErrorKind classifies the error for the transport layer.
func (e *RejectedError) ErrorKind() apperr.Kind { return apperr.DiscountRejected }

// Repository provides discount lookups used during evaluation.
type Repository interface {
	// FindUsable returns the discount with the given upper-cased code that
	// is usable at now, or ErrNotFound.
	FindUsable(ctx context.Context, code string, now time.Time) (*Discount, error)
}

// CatalogPrice is the current price of a catalog product.
type CatalogPrice struct {
	ProductID string
	Price     decimal.Decimal
	IsDeleted bool
}

// PriceLookup resolves catalog prices by product id. Soft deleted products
// are returned with IsDeleted set, unknown ids are omitted.
type PriceLookup interface {
	FindPrices(ctx context.Context, ids []string) ([]CatalogPrice, error)
}
