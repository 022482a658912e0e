package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/discount"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID          string
	Name        string
	Price       decimal.Decimal
	Description string
	Image       string
	Category    string
	Stock       int
	IsDeleted   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Rated is a product with its review statistics.
type Rated struct {
	Product
	AvgRating   float64
	ReviewCount int
}

// Badge is the discount advertised next to a product.
type Badge struct {
	Code  string
	Type  discount.Type
	Value decimal.Decimal
}

// Listing is a catalog entry as shown to shoppers.
type Listing struct {
	Rated
	Discount *Badge
}

// Review is a shopper's rating of a product.
type Review struct {
	ID        string
	ProductID string
	UserID    string
	Username  string
	Rating    int
	Comment   string
	CreatedAt time.Time
}

// Repository defines read operations for the product catalog and reviews.
// Deleted products are never returned.
type Repository interface {
	ListRated(ctx context.Context) ([]Rated, error)
	Search(ctx context.Context, query string) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	Categories(ctx context.Context) ([]string, error)
	Reviews(ctx context.Context, productID string) ([]Review, error)
	AddReview(ctx context.Context, r *Review) error
}

// DiscountSource lists discounts usable at a point in time.
type DiscountSource interface {
	ListUsable(ctx context.Context, now time.Time) ([]discount.Discount, error)
}
