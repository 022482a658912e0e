// Package admin implements back-office operations over users, the catalog,
// orders and discounts.
package admin

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// Page is a normalized pagination request.
type Page struct {
	Number int
	Limit  int
}

// NewPage clamps page to at least 1 and limit to (0, 100], defaulting to 10.
func NewPage(page, limit int) Page {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return Page{Number: page, Limit: limit}
}

// Offset is the number of rows to skip.
func (p Page) Offset() int { return (p.Number - 1) * p.Limit }

// Paged is one page of results.
type Paged[T any] struct {
	Items       []T
	Total       int
	CurrentPage int
	TotalPages  int
}

func paged[T any](items []T, total int, p Page) Paged[T] {
	if items == nil {
		items = []T{}
	}
	return Paged[T]{
		Items:       items,
		Total:       total,
		CurrentPage: p.Number,
		TotalPages:  (total + p.Limit - 1) / p.Limit,
	}
}

// OrderRow is an order together with its buyer's contact data.
type OrderRow struct {
	order.Order
	UserEmail string
	Username  string
}

// TopProduct aggregates completed sales of one product.
type TopProduct struct {
	ProductID    string
	Name         string
	TotalSold    int
	TotalRevenue decimal.Decimal
}

// MonthCount is a per-month counter.
type MonthCount struct {
	Year  int
	Month time.Month
	Count int
}

// MonthRevenue is a per-month revenue sum.
type MonthRevenue struct {
	Year  int
	Month time.Month
	Total decimal.Decimal
}

// StatsStore runs read-only aggregate queries.
type StatsStore interface {
	CountShoppers(ctx context.Context) (int, error)
	CountOrders(ctx context.Context) (int, error)
	CompletedRevenue(ctx context.Context) (decimal.Decimal, error)
	CountProducts(ctx context.Context) (int, error)
	RecentOrders(ctx context.Context, limit int) ([]OrderRow, error)
	TopProducts(ctx context.Context, limit int) ([]TopProduct, error)
	// UserGrowth returns the latest months with registrations, newest first.
	UserGrowth(ctx context.Context, months int) ([]MonthCount, error)
	// RevenueTrend returns the latest months with completed orders, newest first.
	RevenueTrend(ctx context.Context, months int) ([]MonthRevenue, error)
}

// UserStore manages accounts.
type UserStore interface {
	ListUsers(ctx context.Context) ([]user.User, error)
	GetByID(ctx context.Context, id string) (*user.User, error)
	Update(ctx context.Context, u *user.User) error
	DeleteUser(ctx context.Context, id string) (bool, error)
}

// ProductPatch holds optional product fields.
type ProductPatch struct {
	Name        *string
	Description *string
	Image       *string
	Category    *string
	Price       *decimal.Decimal
	Stock       *int
}

// ProductStore manages the catalog.
type ProductStore interface {
	ListProducts(ctx context.Context, limit, offset int) ([]product.Product, int, error)
	GetByID(ctx context.Context, id string) (*product.Product, error)
	CreateProduct(ctx context.Context, p *product.Product) error
	UpdateProduct(ctx context.Context, p *product.Product) error
	SoftDeleteProduct(ctx context.Context, id string) (bool, error)
	Categories(ctx context.Context) ([]string, error)
	BulkUpdateProducts(ctx context.Context, ids []string, patch ProductPatch) (int64, error)
}

// OrderStore manages orders.
type OrderStore interface {
	ListOrders(ctx context.Context, limit, offset int) ([]OrderRow, int, error)
	Get(ctx context.Context, id string) (*order.Order, error)
	Transition(ctx context.Context, id string, from, to order.Status, paymentID string) (bool, error)
	BulkTransition(ctx context.Context, ids []string, from, to order.Status) (int64, error)
	DeleteOrder(ctx context.Context, id string) (bool, error)
}

// DiscountStore manages discount definitions.
type DiscountStore interface {
	ListDiscounts(ctx context.Context) ([]discount.Discount, error)
	GetDiscount(ctx context.Context, id string) (*discount.Discount, error)
	CreateDiscount(ctx context.Context, d *discount.Discount) error
	UpdateDiscount(ctx context.Context, d *discount.Discount) error
	DeleteDiscount(ctx context.Context, id string) (bool, error)
	BulkSetActive(ctx context.Context, ids []string, active bool) (int64, error)
}

// Service implements the admin operations.
type Service struct {
	stats     StatsStore
	users     UserStore
	products  ProductStore
	orders    OrderStore
	discounts DiscountStore
	now       func() time.Time
}

// NewService creates an admin Service.
func NewService(stats StatsStore, users UserStore, products ProductStore, orders OrderStore, discounts DiscountStore) *Service {
	return &Service{
		stats:     stats,
		users:     users,
		products:  products,
		orders:    orders,
		discounts: discounts,
		now:       time.Now,
	}
}
