package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/product"
)

// Line is one product in a shopper's cart.
type Line struct {
	ProductID string
	Quantity  int
	Product   *product.Product
}

// Cart is the set of lines a user has saved before checkout.
type Cart struct {
	UserID string
	Lines  []Line
}

// Repository persists cart lines.
type Repository interface {
	// AddQuantity inserts the line or increments its quantity.
	AddQuantity(ctx context.Context, userID, productID string, qty int) error
	Lines(ctx context.Context, userID string) ([]Line, error)
}

// Products resolves catalog products.
type Products interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
}

// Service implements cart operations.
type Service struct {
	carts    Repository
	products Products
}

// NewService creates a cart Service.
func NewService(carts Repository, products Products) *Service {
	return &Service{carts: carts, products: products}
}

// Add puts qty units of productID in the user's cart.
func (s *Service) Add(ctx context.Context, userID, productID string, qty int) (*Cart, error) {
	if qty <= 0 || productID == "" {
		return nil, apperr.New(apperr.InvalidInput, apperr.CodeInvalidInput, "productId and a positive quantity are required")
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, apperr.CodeProductNotFound, "product not found")
		}
		return nil, errors.Wrap(err, "get product")
	}
	if err := s.carts.AddQuantity(ctx, userID, productID, qty); err != nil {
		return nil, errors.Wrap(err, "add to cart")
	}
	return s.Get(ctx, userID)
}

// Get returns the user's cart.
func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	lines, err := s.carts.Lines(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "cart lines")
	}
	if len(lines) == 0 {
		return nil, apperr.New(apperr.NotFound, apperr.CodeCartNotFound, "cart not found")
	}
	return &Cart{UserID: userID, Lines: lines}, nil
}
