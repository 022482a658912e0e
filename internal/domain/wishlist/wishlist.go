package wishlist

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/product"
)

// Repository persists wishlist entries.
type Repository interface {
	// Add is a no-op when the product is already listed.
	Add(ctx context.Context, userID, productID string) error
	// Remove reports whether the user had any wishlist entries.
	Remove(ctx context.Context, userID, productID string) (bool, error)
	// Products returns the listed products that are not deleted.
	Products(ctx context.Context, userID string) ([]product.Product, error)
}

// Products resolves catalog products.
type Products interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
}

// Service implements wishlist operations.
type Service struct {
	lists    Repository
	products Products
}

// NewService creates a wishlist Service.
func NewService(lists Repository, products Products) *Service {
	return &Service{lists: lists, products: products}
}

// Get returns the user's wished products.
func (s *Service) Get(ctx context.Context, userID string) ([]product.Product, error) {
	items, err := s.lists.Products(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "wishlist products")
	}
	if items == nil {
		items = []product.Product{}
	}
	return items, nil
}

// Add records productID in the user's wishlist.
func (s *Service) Add(ctx context.Context, userID, productID string) ([]product.Product, error) {
	if productID == "" {
		return nil, apperr.New(apperr.InvalidInput, apperr.CodeInvalidInput, "productId is required")
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, apperr.CodeProductNotFound, "product not found")
		}
		return nil, errors.Wrap(err, "get product")
	}
	if err := s.lists.Add(ctx, userID, productID); err != nil {
		return nil, errors.Wrap(err, "add to wishlist")
	}
	return s.Get(ctx, userID)
}

// Remove drops productID from the user's wishlist.
func (s *Service) Remove(ctx context.Context, userID, productID string) ([]product.Product, error) {
	if productID == "" {
		return nil, apperr.New(apperr.InvalidInput, apperr.CodeInvalidInput, "productId is required")
	}
	found, err := s.lists.Remove(ctx, userID, productID)
	if err != nil {
		return nil, errors.Wrap(err, "remove from wishlist")
	}
	if !found {
		return nil, apperr.New(apperr.NotFound, apperr.CodeWishlistNotFound, "wishlist not found")
	}
	return s.Get(ctx, userID)
}
