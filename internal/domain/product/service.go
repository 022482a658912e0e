package product

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/discount"
)

// Service implements catalog browsing and reviews.
type Service struct {
	products  Repository
	discounts DiscountSource
	now       func() time.Time
}

// NewService creates a catalog Service.
func NewService(products Repository, discounts DiscountSource) *Service {
	return &Service{products: products, discounts: discounts, now: time.Now}
}

// List returns every product with its rating and the first usable discount
// that covers it.
func (s *Service) List(ctx context.Context) ([]Listing, error) {
	rated, err := s.products.ListRated(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	usable, err := s.discounts.ListUsable(ctx, s.now())
	if err != nil {
		return nil, errors.Wrap(err, "list discounts")
	}

	out := make([]Listing, len(rated))
	for i, p := range rated {
		out[i] = Listing{Rated: p, Discount: badgeFor(p.ID, usable)}
	}
	return out, nil
}

func badgeFor(productID string, usable []discount.Discount) *Badge {
	for _, d := range usable {
		if len(d.ApplicableProducts) == 0 || contains(d.ApplicableProducts, productID) {
			return &Badge{Code: d.Code, Type: d.Type, Value: d.Value}
		}
	}
	return nil
}

func contains(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// Search matches products by name, description or category.
func (s *Service) Search(ctx context.Context, query string) ([]Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.New(apperr.InvalidInput, apperr.CodeInvalidQuery, "search query is required")
	}
	res, err := s.products.Search(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "search products")
	}
	return res, nil
}

// Get returns a single product.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, apperr.CodeProductNotFound, "product not found")
		}
		return nil, errors.Wrap(err, "get product")
	}
	return p, nil
}

// Categories returns the distinct categories of the catalog.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	c, err := s.products.Categories(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	return c, nil
}

// Reviews returns the reviews of a product, newest first.
func (s *Service) Reviews(ctx context.Context, productID string) ([]Review, error) {
	if _, err := s.Get(ctx, productID); err != nil {
		return nil, err
	}
	r, err := s.products.Reviews(ctx, productID)
	if err != nil {
		return nil, errors.Wrap(err, "list reviews")
	}
	return r, nil
}

// AddReview records a rating between 1 and 5 by userID.
func (s *Service) AddReview(ctx context.Context, productID, userID string, rating int, comment string) (*Review, error) {
	if userID == "" {
		return nil, apperr.New(apperr.Unauthorized, apperr.CodeUnauthorized, "authentication required")
	}
	comment = strings.TrimSpace(comment)
	if rating < 1 || rating > 5 || comment == "" {
		return nil, apperr.New(apperr.InvalidInput, apperr.CodeInvalidReview, "rating must be between 1 and 5 and comment is required")
	}
	if _, err := s.Get(ctx, productID); err != nil {
		return nil, err
	}

	r := &Review{
		ID:        uuid.New().String(),
		ProductID: productID,
		UserID:    userID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: s.now().UTC(),
	}
	if err := s.products.AddReview(ctx, r); err != nil {
		return nil, errors.Wrap(err, "add review")
	}
	return r, nil
}
