package admin

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/product"
)

func productNotFound() error {
	return apperr.New(apperr.NotFound, apperr.CodeProductNotFound, "product not found")
}

func (p ProductPatch) apply(dst *product.Product) {
	if p.Name != nil {
		dst.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		dst.Description = *p.Description
	}
	if p.Image != nil {
		dst.Image = *p.Image
	}
	if p.Category != nil {
		dst.Category = strings.TrimSpace(*p.Category)
	}
	if p.Price != nil {
		dst.Price = *p.Price
	}
	if p.Stock != nil {
		dst.Stock = *p.Stock
	}
}

func (p ProductPatch) empty() bool {
	return p.Name == nil && p.Description == nil && p.Image == nil &&
		p.Category == nil && p.Price == nil && p.Stock == nil
}

func validateProduct(p *product.Product) error {
	var details []string
	if p.Name == "" {
		details = append(details, "name")
	}
	if p.Category == "" {
		details = append(details, "category")
	}
	if p.Price.IsNegative() {
		details = append(details, "price")
	}
	if p.Stock < 0 {
		details = append(details, "stock")
	}
	if len(details) > 0 {
		return apperr.New(apperr.InvalidInput, apperr.CodeInvalidInput, "invalid product fields").WithDetails(details...)
	}
	return nil
}

// Products returns a page of non-deleted products, newest first.
func (s *Service) Products(ctx context.Context, page Page) (Paged[product.Product], error) {
	items, total, err := s.products.ListProducts(ctx, page.Limit, page.Offset())
	if err != nil {
		return Paged[product.Product]{}, errors.Wrap(err, "list products")
	}
	return paged(items, total, page), nil
}

// CreateProduct adds a product to the catalog.
func (s *Service) CreateProduct(ctx context.Context, p ProductPatch) (*product.Product, error) {
	now := s.now().UTC()
	np := &product.Product{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now}
	p.apply(np)
	if err := validateProduct(np); err != nil {
		return nil, err
	}
	if err := s.products.CreateProduct(ctx, np); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	return np, nil
}

// UpdateProduct applies p to an existing product.
func (s *Service) UpdateProduct(ctx context.Context, id string, p ProductPatch) (*product.Product, error) {
	cur, err := s.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, productNotFound()
		}
		return nil, errors.Wrap(err, "get product")
	}
	p.apply(cur)
	if err := validateProduct(cur); err != nil {
		return nil, err
	}
	cur.UpdatedAt = s.now().UTC()
	if err := s.products.UpdateProduct(ctx, cur); err != nil {
		return nil, errors.Wrap(err, "update product")
	}
	return cur, nil
}

// DeleteProduct hides a product. Orders that reference it keep their data.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	ok, err := s.products.SoftDeleteProduct(ctx, id)
	if err != nil {
		return errors.Wrap(err, "delete product")
	}
	if !ok {
		return productNotFound()
	}
	return nil
}

// Categories lists the distinct non-empty categories.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	c, err := s.products.Categories(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	return c, nil
}

// BulkUpdateProducts sets price, category and stock on many products.
func (s *Service) BulkUpdateProducts(ctx context.Context, ids []string, p ProductPatch) (int64, error) {
	if len(ids) == 0 {
		return 0, apperr.New(apperr.InvalidInput, apperr.CodeInvalidInput, "ids are required")
	}
	if p.Name != nil || p.Description != nil || p.Image != nil {
		return 0, apperr.New(apperr.InvalidInput, apperr.CodeInvalidInput, "only price, category and stock can be bulk updated")
	}
	if p.empty() {
		return 0, apperr.New(apperr.InvalidInput, apperr.CodeInvalidInput, "nothing to update")
	}
	if (p.Price != nil && p.Price.IsNegative()) || (p.Stock != nil && *p.Stock < 0) ||
		(p.Category != nil && strings.TrimSpace(*p.Category) == "") {
		return 0, apperr.New(apperr.InvalidInput, apperr.CodeInvalidInput, "invalid product fields")
	}
	n, err := s.products.BulkUpdateProducts(ctx, ids, p)
	if err != nil {
		return 0, errors.Wrap(err, "bulk update products")
	}
	return n, nil
}
