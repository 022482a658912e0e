package admin

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/discount"
)

// DiscountPatch holds optional discount fields. Zero caps clear the cap.
type DiscountPatch struct {
	Code               *string
	Description        *string
	Type               *discount.Type
	Value              *decimal.Decimal
	MinOrderValue      *decimal.Decimal
	MaxDiscountAmount  *decimal.Decimal
	StartDate          *time.Time
	EndDate            *time.Time
	IsActive           *bool
	ApplicableProducts []string
}

func (p DiscountPatch) apply(d *discount.Discount) {
	if p.Code != nil {
		d.Code = *p.Code
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.Type != nil {
		d.Type = *p.Type
	}
	if p.Value != nil {
		d.Value = *p.Value
	}
	if p.MinOrderValue != nil {
		d.MinOrderValue = decimal.NewNullDecimal(*p.MinOrderValue)
	}
	if p.MaxDiscountAmount != nil {
		d.MaxDiscountAmount = decimal.NewNullDecimal(*p.MaxDiscountAmount)
	}
	if p.StartDate != nil {
		d.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		end := *p.EndDate
		d.EndDate = &end
	}
	if p.IsActive != nil {
		d.IsActive = *p.IsActive
	}
	if p.ApplicableProducts != nil {
		d.ApplicableProducts = p.ApplicableProducts
	}
}

func discountNotFound() error {
	return apperr.New(apperr.NotFound, apperr.CodeDiscountNotFound, "discount not found")
}

func discountExists(code string) error {
	return apperr.New(apperr.Conflict, apperr.CodeDiscountExists, "discount code %s already exists", code)
}

// Discounts lists all discount definitions.
func (s *Service) Discounts(ctx context.Context) ([]discount.Discount, error) {
	ds, err := s.discounts.ListDiscounts(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list discounts")
	}
	return ds, nil
}

// CreateDiscount validates and stores a new discount. A missing start date
// means the discount starts now; a missing active flag means active.
func (s *Service) CreateDiscount(ctx context.Context, p DiscountPatch) (*discount.Discount, error) {
	now := s.now().UTC()
	d := &discount.Discount{
		ID:        uuid.New().String(),
		StartDate: now,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p.apply(d)
	d.Normalize()
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if err := s.discounts.CreateDiscount(ctx, d); err != nil {
		if errors.Is(err, discount.ErrExists) {
			return nil, discountExists(d.Code)
		}
		return nil, errors.Wrap(err, "create discount")
	}
	return d, nil
}

// UpdateDiscount applies p to an existing discount.
func (s *Service) UpdateDiscount(ctx context.Context, id string, p DiscountPatch) (*discount.Discount, error) {
	d, err := s.discounts.GetDiscount(ctx, id)
	if err != nil {
		if errors.Is(err, discount.ErrNotFound) {
			return nil, discountNotFound()
		}
		return nil, errors.Wrap(err, "get discount")
	}
	p.apply(d)
	d.Normalize()
	if err := d.Validate(); err != nil {
		return nil, err
	}
	d.UpdatedAt = s.now().UTC()
	if err := s.discounts.UpdateDiscount(ctx, d); err != nil {
		if errors.Is(err, discount.ErrExists) {
			return nil, discountExists(d.Code)
		}
		return nil, errors.Wrap(err, "update discount")
	}
	return d, nil
}

// DeleteDiscount removes a discount definition.
func (s *Service) DeleteDiscount(ctx context.Context, id string) error {
	ok, err := s.discounts.DeleteDiscount(ctx, id)
	if err != nil {
		return errors.Wrap(err, "delete discount")
	}
	if !ok {
		return discountNotFound()
	}
	return nil
}

// BulkSetDiscountsActive toggles many discounts at once.
func (s *Service) BulkSetDiscountsActive(ctx context.Context, ids []string, active bool) (int64, error) {
	if len(ids) == 0 {
		return 0, apperr.New(apperr.InvalidInput, apperr.CodeInvalidInput, "ids are required")
	}
	n, err := s.discounts.BulkSetActive(ctx, ids, active)
	if err != nil {
		return 0, errors.Wrap(err, "bulk update discounts")
	}
	return n, nil
}
