package order

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/discount"
)

// Evaluator applies one discount code to a cart.
type Evaluator interface {
	Evaluate(ctx context.Context, req discount.Request) (*discount.Outcome, error)
}

// Cart is the checkout input of the pricing engine.
type Cart struct {
	Items           []Item
	Codes           []string
	ShippingAddress Address
}

// Priced is a cart with discounts applied.
type Priced struct {
	// Items holds the charged unit prices.
	Items          []Item
	Subtotal       decimal.Decimal
	Discounts      []AppliedDiscount
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
}

// Pricer computes order totals. Discounts from earlier codes win: a product
// discounted by one code is never discounted again by a later one.
type Pricer struct {
	discounts Evaluator
}

// NewPricer creates a Pricer using the given evaluator.
func NewPricer(discounts Evaluator) *Pricer {
	return &Pricer{discounts: discounts}
}

// Price validates the cart and applies codes in order. Any rejected code
// aborts pricing.
func (p *Pricer) Price(ctx context.Context, cart Cart) (*Priced, error) {
	if err := ValidateItems(cart.Items); err != nil {
		return nil, err
	}
	if err := ValidateAddress(cart.ShippingAddress); err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	ids := make([]string, 0, len(cart.Items))
	evalItems := make([]discount.Item, 0, len(cart.Items))
	working := make([]Item, len(cart.Items))
	for i, it := range cart.Items {
		subtotal = subtotal.Add(it.LineTotal())
		ids = append(ids, it.ProductID)
		evalItems = append(evalItems, discount.Item{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
		working[i] = Item{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price}
	}

	var (
		applied []AppliedDiscount
		amount  = decimal.Zero
		claimed = make(map[string]struct{})
	)
	for _, code := range cart.Codes {
		out, err := p.discounts.Evaluate(ctx, discount.Request{
			Code:       code,
			ProductIDs: ids,
			Subtotal:   subtotal,
			Items:      evalItems,
		})
		if err != nil {
			return nil, err
		}

		contribution := decimal.Zero
		for _, di := range out.Items {
			if _, ok := claimed[di.ProductID]; ok {
				continue
			}
			claimed[di.ProductID] = struct{}{}
			for i := range working {
				if working[i].ProductID != di.ProductID {
					continue
				}
				// The client price is a ceiling: a line already below the
				// discounted catalog price contributes nothing.
				original := cart.Items[i].Price
				charged := decimal.Min(original, di.DiscountedPrice)
				contribution = contribution.Add(
					original.Sub(charged).Mul(decimal.NewFromInt(int64(working[i].Quantity))),
				)
				working[i].Price = charged
			}
		}

		contribution = contribution.Round(2)
		if contribution.IsPositive() {
			applied = append(applied, AppliedDiscount{Code: out.Code, Amount: contribution})
			amount = amount.Add(contribution)
		}
	}

	subtotal = subtotal.Round(2)
	total := subtotal.Sub(amount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return &Priced{
		Items:          working,
		Subtotal:       subtotal,
		Discounts:      applied,
		DiscountAmount: amount,
		Total:          total.Round(2),
	}, nil
}

// ValidateItems rejects empty carts and malformed lines.
func ValidateItems(items []Item) error {
	if len(items) == 0 {
		return apperr.New(apperr.InvalidInput, apperr.CodeInvalidItems, "cart must contain at least one item")
	}
	var problems []string
	for i, it := range items {
		switch {
		case it.ProductID == "":
			problems = append(problems, fmt.Sprintf("item %d: productId is required", i))
		case it.Quantity <= 0:
			problems = append(problems, fmt.Sprintf("item %d (%s): quantity must be greater than 0", i, it.ProductID))
		case it.Price.IsNegative():
			problems = append(problems, fmt.Sprintf("item %d (%s): price must not be negative", i, it.ProductID))
		}
	}
	if len(problems) > 0 {
		return apperr.New(apperr.InvalidInput, apperr.CodeInvalidItem, "invalid cart items").
			WithDetails(problems...)
	}
	return nil
}

// ValidateAddress reports every missing shipping field at once.
func ValidateAddress(a Address) error {
	fields := []struct {
		name  string
		value string
	}{
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"zip", a.Zip},
		{"country", a.Country},
	}
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return apperr.New(apperr.InvalidInput, apperr.CodeMissingShipping,
			"missing shipping address fields: %s", strings.Join(missing, ", ")).
			WithDetails(missing...)
	}
	return nil
}
