package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/metrics"
)

var hundred = decimal.NewFromInt(100)

// Item is a cart line as seen by the evaluator.
type Item struct {
	ProductID string
	Quantity  int
	Price     decimal.Decimal
}

// Request describes a single code evaluated against a cart.
type Request struct {
	Code       string
	ProductIDs []string
	Subtotal   decimal.Decimal
	Items      []Item
}

// DiscountedItem is the unit price of one product after a single discount.
type DiscountedItem struct {
	ProductID       string
	CatalogPrice    decimal.Decimal
	DiscountedPrice decimal.Decimal
}

// Outcome is the result of applying one code to a cart.
type Outcome struct {
	Code              string
	Type              Type
	Value             decimal.Decimal
	MaxDiscountAmount decimal.NullDecimal
	Items             []DiscountedItem
}

// Quote extends an Outcome with cart level totals for a single code.
type Quote struct {
	Outcome
	DiscountAmount decimal.Decimal
	NewSubtotal    decimal.Decimal
}

// Evaluator applies discount definitions to carts. It keeps no state
// between calls.
type Evaluator struct {
	discounts Repository
	prices    PriceLookup
	now       func() time.Time
}

// NewEvaluator creates an Evaluator backed by the given lookups.
func NewEvaluator(discounts Repository, prices PriceLookup) *Evaluator {
	return &Evaluator{discounts: discounts, prices: prices, now: time.Now}
}

// DiscountedPrice returns price reduced by one unit discount, floored at zero
// and rounded to cents.
func (d *Discount) DiscountedPrice(price decimal.Decimal) decimal.Decimal {
	var off decimal.Decimal
	switch d.Type {
	case TypePercentage:
		off = price.Mul(d.Value).Div(hundred)
	case TypeFixed:
		off = d.Value
	}
	if d.MaxDiscountAmount.Valid && off.GreaterThan(d.MaxDiscountAmount.Decimal) {
		off = d.MaxDiscountAmount.Decimal
	}
	res := price.Sub(off)
	if res.IsNegative() {
		res = decimal.Zero
	}
	return res.Round(2)
}

// Evaluate applies req.Code to the cart and returns the discounted unit
// price of every applicable product. A *RejectedError is returned when the
// code cannot be used for this cart.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (*Outcome, error) {
	out, err := e.evaluate(ctx, req)
	var rejected *RejectedError
	switch {
	case err == nil:
		metrics.DiscountEvaluations.WithLabelValues("applied").Inc()
	case errors.As(err, &rejected):
		metrics.DiscountEvaluations.WithLabelValues("rejected").Inc()
		zctx.From(ctx).Debug("Discount rejected",
			zap.String("code", rejected.Code),
			zap.String("reason", string(rejected.Reason)),
		)
	default:
		metrics.DiscountEvaluations.WithLabelValues("error").Inc()
	}
	return out, err
}

func (e *Evaluator) evaluate(ctx context.Context, req Request) (*Outcome, error) {
	code := NormalizeCode(req.Code)
	if code == "" {
		return nil, &RejectedError{Code: code, Reason: ReasonInvalidOrExpired}
	}

	now := e.now()
	d, err := e.discounts.FindUsable(ctx, code, now)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &RejectedError{Code: code, Reason: ReasonInvalidOrExpired}
		}
		return nil, errors.Wrap(err, "lookup discount")
	}
	if !d.Usable(now) {
		return nil, &RejectedError{Code: code, Reason: ReasonInvalidOrExpired}
	}

	applicable := applicableIDs(req.ProductIDs, d.ApplicableProducts)
	if len(applicable) == 0 {
		return nil, &RejectedError{Code: code, Reason: ReasonNotApplicable}
	}

	if d.MinOrderValue.Valid && req.Subtotal.LessThan(d.MinOrderValue.Decimal) {
		return nil, &RejectedError{
			Code:          code,
			Reason:        ReasonMinOrderValue,
			MinOrderValue: d.MinOrderValue.Decimal,
		}
	}

	prices, err := e.prices.FindPrices(ctx, applicable)
	if err != nil {
		return nil, errors.Wrap(err, "resolve product prices")
	}
	byID := make(map[string]CatalogPrice, len(prices))
	for _, p := range prices {
		byID[p.ProductID] = p
	}

	// Deleted products drop out of the discount, unknown ones reject it.
	items := make([]DiscountedItem, 0, len(applicable))
	for _, id := range applicable {
		p, ok := byID[id]
		if !ok {
			return nil, &RejectedError{Code: code, Reason: ReasonInvalidProducts}
		}
		if p.IsDeleted {
			continue
		}
		items = append(items, DiscountedItem{
			ProductID:       id,
			CatalogPrice:    p.Price,
			DiscountedPrice: d.DiscountedPrice(p.Price),
		})
	}
	if len(items) == 0 {
		return nil, &RejectedError{Code: code, Reason: ReasonNotApplicable}
	}

	return &Outcome{
		Code:              d.Code,
		Type:              d.Type,
		Value:             d.Value,
		MaxDiscountAmount: d.MaxDiscountAmount,
		Items:             items,
	}, nil
}

// Quote evaluates a single code and totals its effect on the cart using
// catalog prices and cart quantities.
func (e *Evaluator) Quote(ctx context.Context, req Request) (*Quote, error) {
	out, err := e.Evaluate(ctx, req)
	if err != nil {
		return nil, err
	}

	qty := make(map[string]int64, len(req.Items))
	for _, it := range req.Items {
		qty[it.ProductID] += int64(it.Quantity)
	}

	amount := decimal.Zero
	for _, it := range out.Items {
		n, ok := qty[it.ProductID]
		if !ok {
			continue
		}
		amount = amount.Add(it.CatalogPrice.Sub(it.DiscountedPrice).Mul(decimal.NewFromInt(n)))
	}
	amount = amount.Round(2)

	return &Quote{
		Outcome:        *out,
		DiscountAmount: amount,
		NewSubtotal:    req.Subtotal.Sub(amount).Round(2),
	}, nil
}

// applicableIDs returns the de-duplicated cart ids the discount may touch,
// in cart order. An empty allow-list means every cart product.
func applicableIDs(cart, allow []string) []string {
	var allowed map[string]struct{}
	if len(allow) > 0 {
		allowed = make(map[string]struct{}, len(allow))
		for _, id := range allow {
			allowed[id] = struct{}{}
		}
	}

	seen := make(map[string]struct{}, len(cart))
	out := make([]string, 0, len(cart))
	for _, id := range cart {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if allowed != nil {
			if _, ok := allowed[id]; !ok {
				continue
			}
		}
		out = append(out, id)
	}
	return out
}
