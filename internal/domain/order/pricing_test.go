package order

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/discount"
)

// --- In-memory discount backend ---

type memDiscounts map[string]*discount.Discount

func (m memDiscounts) FindUsable(_ context.Context, code string, now time.Time) (*discount.Discount, error) {
	x, ok := m[code]
	if !ok || !x.Usable(now) {
		return nil, discount.ErrNotFound
	}
	return x, nil
}

type memPrices map[string]decimal.Decimal

// withDeleted marks some catalog products as soft deleted.
type withDeleted struct {
	memPrices
	deleted map[string]bool
}

func (m withDeleted) FindPrices(ctx context.Context, ids []string) ([]discount.CatalogPrice, error) {
	out, err := m.memPrices.FindPrices(ctx, ids)
	for i := range out {
		out[i].IsDeleted = m.deleted[out[i].ProductID]
	}
	return out, err
}

func (m memPrices) FindPrices(_ context.Context, ids []string) ([]discount.CatalogPrice, error) {
	var out []discount.CatalogPrice
	for _, id := range ids {
		if p, ok := m[id]; ok {
			out = append(out, discount.CatalogPrice{ProductID: id, Price: p})
		}
	}
	return out, nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func percentOff(code, value string, products ...string) *discount.Discount {
	return &discount.Discount{
		Code:               code,
		Type:               discount.TypePercentage,
		Value:              d(value),
		StartDate:          time.Now().Add(-time.Hour),
		IsActive:           true,
		ApplicableProducts: products,
	}
}

func fixedOff(code, value string, products ...string) *discount.Discount {
	x := percentOff(code, value, products...)
	x.Type = discount.TypeFixed
	return x
}

func newPricer(discounts memDiscounts, prices memPrices) *Pricer {
	return NewPricer(discount.NewEvaluator(discounts, prices))
}

func validAddress() Address {
	return Address{Street: "1 Main St", City: "Pune", State: "MH", Zip: "411001", Country: "IN"}
}

// --- Tests ---

func TestPrice_NoCodes(t *testing.T) {
	p := newPricer(memDiscounts{}, memPrices{})

	got, err := p.Price(context.Background(), Cart{
		Items: []Item{
			{ProductID: "p1", Quantity: 2, Price: d("19.99")},
			{ProductID: "p2", Quantity: 1, Price: d("5.02")},
		},
		ShippingAddress: validAddress(),
	})

	require.NoError(t, err)
	assert.True(t, d("45.00").Equal(got.Subtotal), "got %s", got.Subtotal)
	assert.True(t, got.Subtotal.Equal(got.Total))
	assert.Nil(t, got.Discounts)
	assert.True(t, got.DiscountAmount.IsZero())
}

func TestPrice_Scenarios(t *testing.T) {
	cart := []Item{{ProductID: "P1", Quantity: 2, Price: d("100")}}

	tests := []struct {
		name       string
		discounts  memDiscounts
		prices     memPrices
		items      []Item
		codes      []string
		wantAmount string
		wantTotal  string
		wantCodes  []string
	}{
		{
			name:       "ten percent off",
			discounts:  memDiscounts{"CODE10": percentOff("CODE10", "10")},
			prices:     memPrices{"P1": d("100")},
			items:      cart,
			codes:      []string{"CODE10"},
			wantAmount: "20",
			wantTotal:  "180",
			wantCodes:  []string{"CODE10"},
		},
		{
			name: "ten percent off with per-item cap",
			discounts: memDiscounts{"CODE10": func() *discount.Discount {
				x := percentOff("CODE10", "10")
				x.MaxDiscountAmount = decimal.NewNullDecimal(d("5"))
				return x
			}()},
			prices:     memPrices{"P1": d("100")},
			items:      cart,
			codes:      []string{"CODE10"},
			wantAmount: "10",
			wantTotal:  "190",
			wantCodes:  []string{"CODE10"},
		},
		{
			name:       "same code twice counts once",
			discounts:  memDiscounts{"CODE10": percentOff("CODE10", "10")},
			prices:     memPrices{"P1": d("100")},
			items:      cart,
			codes:      []string{"CODE10", "code10"},
			wantAmount: "20",
			wantTotal:  "180",
			wantCodes:  []string{"CODE10"},
		},
		{
			name: "disjoint codes both apply",
			discounts: memDiscounts{
				"A": percentOff("A", "10", "P1"),
				"B": fixedOff("B", "5", "P2"),
			},
			prices: memPrices{"P1": d("100"), "P2": d("50")},
			items: []Item{
				{ProductID: "P1", Quantity: 2, Price: d("100")},
				{ProductID: "P2", Quantity: 3, Price: d("50")},
			},
			codes:      []string{"A", "B"},
			wantAmount: "35",
			wantTotal:  "315",
			wantCodes:  []string{"A", "B"},
		},
		{
			name: "first code wins on overlap",
			discounts: memDiscounts{
				"SMALL": fixedOff("SMALL", "1"),
				"BIG":   percentOff("BIG", "50"),
			},
			prices:     memPrices{"P1": d("100")},
			items:      cart,
			codes:      []string{"SMALL", "BIG"},
			wantAmount: "2",
			wantTotal:  "198",
			wantCodes:  []string{"SMALL"},
		},
		{
			name:       "fixed larger than price never goes negative",
			discounts:  memDiscounts{"HUGE": fixedOff("HUGE", "1000")},
			prices:     memPrices{"P1": d("100")},
			items:      cart,
			codes:      []string{"HUGE"},
			wantAmount: "200",
			wantTotal:  "0",
			wantCodes:  []string{"HUGE"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPricer(tt.discounts, tt.prices)

			got, err := p.Price(context.Background(), Cart{
				Items:           tt.items,
				Codes:           tt.codes,
				ShippingAddress: validAddress(),
			})
			require.NoError(t, err)

			assert.True(t, d(tt.wantAmount).Equal(got.DiscountAmount), "amount: got %s", got.DiscountAmount)
			assert.True(t, d(tt.wantTotal).Equal(got.Total), "total: got %s", got.Total)
			assert.True(t, got.Subtotal.Sub(got.DiscountAmount).Equal(got.Total))

			var codes []string
			for _, a := range got.Discounts {
				codes = append(codes, a.Code)
				assert.True(t, a.Amount.IsPositive())
			}
			assert.Equal(t, tt.wantCodes, codes)
		})
	}
}

func TestPrice_ReplacesChargedPrices(t *testing.T) {
	p := newPricer(
		memDiscounts{"A": percentOff("A", "10", "P1")},
		memPrices{"P1": d("100"), "P2": d("50")},
	)

	got, err := p.Price(context.Background(), Cart{
		Items: []Item{
			{ProductID: "P1", Quantity: 1, Price: d("100")},
			{ProductID: "P2", Quantity: 1, Price: d("50")},
		},
		Codes:           []string{"A"},
		ShippingAddress: validAddress(),
	})
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.True(t, d("90").Equal(got.Items[0].Price))
	assert.True(t, d("50").Equal(got.Items[1].Price))
	assert.True(t, d("150").Equal(got.Subtotal))
}

func TestPrice_DoesNotMutateInput(t *testing.T) {
	p := newPricer(memDiscounts{"A": percentOff("A", "10")}, memPrices{"P1": d("100")})
	items := []Item{{ProductID: "P1", Quantity: 1, Price: d("100")}}

	_, err := p.Price(context.Background(), Cart{Items: items, Codes: []string{"A"}, ShippingAddress: validAddress()})
	require.NoError(t, err)
	assert.True(t, d("100").Equal(items[0].Price))
}

func TestPrice_RejectedCodeAbortsCheckout(t *testing.T) {
	p := newPricer(
		memDiscounts{"GOOD": percentOff("GOOD", "10")},
		memPrices{"P1": d("100")},
	)

	_, err := p.Price(context.Background(), Cart{
		Items:           []Item{{ProductID: "P1", Quantity: 1, Price: d("100")}},
		Codes:           []string{"GOOD", "EXPIRED"},
		ShippingAddress: validAddress(),
	})

	var rejected *discount.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "EXPIRED", rejected.Code)
	assert.Equal(t, discount.ReasonInvalidOrExpired, rejected.Reason)
}

func TestPrice_BlankCodeAbortsCheckout(t *testing.T) {
	p := newPricer(memDiscounts{}, memPrices{"P1": d("100")})

	for _, codes := range [][]string{{""}, {"  "}} {
		_, err := p.Price(context.Background(), Cart{
			Items:           []Item{{ProductID: "P1", Quantity: 2, Price: d("100")}},
			Codes:           codes,
			ShippingAddress: validAddress(),
		})

		var rejected *discount.RejectedError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, discount.ReasonInvalidOrExpired, rejected.Reason)
	}
}

func TestPrice_SkipsDeletedProducts(t *testing.T) {
	p := NewPricer(discount.NewEvaluator(
		memDiscounts{"TEN": percentOff("TEN", "10", "P1", "P2")},
		withDeleted{
			memPrices: memPrices{"P1": d("100"), "P2": d("50")},
			deleted:   map[string]bool{"P2": true},
		},
	))

	got, err := p.Price(context.Background(), Cart{
		Items: []Item{
			{ProductID: "P1", Quantity: 2, Price: d("100")},
			{ProductID: "P2", Quantity: 1, Price: d("50")},
		},
		Codes:           []string{"TEN"},
		ShippingAddress: validAddress(),
	})
	require.NoError(t, err)
	assert.True(t, d("20").Equal(got.DiscountAmount), "amount: got %s", got.DiscountAmount)
	assert.True(t, d("230").Equal(got.Total), "total: got %s", got.Total)
	assert.True(t, d("90").Equal(got.Items[0].Price))
	assert.True(t, d("50").Equal(got.Items[1].Price))

	// Only deleted products on the allow-list leaves nothing to discount.
	p = NewPricer(discount.NewEvaluator(
		memDiscounts{"GONE": percentOff("GONE", "10", "P2")},
		withDeleted{
			memPrices: memPrices{"P1": d("100"), "P2": d("50")},
			deleted:   map[string]bool{"P2": true},
		},
	))
	_, err = p.Price(context.Background(), Cart{
		Items:           []Item{{ProductID: "P2", Quantity: 1, Price: d("50")}},
		Codes:           []string{"GONE"},
		ShippingAddress: validAddress(),
	})
	var rejected *discount.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, discount.ReasonNotApplicable, rejected.Reason)
}

func TestPrice_ClientPriceCapsCharge(t *testing.T) {
	p := newPricer(
		memDiscounts{"TEN": percentOff("TEN", "10")},
		memPrices{"P1": d("100"), "P2": d("100")},
	)

	got, err := p.Price(context.Background(), Cart{
		Items: []Item{
			// Below the discounted catalog price of 90: charged as sent.
			{ProductID: "P1", Quantity: 2, Price: d("80")},
			// Between 90 and the catalog price: charged 90.
			{ProductID: "P2", Quantity: 3, Price: d("95")},
		},
		Codes:           []string{"TEN"},
		ShippingAddress: validAddress(),
	})
	require.NoError(t, err)
	assert.True(t, d("80").Equal(got.Items[0].Price), "P1: got %s", got.Items[0].Price)
	assert.True(t, d("90").Equal(got.Items[1].Price), "P2: got %s", got.Items[1].Price)
	assert.True(t, d("445").Equal(got.Subtotal))
	assert.True(t, d("15").Equal(got.DiscountAmount), "amount: got %s", got.DiscountAmount)
	assert.True(t, d("430").Equal(got.Total), "total: got %s", got.Total)
	require.Len(t, got.Discounts, 1)
	assert.Equal(t, "TEN", got.Discounts[0].Code)
}

func TestPrice_ExpiredOrFutureDiscounts(t *testing.T) {
	past := time.Now().Add(-48 * time.Hour)
	ended := time.Now().Add(-24 * time.Hour)
	future := percentOff("LATER", "10")
	future.StartDate = time.Now().Add(24 * time.Hour)
	expired := percentOff("GONE", "10")
	expired.StartDate = past
	expired.EndDate = &ended

	p := newPricer(memDiscounts{"LATER": future, "GONE": expired}, memPrices{"P1": d("100")})

	for _, code := range []string{"LATER", "GONE"} {
		t.Run(code, func(t *testing.T) {
			_, err := p.Price(context.Background(), Cart{
				Items:           []Item{{ProductID: "P1", Quantity: 1, Price: d("100")}},
				Codes:           []string{code},
				ShippingAddress: validAddress(),
			})
			var rejected *discount.RejectedError
			require.ErrorAs(t, err, &rejected)
			assert.Equal(t, discount.ReasonInvalidOrExpired, rejected.Reason)
		})
	}
}

func TestPrice_Validation(t *testing.T) {
	tests := []struct {
		name        string
		cart        Cart
		wantCode    string
		wantMessage string
	}{
		{
			name:     "empty cart",
			cart:     Cart{ShippingAddress: validAddress()},
			wantCode: apperr.CodeInvalidItems,
		},
		{
			name: "zero quantity",
			cart: Cart{
				Items:           []Item{{ProductID: "P1", Quantity: 0, Price: d("1")}},
				ShippingAddress: validAddress(),
			},
			wantCode: apperr.CodeInvalidItem,
		},
		{
			name: "negative price",
			cart: Cart{
				Items:           []Item{{ProductID: "P1", Quantity: 1, Price: d("-1")}},
				ShippingAddress: validAddress(),
			},
			wantCode: apperr.CodeInvalidItem,
		},
		{
			name: "missing one shipping field",
			cart: Cart{
				Items: []Item{{ProductID: "P1", Quantity: 1, Price: d("1")}},
				ShippingAddress: func() Address {
					a := validAddress()
					a.Zip = ""
					return a
				}(),
			},
			wantCode:    apperr.CodeMissingShipping,
			wantMessage: "missing shipping address fields: zip",
		},
		{
			name: "missing two shipping fields",
			cart: Cart{
				Items: []Item{{ProductID: "P1", Quantity: 1, Price: d("1")}},
				ShippingAddress: func() Address {
					a := validAddress()
					a.Street = " "
					a.Country = ""
					return a
				}(),
			},
			wantCode:    apperr.CodeMissingShipping,
			wantMessage: "missing shipping address fields: street, country",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPricer(memDiscounts{}, memPrices{})
			_, err := p.Price(context.Background(), tt.cart)

			var ae *apperr.Error
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, apperr.InvalidInput, ae.Kind)
			assert.Equal(t, tt.wantCode, ae.Code)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, ae.Message)
			}
		})
	}
}

func TestStatus_Transitions(t *testing.T) {
	all := []Status{StatusPending, StatusCompleted, StatusFailed}
	allowed := map[[2]Status]bool{
		{StatusPending, StatusCompleted}: true,
		{StatusPending, StatusFailed}:    true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]Status{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, Status("refunded").Valid())
}
