package discount

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/apperr"
)

type mockDiscountRepo struct {
	byCode   map[string]*Discount
	err      error
	lastCode string
}

func (m *mockDiscountRepo) FindUsable(_ context.Context, code string, _ time.Time) (*Discount, error) {
	m.lastCode = code
	if m.err != nil {
		return nil, m.err
	}
	d, ok := m.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

type mockPrices struct {
	prices  map[string]decimal.Decimal
	deleted map[string]bool
	err     error
	calls   [][]string
}

func (m *mockPrices) FindPrices(_ context.Context, ids []string) ([]CatalogPrice, error) {
	m.calls = append(m.calls, ids)
	if m.err != nil {
		return nil, m.err
	}
	var out []CatalogPrice
	for _, id := range ids {
		if p, ok := m.prices[id]; ok {
			out = append(out, CatalogPrice{ProductID: id, Price: p, IsDeleted: m.deleted[id]})
		}
	}
	return out, nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nd(s string) decimal.NullDecimal { return decimal.NewNullDecimal(d(s)) }

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newEvaluator(repo Repository, prices PriceLookup) *Evaluator {
	e := NewEvaluator(repo, prices)
	e.now = func() time.Time { return fixedNow }
	return e
}

func active(code string, typ Type, value string) *Discount {
	return &Discount{
		Code:      code,
		Type:      typ,
		Value:     d(value),
		StartDate: fixedNow.Add(-time.Hour),
		IsActive:  true,
	}
}

func TestDiscount_Usable(t *testing.T) {
	past := fixedNow.Add(-time.Minute)
	future := fixedNow.Add(time.Minute)

	tests := []struct {
		name string
		d    Discount
		want bool
	}{
		{"open ended", Discount{IsActive: true, StartDate: past}, true},
		{"inactive", Discount{IsActive: false, StartDate: past}, false},
		{"starts in future", Discount{IsActive: true, StartDate: future}, false},
		{"ended", Discount{IsActive: true, StartDate: past.Add(-time.Hour), EndDate: &past}, false},
		{"ends now", Discount{IsActive: true, StartDate: past, EndDate: &fixedNow}, true},
		{"starts now", Discount{IsActive: true, StartDate: fixedNow}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.Usable(fixedNow))
		})
	}
}

func TestDiscount_DiscountedPrice(t *testing.T) {
	tests := []struct {
		name  string
		d     Discount
		price string
		want  string
	}{
		{"percentage", Discount{Type: TypePercentage, Value: d("10")}, "100", "90"},
		{"percentage rounds to cents", Discount{Type: TypePercentage, Value: d("15")}, "9.99", "8.49"},
		{"percentage capped", Discount{Type: TypePercentage, Value: d("10"), MaxDiscountAmount: nd("5")}, "100", "95"},
		{"fixed", Discount{Type: TypeFixed, Value: d("7.50")}, "20", "12.5"},
		{"fixed capped", Discount{Type: TypeFixed, Value: d("30"), MaxDiscountAmount: nd("10")}, "50", "40"},
		{"fixed larger than price floors at zero", Discount{Type: TypeFixed, Value: d("500")}, "120", "0"},
		{"fixed equal to price", Discount{Type: TypeFixed, Value: d("25")}, "25", "0"},
		{"hundred percent", Discount{Type: TypePercentage, Value: d("100")}, "42.42", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.d.DiscountedPrice(d(tt.price))
			assert.True(t, d(tt.want).Equal(got), "want %s, got %s", tt.want, got)
			assert.False(t, got.IsNegative())
		})
	}
}

func TestEvaluator_Evaluate(t *testing.T) {
	future := fixedNow.Add(24 * time.Hour)
	past := fixedNow.Add(-24 * time.Hour)

	catalog := &mockPrices{
		prices: map[string]decimal.Decimal{
			"p1": d("100"),
			"p2": d("40"),
			"p3": d("60"),
		},
		deleted: map[string]bool{"p3": true},
	}

	tests := []struct {
		name       string
		discount   *Discount
		req        Request
		wantReason Reason
		wantItems  map[string]string
	}{
		{
			name:     "percentage applies to all cart products",
			discount: active("CODE10", TypePercentage, "10"),
			req: Request{
				Code:       "code10",
				ProductIDs: []string{"p1", "p2"},
				Subtotal:   d("140"),
			},
			wantItems: map[string]string{"p1": "90", "p2": "36"},
		},
		{
			name: "allow-list intersects cart",
			discount: func() *Discount {
				x := active("ONLYP2", TypeFixed, "5")
				x.ApplicableProducts = []string{"p2", "deleted-product"}
				return x
			}(),
			req:       Request{Code: "ONLYP2", ProductIDs: []string{"p1", "p2"}, Subtotal: d("140")},
			wantItems: map[string]string{"p2": "35"},
		},
		{
			name: "allow-list disjoint from cart",
			discount: func() *Discount {
				x := active("OTHER", TypeFixed, "5")
				x.ApplicableProducts = []string{"p9"}
				return x
			}(),
			req:        Request{Code: "OTHER", ProductIDs: []string{"p1"}, Subtotal: d("100")},
			wantReason: ReasonNotApplicable,
		},
		{
			name: "minimum order value not met",
			discount: func() *Discount {
				x := active("BIG", TypePercentage, "10")
				x.MinOrderValue = nd("500")
				return x
			}(),
			req:        Request{Code: "BIG", ProductIDs: []string{"p1"}, Subtotal: d("499.99")},
			wantReason: ReasonMinOrderValue,
		},
		{
			name: "minimum order value met exactly",
			discount: func() *Discount {
				x := active("BIG", TypePercentage, "10")
				x.MinOrderValue = nd("100")
				return x
			}(),
			req:       Request{Code: "BIG", ProductIDs: []string{"p1"}, Subtotal: d("100")},
			wantItems: map[string]string{"p1": "90"},
		},
		{
			name: "deleted product on allow-list is skipped",
			discount: func() *Discount {
				x := active("TEN", TypePercentage, "10")
				x.ApplicableProducts = []string{"p1", "p3"}
				return x
			}(),
			req:       Request{Code: "TEN", ProductIDs: []string{"p1", "p3"}, Subtotal: d("200")},
			wantItems: map[string]string{"p1": "90"},
		},
		{
			name:      "deleted product without allow-list is skipped",
			discount:  active("ALL", TypeFixed, "10"),
			req:       Request{Code: "ALL", ProductIDs: []string{"p3", "p2"}, Subtotal: d("100")},
			wantItems: map[string]string{"p2": "30"},
		},
		{
			name: "only deleted products applicable",
			discount: func() *Discount {
				x := active("GONE", TypePercentage, "10")
				x.ApplicableProducts = []string{"p3"}
				return x
			}(),
			req:        Request{Code: "GONE", ProductIDs: []string{"p1", "p3"}, Subtotal: d("160")},
			wantReason: ReasonNotApplicable,
		},
		{
			name:       "unknown product in cart",
			discount:   active("ALL", TypePercentage, "10"),
			req:        Request{Code: "ALL", ProductIDs: []string{"p1", "ghost"}, Subtotal: d("100")},
			wantReason: ReasonInvalidProducts,
		},
		{
			name: "not started",
			discount: func() *Discount {
				x := active("SOON", TypePercentage, "10")
				x.StartDate = future
				return x
			}(),
			req:        Request{Code: "SOON", ProductIDs: []string{"p1"}, Subtotal: d("100")},
			wantReason: ReasonInvalidOrExpired,
		},
		{
			name: "expired",
			discount: func() *Discount {
				x := active("OLD", TypePercentage, "10")
				x.StartDate = past.Add(-time.Hour)
				x.EndDate = &past
				return x
			}(),
			req:        Request{Code: "OLD", ProductIDs: []string{"p1"}, Subtotal: d("100")},
			wantReason: ReasonInvalidOrExpired,
		},
		{
			name:       "unknown code",
			req:        Request{Code: "NOPE", ProductIDs: []string{"p1"}, Subtotal: d("100")},
			wantReason: ReasonInvalidOrExpired,
		},
		{
			name:       "blank code",
			req:        Request{Code: "   ", ProductIDs: []string{"p1"}, Subtotal: d("100")},
			wantReason: ReasonInvalidOrExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockDiscountRepo{byCode: map[string]*Discount{}}
			if tt.discount != nil {
				repo.byCode[tt.discount.Code] = tt.discount
			}
			e := newEvaluator(repo, catalog)

			out, err := e.Evaluate(context.Background(), tt.req)

			if tt.wantReason != "" {
				var rejected *RejectedError
				require.ErrorAs(t, err, &rejected)
				assert.Equal(t, tt.wantReason, rejected.Reason)
				assert.Equal(t, apperr.DiscountRejected, apperr.KindOf(err))
				assert.Nil(t, out)
				return
			}

			require.NoError(t, err)
			require.Len(t, out.Items, len(tt.wantItems))
			for _, it := range out.Items {
				want, ok := tt.wantItems[it.ProductID]
				require.True(t, ok, "unexpected product %s", it.ProductID)
				assert.True(t, d(want).Equal(it.DiscountedPrice),
					"%s: want %s, got %s", it.ProductID, want, it.DiscountedPrice)
			}
		})
	}
}

func TestEvaluator_NormalizesCode(t *testing.T) {
	repo := &mockDiscountRepo{byCode: map[string]*Discount{
		"SUMMER": active("SUMMER", TypeFixed, "1"),
	}}
	e := newEvaluator(repo, &mockPrices{prices: map[string]decimal.Decimal{"p1": d("10")}})

	_, err := e.Evaluate(context.Background(), Request{Code: " summer ", ProductIDs: []string{"p1"}, Subtotal: d("10")})
	require.NoError(t, err)
	assert.Equal(t, "SUMMER", repo.lastCode)
}

func TestEvaluator_DeduplicatesProductIDs(t *testing.T) {
	prices := &mockPrices{prices: map[string]decimal.Decimal{"p1": d("10")}}
	repo := &mockDiscountRepo{byCode: map[string]*Discount{"X": active("X", TypeFixed, "1")}}
	e := newEvaluator(repo, prices)

	out, err := e.Evaluate(context.Background(), Request{Code: "X", ProductIDs: []string{"p1", "p1"}, Subtotal: d("20")})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	require.Len(t, prices.calls, 1)
	assert.Equal(t, []string{"p1"}, prices.calls[0])
}

func TestEvaluator_MinOrderMessage(t *testing.T) {
	x := active("BIG", TypePercentage, "10")
	x.MinOrderValue = nd("250")
	e := newEvaluator(&mockDiscountRepo{byCode: map[string]*Discount{"BIG": x}}, &mockPrices{})

	_, err := e.Evaluate(context.Background(), Request{Code: "BIG", ProductIDs: []string{"p1"}, Subtotal: d("10")})

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "minimum order value of 250.00 required", rejected.Message())
}

func TestEvaluator_RepositoryErrors(t *testing.T) {
	t.Run("discount lookup", func(t *testing.T) {
		e := newEvaluator(&mockDiscountRepo{err: errors.New("connection reset")}, &mockPrices{})
		_, err := e.Evaluate(context.Background(), Request{Code: "X", ProductIDs: []string{"p1"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "lookup discount")
		assert.Equal(t, apperr.Internal, apperr.KindOf(err))
	})
	t.Run("price lookup", func(t *testing.T) {
		repo := &mockDiscountRepo{byCode: map[string]*Discount{"X": active("X", TypeFixed, "1")}}
		e := newEvaluator(repo, &mockPrices{err: errors.New("timeout")})
		_, err := e.Evaluate(context.Background(), Request{Code: "X", ProductIDs: []string{"p1"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "resolve product prices")
	})
}

func TestEvaluator_Quote(t *testing.T) {
	prices := &mockPrices{prices: map[string]decimal.Decimal{"P1": d("100"), "P2": d("50")}}

	t.Run("percentage without cap", func(t *testing.T) {
		repo := &mockDiscountRepo{byCode: map[string]*Discount{"CODE10": active("CODE10", TypePercentage, "10")}}
		e := newEvaluator(repo, prices)

		q, err := e.Quote(context.Background(), Request{
			Code:       "CODE10",
			ProductIDs: []string{"P1"},
			Subtotal:   d("200"),
			Items:      []Item{{ProductID: "P1", Quantity: 2, Price: d("100")}},
		})
		require.NoError(t, err)
		assert.True(t, d("20").Equal(q.DiscountAmount), "got %s", q.DiscountAmount)
		assert.True(t, d("180").Equal(q.NewSubtotal), "got %s", q.NewSubtotal)
	})

	t.Run("percentage with per-item cap", func(t *testing.T) {
		x := active("CODE10", TypePercentage, "10")
		x.MaxDiscountAmount = nd("5")
		e := newEvaluator(&mockDiscountRepo{byCode: map[string]*Discount{"CODE10": x}}, prices)

		q, err := e.Quote(context.Background(), Request{
			Code:       "CODE10",
			ProductIDs: []string{"P1"},
			Subtotal:   d("200"),
			Items:      []Item{{ProductID: "P1", Quantity: 2, Price: d("100")}},
		})
		require.NoError(t, err)
		assert.True(t, d("10").Equal(q.DiscountAmount), "got %s", q.DiscountAmount)
		assert.True(t, d("190").Equal(q.NewSubtotal), "got %s", q.NewSubtotal)
	})

	t.Run("multiple products", func(t *testing.T) {
		repo := &mockDiscountRepo{byCode: map[string]*Discount{"FIVE": active("FIVE", TypeFixed, "5")}}
		e := newEvaluator(repo, prices)

		q, err := e.Quote(context.Background(), Request{
			Code:       "FIVE",
			ProductIDs: []string{"P1", "P2"},
			Subtotal:   d("250"),
			Items: []Item{
				{ProductID: "P1", Quantity: 2, Price: d("100")},
				{ProductID: "P2", Quantity: 1, Price: d("50")},
			},
		})
		require.NoError(t, err)
		assert.True(t, d("15").Equal(q.DiscountAmount), "got %s", q.DiscountAmount)
		assert.True(t, d("235").Equal(q.NewSubtotal), "got %s", q.NewSubtotal)
	})
}

func TestDiscount_Validate(t *testing.T) {
	end := fixedNow.Add(-time.Hour)
	tests := []struct {
		name    string
		d       Discount
		wantErr bool
	}{
		{"valid percentage", Discount{Code: "A", Type: TypePercentage, Value: d("10")}, false},
		{"valid fixed", Discount{Code: "A", Type: TypeFixed, Value: d("250")}, false},
		{"missing code", Discount{Type: TypeFixed, Value: d("1")}, true},
		{"unknown type", Discount{Code: "A", Type: "bogus", Value: d("1")}, true},
		{"negative value", Discount{Code: "A", Type: TypeFixed, Value: d("-1")}, true},
		{"percentage above 100", Discount{Code: "A", Type: TypePercentage, Value: d("101")}, true},
		{"end before start", Discount{Code: "A", Type: TypeFixed, Value: d("1"), StartDate: fixedNow, EndDate: &end}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, apperr.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestDiscount_Normalize(t *testing.T) {
	x := Discount{Code: " spring ", MinOrderValue: nd("0"), MaxDiscountAmount: nd("0")}
	x.Normalize()
	assert.Equal(t, "SPRING", x.Code)
	assert.False(t, x.MinOrderValue.Valid)
	assert.False(t, x.MaxDiscountAmount.Valid)
}
