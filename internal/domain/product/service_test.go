package product

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

type mockRepo struct {
	rated   []Rated
	byID    map[string]*Product
	reviews []Review
	added   *Review
}

func (m *mockRepo) ListRated(context.Context) ([]Rated, error) { return m.rated, nil }

func (m *mockRepo) Search(_ context.Context, q string) ([]Product, error) {
	return []Product{{ID: "hit", Name: q}}, nil
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockRepo) Categories(context.Context) ([]string, error) { return []string{"mugs"}, nil }

func (m *mockRepo) Reviews(context.Context, string) ([]Review, error) { return m.reviews, nil }

func (m *mockRepo) AddReview(_ context.Context, r *Review) error {
	m.added = r
	return nil
}

type mockDiscounts []discount.Discount

func (m mockDiscounts) ListUsable(context.Context, time.Time) ([]discount.Discount, error) {
	return m, nil
}

func TestService_ListAttachesFirstMatchingBadge(t *testing.T) {
	repo := &mockRepo{rated: []Rated{
		{Product: Product{ID: "p1"}, AvgRating: 4.5, ReviewCount: 2},
		{Product: Product{ID: "p2"}},
		{Product: Product{ID: "p3"}},
	}}
	discounts := mockDiscounts{
		{Code: "P2ONLY", Type: discount.TypeFixed, Value: decimal.NewFromInt(5), ApplicableProducts: []string{"p2"}},
		{Code: "ALL", Type: discount.TypePercentage, Value: decimal.NewFromInt(10)},
	}
	svc := NewService(repo, discounts)

	got, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)

	require.NotNil(t, got[0].Discount)
	assert.Equal(t, "ALL", got[0].Discount.Code)
	assert.InDelta(t, 4.5, got[0].AvgRating, 0.001)
	require.NotNil(t, got[1].Discount)
	assert.Equal(t, "P2ONLY", got[1].Discount.Code)
	assert.Equal(t, "ALL", got[2].Discount.Code)
}

func TestService_ListWithoutDiscounts(t *testing.T) {
	svc := NewService(&mockRepo{rated: []Rated{{Product: Product{ID: "p1"}}}}, mockDiscounts{})

	got, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got[0].Discount)
}

func TestService_Search(t *testing.T) {
	svc := NewService(&mockRepo{}, nil)

	_, err := svc.Search(context.Background(), "  ")
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.CodeInvalidQuery, ae.Code)

	res, err := svc.Search(context.Background(), " mug ")
	require.NoError(t, err)
	assert.Equal(t, "mug", res[0].Name)
}

func TestService_GetNotFound(t *testing.T) {
	svc := NewService(&mockRepo{byID: map[string]*Product{}}, nil)

	_, err := svc.Get(context.Background(), "nope")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestService_AddReview(t *testing.T) {
	repo := &mockRepo{byID: map[string]*Product{"p1": {ID: "p1"}}}
	svc := NewService(repo, nil)

	tests := []struct {
		name      string
		productID string
		userID    string
		rating    int
		comment   string
		wantKind  apperr.Kind
		wantErr   bool
	}{
		{name: "valid", productID: "p1", userID: "u1", rating: 5, comment: "great"},
		{name: "rating too low", productID: "p1", userID: "u1", rating: 0, comment: "meh", wantErr: true, wantKind: apperr.InvalidInput},
		{name: "rating too high", productID: "p1", userID: "u1", rating: 6, comment: "wow", wantErr: true, wantKind: apperr.InvalidInput},
		{name: "empty comment", productID: "p1", userID: "u1", rating: 3, comment: " ", wantErr: true, wantKind: apperr.InvalidInput},
		{name: "unknown product", productID: "p9", userID: "u1", rating: 3, comment: "ok", wantErr: true, wantKind: apperr.NotFound},
		{name: "anonymous", productID: "p1", rating: 3, comment: "ok", wantErr: true, wantKind: apperr.Unauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := svc.AddReview(context.Background(), tt.productID, tt.userID, tt.rating, tt.comment)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "u1", r.UserID)
			assert.Equal(t, r, repo.added)
		})
	}
}
