package admin

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
)

// --- Mock implementations ---

type mockStats struct {
	failTop bool
}

func (mockStats) CountShoppers(context.Context) (int, error) { return 3, nil }
func (mockStats) CountOrders(context.Context) (int, error) { return 7, nil }
func (mockStats) CountProducts(context.Context) (int, error) { return 12, nil }
func (mockStats) CompletedRevenue(context.Context) (decimal.Decimal, error) {
	return decimal.RequireFromString("420.50"), nil
}

func (mockStats) RecentOrders(_ context.Context, limit int) ([]OrderRow, error) {
	return make([]OrderRow, limit), nil
}

func (m mockStats) TopProducts(context.Context, int) ([]TopProduct, error) {
	if m.failTop {
		return nil, errors.New("boom")
	}
	return []TopProduct{{ProductID: "p1", Name: "Mug", TotalSold: 4}}, nil
}

func (mockStats) UserGrowth(context.Context, int) ([]MonthCount, error) {
	return []MonthCount{
		{Year: 2026, Month: time.January, Count: 5},
		{Year: 2025, Month: time.December, Count: 2},
	}, nil
}

func (mockStats) RevenueTrend(context.Context, int) ([]MonthRevenue, error) {
	return []MonthRevenue{
		{Year: 2026, Month: time.February, Total: decimal.NewFromInt(300)},
		{Year: 2026, Month: time.January, Total: decimal.NewFromInt(120)},
	}, nil
}

type memOrders struct {
	mu     sync.Mutex
	orders map[string]*order.Order
}

func newMemOrders(orders ...order.Order) *memOrders {
	m := &memOrders{orders: map[string]*order.Order{}}
	for i := range orders {
		m.orders[orders[i].ID] = &orders[i]
	}
	return m
}

func (m *memOrders) ListOrders(_ context.Context, limit, offset int) ([]OrderRow, int, error) {
	return []OrderRow{{UserEmail: "a@example.com"}}, 25, nil
}

func (m *memOrders) Get(_ context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) Transition(_ context.Context, id string, from, to order.Status, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != from || !from.CanTransitionTo(to) {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (m *memOrders) BulkTransition(_ context.Context, ids []string, from, to order.Status) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if o, ok := m.orders[id]; ok && o.Status == from {
			o.Status = to
			n++
		}
	}
	return n, nil
}

func (m *memOrders) DeleteOrder(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.orders[id]
	delete(m.orders, id)
	return ok, nil
}

type memProducts struct {
	byID      map[string]*product.Product
	bulkPatch ProductPatch
}

func (m *memProducts) ListProducts(context.Context, int, int) ([]product.Product, int, error) {
	return nil, 0, nil
}

func (m *memProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProducts) CreateProduct(_ context.Context, p *product.Product) error {
	m.byID[p.ID] = p
	return nil
}

func (m *memProducts) UpdateProduct(_ context.Context, p *product.Product) error {
	m.byID[p.ID] = p
	return nil
}

func (m *memProducts) SoftDeleteProduct(_ context.Context, id string) (bool, error) {
	p, ok := m.byID[id]
	if !ok {
		return false, nil
	}
	p.IsDeleted = true
	return true, nil
}

func (m *memProducts) Categories(context.Context) ([]string, error) { return []string{"mugs"}, nil }

func (m *memProducts) BulkUpdateProducts(_ context.Context, ids []string, p ProductPatch) (int64, error) {
	m.bulkPatch = p
	return int64(len(ids)), nil
}

type memDiscounts struct {
	byID map[string]*discount.Discount
}

func (m *memDiscounts) ListDiscounts(context.Context) ([]discount.Discount, error) { return nil, nil }

func (m *memDiscounts) GetDiscount(_ context.Context, id string) (*discount.Discount, error) {
	d, ok := m.byID[id]
	if !ok {
		return nil, discount.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memDiscounts) CreateDiscount(_ context.Context, d *discount.Discount) error {
	for _, x := range m.byID {
		if x.Code == d.Code {
			return discount.ErrExists
		}
	}
	m.byID[d.ID] = d
	return nil
}

func (m *memDiscounts) UpdateDiscount(_ context.Context, d *discount.Discount) error {
	m.byID[d.ID] = d
	return nil
}

func (m *memDiscounts) DeleteDiscount(_ context.Context, id string) (bool, error) {
	_, ok := m.byID[id]
	delete(m.byID, id)
	return ok, nil
}

func (m *memDiscounts) BulkSetActive(_ context.Context, ids []string, active bool) (int64, error) {
	var n int64
	for _, id := range ids {
		if d, ok := m.byID[id]; ok {
			d.IsActive = active
			n++
		}
	}
	return n, nil
}

type memUsers struct {
	byID map[string]*user.User
}

func (m *memUsers) ListUsers(context.Context) ([]user.User, error) { return nil, nil }

func (m *memUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) Update(_ context.Context, u *user.User) error {
	m.byID[u.ID] = u
	return nil
}

func (m *memUsers) DeleteUser(_ context.Context, id string) (bool, error) {
	_, ok := m.byID[id]
	delete(m.byID, id)
	return ok, nil
}

type fixture struct {
	svc       *Service
	orders    *memOrders
	products  *memProducts
	discounts *memDiscounts
	users     *memUsers
}

func newFixture(orders ...order.Order) *fixture {
	f := &fixture{
		orders:    newMemOrders(orders...),
		products:  &memProducts{byID: map[string]*product.Product{}},
		discounts: &memDiscounts{byID: map[string]*discount.Discount{}},
		users:     &memUsers{byID: map[string]*user.User{}},
	}
	f.svc = NewService(mockStats{}, f.users, f.products, f.orders, f.discounts)
	f.svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return f
}

// --- Tests ---

func TestNewPage(t *testing.T) {
	tests := []struct {
		page, limit int
		want        Page
		offset      int
	}{
		{page: 0, limit: 0, want: Page{Number: 1, Limit: 10}, offset: 0},
		{page: 3, limit: 20, want: Page{Number: 3, Limit: 20}, offset: 40},
		{page: -2, limit: 1000, want: Page{Number: 1, Limit: 100}, offset: 0},
	}
	for _, tt := range tests {
		got := NewPage(tt.page, tt.limit)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.offset, got.Offset())
	}
}

func TestService_Dashboard(t *testing.T) {
	f := newFixture()

	d, err := f.svc.Dashboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, d.Users)
	assert.Equal(t, 7, d.Orders)
	assert.Equal(t, 12, d.Products)
	assert.True(t, decimal.RequireFromString("420.5").Equal(d.Revenue))
	assert.Len(t, d.RecentOrders, 5)
	assert.Equal(t, []MonthPoint{{Month: "12/2025", Count: 2}, {Month: "1/2026", Count: 5}}, d.UserGrowth)
	require.Len(t, d.RevenueTrend, 2)
	assert.Equal(t, "1/2026", d.RevenueTrend[0].Month)
	assert.Equal(t, "2/2026", d.RevenueTrend[1].Month)
}

func TestService_DashboardQueryError(t *testing.T) {
	f := newFixture()
	f.svc.stats = mockStats{failTop: true}

	_, err := f.svc.Dashboard(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "top products")
}

func TestService_OrdersPaging(t *testing.T) {
	f := newFixture()

	got, err := f.svc.Orders(context.Background(), NewPage(2, 10))
	require.NoError(t, err)
	assert.Equal(t, 25, got.Total)
	assert.Equal(t, 2, got.CurrentPage)
	assert.Equal(t, 3, got.TotalPages)
}

func TestService_UpdateOrderStatus(t *testing.T) {
	tests := []struct {
		name     string
		from     order.Status
		to       order.Status
		wantCode string
	}{
		{name: "pending to completed", from: order.StatusPending, to: order.StatusCompleted},
		{name: "pending to failed", from: order.StatusPending, to: order.StatusFailed},
		{name: "same status is a no-op", from: order.StatusCompleted, to: order.StatusCompleted},
		{name: "completed to pending", from: order.StatusCompleted, to: order.StatusPending, wantCode: apperr.CodeIllegalTransition},
		{name: "failed to completed", from: order.StatusFailed, to: order.StatusCompleted, wantCode: apperr.CodeIllegalTransition},
		{name: "unknown status", from: order.StatusPending, to: "refunded", wantCode: apperr.CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(order.Order{ID: "o1", Status: tt.from})

			o, err := f.svc.UpdateOrderStatus(context.Background(), "o1", tt.to)
			if tt.wantCode != "" {
				var ae *apperr.Error
				require.ErrorAs(t, err, &ae)
				assert.Equal(t, tt.wantCode, ae.Code)
				assert.Equal(t, apperr.InvalidInput, ae.Kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, o.Status)
		})
	}
}

func TestService_UpdateOrderStatusNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.svc.UpdateOrderStatus(context.Background(), "missing", order.StatusFailed)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestService_BulkUpdateOrderStatus(t *testing.T) {
	f := newFixture(
		order.Order{ID: "o1", Status: order.StatusPending},
		order.Order{ID: "o2", Status: order.StatusCompleted},
		order.Order{ID: "o3", Status: order.StatusPending},
	)
	ctx := context.Background()

	n, err := f.svc.BulkUpdateOrderStatus(ctx, []string{"o1", "o2", "o3", "ghost"}, order.StatusFailed)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, order.StatusCompleted, f.orders.orders["o2"].Status)
	assert.Equal(t, order.StatusFailed, f.orders.orders["o3"].Status)

	_, err = f.svc.BulkUpdateOrderStatus(ctx, []string{"o1"}, order.StatusPending)
	assert.ErrorIs(t, err, &apperr.Error{Kind: apperr.InvalidInput, Code: apperr.CodeIllegalTransition})

	_, err = f.svc.BulkUpdateOrderStatus(ctx, nil, order.StatusFailed)
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
}

func TestService_CreateDiscount(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	code := " welcome10 "
	typ := discount.TypePercentage
	value := decimal.NewFromInt(10)
	zero := decimal.Zero

	d, err := f.svc.CreateDiscount(ctx, DiscountPatch{Code: &code, Type: &typ, Value: &value, MaxDiscountAmount: &zero})
	require.NoError(t, err)
	assert.Equal(t, "WELCOME10", d.Code)
	assert.True(t, d.IsActive)
	assert.False(t, d.MaxDiscountAmount.Valid, "zero cap is stored as absent")
	assert.Equal(t, f.svc.now().UTC(), d.StartDate)

	_, err = f.svc.CreateDiscount(ctx, DiscountPatch{Code: &code, Type: &typ, Value: &value})
	assert.ErrorIs(t, err, &apperr.Error{Kind: apperr.Conflict, Code: apperr.CodeDiscountExists})
}

func TestService_CreateDiscountValidation(t *testing.T) {
	f := newFixture()
	code := "BIG"
	typ := discount.TypePercentage
	value := decimal.NewFromInt(150)

	_, err := f.svc.CreateDiscount(context.Background(), DiscountPatch{Code: &code, Type: &typ, Value: &value})
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.InvalidInput, ae.Kind)
	assert.NotEmpty(t, ae.Details)
	assert.Empty(t, f.discounts.byID)
}

func TestService_UpdateDiscountEndBeforeStart(t *testing.T) {
	f := newFixture()
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	f.discounts.byID["d1"] = &discount.Discount{
		ID: "d1", Code: "X", Type: discount.TypeFixed, Value: decimal.NewFromInt(5), StartDate: start,
	}
	end := start.Add(-time.Hour)

	_, err := f.svc.UpdateDiscount(context.Background(), "d1", DiscountPatch{EndDate: &end})
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))

	_, err = f.svc.UpdateDiscount(context.Background(), "ghost", DiscountPatch{})
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestService_BulkSetDiscountsActive(t *testing.T) {
	f := newFixture()
	f.discounts.byID["d1"] = &discount.Discount{ID: "d1", IsActive: true}
	f.discounts.byID["d2"] = &discount.Discount{ID: "d2", IsActive: true}

	n, err := f.svc.BulkSetDiscountsActive(context.Background(), []string{"d1", "d2"}, false)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.False(t, f.discounts.byID["d1"].IsActive)
}

func TestService_ProductLifecycle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	name, category := "Mug", "kitchen"
	price := decimal.RequireFromString("9.99")

	p, err := f.svc.CreateProduct(ctx, ProductPatch{Name: &name, Category: &category, Price: &price})
	require.NoError(t, err)

	stock := -1
	_, err = f.svc.UpdateProduct(ctx, p.ID, ProductPatch{Stock: &stock})
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))

	require.NoError(t, f.svc.DeleteProduct(ctx, p.ID))
	assert.True(t, f.products.byID[p.ID].IsDeleted)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(f.svc.DeleteProduct(ctx, "ghost")))
}

func TestService_CreateProductValidation(t *testing.T) {
	f := newFixture()
	price := decimal.NewFromInt(-1)

	_, err := f.svc.CreateProduct(context.Background(), ProductPatch{Price: &price})
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, []string{"name", "category", "price"}, ae.Details)
}

func TestService_BulkUpdateProducts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	price := decimal.NewFromInt(5)
	name := "renamed"

	n, err := f.svc.BulkUpdateProducts(ctx, []string{"p1", "p2"}, ProductPatch{Price: &price})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.True(t, price.Equal(*f.products.bulkPatch.Price))

	_, err = f.svc.BulkUpdateProducts(ctx, []string{"p1"}, ProductPatch{Name: &name})
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))

	_, err = f.svc.BulkUpdateProducts(ctx, []string{"p1"}, ProductPatch{})
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
}

func TestService_UpdateUser(t *testing.T) {
	f := newFixture()
	f.users.byID["u1"] = &user.User{ID: "u1", Email: "a@example.com", Username: "alice", Role: user.RoleUser}
	ctx := context.Background()

	role := user.RoleAdmin
	banned := true
	u, err := f.svc.UpdateUser(ctx, "u1", UserPatch{Role: &role, IsBanned: &banned})
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, u.Role)
	assert.True(t, u.IsBanned)

	bad := user.Role("root")
	_, err = f.svc.UpdateUser(ctx, "u1", UserPatch{Role: &bad})
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))

	assert.NoError(t, f.svc.DeleteUser(ctx, "u1"))
	assert.Equal(t, apperr.NotFound, apperr.KindOf(f.svc.DeleteUser(ctx, "u1")))
}
