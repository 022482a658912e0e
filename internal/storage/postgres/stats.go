package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/admin"
)

const (
	countShoppersSQL    = `SELECT COUNT(*) FROM users WHERE role = 'user'`
	completedRevenueSQL = `SELECT COALESCE(SUM(total), 0) FROM orders WHERE payment_status = 'completed'`

	recentOrdersSQL = `SELECT ` + orderColumns + `, COALESCE(u.email, ''), COALESCE(u.username, '')
		FROM orders o
		LEFT JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC, o.id
		LIMIT $1`

	topProductsSQL = `SELECT p.id, p.name, SUM(i.quantity)::int, SUM(i.quantity * i.price)
		FROM orders o
		CROSS JOIN LATERAL jsonb_to_recordset(o.items) AS i("productId" text, quantity int, price numeric)
		JOIN products p ON p.id = i."productId"
		WHERE o.payment_status = 'completed'
		GROUP BY p.id, p.name
		ORDER BY 3 DESC, p.id
		LIMIT $1`

	userGrowthSQL = `SELECT EXTRACT(YEAR FROM created_at)::int AS y, EXTRACT(MONTH FROM created_at)::int AS m, COUNT(*)
		FROM users
		GROUP BY y, m
		ORDER BY y DESC, m DESC
		LIMIT $1`

	revenueTrendSQL = `SELECT EXTRACT(YEAR FROM created_at)::int AS y, EXTRACT(MONTH FROM created_at)::int AS m, SUM(total)
		FROM orders
		WHERE payment_status = 'completed'
		GROUP BY y, m
		ORDER BY y DESC, m DESC
		LIMIT $1`
)

var _ admin.StatsStore = (*StatsRepository)(nil)

// StatsRepository runs the dashboard aggregates.
type StatsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository returns a StatsRepository that uses the given pool.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

func (r *StatsRepository) count(ctx context.Context, query string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *StatsRepository) CountShoppers(ctx context.Context) (int, error) {
	return r.count(ctx, countShoppersSQL)
}

func (r *StatsRepository) CountOrders(ctx context.Context) (int, error) {
	return r.count(ctx, countOrdersSQL)
}

func (r *StatsRepository) CountProducts(ctx context.Context) (int, error) {
	return r.count(ctx, countLiveProductsSQL)
}

func (r *StatsRepository) CompletedRevenue(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := r.pool.QueryRow(ctx, completedRevenueSQL).Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (r *StatsRepository) RecentOrders(ctx context.Context, limit int) ([]admin.OrderRow, error) {
	rows, err := r.pool.Query(ctx, recentOrdersSQL, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (admin.OrderRow, error) {
		return scanOrderRow(row, nil)
	})
}

func (r *StatsRepository) TopProducts(ctx context.Context, limit int) ([]admin.TopProduct, error) {
	rows, err := r.pool.Query(ctx, topProductsSQL, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (admin.TopProduct, error) {
		var t admin.TopProduct
		err := row.Scan(&t.ProductID, &t.Name, &t.TotalSold, &t.TotalRevenue)
		return t, err
	})
}

func (r *StatsRepository) UserGrowth(ctx context.Context, months int) ([]admin.MonthCount, error) {
	rows, err := r.pool.Query(ctx, userGrowthSQL, months)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (admin.MonthCount, error) {
		var (
			m     admin.MonthCount
			month int
		)
		err := row.Scan(&m.Year, &month, &m.Count)
		m.Month = time.Month(month)
		return m, err
	})
}

func (r *StatsRepository) RevenueTrend(ctx context.Context, months int) ([]admin.MonthRevenue, error) {
	rows, err := r.pool.Query(ctx, revenueTrendSQL, months)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (admin.MonthRevenue, error) {
		var (
			m     admin.MonthRevenue
			month int
		)
		err := row.Scan(&m.Year, &month, &m.Total)
		m.Month = time.Month(month)
		return m, err
	})
}
