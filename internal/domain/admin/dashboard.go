package admin

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	recentOrdersLimit = 5
	topProductsLimit  = 5
	trendMonths       = 6
)

// MonthPoint is a labeled counter in a trend series.
type MonthPoint struct {
	Month string
	Count int
}

// RevenuePoint is a labeled revenue sum in a trend series.
type RevenuePoint struct {
	Month string
	Total decimal.Decimal
}

// Dashboard summarizes store activity.
type Dashboard struct {
	Users        int
	Orders       int
	Revenue      decimal.Decimal
	Products     int
	RecentOrders []OrderRow
	TopProducts  []TopProduct
	UserGrowth   []MonthPoint
	RevenueTrend []RevenuePoint
}

func monthLabel(year int, month time.Month) string {
	return fmt.Sprintf("%d/%d", int(month), year)
}

func wrapQuery(err error, name string) error {
	if err != nil {
		return errors.Wrap(err, name)
	}
	return nil
}

// Dashboard runs the aggregate queries concurrently.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	var (
		d       Dashboard
		growth  []MonthCount
		revenue []MonthRevenue
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.Users, err = s.stats.CountShoppers(ctx)
		return wrapQuery(err, "count users")
	})
	g.Go(func() (err error) {
		d.Orders, err = s.stats.CountOrders(ctx)
		return wrapQuery(err, "count orders")
	})
	g.Go(func() (err error) {
		d.Revenue, err = s.stats.CompletedRevenue(ctx)
		return wrapQuery(err, "revenue")
	})
	g.Go(func() (err error) {
		d.Products, err = s.stats.CountProducts(ctx)
		return wrapQuery(err, "count products")
	})
	g.Go(func() (err error) {
		d.RecentOrders, err = s.stats.RecentOrders(ctx, recentOrdersLimit)
		return wrapQuery(err, "recent orders")
	})
	g.Go(func() (err error) {
		d.TopProducts, err = s.stats.TopProducts(ctx, topProductsLimit)
		return wrapQuery(err, "top products")
	})
	g.Go(func() (err error) {
		growth, err = s.stats.UserGrowth(ctx, trendMonths)
		return wrapQuery(err, "user growth")
	})
	g.Go(func() (err error) {
		revenue, err = s.stats.RevenueTrend(ctx, trendMonths)
		return wrapQuery(err, "revenue trend")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.Reverse(growth)
	d.UserGrowth = make([]MonthPoint, len(growth))
	for i, m := range growth {
		d.UserGrowth[i] = MonthPoint{Month: monthLabel(m.Year, m.Month), Count: m.Count}
	}
	slices.Reverse(revenue)
	d.RevenueTrend = make([]RevenuePoint, len(revenue))
	for i, m := range revenue {
		d.RevenueTrend[i] = RevenuePoint{Month: monthLabel(m.Year, m.Month), Total: m.Total}
	}
	return &d, nil
}
