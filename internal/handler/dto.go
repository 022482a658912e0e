package handler

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/admin"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
)

func money(d decimal.Decimal) float64 { return d.InexactFloat64() }

func optMoney(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	v := d.Decimal.InexactFloat64()
	return &v
}

type productJSON struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	Category    string    `json:"category"`
	Stock       int       `json:"stock"`
	IsDeleted   bool      `json:"isDeleted,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// imageURL prefixes relative image paths with the configured base.
func (h *Handler) imageURL(path string) string {
	if path == "" || h.cfg.ImageBaseURL == "" || strings.Contains(path, "://") {
		return path
	}
	return strings.TrimRight(h.cfg.ImageBaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func (h *Handler) productOut(p product.Product) productJSON {
	return productJSON{
		ID:          p.ID,
		Name:        p.Name,
		Price:       money(p.Price),
		Description: p.Description,
		Image:       h.imageURL(p.Image),
		Category:    p.Category,
		Stock:       p.Stock,
		IsDeleted:   p.IsDeleted,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (h *Handler) productsOut(ps []product.Product) []productJSON {
	out := make([]productJSON, len(ps))
	for i, p := range ps {
		out[i] = h.productOut(p)
	}
	return out
}

type badgeJSON struct {
	Code          string        `json:"code"`
	DiscountType  discount.Type `json:"discountType"`
	DiscountValue float64       `json:"discountValue"`
}

type listingJSON struct {
	productJSON
	AvgRating   float64    `json:"avgRating"`
	ReviewCount int        `json:"reviewCount"`
	Discount    *badgeJSON `json:"discount"`
}

func (h *Handler) listingOut(l product.Listing) listingJSON {
	out := listingJSON{
		productJSON: h.productOut(l.Product),
		AvgRating:   l.AvgRating,
		ReviewCount: l.ReviewCount,
	}
	if b := l.Discount; b != nil {
		out.Discount = &badgeJSON{Code: b.Code, DiscountType: b.Type, DiscountValue: money(b.Value)}
	}
	return out
}

type reviewJSON struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username,omitempty"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

func reviewOut(r product.Review) reviewJSON {
	return reviewJSON{
		ID:        r.ID,
		ProductID: r.ProductID,
		UserID:    r.UserID,
		Username:  r.Username,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
	}
}

type quoteItemJSON struct {
	ProductID       string  `json:"productId"`
	OriginalPrice   float64 `json:"originalPrice"`
	DiscountedPrice float64 `json:"discountedPrice"`
}

type quoteJSON struct {
	Code              string          `json:"code"`
	DiscountType      discount.Type   `json:"discountType"`
	DiscountValue     float64         `json:"discountValue"`
	MaxDiscountAmount *float64        `json:"maxDiscountAmount,omitempty"`
	Items             []quoteItemJSON `json:"discountedItems"`
	DiscountAmount    float64         `json:"discountAmount"`
	NewSubtotal       float64         `json:"newSubtotal"`
}

func quoteOut(q *discount.Quote) quoteJSON {
	items := make([]quoteItemJSON, len(q.Items))
	for i, it := range q.Items {
		items[i] = quoteItemJSON{
			ProductID:       it.ProductID,
			OriginalPrice:   money(it.CatalogPrice),
			DiscountedPrice: money(it.DiscountedPrice),
		}
	}
	return quoteJSON{
		Code:              q.Code,
		DiscountType:      q.Type,
		DiscountValue:     money(q.Value),
		MaxDiscountAmount: optMoney(q.MaxDiscountAmount),
		Items:             items,
		DiscountAmount:    money(q.DiscountAmount),
		NewSubtotal:       money(q.NewSubtotal),
	}
}

type orderItemJSON struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Name      string  `json:"name,omitempty"`
	Image     string  `json:"image,omitempty"`
}

type appliedJSON struct {
	Code   string  `json:"code"`
	Amount float64 `json:"amount"`
}

type orderJSON struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Items           []orderItemJSON `json:"items"`
	ShippingAddress order.Address   `json:"shippingAddress"`
	Subtotal        float64         `json:"subtotal"`
	Discount        []appliedJSON   `json:"discount,omitempty"`
	Total           float64         `json:"total"`
	PaymentStatus   order.Status    `json:"paymentStatus"`
	RazorpayOrderID string          `json:"razorpayOrderId,omitempty"`
	PaymentID       string          `json:"paymentId,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func (h *Handler) orderOut(o *order.Order) orderJSON {
	items := make([]orderItemJSON, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemJSON{ProductID: it.ProductID, Quantity: it.Quantity, Price: money(it.Price)}
		if p := it.Product; p != nil {
			items[i].Name = p.Name
			items[i].Image = h.imageURL(p.Image)
		}
	}
	var applied []appliedJSON
	for _, d := range o.Discounts {
		applied = append(applied, appliedJSON{Code: d.Code, Amount: money(d.Amount)})
	}
	return orderJSON{
		ID:              o.ID,
		UserID:          o.UserID,
		Items:           items,
		ShippingAddress: o.ShippingAddress,
		Subtotal:        money(o.Subtotal),
		Discount:        applied,
		Total:           money(o.Total),
		PaymentStatus:   o.Status,
		RazorpayOrderID: o.GatewayOrderID,
		PaymentID:       o.PaymentID,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

type cartLineJSON struct {
	ProductID string       `json:"productId"`
	Quantity  int          `json:"quantity"`
	Product   *productJSON `json:"product,omitempty"`
}

type cartJSON struct {
	UserID string         `json:"userId"`
	Items  []cartLineJSON `json:"items"`
}

func (h *Handler) cartOut(c *cart.Cart) cartJSON {
	lines := make([]cartLineJSON, len(c.Lines))
	for i, l := range c.Lines {
		lines[i] = cartLineJSON{ProductID: l.ProductID, Quantity: l.Quantity}
		if l.Product != nil {
			p := h.productOut(*l.Product)
			lines[i].Product = &p
		}
	}
	return cartJSON{UserID: c.UserID, Items: lines}
}

type userJSON struct {
	ID        string        `json:"id"`
	Email     string        `json:"email"`
	Username  string        `json:"username"`
	Role      user.Role     `json:"role"`
	Address   *user.Address `json:"address,omitempty"`
	IsBanned  bool          `json:"isBanned"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

func userOut(u *user.User) userJSON {
	return userJSON{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		Role:      u.Role,
		Address:   u.Address,
		IsBanned:  u.IsBanned,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type sessionJSON struct {
	Token string   `json:"token"`
	User  userJSON `json:"user"`
}

type discountJSON struct {
	ID                 string        `json:"id"`
	Code               string        `json:"code"`
	Description        string        `json:"description"`
	DiscountType       discount.Type `json:"discountType"`
	DiscountValue      float64       `json:"discountValue"`
	MinOrderValue      *float64      `json:"minOrderValue,omitempty"`
	MaxDiscountAmount  *float64      `json:"maxDiscountAmount,omitempty"`
	StartDate          time.Time     `json:"startDate"`
	EndDate            *time.Time    `json:"endDate,omitempty"`
	IsActive           bool          `json:"isActive"`
	ApplicableProducts []string      `json:"applicableProducts"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

func discountOut(d *discount.Discount) discountJSON {
	applicable := d.ApplicableProducts
	if applicable == nil {
		applicable = []string{}
	}
	return discountJSON{
		ID:                 d.ID,
		Code:               d.Code,
		Description:        d.Description,
		DiscountType:       d.Type,
		DiscountValue:      money(d.Value),
		MinOrderValue:      optMoney(d.MinOrderValue),
		MaxDiscountAmount:  optMoney(d.MaxDiscountAmount),
		StartDate:          d.StartDate,
		EndDate:            d.EndDate,
		IsActive:           d.IsActive,
		ApplicableProducts: applicable,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

type pageJSON[T any] struct {
	Items       []T `json:"items"`
	Total       int `json:"total"`
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
}

func pageOut[S, T any](p admin.Paged[S], conv func(S) T) pageJSON[T] {
	items := make([]T, len(p.Items))
	for i, it := range p.Items {
		items[i] = conv(it)
	}
	return pageJSON[T]{Items: items, Total: p.Total, CurrentPage: p.CurrentPage, TotalPages: p.TotalPages}
}

type adminOrderJSON struct {
	orderJSON
	UserEmail string `json:"userEmail"`
	Username  string `json:"username"`
}

func (h *Handler) adminOrderOut(r admin.OrderRow) adminOrderJSON {
	return adminOrderJSON{orderJSON: h.orderOut(&r.Order), UserEmail: r.UserEmail, Username: r.Username}
}

type topProductJSON struct {
	ProductID    string  `json:"productId"`
	Name         string  `json:"name"`
	TotalSold    int     `json:"totalSold"`
	TotalRevenue float64 `json:"totalRevenue"`
}

type monthCountJSON struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

type monthRevenueJSON struct {
	Month string  `json:"month"`
	Total float64 `json:"total"`
}

type dashboardJSON struct {
	Stats struct {
		Users    int     `json:"users"`
		Orders   int     `json:"orders"`
		Revenue  float64 `json:"revenue"`
		Products int     `json:"products"`
	} `json:"stats"`
	RecentOrders []adminOrderJSON   `json:"recentOrders"`
	TopProducts  []topProductJSON   `json:"topProducts"`
	UserGrowth   []monthCountJSON   `json:"userGrowth"`
	RevenueTrend []monthRevenueJSON `json:"revenueTrend"`
}

func (h *Handler) dashboardOut(d *admin.Dashboard) dashboardJSON {
	var out dashboardJSON
	out.Stats.Users = d.Users
	out.Stats.Orders = d.Orders
	out.Stats.Revenue = money(d.Revenue)
	out.Stats.Products = d.Products

	out.RecentOrders = make([]adminOrderJSON, len(d.RecentOrders))
	for i, r := range d.RecentOrders {
		out.RecentOrders[i] = h.adminOrderOut(r)
	}
	out.TopProducts = make([]topProductJSON, len(d.TopProducts))
	for i, p := range d.TopProducts {
		out.TopProducts[i] = topProductJSON{
			ProductID:    p.ProductID,
			Name:         p.Name,
			TotalSold:    p.TotalSold,
			TotalRevenue: money(p.TotalRevenue),
		}
	}
	out.UserGrowth = make([]monthCountJSON, len(d.UserGrowth))
	for i, m := range d.UserGrowth {
		out.UserGrowth[i] = monthCountJSON{Month: m.Month, Count: m.Count}
	}
	out.RevenueTrend = make([]monthRevenueJSON, len(d.RevenueTrend))
	for i, m := range d.RevenueTrend {
		out.RevenueTrend[i] = monthRevenueJSON{Month: m.Month, Total: money(m.Total)}
	}
	return out
}
