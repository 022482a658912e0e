// Package handler exposes the storefront REST API on a gin engine.
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xenking/storefront/internal/domain/admin"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
)

// Catalog serves product browsing and reviews.
type Catalog interface {
	List(ctx context.Context) ([]product.Listing, error)
	Search(ctx context.Context, query string) ([]product.Product, error)
	Get(ctx context.Context, id string) (*product.Product, error)
	Categories(ctx context.Context) ([]string, error)
	Reviews(ctx context.Context, productID string) ([]product.Review, error)
	AddReview(ctx context.Context, productID, userID string, rating int, comment string) (*product.Review, error)
}

// Quoter previews a single discount code against a cart.
type Quoter interface {
	Quote(ctx context.Context, req discount.Request) (*discount.Quote, error)
}

// Orders drives checkout and order history.
type Orders interface {
	Create(ctx context.Context, userID string, req order.CheckoutRequest) (*order.CheckoutResult, error)
	Confirm(ctx context.Context, req order.ConfirmRequest) (*order.Order, error)
	List(ctx context.Context, userID string) ([]order.Order, error)
	Get(ctx context.Context, userID, orderID string) (*order.Order, error)
}

// Carts manages shopping carts.
type Carts interface {
	Add(ctx context.Context, userID, productID string, qty int) (*cart.Cart, error)
	Get(ctx context.Context, userID string) (*cart.Cart, error)
}

// Wishlists manages wishlists.
type Wishlists interface {
	Get(ctx context.Context, userID string) ([]product.Product, error)
	Add(ctx context.Context, userID, productID string) ([]product.Product, error)
	Remove(ctx context.Context, userID, productID string) ([]product.Product, error)
}

// Accounts manages registration, sessions and profiles.
type Accounts interface {
	Register(ctx context.Context, email, username, password string) (*user.Session, error)
	Login(ctx context.Context, email, password string) (*user.Session, error)
	LoginExternal(ctx context.Context, p user.ExternalProfile) (*user.Session, error)
	Logout(ctx context.Context, token string) error
	Get(ctx context.Context, id string) (*user.User, error)
	Update(ctx context.Context, id string, p user.Patch) (*user.User, error)
}

// SignIn is a third-party OAuth authorization code flow.
type SignIn interface {
	AuthCodeURL(ctx context.Context) (string, error)
	Exchange(ctx context.Context, state, code string) (*user.ExternalProfile, error)
}

// Authenticator resolves bearer tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Identity, error)
}

// Admin is the back office.
type Admin interface {
	Dashboard(ctx context.Context) (*admin.Dashboard, error)

	Users(ctx context.Context) ([]user.User, error)
	UpdateUser(ctx context.Context, id string, p admin.UserPatch) (*user.User, error)
	DeleteUser(ctx context.Context, id string) error

	Products(ctx context.Context, page admin.Page) (admin.Paged[product.Product], error)
	CreateProduct(ctx context.Context, p admin.ProductPatch) (*product.Product, error)
	UpdateProduct(ctx context.Context, id string, p admin.ProductPatch) (*product.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	Categories(ctx context.Context) ([]string, error)
	BulkUpdateProducts(ctx context.Context, ids []string, p admin.ProductPatch) (int64, error)

	Orders(ctx context.Context, page admin.Page) (admin.Paged[admin.OrderRow], error)
	UpdateOrderStatus(ctx context.Context, id string, to order.Status) (*order.Order, error)
	DeleteOrder(ctx context.Context, id string) error
	BulkUpdateOrderStatus(ctx context.Context, ids []string, to order.Status) (int64, error)

	Discounts(ctx context.Context) ([]discount.Discount, error)
	CreateDiscount(ctx context.Context, p admin.DiscountPatch) (*discount.Discount, error)
	UpdateDiscount(ctx context.Context, id string, p admin.DiscountPatch) (*discount.Discount, error)
	DeleteDiscount(ctx context.Context, id string) error
	BulkSetDiscountsActive(ctx context.Context, ids []string, active bool) (int64, error)
}

// Config holds non-dependency handler settings.
type Config struct {
	// Debug exposes internal error text in responses and runs gin in debug mode.
	Debug bool
	// ImageBaseURL is prepended to relative product image paths.
	ImageBaseURL string
	// SignInRedirect receives the session token as ?token= after an OAuth
	// sign-in. When empty the callback answers with JSON.
	SignInRedirect string
}

// Deps are the services behind the API.
type Deps struct {
	Catalog   Catalog
	Discounts Quoter
	Orders    Orders
	Carts     Carts
	Wishlists Wishlists
	Accounts  Accounts
	Sessions  Authenticator
	Admin     Admin
	// Google is optional; its routes are registered only when set.
	Google SignIn
}

// Handler binds HTTP routes to domain services.
type Handler struct {
	Deps
	cfg Config
}

// New creates a Handler.
func New(cfg Config, deps Deps) *Handler {
	return &Handler{Deps: deps, cfg: cfg}
}

// Probes are served outside /api without authentication.
type Probes struct {
	Live  http.HandlerFunc
	Ready http.HandlerFunc
}

// Router builds the gin engine with every route registered.
func (h *Handler) Router(probes Probes) *gin.Engine {
	if !h.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(routeLabel())
	r.NoRoute(func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusNotFound, errorBody{Code: http.StatusNotFound, Message: "route not found", Error: "NOT_FOUND"})
	})

	if probes.Live != nil {
		r.GET("/livez", gin.WrapF(probes.Live))
	}
	if probes.Ready != nil {
		r.GET("/readyz", gin.WrapF(probes.Ready))
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	users := api.Group("/users")
	users.POST("/register", h.register)
	users.POST("/login", h.login)
	if h.Google != nil {
		users.GET("/auth/google", h.googleAuth)
		users.GET("/auth/google/callback", h.googleCallback)
	}

	authed := api.Group("", h.authenticate())
	authed.POST("/users/logout", h.logout)
	authed.GET("/users/:id", h.getUser)
	authed.PUT("/users/:id", h.updateUser)

	authed.GET("/products", h.listProducts)
	authed.GET("/products/search", h.searchProducts)
	authed.GET("/products/categories", h.categories)
	authed.POST("/products/validate", h.validateDiscount)
	authed.GET("/products/:productId", h.getProduct)
	authed.GET("/products/:productId/reviews", h.listReviews)
	authed.POST("/products/:productId/reviews", h.addReview)

	authed.POST("/orders/create", h.createOrder)
	authed.POST("/orders/verify", h.verifyPayment)
	authed.GET("/orders/user", h.userOrders)
	authed.GET("/orders/:orderId", h.getOrder)

	authed.POST("/cart", h.addToCart)
	authed.GET("/cart", h.getCart)

	authed.GET("/wishlist", h.getWishlist)
	authed.POST("/wishlist/add", h.addToWishlist)
	authed.POST("/wishlist/remove", h.removeFromWishlist)

	adm := api.Group("/admin", h.authenticate(), requireAdmin())
	adm.GET("/dashboard", h.dashboard)
	adm.GET("/users", h.adminUsers)
	adm.PUT("/users/:userId", h.adminUpdateUser)
	adm.DELETE("/users/:userId", h.adminDeleteUser)
	adm.GET("/products", h.adminProducts)
	adm.POST("/products", h.adminCreateProduct)
	adm.POST("/products/bulk", h.adminBulkProducts)
	adm.PUT("/products/:productId", h.adminUpdateProduct)
	adm.DELETE("/products/:productId", h.adminDeleteProduct)
	adm.GET("/categories", h.adminCategories)
	adm.GET("/orders", h.adminOrders)
	adm.POST("/orders/bulk", h.adminBulkOrders)
	adm.PUT("/orders/:orderId", h.adminUpdateOrder)
	adm.DELETE("/orders/:orderId", h.adminDeleteOrder)
	adm.GET("/discounts", h.adminDiscounts)
	adm.POST("/discounts", h.adminCreateDiscount)
	adm.POST("/discounts/bulk", h.adminBulkDiscounts)
	adm.PUT("/discounts/:discountId", h.adminUpdateDiscount)
	adm.DELETE("/discounts/:discountId", h.adminDeleteDiscount)

	return r
}
