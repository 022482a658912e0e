package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/wishlist"
)

const (
	addCartQuantitySQL = `INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`

	cartLinesSQL = `SELECT c.quantity, p.id, p.name, p.price, p.description, p.image, p.category,
			p.stock, p.is_deleted, p.created_at, p.updated_at
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.added_at, p.id`

	addWishlistSQL = `INSERT INTO wishlist_items (user_id, product_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	// The CTE's delete is invisible to the outer query, so EXISTS reports
	// whether the user had a wishlist before the removal.
	removeWishlistSQL = `WITH removed AS (
			DELETE FROM wishlist_items WHERE user_id = $1 AND product_id = $2
		)
		SELECT EXISTS (SELECT 1 FROM wishlist_items WHERE user_id = $1)`

	wishlistProductsSQL = `SELECT p.id, p.name, p.price, p.description, p.image, p.category,
			p.stock, p.is_deleted, p.created_at, p.updated_at
		FROM wishlist_items w
		JOIN products p ON p.id = w.product_id
		WHERE w.user_id = $1 AND NOT p.is_deleted
		ORDER BY w.added_at, p.id`
)

var (
	_ cart.Repository     = (*CartRepository)(nil)
	_ wishlist.Repository = (*WishlistRepository)(nil)
)

// CartRepository stores per-user carts.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// AddQuantity inserts the line or increments its quantity.
func (r *CartRepository) AddQuantity(ctx context.Context, userID, productID string, qty int) error {
	if _, err := r.pool.Exec(ctx, addCartQuantitySQL, userID, productID, qty); err != nil {
		return errors.Wrap(err, "add cart line")
	}
	return nil
}

// Lines returns the user's cart lines with product data.
func (r *CartRepository) Lines(ctx context.Context, userID string) ([]cart.Line, error) {
	rows, err := r.pool.Query(ctx, cartLinesSQL, userID)
	if err != nil {
		return nil, errors.Wrap(err, "cart lines")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Line, error) {
		var (
			l cart.Line
			p product.Product
		)
		err := row.Scan(
			&l.Quantity, &p.ID, &p.Name, &p.Price, &p.Description, &p.Image, &p.Category,
			&p.Stock, &p.IsDeleted, &p.CreatedAt, &p.UpdatedAt,
		)
		l.ProductID = p.ID
		l.Product = &p
		return l, err
	})
}

// WishlistRepository stores per-user wishlists.
type WishlistRepository struct {
	pool *pgxpool.Pool
}

// NewWishlistRepository returns a WishlistRepository that uses the given pool.
func NewWishlistRepository(pool *pgxpool.Pool) *WishlistRepository {
	return &WishlistRepository{pool: pool}
}

// Add records the product; repeated adds are no-ops.
func (r *WishlistRepository) Add(ctx context.Context, userID, productID string) error {
	if _, err := r.pool.Exec(ctx, addWishlistSQL, userID, productID); err != nil {
		return errors.Wrap(err, "add wishlist item")
	}
	return nil
}

// Remove drops the product and reports whether the user had a wishlist.
func (r *WishlistRepository) Remove(ctx context.Context, userID, productID string) (bool, error) {
	var existed bool
	if err := r.pool.QueryRow(ctx, removeWishlistSQL, userID, productID).Scan(&existed); err != nil {
		return false, errors.Wrap(err, "remove wishlist item")
	}
	return existed, nil
}

// Products returns the user's wished products that are not deleted.
func (r *WishlistRepository) Products(ctx context.Context, userID string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, wishlistProductsSQL, userID)
	if err != nil {
		return nil, errors.Wrap(err, "wishlist products")
	}
	return pgx.CollectRows(rows, scanProduct)
}
