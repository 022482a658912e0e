package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/admin"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
)

const productColumns = `id, name, price, description, image, category, stock, is_deleted, created_at, updated_at`

const (
	listRatedSQL = `SELECT p.id, p.name, p.price, p.description, p.image, p.category, p.stock,
			p.is_deleted, p.created_at, p.updated_at,
			COALESCE(AVG(r.rating), 0)::float8, COUNT(r.id)
		FROM products p
		LEFT JOIN reviews r ON r.product_id = p.id
		WHERE NOT p.is_deleted
		GROUP BY p.id
		ORDER BY p.created_at DESC, p.id`

	searchProductsSQL = `SELECT ` + productColumns + `
		FROM products
		WHERE NOT is_deleted AND (name ILIKE $1 OR description ILIKE $1 OR category ILIKE $1)
		ORDER BY name`

	getProductSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1 AND NOT is_deleted`

	categoriesSQL = `SELECT DISTINCT category FROM products
		WHERE NOT is_deleted AND category <> '' ORDER BY category`

	findPricesSQL = `SELECT id, price, is_deleted FROM products WHERE id = ANY($1)`

	findSummariesSQL = `SELECT id, name, image, price FROM products WHERE id = ANY($1)`

	listReviewsSQL = `SELECT r.id, r.product_id, r.user_id, COALESCE(u.username, ''), r.rating, r.comment, r.created_at
		FROM reviews r
		LEFT JOIN users u ON u.id = r.user_id
		WHERE r.product_id = $1
		ORDER BY r.created_at DESC`

	addReviewSQL = `INSERT INTO reviews (id, product_id, user_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	pageProductsSQL = `SELECT ` + productColumns + `, COUNT(*) OVER ()
		FROM products
		WHERE NOT is_deleted
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2`

	countLiveProductsSQL = `SELECT COUNT(*) FROM products WHERE NOT is_deleted`

	createProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	updateProductSQL = `UPDATE products
		SET name = $2, price = $3, description = $4, image = $5, category = $6, stock = $7, updated_at = $8
		WHERE id = $1 AND NOT is_deleted`

	softDeleteProductSQL = `UPDATE products SET is_deleted = TRUE, updated_at = now()
		WHERE id = $1 AND NOT is_deleted`
)

var (
	_ product.Repository   = (*ProductRepository)(nil)
	_ discount.PriceLookup = (*ProductRepository)(nil)
	_ order.ProductLookup  = (*ProductRepository)(nil)
	_ admin.ProductStore   = (*ProductRepository)(nil)
)

// ProductRepository stores the catalog and its reviews.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Price, &p.Description, &p.Image, &p.Category,
		&p.Stock, &p.IsDeleted, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

// ListRated returns live products with their average rating, newest first.
func (r *ProductRepository) ListRated(ctx context.Context) ([]product.Rated, error) {
	rows, err := r.pool.Query(ctx, listRatedSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.Rated, error) {
		var p product.Rated
		err := row.Scan(
			&p.ID, &p.Name, &p.Price, &p.Description, &p.Image, &p.Category,
			&p.Stock, &p.IsDeleted, &p.CreatedAt, &p.UpdatedAt,
			&p.AvgRating, &p.ReviewCount,
		)
		return p, err
	})
}

// Search matches query case-insensitively against name, description and
// category.
func (r *ProductRepository) Search(ctx context.Context, query string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, searchProductsSQL, "%"+escapeLike(query)+"%")
	if err != nil {
		return nil, errors.Wrap(err, "search products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

// GetByID returns a live product.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	return &p, nil
}

// Categories returns distinct non-empty categories of live products.
func (r *ProductRepository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, categoriesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// FindPrices returns current prices of ids, flagging soft deleted products.
func (r *ProductRepository) FindPrices(ctx context.Context, ids []string) ([]discount.CatalogPrice, error) {
	rows, err := r.pool.Query(ctx, findPricesSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "find prices")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (discount.CatalogPrice, error) {
		var c discount.CatalogPrice
		err := row.Scan(&c.ProductID, &c.Price, &c.IsDeleted)
		return c, err
	})
}

// FindSummaries returns display data for ids, deleted products included.
func (r *ProductRepository) FindSummaries(ctx context.Context, ids []string) ([]order.ProductSummary, error) {
	rows, err := r.pool.Query(ctx, findSummariesSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "find product summaries")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.ProductSummary, error) {
		var s order.ProductSummary
		err := row.Scan(&s.ID, &s.Name, &s.Image, &s.Price)
		return s, err
	})
}

// Reviews returns the product's reviews, newest first.
func (r *ProductRepository) Reviews(ctx context.Context, productID string) ([]product.Review, error) {
	rows, err := r.pool.Query(ctx, listReviewsSQL, productID)
	if err != nil {
		return nil, errors.Wrap(err, "list reviews")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.Review, error) {
		var rv product.Review
		err := row.Scan(&rv.ID, &rv.ProductID, &rv.UserID, &rv.Username, &rv.Rating, &rv.Comment, &rv.CreatedAt)
		return rv, err
	})
}

// AddReview stores a review.
func (r *ProductRepository) AddReview(ctx context.Context, rv *product.Review) error {
	_, err := r.pool.Exec(ctx, addReviewSQL, rv.ID, rv.ProductID, rv.UserID, rv.Rating, rv.Comment, rv.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "insert review")
	}
	return nil
}

// ListProducts returns one page of live products and the total count.
func (r *ProductRepository) ListProducts(ctx context.Context, limit, offset int) ([]product.Product, int, error) {
	rows, err := r.pool.Query(ctx, pageProductsSQL, limit, offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, "page products")
	}
	var total int
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.Product, error) {
		var p product.Product
		err := row.Scan(
			&p.ID, &p.Name, &p.Price, &p.Description, &p.Image, &p.Category,
			&p.Stock, &p.IsDeleted, &p.CreatedAt, &p.UpdatedAt, &total,
		)
		return p, err
	})
	if err != nil {
		return nil, 0, errors.Wrap(err, "scan products")
	}
	if len(items) == 0 {
		// The window count is unavailable past the last page.
		if err := r.pool.QueryRow(ctx, countLiveProductsSQL).Scan(&total); err != nil {
			return nil, 0, errors.Wrap(err, "count products")
		}
	}
	return items, total, nil
}

// CreateProduct inserts a product.
func (r *ProductRepository) CreateProduct(ctx context.Context, p *product.Product) error {
	_, err := r.pool.Exec(ctx, createProductSQL,
		p.ID, p.Name, p.Price, p.Description, p.Image, p.Category,
		p.Stock, p.IsDeleted, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "create product %q", p.ID)
	}
	return nil
}

// UpdateProduct overwrites the editable fields of a live product.
func (r *ProductRepository) UpdateProduct(ctx context.Context, p *product.Product) error {
	tag, err := r.pool.Exec(ctx, updateProductSQL,
		p.ID, p.Name, p.Price, p.Description, p.Image, p.Category, p.Stock, p.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "update product %q", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// SoftDeleteProduct marks a product deleted and reports whether it existed.
func (r *ProductRepository) SoftDeleteProduct(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, softDeleteProductSQL, id)
	if err != nil {
		return false, errors.Wrapf(err, "delete product %q", id)
	}
	return tag.RowsAffected() > 0, nil
}

// BulkUpdateProducts applies the set fields of patch to every live product
// in ids.
func (r *ProductRepository) BulkUpdateProducts(ctx context.Context, ids []string, patch admin.ProductPatch) (int64, error) {
	sets := []string{"updated_at = now()"}
	args := []any{ids}
	add := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Price != nil {
		add("price", *patch.Price)
	}
	if patch.Category != nil {
		add("category", strings.TrimSpace(*patch.Category))
	}
	if patch.Stock != nil {
		add("stock", *patch.Stock)
	}

	query := `UPDATE products SET ` + strings.Join(sets, ", ") + ` WHERE id = ANY($1) AND NOT is_deleted`
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "bulk update products")
	}
	return tag.RowsAffected(), nil
}
