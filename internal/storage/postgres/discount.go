package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/admin"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/product"
)

const discountColumns = `id, code, description, discount_type, discount_value, min_order_value,
	max_discount_amount, start_date, end_date, is_active, applicable_products, created_at, updated_at`

const (
	findUsableDiscountSQL = `SELECT ` + discountColumns + `
		FROM discounts
		WHERE code = $1 AND is_active AND start_date <= $2 AND (end_date IS NULL OR end_date >= $2)`

	listUsableDiscountsSQL = `SELECT ` + discountColumns + `
		FROM discounts
		WHERE is_active AND start_date <= $1 AND (end_date IS NULL OR end_date >= $1)
		ORDER BY created_at, id`

	listDiscountsSQL = `SELECT ` + discountColumns + ` FROM discounts ORDER BY created_at DESC, id`

	getDiscountSQL = `SELECT ` + discountColumns + ` FROM discounts WHERE id = $1`

	createDiscountSQL = `INSERT INTO discounts (` + discountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	updateDiscountSQL = `UPDATE discounts
		SET code = $2, description = $3, discount_type = $4, discount_value = $5,
			min_order_value = $6, max_discount_amount = $7, start_date = $8, end_date = $9,
			is_active = $10, applicable_products = $11, updated_at = $12
		WHERE id = $1`

	deleteDiscountSQL = `DELETE FROM discounts WHERE id = $1`

	bulkSetActiveSQL = `UPDATE discounts SET is_active = $2, updated_at = now() WHERE id = ANY($1)`

	upsertDiscountSQL = `INSERT INTO discounts (` + discountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (code) DO NOTHING`
)

var (
	_ discount.Repository    = (*DiscountRepository)(nil)
	_ product.DiscountSource = (*DiscountRepository)(nil)
	_ admin.DiscountStore    = (*DiscountRepository)(nil)
)

// DiscountRepository stores discount definitions.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

func scanDiscount(row pgx.CollectableRow) (discount.Discount, error) {
	var (
		d   discount.Discount
		typ string
	)
	err := row.Scan(
		&d.ID, &d.Code, &d.Description, &typ, &d.Value, &d.MinOrderValue,
		&d.MaxDiscountAmount, &d.StartDate, &d.EndDate, &d.IsActive,
		&d.ApplicableProducts, &d.CreatedAt, &d.UpdatedAt,
	)
	d.Type = discount.Type(typ)
	return d, err
}

func applicableOf(d *discount.Discount) []string {
	if d.ApplicableProducts == nil {
		return []string{}
	}
	return d.ApplicableProducts
}

func discountArgs(d *discount.Discount) []any {
	return []any{
		d.ID, d.Code, d.Description, string(d.Type), d.Value, d.MinOrderValue,
		d.MaxDiscountAmount, d.StartDate, d.EndDate, d.IsActive, applicableOf(d),
		d.CreatedAt, d.UpdatedAt,
	}
}

// FindUsable returns the discount with code that is usable at now.
func (r *DiscountRepository) FindUsable(ctx context.Context, code string, now time.Time) (*discount.Discount, error) {
	rows, err := r.pool.Query(ctx, findUsableDiscountSQL, code, now)
	if err != nil {
		return nil, errors.Wrapf(err, "find discount %q", code)
	}
	d, err := pgx.CollectExactlyOneRow(rows, scanDiscount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find discount %q", code)
	}
	return &d, nil
}

// ListUsable returns every discount usable at now, oldest first.
func (r *DiscountRepository) ListUsable(ctx context.Context, now time.Time) ([]discount.Discount, error) {
	rows, err := r.pool.Query(ctx, listUsableDiscountsSQL, now)
	if err != nil {
		return nil, errors.Wrap(err, "list usable discounts")
	}
	return pgx.CollectRows(rows, scanDiscount)
}

// ListDiscounts returns all discounts, newest first.
func (r *DiscountRepository) ListDiscounts(ctx context.Context) ([]discount.Discount, error) {
	rows, err := r.pool.Query(ctx, listDiscountsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list discounts")
	}
	return pgx.CollectRows(rows, scanDiscount)
}

// GetDiscount returns a discount by id.
func (r *DiscountRepository) GetDiscount(ctx context.Context, id string) (*discount.Discount, error) {
	rows, err := r.pool.Query(ctx, getDiscountSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get discount %q", id)
	}
	d, err := pgx.CollectExactlyOneRow(rows, scanDiscount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get discount %q", id)
	}
	return &d, nil
}

// CreateDiscount inserts d, returning discount.ErrExists on a taken code.
func (r *DiscountRepository) CreateDiscount(ctx context.Context, d *discount.Discount) error {
	if _, err := r.pool.Exec(ctx, createDiscountSQL, discountArgs(d)...); err != nil {
		if isUniqueViolation(err) {
			return discount.ErrExists
		}
		return errors.Wrapf(err, "create discount %q", d.Code)
	}
	return nil
}

// UpdateDiscount overwrites d.
func (r *DiscountRepository) UpdateDiscount(ctx context.Context, d *discount.Discount) error {
	tag, err := r.pool.Exec(ctx, updateDiscountSQL,
		d.ID, d.Code, d.Description, string(d.Type), d.Value, d.MinOrderValue,
		d.MaxDiscountAmount, d.StartDate, d.EndDate, d.IsActive, applicableOf(d), d.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return discount.ErrExists
		}
		return errors.Wrapf(err, "update discount %q", d.ID)
	}
	if tag.RowsAffected() == 0 {
		return discount.ErrNotFound
	}
	return nil
}

// DeleteDiscount removes a discount and reports whether it existed.
func (r *DiscountRepository) DeleteDiscount(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, deleteDiscountSQL, id)
	if err != nil {
		return false, errors.Wrapf(err, "delete discount %q", id)
	}
	return tag.RowsAffected() > 0, nil
}

// BulkSetActive sets is_active on every discount in ids.
func (r *DiscountRepository) BulkSetActive(ctx context.Context, ids []string, active bool) (int64, error) {
	tag, err := r.pool.Exec(ctx, bulkSetActiveSQL, ids, active)
	if err != nil {
		return 0, errors.Wrap(err, "bulk set active")
	}
	return tag.RowsAffected(), nil
}

// ImportBatch inserts discounts in one round trip, skipping codes that
// already exist. It returns the number of inserted rows.
func (r *DiscountRepository) ImportBatch(ctx context.Context, ds []discount.Discount) (int64, error) {
	batch := &pgx.Batch{}
	for i := range ds {
		batch.Queue(upsertDiscountSQL, discountArgs(&ds[i])...)
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	var inserted int64
	for range ds {
		tag, err := br.Exec()
		if err != nil {
			return inserted, errors.Wrap(err, "import discount batch")
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}
