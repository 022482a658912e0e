package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/admin"
	"github.com/xenking/storefront/internal/domain/order"
)

const orderColumns = `o.id, o.user_id, o.items, o.shipping_address, o.subtotal, o.discounts, o.total,
	o.payment_status, o.razorpay_order_id, o.payment_id, o.created_at, o.updated_at`

const (
	createOrderSQL = `INSERT INTO orders (id, user_id, items, shipping_address, subtotal, discounts, total,
			payment_status, razorpay_order_id, payment_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1`

	setGatewayOrderSQL = `UPDATE orders SET razorpay_order_id = $2, updated_at = now() WHERE id = $1`

	// The status guard makes concurrent settlements race-free: only one
	// caller observes a row update.
	transitionOrderSQL = `UPDATE orders
		SET payment_status = $3, payment_id = COALESCE(NULLIF($4::text, ''), payment_id), updated_at = now()
		WHERE id = $1 AND payment_status = $2`

	bulkTransitionSQL = `UPDATE orders SET payment_status = $3, updated_at = now()
		WHERE id = ANY($1) AND payment_status = $2`

	listUserOrdersSQL = `SELECT ` + orderColumns + ` FROM orders o
		WHERE o.user_id = $1 ORDER BY o.created_at DESC, o.id`

	pageOrdersSQL = `SELECT ` + orderColumns + `, COALESCE(u.email, ''), COALESCE(u.username, ''), COUNT(*) OVER ()
		FROM orders o
		LEFT JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC, o.id
		LIMIT $1 OFFSET $2`

	countOrdersSQL = `SELECT COUNT(*) FROM orders`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`
)

var (
	_ order.Repository = (*OrderRepository)(nil)
	_ admin.OrderStore = (*OrderRepository)(nil)
)

// OrderRepository stores orders. Lines, discounts and the shipping address
// are JSONB documents.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

type orderScanner struct {
	o         order.Order
	status    string
	items     []byte
	address   []byte
	discounts []byte
}

func (s *orderScanner) targets() []any {
	return []any{
		&s.o.ID, &s.o.UserID, &s.items, &s.address, &s.o.Subtotal, &s.discounts, &s.o.Total,
		&s.status, &s.o.GatewayOrderID, &s.o.PaymentID, &s.o.CreatedAt, &s.o.UpdatedAt,
	}
}

func (s *orderScanner) decode() (order.Order, error) {
	s.o.Status = order.Status(s.status)
	if err := json.Unmarshal(s.items, &s.o.Items); err != nil {
		return s.o, errors.Wrap(err, "decode items")
	}
	if err := json.Unmarshal(s.address, &s.o.ShippingAddress); err != nil {
		return s.o, errors.Wrap(err, "decode shipping address")
	}
	if err := json.Unmarshal(s.discounts, &s.o.Discounts); err != nil {
		return s.o, errors.Wrap(err, "decode discounts")
	}
	return s.o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var s orderScanner
	if err := row.Scan(s.targets()...); err != nil {
		return order.Order{}, err
	}
	return s.decode()
}

// Create persists a new order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "marshal order items")
	}
	address, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return errors.Wrap(err, "marshal shipping address")
	}
	applied := o.Discounts
	if applied == nil {
		applied = []order.AppliedDiscount{}
	}
	discounts, err := json.Marshal(applied)
	if err != nil {
		return errors.Wrap(err, "marshal discounts")
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, items, address, o.Subtotal, discounts, o.Total,
		string(o.Status), o.GatewayOrderID, o.PaymentID, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "create order %q", o.ID)
	}
	return nil
}

// Get returns an order by id.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	return &o, nil
}

// SetGatewayOrder records the gateway's reference for the order.
func (r *OrderRepository) SetGatewayOrder(ctx context.Context, id, gatewayOrderID string) error {
	tag, err := r.pool.Exec(ctx, setGatewayOrderSQL, id, gatewayOrderID)
	if err != nil {
		return errors.Wrapf(err, "set gateway order for %q", id)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// Transition moves the order from one status to another if it is still in
// from. An empty paymentID keeps the stored one.
func (r *OrderRepository) Transition(ctx context.Context, id string, from, to order.Status, paymentID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, transitionOrderSQL, id, string(from), string(to), paymentID)
	if err != nil {
		return false, errors.Wrapf(err, "transition order %q", id)
	}
	return tag.RowsAffected() == 1, nil
}

// BulkTransition moves every order in ids that is in from to to.
func (r *OrderRepository) BulkTransition(ctx context.Context, ids []string, from, to order.Status) (int64, error) {
	tag, err := r.pool.Exec(ctx, bulkTransitionSQL, ids, string(from), string(to))
	if err != nil {
		return 0, errors.Wrap(err, "bulk transition orders")
	}
	return tag.RowsAffected(), nil
}

// ListByUser returns the user's orders, most recent first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listUserOrdersSQL, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list user orders")
	}
	return pgx.CollectRows(rows, scanOrder)
}

func scanOrderRow(row pgx.CollectableRow, total *int) (admin.OrderRow, error) {
	var (
		s   orderScanner
		out admin.OrderRow
	)
	targets := append(s.targets(), &out.UserEmail, &out.Username)
	if total != nil {
		targets = append(targets, total)
	}
	if err := row.Scan(targets...); err != nil {
		return out, err
	}
	o, err := s.decode()
	out.Order = o
	return out, err
}

// ListOrders returns one page of orders with buyer contact data.
func (r *OrderRepository) ListOrders(ctx context.Context, limit, offset int) ([]admin.OrderRow, int, error) {
	rows, err := r.pool.Query(ctx, pageOrdersSQL, limit, offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, "page orders")
	}
	var total int
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (admin.OrderRow, error) {
		return scanOrderRow(row, &total)
	})
	if err != nil {
		return nil, 0, errors.Wrap(err, "scan orders")
	}
	if len(items) == 0 {
		if err := r.pool.QueryRow(ctx, countOrdersSQL).Scan(&total); err != nil {
			return nil, 0, errors.Wrap(err, "count orders")
		}
	}
	return items, total, nil
}

// DeleteOrder removes an order and reports whether it existed.
func (r *OrderRepository) DeleteOrder(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, deleteOrderSQL, id)
	if err != nil {
		return false, errors.Wrapf(err, "delete order %q", id)
	}
	return tag.RowsAffected() > 0, nil
}
