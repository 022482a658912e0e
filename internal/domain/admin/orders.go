package admin

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/metrics"
)

func orderNotFound() error {
	return apperr.New(apperr.NotFound, apperr.CodeOrderNotFound, "order not found")
}

func illegalTransition(from, to order.Status) error {
	return apperr.New(apperr.InvalidInput, apperr.CodeIllegalTransition,
		"cannot change payment status from %s to %s", from, to)
}

// Orders returns a page of orders, newest first.
func (s *Service) Orders(ctx context.Context, page Page) (Paged[OrderRow], error) {
	items, total, err := s.orders.ListOrders(ctx, page.Limit, page.Offset())
	if err != nil {
		return Paged[OrderRow]{}, errors.Wrap(err, "list orders")
	}
	return paged(items, total, page), nil
}

// UpdateOrderStatus moves an order through the payment state machine.
func (s *Service) UpdateOrderStatus(ctx context.Context, id string, to order.Status) (*order.Order, error) {
	if !to.Valid() {
		return nil, apperr.New(apperr.InvalidInput, apperr.CodeInvalidInput, "unknown payment status %q", to)
	}
	o, err := s.getOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status == to {
		return o, nil
	}
	if !o.Status.CanTransitionTo(to) {
		return nil, illegalTransition(o.Status, to)
	}

	ok, err := s.orders.Transition(ctx, id, o.Status, to, "")
	if err != nil {
		return nil, errors.Wrap(err, "transition order")
	}
	if !ok {
		// Settled concurrently by a payment callback.
		cur, err := s.getOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		if cur.Status != to {
			return nil, illegalTransition(cur.Status, to)
		}
		return cur, nil
	}
	metrics.OrdersTotal.WithLabelValues(string(to)).Inc()
	zctx.From(ctx).Info("Order status changed by admin",
		zap.String("order_id", id),
		zap.String("from", string(o.Status)),
		zap.String("to", string(to)),
	)
	return s.getOrder(ctx, id)
}

func (s *Service) getOrder(ctx context.Context, id string) (*order.Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return nil, orderNotFound()
		}
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

// DeleteOrder removes an order.
func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	ok, err := s.orders.DeleteOrder(ctx, id)
	if err != nil {
		return errors.Wrap(err, "delete order")
	}
	if !ok {
		return orderNotFound()
	}
	return nil
}

// BulkUpdateOrderStatus settles every pending order in ids and returns how
// many were changed. Orders already in a terminal state are left untouched.
func (s *Service) BulkUpdateOrderStatus(ctx context.Context, ids []string, to order.Status) (int64, error) {
	if len(ids) == 0 {
		return 0, apperr.New(apperr.InvalidInput, apperr.CodeInvalidInput, "ids are required")
	}
	if !to.Valid() {
		return 0, apperr.New(apperr.InvalidInput, apperr.CodeInvalidInput, "unknown payment status %q", to)
	}
	if !order.StatusPending.CanTransitionTo(to) {
		return 0, illegalTransition(order.StatusPending, to)
	}
	n, err := s.orders.BulkTransition(ctx, ids, order.StatusPending, to)
	if err != nil {
		return 0, errors.Wrap(err, "bulk transition orders")
	}
	metrics.OrdersTotal.WithLabelValues(string(to)).Add(float64(n))
	return n, nil
}
