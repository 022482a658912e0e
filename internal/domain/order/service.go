package order

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/metrics"
)

var hundred = decimal.NewFromInt(100)

// CheckoutRequest holds the input for starting a checkout.
type CheckoutRequest struct {
	Items           []Item
	ShippingAddress Address
	DiscountCodes   []string
}

// CheckoutResult holds what the client needs to complete payment.
type CheckoutResult struct {
	Order          *Order
	GatewayOrderID string
	// Amount is in minor currency units.
	Amount   int64
	Currency string
	Key      string
}

// ConfirmRequest is the gateway callback data relayed by the client.
type ConfirmRequest struct {
	OrderID        string
	PaymentID      string
	GatewayOrderID string
	Signature      string
}

func (r ConfirmRequest) missing() []string {
	var out []string
	if strings.TrimSpace(r.OrderID) == "" {
		out = append(out, "orderId")
	}
	if strings.TrimSpace(r.PaymentID) == "" {
		out = append(out, "paymentId")
	}
	if strings.TrimSpace(r.GatewayOrderID) == "" {
		out = append(out, "razorpayOrderId")
	}
	if strings.TrimSpace(r.Signature) == "" {
		out = append(out, "signature")
	}
	return out
}

// ServiceConfig holds Service settings.
type ServiceConfig struct {
	Currency     string
	EmailTimeout time.Duration
}

// Service drives orders through checkout and payment confirmation.
type Service struct {
	pricer   *Pricer
	orders   Repository
	products ProductLookup
	users    UserLookup
	gateway  Gateway
	notifier Notifier
	cfg      ServiceConfig
	now      func() time.Time

	mails sync.WaitGroup
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	pricer *Pricer,
	orders Repository,
	products ProductLookup,
	users UserLookup,
	gateway Gateway,
	notifier Notifier,
	cfg ServiceConfig,
) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	if cfg.EmailTimeout <= 0 {
		cfg.EmailTimeout = 10 * time.Second
	}
	return &Service{
		pricer:   pricer,
		orders:   orders,
		products: products,
		users:    users,
		gateway:  gateway,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Create prices the cart, persists a pending order and requests a payment
// intent for its total. A gateway failure leaves the order pending.
func (s *Service) Create(ctx context.Context, userID string, req CheckoutRequest) (*CheckoutResult, error) {
	if userID == "" {
		return nil, apperr.New(apperr.Unauthorized, apperr.CodeUnauthorized, "authentication required")
	}

	priced, err := s.pricer.Price(ctx, Cart{
		Items:           req.Items,
		Codes:           req.DiscountCodes,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	o := &Order{
		ID:              uuid.New().String(),
		UserID:          userID,
		Items:           priced.Items,
		ShippingAddress: req.ShippingAddress,
		Subtotal:        priced.Subtotal,
		Discounts:       priced.Discounts,
		Total:           priced.Total,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	metrics.OrdersTotal.WithLabelValues(string(StatusPending)).Inc()

	lg := zctx.From(ctx).With(zap.String("order_id", o.ID))
	amount := o.Total.Mul(hundred).Round(0).IntPart()
	intent, err := s.gateway.CreateOrder(ctx, Intent{
		OrderID:  o.ID,
		Amount:   amount,
		Currency: s.cfg.Currency,
	})
	if err != nil {
		lg.Warn("Payment intent failed", zap.Error(err))
		code := apperr.CodeGatewayFailure
		if errors.Is(err, context.DeadlineExceeded) {
			code = apperr.CodeUpstreamTimeout
		}
		return nil, apperr.Wrap(err, apperr.Upstream, code, "create payment intent")
	}

	if err := s.orders.SetGatewayOrder(ctx, o.ID, intent.ID); err != nil {
		return nil, errors.Wrap(err, "store gateway order")
	}
	o.GatewayOrderID = intent.ID

	lg.Info("Checkout started",
		zap.String("gateway_order_id", intent.ID),
		zap.Int64("amount", amount),
	)

	return &CheckoutResult{
		Order:          o,
		GatewayOrderID: intent.ID,
		Amount:         amount,
		Currency:       s.cfg.Currency,
		Key:            s.gateway.KeyID(),
	}, nil
}

// Confirm verifies a payment callback and finalizes the order. Confirming an
// order that already reached a terminal status returns it unchanged.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) (*Order, error) {
	if missing := req.missing(); len(missing) > 0 {
		return nil, apperr.New(apperr.InvalidInput, apperr.CodeMissingPaymentFields,
			"missing payment fields: %s", strings.Join(missing, ", ")).
			WithDetails(missing...)
	}

	o, err := s.get(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	lg := zctx.From(ctx).With(zap.String("order_id", o.ID))

	if o.Status.Terminal() {
		metrics.PaymentVerifications.WithLabelValues("duplicate").Inc()
		lg.Info("Order already finalized", zap.String("status", string(o.Status)))
		return o, nil
	}

	if o.GatewayOrderID != req.GatewayOrderID ||
		!s.gateway.VerifySignature(req.GatewayOrderID, req.PaymentID, req.Signature) {
		metrics.PaymentVerifications.WithLabelValues("invalid").Inc()
		s.markFailed(ctx, lg, o)
		return nil, apperr.New(apperr.InvalidSignature, apperr.CodeInvalidSignature, "invalid payment signature")
	}

	ok, err := s.orders.Transition(ctx, o.ID, StatusPending, StatusCompleted, req.PaymentID)
	if err != nil {
		return nil, errors.Wrap(err, "complete order")
	}
	if !ok {
		// Another callback finalized the order first.
		metrics.PaymentVerifications.WithLabelValues("duplicate").Inc()
		return s.get(ctx, o.ID)
	}

	o.Status = StatusCompleted
	o.PaymentID = req.PaymentID
	o.UpdatedAt = s.now().UTC()
	metrics.PaymentVerifications.WithLabelValues("verified").Inc()
	metrics.OrdersTotal.WithLabelValues(string(StatusCompleted)).Inc()
	lg.Info("Payment verified", zap.String("payment_id", req.PaymentID))

	s.sendConfirmation(ctx, o)
	return o, nil
}

func (s *Service) markFailed(ctx context.Context, lg *zap.Logger, o *Order) {
	ok, err := s.orders.Transition(ctx, o.ID, StatusPending, StatusFailed, "")
	switch {
	case err != nil:
		lg.Error("Mark order failed", zap.Error(err))
	case ok:
		metrics.OrdersTotal.WithLabelValues(string(StatusFailed)).Inc()
		lg.Warn("Payment signature mismatch, order failed")
	}
}

// sendConfirmation e-mails the owner in the background. Failures are logged
// only: the order is already completed.
func (s *Service) sendConfirmation(ctx context.Context, o *Order) {
	lg := zctx.From(ctx).With(zap.String("order_id", o.ID))
	ctx = zctx.Base(context.WithoutCancel(ctx), lg)

	s.mails.Add(1)
	go func() {
		defer s.mails.Done()

		ctx, cancel := context.WithTimeout(ctx, s.cfg.EmailTimeout)
		defer cancel()

		if err := s.deliverConfirmation(ctx, o); err != nil {
			lg.Error("Send confirmation email", zap.Error(err))
		}
	}()
}

func (s *Service) deliverConfirmation(ctx context.Context, o *Order) error {
	to, err := s.users.FindEmail(ctx, o.UserID)
	if err != nil {
		return errors.Wrap(err, "find recipient")
	}

	cp := *o
	cp.Items = append([]Item(nil), o.Items...)
	if err := s.populate(ctx, []*Order{&cp}); err != nil {
		return err
	}

	subject, body, err := renderConfirmation(&cp)
	if err != nil {
		return err
	}
	if err := s.notifier.Send(ctx, to, subject, body); err != nil {
		return errors.Wrap(err, "send")
	}
	return nil
}

// Wait blocks until background e-mails have finished.
func (s *Service) Wait() {
	s.mails.Wait()
}

// List returns the user's orders, most recent first, with product data
// attached to every line.
func (s *Service) List(ctx context.Context, userID string) ([]Order, error) {
	if userID == "" {
		return nil, apperr.New(apperr.Unauthorized, apperr.CodeUnauthorized, "authentication required")
	}

	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})

	ptrs := make([]*Order, len(orders))
	for i := range orders {
		ptrs[i] = &orders[i]
	}
	if err := s.populate(ctx, ptrs); err != nil {
		return nil, err
	}
	return orders, nil
}

// Get returns one of the user's orders.
func (s *Service) Get(ctx context.Context, userID, orderID string) (*Order, error) {
	if userID == "" {
		return nil, apperr.New(apperr.Unauthorized, apperr.CodeUnauthorized, "authentication required")
	}
	o, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, apperr.New(apperr.NotFound, apperr.CodeOrderNotFound, "order not found")
	}
	if err := s.populate(ctx, []*Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) get(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, apperr.CodeOrderNotFound, "order not found")
		}
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

func (s *Service) populate(ctx context.Context, orders []*Order) error {
	seen := make(map[string]struct{})
	var ids []string
	for _, o := range orders {
		for _, it := range o.Items {
			if _, ok := seen[it.ProductID]; ok {
				continue
			}
			seen[it.ProductID] = struct{}{}
			ids = append(ids, it.ProductID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	summaries, err := s.products.FindSummaries(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "load order products")
	}
	byID := make(map[string]*ProductSummary, len(summaries))
	for i := range summaries {
		byID[summaries[i].ID] = &summaries[i]
	}
	for _, o := range orders {
		for i := range o.Items {
			o.Items[i].Product = byID[o.Items[i].ProductID]
		}
	}
	return nil
}
