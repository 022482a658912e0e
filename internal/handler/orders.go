package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xenking/storefront/internal/domain/order"
)

type createOrderRequest struct {
	Items           []lineRequest `json:"items"`
	ShippingAddress order.Address `json:"shippingAddress"`
	DiscountCodes   []string      `json:"discountCode"`
}

type verifyRequest struct {
	OrderID           string `json:"orderId"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

type checkoutJSON struct {
	OrderID         string  `json:"orderId"`
	RazorpayOrderID string  `json:"razorpayOrderId"`
	Amount          int64   `json:"amount"`
	Currency        string  `json:"currency"`
	Key             string  `json:"key"`
	Total           float64 `json:"total"`
}

func (h *Handler) createOrder(c *gin.Context) {
	var req createOrderRequest
	if !h.bind(c, &req) {
		return
	}
	items := make([]order.Item, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.Item{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price}
	}
	res, err := h.Orders.Create(c.Request.Context(), identity(c).UserID, order.CheckoutRequest{
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		DiscountCodes:   req.DiscountCodes,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "Order created successfully", checkoutJSON{
		OrderID:         res.Order.ID,
		RazorpayOrderID: res.GatewayOrderID,
		Amount:          res.Amount,
		Currency:        res.Currency,
		Key:             res.Key,
		Total:           money(res.Order.Total),
	})
}

func (h *Handler) verifyPayment(c *gin.Context) {
	var req verifyRequest
	if !h.bind(c, &req) {
		return
	}
	o, err := h.Orders.Confirm(c.Request.Context(), order.ConfirmRequest{
		OrderID:        req.OrderID,
		PaymentID:      req.RazorpayPaymentID,
		GatewayOrderID: req.RazorpayOrderID,
		Signature:      req.RazorpaySignature,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Payment verified and order confirmed", gin.H{"success": true, "order": h.orderOut(o)})
}

func (h *Handler) userOrders(c *gin.Context) {
	orders, err := h.Orders.List(c.Request.Context(), identity(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]orderJSON, len(orders))
	for i := range orders {
		out[i] = h.orderOut(&orders[i])
	}
	ok(c, http.StatusOK, "User orders retrieved successfully", out)
}

func (h *Handler) getOrder(c *gin.Context) {
	o, err := h.Orders.Get(c.Request.Context(), identity(c).UserID, c.Param("orderId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Order retrieved successfully", h.orderOut(o))
}
