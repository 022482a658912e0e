package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/admin"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/user"
)

type adminUserRequest struct {
	Email    *string    `json:"email"`
	Username *string    `json:"username"`
	Role     *user.Role `json:"role"`
	IsBanned *bool      `json:"isBanned"`
}

type productRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Image       *string          `json:"image"`
	Category    *string          `json:"category"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
}

func (r productRequest) patch() admin.ProductPatch {
	return admin.ProductPatch{
		Name:        r.Name,
		Description: r.Description,
		Image:       r.Image,
		Category:    r.Category,
		Price:       r.Price,
		Stock:       r.Stock,
	}
}

type bulkProductsRequest struct {
	IDs      []string         `json:"ids" binding:"required,min=1"`
	Price    *decimal.Decimal `json:"price"`
	Category *string          `json:"category"`
	Stock    *int             `json:"stock"`
}

type orderStatusRequest struct {
	PaymentStatus order.Status `json:"paymentStatus" binding:"required"`
}

type bulkOrdersRequest struct {
	IDs           []string     `json:"ids" binding:"required,min=1"`
	PaymentStatus order.Status `json:"paymentStatus" binding:"required"`
}

type discountRequest struct {
	Code               *string          `json:"code"`
	Description        *string          `json:"description"`
	DiscountType       *discount.Type   `json:"discountType"`
	DiscountValue      *decimal.Decimal `json:"discountValue"`
	MinOrderValue      *decimal.Decimal `json:"minOrderValue"`
	MaxDiscountAmount  *decimal.Decimal `json:"maxDiscountAmount"`
	StartDate          *time.Time       `json:"startDate"`
	EndDate            *time.Time       `json:"endDate"`
	IsActive           *bool            `json:"isActive"`
	ApplicableProducts []string         `json:"applicableProducts"`
}

func (r discountRequest) patch() admin.DiscountPatch {
	return admin.DiscountPatch{
		Code:               r.Code,
		Description:        r.Description,
		Type:               r.DiscountType,
		Value:              r.DiscountValue,
		MinOrderValue:      r.MinOrderValue,
		MaxDiscountAmount:  r.MaxDiscountAmount,
		StartDate:          r.StartDate,
		EndDate:            r.EndDate,
		IsActive:           r.IsActive,
		ApplicableProducts: r.ApplicableProducts,
	}
}

type bulkDiscountsRequest struct {
	IDs      []string `json:"ids" binding:"required,min=1"`
	IsActive *bool    `json:"isActive" binding:"required"`
}

func page(c *gin.Context) admin.Page {
	return admin.NewPage(queryInt(c, "page"), queryInt(c, "limit"))
}

func modified(c *gin.Context, n int64) {
	ok(c, http.StatusOK, "Bulk update applied", gin.H{"modifiedCount": n})
}

func (h *Handler) dashboard(c *gin.Context) {
	d, err := h.Admin.Dashboard(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Dashboard data retrieved", h.dashboardOut(d))
}

func (h *Handler) adminUsers(c *gin.Context) {
	us, err := h.Admin.Users(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]userJSON, len(us))
	for i := range us {
		out[i] = userOut(&us[i])
	}
	ok(c, http.StatusOK, "Users retrieved successfully", out)
}

func (h *Handler) adminUpdateUser(c *gin.Context) {
	var req adminUserRequest
	if !h.bind(c, &req) {
		return
	}
	u, err := h.Admin.UpdateUser(c.Request.Context(), c.Param("userId"), admin.UserPatch{
		Email:    req.Email,
		Username: req.Username,
		Role:     req.Role,
		IsBanned: req.IsBanned,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "User updated successfully", userOut(u))
}

func (h *Handler) adminDeleteUser(c *gin.Context) {
	if err := h.Admin.DeleteUser(c.Request.Context(), c.Param("userId")); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "User deleted successfully", nil)
}

func (h *Handler) adminProducts(c *gin.Context) {
	p, err := h.Admin.Products(c.Request.Context(), page(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Products retrieved successfully", pageOut(p, h.productOut))
}

func (h *Handler) adminCreateProduct(c *gin.Context) {
	var req productRequest
	if !h.bind(c, &req) {
		return
	}
	p, err := h.Admin.CreateProduct(c.Request.Context(), req.patch())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "Product created successfully", h.productOut(*p))
}

func (h *Handler) adminUpdateProduct(c *gin.Context) {
	var req productRequest
	if !h.bind(c, &req) {
		return
	}
	p, err := h.Admin.UpdateProduct(c.Request.Context(), c.Param("productId"), req.patch())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Product updated successfully", h.productOut(*p))
}

func (h *Handler) adminDeleteProduct(c *gin.Context) {
	if err := h.Admin.DeleteProduct(c.Request.Context(), c.Param("productId")); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Product deleted successfully", nil)
}

func (h *Handler) adminBulkProducts(c *gin.Context) {
	var req bulkProductsRequest
	if !h.bind(c, &req) {
		return
	}
	n, err := h.Admin.BulkUpdateProducts(c.Request.Context(), req.IDs, admin.ProductPatch{
		Price:    req.Price,
		Category: req.Category,
		Stock:    req.Stock,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	modified(c, n)
}

func (h *Handler) adminCategories(c *gin.Context) {
	cats, err := h.Admin.Categories(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if cats == nil {
		cats = []string{}
	}
	ok(c, http.StatusOK, "Categories retrieved successfully", cats)
}

func (h *Handler) adminOrders(c *gin.Context) {
	p, err := h.Admin.Orders(c.Request.Context(), page(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Orders retrieved successfully", pageOut(p, h.adminOrderOut))
}

func (h *Handler) adminUpdateOrder(c *gin.Context) {
	var req orderStatusRequest
	if !h.bind(c, &req) {
		return
	}
	o, err := h.Admin.UpdateOrderStatus(c.Request.Context(), c.Param("orderId"), req.PaymentStatus)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Order updated successfully", h.orderOut(o))
}

func (h *Handler) adminDeleteOrder(c *gin.Context) {
	if err := h.Admin.DeleteOrder(c.Request.Context(), c.Param("orderId")); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Order deleted successfully", nil)
}

func (h *Handler) adminBulkOrders(c *gin.Context) {
	var req bulkOrdersRequest
	if !h.bind(c, &req) {
		return
	}
	n, err := h.Admin.BulkUpdateOrderStatus(c.Request.Context(), req.IDs, req.PaymentStatus)
	if err != nil {
		h.fail(c, err)
		return
	}
	modified(c, n)
}

func (h *Handler) adminDiscounts(c *gin.Context) {
	ds, err := h.Admin.Discounts(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]discountJSON, len(ds))
	for i := range ds {
		out[i] = discountOut(&ds[i])
	}
	ok(c, http.StatusOK, "Discounts retrieved successfully", out)
}

func (h *Handler) adminCreateDiscount(c *gin.Context) {
	var req discountRequest
	if !h.bind(c, &req) {
		return
	}
	d, err := h.Admin.CreateDiscount(c.Request.Context(), req.patch())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "Discount created successfully", discountOut(d))
}

func (h *Handler) adminUpdateDiscount(c *gin.Context) {
	var req discountRequest
	if !h.bind(c, &req) {
		return
	}
	d, err := h.Admin.UpdateDiscount(c.Request.Context(), c.Param("discountId"), req.patch())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Discount updated successfully", discountOut(d))
}

func (h *Handler) adminDeleteDiscount(c *gin.Context) {
	if err := h.Admin.DeleteDiscount(c.Request.Context(), c.Param("discountId")); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Discount deleted successfully", nil)
}

func (h *Handler) adminBulkDiscounts(c *gin.Context) {
	var req bulkDiscountsRequest
	if !h.bind(c, &req) {
		return
	}
	n, err := h.Admin.BulkSetDiscountsActive(c.Request.Context(), req.IDs, *req.IsActive)
	if err != nil {
		h.fail(c, err)
		return
	}
	modified(c, n)
}

