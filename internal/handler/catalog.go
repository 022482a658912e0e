package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/discount"
)

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type lineRequest struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type validateRequest struct {
	Code       string          `json:"code" binding:"required"`
	ProductIDs []string        `json:"productIds"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Items      []lineRequest   `json:"items"`
}

func (h *Handler) listProducts(c *gin.Context) {
	listings, err := h.Catalog.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]listingJSON, len(listings))
	for i, l := range listings {
		out[i] = h.listingOut(l)
	}
	ok(c, http.StatusOK, "Products retrieved successfully", gin.H{"products": out, "total": len(out)})
}

func (h *Handler) searchProducts(c *gin.Context) {
	res, err := h.Catalog.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Search results", h.productsOut(res))
}

func (h *Handler) categories(c *gin.Context) {
	cats, err := h.Catalog.Categories(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if cats == nil {
		cats = []string{}
	}
	ok(c, http.StatusOK, "Categories retrieved successfully", cats)
}

func (h *Handler) getProduct(c *gin.Context) {
	p, err := h.Catalog.Get(c.Request.Context(), c.Param("productId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Product retrieved successfully", h.productOut(*p))
}

func (h *Handler) listReviews(c *gin.Context) {
	rs, err := h.Catalog.Reviews(c.Request.Context(), c.Param("productId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]reviewJSON, len(rs))
	for i, r := range rs {
		out[i] = reviewOut(r)
	}
	ok(c, http.StatusOK, "Reviews retrieved successfully", out)
}

func (h *Handler) addReview(c *gin.Context) {
	var req reviewRequest
	if !h.bind(c, &req) {
		return
	}
	r, err := h.Catalog.AddReview(c.Request.Context(), c.Param("productId"), identity(c).UserID, req.Rating, req.Comment)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "Review added successfully", reviewOut(*r))
}

func (h *Handler) validateDiscount(c *gin.Context) {
	var req validateRequest
	if !h.bind(c, &req) {
		return
	}
	items := make([]discount.Item, len(req.Items))
	for i, it := range req.Items {
		items[i] = discount.Item{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price}
	}
	ids := req.ProductIDs
	if len(ids) == 0 {
		for _, it := range req.Items {
			ids = append(ids, it.ProductID)
		}
	}
	q, err := h.Discounts.Quote(c.Request.Context(), discount.Request{
		Code:       req.Code,
		ProductIDs: ids,
		Subtotal:   req.Subtotal,
		Items:      items,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Discount applied successfully", quoteOut(q))
}
