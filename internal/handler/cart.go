package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xenking/storefront/internal/domain/product"
)

type cartRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type wishlistRequest struct {
	ProductID string `json:"productId" binding:"required"`
}

func (h *Handler) addToCart(c *gin.Context) {
	var req cartRequest
	if !h.bind(c, &req) {
		return
	}
	crt, err := h.Carts.Add(c.Request.Context(), identity(c).UserID, req.ProductID, req.Quantity)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Product added to cart", h.cartOut(crt))
}

func (h *Handler) getCart(c *gin.Context) {
	crt, err := h.Carts.Get(c.Request.Context(), identity(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Cart retrieved successfully", h.cartOut(crt))
}

func (h *Handler) wishlistOut(c *gin.Context, message string, ps []product.Product, err error) {
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, message, gin.H{"userId": identity(c).UserID, "products": h.productsOut(ps)})
}

func (h *Handler) getWishlist(c *gin.Context) {
	ps, err := h.Wishlists.Get(c.Request.Context(), identity(c).UserID)
	h.wishlistOut(c, "Wishlist retrieved successfully", ps, err)
}

func (h *Handler) addToWishlist(c *gin.Context) {
	var req wishlistRequest
	if !h.bind(c, &req) {
		return
	}
	ps, err := h.Wishlists.Add(c.Request.Context(), identity(c).UserID, req.ProductID)
	h.wishlistOut(c, "Product added to wishlist", ps, err)
}

func (h *Handler) removeFromWishlist(c *gin.Context) {
	var req wishlistRequest
	if !h.bind(c, &req) {
		return
	}
	ps, err := h.Wishlists.Remove(c.Request.Context(), identity(c).UserID, req.ProductID)
	h.wishlistOut(c, "Product removed from wishlist", ps, err)
}
