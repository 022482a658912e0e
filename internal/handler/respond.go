package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/discount"
)

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type errorBody struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func ok(c *gin.Context, status int, message string, data any) {
	c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

func statusOf(kind apperr.Kind, err error) int {
	switch kind {
	case apperr.InvalidInput, apperr.DiscountRejected, apperr.InvalidSignature:
		return http.StatusBadRequest
	case apperr.Unauthorized:
		return http.StatusUnauthorized
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Conflict:
		return http.StatusConflict
	case apperr.Upstream:
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// describe renders err as the client-facing body.
func (h *Handler) describe(err error) errorBody {
	kind := apperr.KindOf(err)
	body := errorBody{Code: statusOf(kind, err)}

	var rejected *discount.RejectedError
	var ae *apperr.Error
	switch {
	case errors.As(err, &rejected):
		body.Error = apperr.CodeInvalidDiscount
		body.Message = rejected.Message()
	case errors.As(err, &ae):
		body.Error = ae.Code
		body.Message = ae.Message
		body.Details = ae.Details
	}

	switch {
	case body.Code == http.StatusGatewayTimeout:
		body.Error = apperr.CodeUpstreamTimeout
		if body.Message == "" {
			body.Message = "upstream request timed out"
		}
	case kind == apperr.Internal:
		body.Error = apperr.CodeInternal
		body.Message = "internal server error"
		if h.cfg.Debug {
			body.Message = err.Error()
		}
	}
	if body.Error == "" {
		body.Error = apperr.CodeInternal
	}
	if body.Message == "" {
		body.Message = http.StatusText(body.Code)
	}
	return body
}

func (h *Handler) fail(c *gin.Context, err error) {
	body := h.describe(err)
	lg := zctx.From(c.Request.Context())
	if body.Code >= http.StatusInternalServerError {
		lg.Error("Request failed", zap.Error(err), zap.String("route", c.FullPath()))
	} else {
		lg.Debug("Request rejected", zap.Error(err), zap.String("code", body.Error))
	}
	c.AbortWithStatusJSON(body.Code, body)
}

func badRequest(err error) error {
	return apperr.New(apperr.InvalidInput, apperr.CodeInvalidInput, "invalid request body").
		WithDetails(err.Error())
}

// bind decodes the JSON body into dst and reports whether it succeeded.
func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.fail(c, badRequest(err))
		return false
	}
	return true
}

func queryInt(c *gin.Context, name string) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return n
}
