package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
)

const tokenKey = "session_token"

// routeLabel tags otelhttp metrics with the matched route template.
func routeLabel() gin.HandlerFunc {
	return func(c *gin.Context) {
		if route := c.FullPath(); route != "" {
			if l, ok := otelhttp.LabelerFromContext(c.Request.Context()); ok {
				l.Add(attribute.String("http.route", route))
			}
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	v := c.GetHeader("Authorization")
	scheme, token, found := strings.Cut(v, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// authenticate resolves the bearer token into an identity.
func (h *Handler) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		id, err := h.Sessions.Authenticate(c.Request.Context(), token)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.Set(tokenKey, token)
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, _ := auth.FromContext(c.Request.Context()); !id.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, errorBody{
				Code:    http.StatusForbidden,
				Message: "admin access required",
				Error:   apperr.CodeAdminRequired,
			})
			return
		}
		c.Next()
	}
}

func identity(c *gin.Context) auth.Identity {
	id, _ := auth.FromContext(c.Request.Context())
	return id
}
