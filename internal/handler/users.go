package handler

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/user"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type updateUserRequest struct {
	Email    *string       `json:"email"`
	Username *string       `json:"username"`
	Address  *user.Address `json:"address"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if !h.bind(c, &req) {
		return
	}
	s, err := h.Accounts.Register(c.Request.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "User registered successfully", sessionJSON{Token: s.Token, User: userOut(s.User)})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}
	s, err := h.Accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "User logged in successfully", sessionJSON{Token: s.Token, User: userOut(s.User)})
}

func (h *Handler) googleAuth(c *gin.Context) {
	target, err := h.Google.AuthCodeURL(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, target)
}

func (h *Handler) googleCallback(c *gin.Context) {
	if reason := c.Query("error"); reason != "" {
		h.fail(c, apperr.New(apperr.Unauthorized, apperr.CodeGoogleAuthFailed, "google sign-in failed: %s", reason))
		return
	}
	ctx := c.Request.Context()
	profile, err := h.Google.Exchange(ctx, c.Query("state"), c.Query("code"))
	if err != nil {
		h.fail(c, err)
		return
	}
	s, err := h.Accounts.LoginExternal(ctx, *profile)
	if err != nil {
		h.fail(c, err)
		return
	}
	if h.cfg.SignInRedirect == "" {
		ok(c, http.StatusOK, "User logged in successfully", sessionJSON{Token: s.Token, User: userOut(s.User)})
		return
	}
	c.Redirect(http.StatusFound, h.cfg.SignInRedirect+"?token="+url.QueryEscape(s.Token))
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.Accounts.Logout(c.Request.Context(), c.GetString(tokenKey)); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Logged out successfully", nil)
}

// selfOrAdmin rejects access to another user's profile unless the caller is
// an administrator.
func (h *Handler) selfOrAdmin(c *gin.Context, id string) bool {
	me := identity(c)
	if me.UserID == id || me.IsAdmin() {
		return true
	}
	h.fail(c, apperr.New(apperr.Forbidden, apperr.CodeForbidden, "access denied"))
	return false
}

func (h *Handler) getUser(c *gin.Context) {
	id := c.Param("id")
	if !h.selfOrAdmin(c, id) {
		return
	}
	u, err := h.Accounts.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "User retrieved successfully", userOut(u))
}

func (h *Handler) updateUser(c *gin.Context) {
	id := c.Param("id")
	if !h.selfOrAdmin(c, id) {
		return
	}
	var req updateUserRequest
	if !h.bind(c, &req) {
		return
	}
	u, err := h.Accounts.Update(c.Request.Context(), id, user.Patch{
		Email:    req.Email,
		Username: req.Username,
		Address:  req.Address,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "User updated successfully", userOut(u))
}
