package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"obra-rdo/internal/logger"
	"obra-rdo/internal/middleware"
	"obra-rdo/internal/model"
	"obra-rdo/internal/service"
)

type AuthHandler struct {
	auth   *service.AuthService
	tokens *middleware.Tokens
}

func NewAuthHandler(auth *service.AuthService, tokens *middleware.Tokens) *AuthHandler {
	return &AuthHandler{auth: auth, tokens: tokens}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	p, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		logger.Warn("login.failed", "username", req.Username)
		respondErr(c, err)
		return
	}
	logger.Info("login.ok", "username", p.Username, "role", p.Nivel, "first_access", p.PrimeiroAcesso)
	h.respondSession(c, p)
}

func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.Principal(c).Public())
}

// ChangePassword answers with a fresh session token, since the old one may
// still describe a first-access account.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req model.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	p, err := h.auth.ChangePassword(c.Request.Context(), middleware.Principal(c).Username, req)
	if errors.Is(err, service.ErrInvalidCredentials) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "wrong current password"})
		return
	}
	if err != nil {
		respondErr(c, err)
		return
	}
	h.respondSession(c, p)
}

func (h *AuthHandler) respondSession(c *gin.Context, p model.Principal) {
	token, err := h.tokens.Issue(p)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, model.LoginResponse{
		Token:              token,
		User:               p.Public(),
		MustChangePassword: p.PrimeiroAcesso,
	})
}
