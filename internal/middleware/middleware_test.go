package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obra-rdo/internal/model"
)

func init() { gin.SetMode(gin.TestMode) }

var accounts = map[string]model.Principal{
	"admin": {Username: "admin", Usuario: model.Usuario{Nivel: model.RoleAdmin, Ativo: true}},
	"novo":  {Username: "novo", Usuario: model.Usuario{Nivel: model.RoleManager, Ativo: true, PrimeiroAcesso: true}},
	"op":    {Username: "op", Usuario: model.Usuario{Nivel: model.RoleOperational, Ativo: true}},
}

func load(_ context.Context, username string) (model.Principal, error) {
	p, ok := accounts[username]
	if !ok {
		return model.Principal{}, errors.New("not found")
	}
	return p, nil
}

func newRouter(tokens *Tokens) *gin.Engine {
	r := gin.New()
	api := r.Group("/api", tokens.JWTAuth(), LoadPrincipal(load))
	api.GET("/me", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"user": Principal(c).Username}) })
	gated := api.Group("", RequirePasswordChanged())
	gated.GET("/relatorios", func(c *gin.Context) { c.Status(http.StatusOK) })
	gated.GET("/dashboard", RequireRole(model.RoleManager), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func get(t *testing.T, r http.Handler, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	tokens := NewTokens("segredo", 7*24*time.Hour)
	r := newRouter(tokens)

	assert.Equal(t, http.StatusUnauthorized, get(t, r, "/api/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, r, "/api/me", "lixo").Code)

	other, err := NewTokens("outro", time.Hour).Issue(accounts["admin"])
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(t, r, "/api/me", other).Code)

	ghost, err := tokens.Issue(model.Principal{Username: "fantasma"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(t, r, "/api/me", ghost).Code)

	tok, err := tokens.Issue(accounts["admin"])
	require.NoError(t, err)
	w := get(t, r, "/api/me", tok)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"admin"}`, w.Body.String())
	assert.Empty(t, w.Header().Get("X-New-Token"))
}

func TestJWTAuthRejectsOtherAlgorithms(t *testing.T) {
	tokens := NewTokens("segredo", time.Hour)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": "admin", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("segredo"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(t, newRouter(tokens), "/api/me", tok).Code)
}

func TestJWTAuthRenewsNearExpiry(t *testing.T) {
	tokens := NewTokens("segredo", 7*24*time.Hour)
	issued := time.Now()
	tokens.now = func() time.Time { return issued }
	tok, err := tokens.Issue(accounts["admin"])
	require.NoError(t, err)

	tokens.now = func() time.Time { return issued.Add(6*24*time.Hour + time.Hour) }
	w := get(t, newRouter(tokens), "/api/me", tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-New-Token"))
}

func TestFirstAccessGate(t *testing.T) {
	tokens := NewTokens("segredo", time.Hour)
	r := newRouter(tokens)
	tok, err := tokens.Issue(accounts["novo"])
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, get(t, r, "/api/me", tok).Code)
	w := get(t, r, "/api/relatorios", tok)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"password_change_required"}`, w.Body.String())
}

func TestRequireRole(t *testing.T) {
	tokens := NewTokens("segredo", time.Hour)
	r := newRouter(tokens)

	op, err := tokens.Issue(accounts["op"])
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, get(t, r, "/api/relatorios", op).Code)
	assert.Equal(t, http.StatusForbidden, get(t, r, "/api/dashboard", op).Code)

	admin, err := tokens.Issue(accounts["admin"])
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, get(t, r, "/api/dashboard", admin).Code)
}
