package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"obra-rdo/internal/model"
)

// LoadPrincipal resolves the token subject to the current account. Accounts
// removed or deactivated after the token was issued are turned away.
func LoadPrincipal(load func(ctx context.Context, username string) (model.Principal, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := load(c.Request.Context(), c.GetString(KeyUsername))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account unavailable"})
			return
		}
		c.Set(KeyPrincipal, p)
		c.Next()
	}
}

// Principal returns the account loaded by LoadPrincipal.
func Principal(c *gin.Context) model.Principal {
	v, _ := c.Get(KeyPrincipal)
	p, _ := v.(model.Principal)
	return p
}

// RequirePasswordChanged blocks accounts that still use the password they were
// created or reset with.
func RequirePasswordChanged() gin.HandlerFunc {
	return func(c *gin.Context) {
		if Principal(c).PrimeiroAcesso {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "password_change_required"})
			return
		}
		c.Next()
	}
}

func RequireRole(min model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Principal(c).Nivel.AtLeast(min) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
