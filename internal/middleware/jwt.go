package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"obra-rdo/internal/model"
)

// Context keys set by the auth middlewares.
const (
	KeyUsername  = "username"
	KeyPrincipal = "principal"
)

// renewWithin is how close to expiry a token must be to get a replacement in
// the X-New-Token header.
const renewWithin = 24 * time.Hour

// Tokens issues and verifies HS256 session tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *Tokens) Issue(p model.Principal) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  p.Username,
		"name": p.NomeCompleto,
		"role": string(p.Nivel),
		"fa":   p.PrimeiroAcesso,
		"exp":  t.now().Add(t.ttl).Unix(),
	}).SignedString(t.secret)
}

func (t *Tokens) parse(raw string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, err
	}
	return token.Claims.(jwt.MapClaims), nil
}

// JWTAuth requires a valid bearer token and stores its subject under
// KeyUsername. Tokens close to expiry are renewed through X-New-Token.
func (t *Tokens) JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		claims, err := t.parse(auth[7:])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		sub, _ := claims["sub"].(string)
		if sub == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(KeyUsername, sub)

		if exp, ok := claims["exp"].(float64); ok {
			if time.Unix(int64(exp), 0).Sub(t.now()) < renewWithin {
				claims["exp"] = t.now().Add(t.ttl).Unix()
				if fresh, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret); err == nil {
					c.Header("X-New-Token", fresh)
				}
			}
		}

		c.Next()
	}
}
