package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lectory/lectory-auth/internal/service"
	"github.com/lectory/lectory-auth/internal/token"
)

const accessClaimsKey = "accessClaims"

// Auth validates Authorization headers and attaches decoded claims.
type Auth struct {
	Tokens *service.TokenService
}

// NewAuth wires the middleware.
func NewAuth(tokens *service.TokenService) *Auth {
	return &Auth{Tokens: tokens}
}

// ValidateBearer ensures the request carries a valid access token.
func (m *Auth) ValidateBearer(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authorization header required."})
		return
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Bearer token required."})
		return
	}
	claims, err := m.Tokens.DecodeAccess(strings.TrimSpace(parts[1]))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Invalid access token."})
		return
	}
	c.Set(accessClaimsKey, claims)
	c.Next()
}

// GetAccessClaims exposes the bearer claims to handlers.
func GetAccessClaims(c *gin.Context) (token.Claims, bool) {
	value, ok := c.Get(accessClaimsKey)
	if !ok {
		return token.Claims{}, false
	}
	claims, ok := value.(token.Claims)
	return claims, ok
}
