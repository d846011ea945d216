package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"pixelgrid/internal/handler/httperr"
	"pixelgrid/internal/pkg/errs"
	"pixelgrid/internal/usecase"

	"github.com/gin-gonic/gin"
)

type AuthMiddleware struct {
	tokenValidator usecase.TokenValidator
}

const ctxOwnerKey = "owner_uid"

func NewAuthMiddleware(tokenValidator usecase.TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{
		tokenValidator: tokenValidator,
	}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			httperr.AbortWithError(c, http.StatusUnauthorized, errs.ErrUnauthorized, "Access token required", nil)
			return
		}

		owner, err := m.tokenValidator.ValidateToken(token)
		if err != nil {
			slog.Warn("Token validation failed in auth middleware", "error", err.Error())
			httperr.AbortWithError(c, http.StatusUnauthorized, err, "Invalid or expired token", nil)
			return
		}

		c.Set(ctxOwnerKey, owner)
		c.Next()
	}
}

// OptionalAuth sets the owner when a valid token is present and never aborts.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if owner, err := m.tokenValidator.ValidateToken(token); err == nil {
				c.Set(ctxOwnerKey, owner)
			}
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authHeader[len("Bearer "):])
}

// GetOwner returns the uid of the authenticated caller.
func GetOwner(c *gin.Context) (string, bool) {
	v, exists := c.Get(ctxOwnerKey)
	if !exists {
		return "", false
	}
	owner, ok := v.(string)
	return owner, ok && owner != ""
}

// SetOwner is used by tests and internal tooling that authenticate by other means.
func SetOwner(c *gin.Context, owner string) {
	c.Set(ctxOwnerKey, owner)
}
