package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/adibqt/LibroTrack/internal/models"
)

const identityKey = "identity"

// TokenValidator verifies bearer tokens
type TokenValidator interface {
	ValidateToken(ctx context.Context, tokenString string) (*models.JWTClaims, error)
}

type AuthMiddleware struct {
	validator TokenValidator
}

func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
	}
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, http.StatusUnauthorized, "MISSING_AUTH_HEADER", "Authorization header is required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			abortWithError(c, http.StatusUnauthorized, "INVALID_AUTH_FORMAT", "Authorization header must be in format 'Bearer <token>'")
			return
		}

		claims, err := m.validator.ValidateToken(c.Request.Context(), parts[1])
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
			return
		}

		SetIdentity(c, claims.Identity())
		c.Next()
	}
}

func (m *AuthMiddleware) RequireRole(allowedRoles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "MISSING_USER_ROLE", "User role not found in context")
			return
		}

		for _, allowedRole := range allowedRoles {
			if identity.Role == allowedRole {
				c.Next()
				return
			}
		}

		abortWithError(c, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Insufficient permissions to access this resource")
	}
}

// RequireStaff admits administrators and librarians
func (m *AuthMiddleware) RequireStaff() gin.HandlerFunc {
	return m.RequireRole(models.RoleAdmin, models.RoleLibrarian)
}

func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return m.RequireRole(models.RoleAdmin)
}

// SetIdentity stores the authenticated caller on the request context
func SetIdentity(c *gin.Context, identity models.Identity) {
	c.Set(identityKey, identity)
	c.Set("user_id", identity.UserID)
}

// CurrentIdentity returns the caller placed by RequireAuth
func CurrentIdentity(c *gin.Context) (models.Identity, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		return models.Identity{}, false
	}
	identity, ok := v.(models.Identity)
	return identity, ok
}

func GetUserID(c *gin.Context) int64 {
	identity, ok := CurrentIdentity(c)
	if !ok {
		return 0
	}
	return identity.UserID
}
