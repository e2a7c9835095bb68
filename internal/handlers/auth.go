package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TokenRevoker blacklists a bearer token until it expires
type TokenRevoker interface {
	BlacklistToken(ctx context.Context, tokenString string) error
}

// AuthHandler covers the token endpoints. Tokens are issued by the identity
// service; this service only reports who the caller is and revokes tokens.
type AuthHandler struct {
	tokens TokenRevoker
}

func NewAuthHandler(tokens TokenRevoker) *AuthHandler {
	return &AuthHandler{tokens: tokens}
}

// Me returns the identity carried by the caller's token
func (h *AuthHandler) Me(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    identity,
	})
}

// Logout revokes the bearer token used for this request
func (h *AuthHandler) Logout(c *gin.Context) {
	token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
	if err := h.tokens.BlacklistToken(c.Request.Context(), token); err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Success: false,
			Error: ErrorDetail{
				Code:    "LOGOUT_UNAVAILABLE",
				Message: "Token revocation is not available",
			},
		})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Logout successful",
	})
}
