package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adibqt/LibroTrack/internal/models"
	"github.com/adibqt/LibroTrack/internal/services"
)

// generateTestRSAKey generates a test RSA private key
func generateTestRSAKey() string {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}

	privateKeyPEM := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	}

	return string(pem.EncodeToMemory(privateKeyPEM))
}

func createTestAuthService() *services.AuthService {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	authService, err := services.NewAuthService(
		generateTestRSAKey(),
		"",
		time.Hour,
		logger,
		nil, // Redis client not needed for middleware tests
	)
	if err != nil {
		panic(err)
	}
	return authService
}

func TestAuthMiddleware_RequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	authService := createTestAuthService()
	middleware := NewAuthMiddleware(authService)

	identity := models.Identity{UserID: 1, Username: "testuser", Role: models.RoleLibrarian}
	validToken, err := authService.GenerateToken(identity)
	require.NoError(t, err)

	otherService := createTestAuthService()
	foreignToken, err := otherService.GenerateToken(identity)
	require.NoError(t, err)

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "missing authorization header",
			authHeader:     "",
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "MISSING_AUTH_HEADER",
		},
		{
			name:           "invalid authorization format - no bearer",
			authHeader:     "InvalidToken",
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "INVALID_AUTH_FORMAT",
		},
		{
			name:           "invalid authorization format - wrong scheme",
			authHeader:     "Basic dGVzdDp0ZXN0",
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "INVALID_AUTH_FORMAT",
		},
		{
			name:           "invalid token",
			authHeader:     "Bearer invalid-token",
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "INVALID_TOKEN",
		},
		{
			name:           "token signed by another key",
			authHeader:     "Bearer " + foreignToken,
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "INVALID_TOKEN",
		},
		{
			name:           "valid token",
			authHeader:     "Bearer " + validToken,
			expectedStatus: http.StatusOK,
			expectedError:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			req, _ := http.NewRequest("GET", "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			c.Request = req

			handlerCalled := false
			testHandler := func(c *gin.Context) {
				handlerCalled = true
				c.JSON(http.StatusOK, gin.H{"message": "success"})
			}

			middleware.RequireAuth()(c)

			if !c.IsAborted() {
				testHandler(c)
			}

			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectedError != "" {
				assert.Contains(t, w.Body.String(), tt.expectedError)
				assert.False(t, handlerCalled)
			} else {
				assert.True(t, handlerCalled)
				got, ok := CurrentIdentity(c)
				assert.True(t, ok)
				assert.Equal(t, identity, got)
				assert.Equal(t, int64(1), GetUserID(c))
			}
		})
	}
}

type stubValidator struct {
	claims *models.JWTClaims
	err    error
}

func (s stubValidator) ValidateToken(context.Context, string) (*models.JWTClaims, error) {
	return s.claims, s.err
}

func TestAuthMiddleware_RejectedByValidator(t *testing.T) {
	gin.SetMode(gin.TestMode)

	middleware := NewAuthMiddleware(stubValidator{err: services.ErrInvalidToken})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/test", nil)
	c.Request.Header.Set("Authorization", "Bearer revoked")

	middleware.RequireAuth()(c)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_TOKEN")
}

func TestAuthMiddleware_RequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)

	middleware := NewAuthMiddleware(stubValidator{})

	tests := []struct {
		name           string
		userRole       models.UserRole
		requiredRoles  []models.UserRole
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "admin access admin endpoint",
			userRole:       models.RoleAdmin,
			requiredRoles:  []models.UserRole{models.RoleAdmin},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "librarian access admin endpoint",
			userRole:       models.RoleLibrarian,
			requiredRoles:  []models.UserRole{models.RoleAdmin},
			expectedStatus: http.StatusForbidden,
			expectedError:  "INSUFFICIENT_PERMISSIONS",
		},
		{
			name:           "librarian access librarian endpoint",
			userRole:       models.RoleLibrarian,
			requiredRoles:  []models.UserRole{models.RoleLibrarian, models.RoleAdmin},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "member access librarian endpoint",
			userRole:       models.RoleMember,
			requiredRoles:  []models.UserRole{models.RoleLibrarian, models.RoleAdmin},
			expectedStatus: http.StatusForbidden,
			expectedError:  "INSUFFICIENT_PERMISSIONS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			SetIdentity(c, models.Identity{UserID: 1, Username: "testuser", Role: tt.userRole})

			handlerCalled := false
			testHandler := func(c *gin.Context) {
				handlerCalled = true
				c.JSON(http.StatusOK, gin.H{"message": "success"})
			}

			middleware.RequireRole(tt.requiredRoles...)(c)

			if !c.IsAborted() {
				testHandler(c)
			}

			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectedError != "" {
				assert.Contains(t, w.Body.String(), tt.expectedError)
				assert.False(t, handlerCalled)
			} else {
				assert.True(t, handlerCalled)
			}
		})
	}
}

func TestAuthMiddleware_RequireStaff(t *testing.T) {
	gin.SetMode(gin.TestMode)

	middleware := NewAuthMiddleware(stubValidator{})

	tests := []struct {
		name       string
		userRole   models.UserRole
		shouldPass bool
	}{
		{name: "admin access", userRole: models.RoleAdmin, shouldPass: true},
		{name: "librarian access", userRole: models.RoleLibrarian, shouldPass: true},
		{name: "member access", userRole: models.RoleMember, shouldPass: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			SetIdentity(c, models.Identity{UserID: 7, Role: tt.userRole})

			middleware.RequireStaff()(c)

			assert.Equal(t, !tt.shouldPass, c.IsAborted())
		})
	}
}

func TestAuthMiddleware_RequireRoleWithoutIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	NewAuthMiddleware(stubValidator{}).RequireAdmin()(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "MISSING_USER_ROLE")
}

func TestAuthMiddleware_HelperFunctions(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	_, ok := CurrentIdentity(c)
	assert.False(t, ok)
	assert.Equal(t, int64(0), GetUserID(c))

	SetIdentity(c, models.Identity{UserID: 123, Username: "testuser", Role: models.RoleLibrarian})

	identity, ok := CurrentIdentity(c)
	require.True(t, ok)
	assert.Equal(t, "testuser", identity.Username)
	assert.Equal(t, models.RoleLibrarian, identity.Role)
	assert.Equal(t, int64(123), GetUserID(c))
}
