package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	err error
}

func (s stubChecker) Health(context.Context) error {
	return s.err
}

func TestHealthHandler_Ping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	handler := NewHealthHandler(nil, nil)

	router := gin.New()
	router.GET("/ping", handler.Ping)

	req, err := http.NewRequest("GET", "/ping", nil)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "pong", response["message"])
	assert.NotNil(t, response["timestamp"])
}

func TestHealthHandler_Health(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		db             HealthChecker
		redis          HealthChecker
		expectedStatus int
		expectedHealth string
		expectedChecks int
	}{
		{
			name:           "without dependencies",
			expectedStatus: http.StatusOK,
			expectedHealth: "healthy",
			expectedChecks: 0,
		},
		{
			name:           "all dependencies healthy",
			db:             stubChecker{},
			redis:          stubChecker{},
			expectedStatus: http.StatusOK,
			expectedHealth: "healthy",
			expectedChecks: 2,
		},
		{
			name:           "redis down",
			db:             stubChecker{},
			redis:          stubChecker{err: errors.New("connection refused")},
			expectedStatus: http.StatusServiceUnavailable,
			expectedHealth: "unhealthy",
			expectedChecks: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(tt.db, tt.redis)
			router := gin.New()
			router.GET("/health", handler.Health)

			req, _ := http.NewRequest("GET", "/health", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tt.expectedHealth, response.Status)
			assert.Equal(t, "librotrack-lending", response.Service)
			assert.Equal(t, "1.0.0", response.Version)
			assert.NotEmpty(t, response.Timestamp)
			assert.Len(t, response.Checks, tt.expectedChecks)
		})
	}
}
