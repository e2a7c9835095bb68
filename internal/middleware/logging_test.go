package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureLogs routes the default slog logger into a JSON buffer for the
// duration of the test
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { slog.SetDefault(previous) })
	return &buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines[len(lines)-1], "expected a log entry")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("anonymous request", func(t *testing.T) {
		buf := captureLogs(t)
		router := gin.New()
		router.Use(Logger())
		router.GET("/api/v1/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "pong"})
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))

		entry := lastEntry(t, buf)
		assert.Equal(t, "HTTP Request", entry["msg"])
		assert.Equal(t, "GET", entry["method"])
		assert.Equal(t, "/api/v1/ping", entry["path"])
		assert.Equal(t, float64(http.StatusOK), entry["status"])
		assert.NotContains(t, entry, "user_id")
		assert.NotContains(t, entry, "error")
	})

	t.Run("authenticated request with a handler error", func(t *testing.T) {
		buf := captureLogs(t)
		router := gin.New()
		router.Use(Logger())
		router.POST("/api/v1/loans/:id/return", func(c *gin.Context) {
			c.Set("user_id", int64(7))
			_ = c.Error(errors.New("loan 42 not found"))
			c.JSON(http.StatusNotFound, gin.H{"success": false})
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/loans/42/return", nil))

		entry := lastEntry(t, buf)
		assert.Equal(t, float64(http.StatusNotFound), entry["status"])
		assert.Equal(t, float64(7), entry["user_id"])
		assert.Contains(t, entry["error"], "loan 42 not found")
	})
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogs(t)

	router := gin.New()
	router.Use(Recovery())
	router.GET("/api/v1/fines", func(c *gin.Context) {
		panic("ledger unavailable")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/fines", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)

	entry := lastEntry(t, buf)
	assert.Equal(t, "Panic recovered", entry["msg"])
	assert.Equal(t, "ledger unavailable", entry["error"])
	assert.Equal(t, "/api/v1/fines", entry["path"])
}
