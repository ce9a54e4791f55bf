package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/studyspace-booking/internal/auth"
	"github.com/nekogravitycat/studyspace-booking/internal/pkg/logging"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func newTestRouter(db Pinger, burst int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(Config{
		RateLimitRPS:   1,
		RateLimitBurst: burst,
		Logger:         logging.Discard(),
		DB:             db,
		JWTManager:     auth.NewJWTManager("secret", time.Minute),
	})
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := get(newTestRouter(fakePinger{}, 10), "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = get(newTestRouter(fakePinger{err: errors.New("down")}, 10), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(fakePinger{}, 10)
	get(r, "/healthz")

	w := get(r, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "studyspace_http_requests_total")
}

func TestV1RequiresAuth(t *testing.T) {
	r := newTestRouter(fakePinger{}, 10)

	for _, path := range []string{"/v1/bookings", "/v1/spaces", "/v1/slots?date=2025-06-10"} {
		assert.Equal(t, http.StatusUnauthorized, get(r, path).Code, path)
	}
}

func TestRateLimit(t *testing.T) {
	r := newTestRouter(fakePinger{}, 2)

	assert.Equal(t, http.StatusUnauthorized, get(r, "/v1/bookings").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/v1/bookings").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, "/v1/bookings").Code)

	// Health checks are not rate limited
	assert.Equal(t, http.StatusOK, get(r, "/healthz").Code)
}

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(1, 1, time.Minute)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))
}

func TestRequestLogging(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, hook := logtest.NewNullLogger()

	r := gin.New()
	r.Use(RequestLogging(logger))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("store down"))
		c.Status(http.StatusInternalServerError)
	})

	get(r, "/ok?date=2025-06-10")
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "/ok?date=2025-06-10", entry.Data["path"])
	assert.Equal(t, http.StatusOK, entry.Data["status"])

	get(r, "/boom")
	entry = hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Contains(t, entry.Data["error"], "store down")
}

func TestAllowedOrigins(t *testing.T) {
	assert.Equal(t,
		[]string{"https://a.example.edu", "https://b.example.edu"},
		allowedOrigins(Config{IsProduction: true, ProdOrigins: " https://a.example.edu, ,https://b.example.edu"}))
	assert.NotEmpty(t, allowedOrigins(Config{}))
}
