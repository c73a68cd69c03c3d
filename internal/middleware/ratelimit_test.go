package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lectory/lectory-auth/internal/config"
	"github.com/lectory/lectory-auth/internal/middleware"
)

func newLimitedRouter(limiter *middleware.RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limiter.Handler())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func ping(router *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiterShapedFromConfig(t *testing.T) {
	// 60 rpm yields a burst of 6.
	limiter := middleware.NewRateLimiter(config.Config{RateLimitRPM: 60}, zap.NewNop())
	require.NotNil(t, limiter)
	router := newLimitedRouter(limiter)

	for i := 0; i < 6; i++ {
		rec := ping(router, "203.0.113.7:1000")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}

	rec := ping(router, "203.0.113.7:1000")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Contains(t, rec.Body.String(), "rate_limited")
}

func TestRateLimiterIsolatesClients(t *testing.T) {
	limiter := middleware.NewRateLimiter(config.Config{RateLimitRPM: 10}, zap.NewNop())
	router := newLimitedRouter(limiter)

	// Exhaust the first client's bucket.
	ping(router, "203.0.113.7:1000")
	rec := ping(router, "203.0.113.7:1000")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different client is unaffected.
	rec = ping(router, "203.0.113.8:1000")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiterDisabled(t *testing.T) {
	limiter := middleware.NewRateLimiter(config.Config{RateLimitRPM: 0}, zap.NewNop())
	require.Nil(t, limiter)

	// The nil limiter's handler passes everything through.
	router := newLimitedRouter(limiter)
	for i := 0; i < 50; i++ {
		rec := ping(router, "203.0.113.7:1000")
		require.Equal(t, http.StatusOK, rec.Code)
	}
}
