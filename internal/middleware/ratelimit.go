package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lectory/lectory-auth/internal/config"
)

// Buckets idle longer than this are dropped from the client table.
const idleEviction = 5 * time.Minute

// RateLimiter throttles requests per client IP. The token bucket is shaped
// from config: RATE_LIMIT_RPM requests per minute sustained, bursts of a
// tenth of that.
type RateLimiter struct {
	logger *zap.Logger
	limit  rate.Limit
	burst  int

	mu        sync.Mutex
	clients   map[string]*clientBucket
	lastSweep time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter shapes a limiter from cfg. A zero or negative
// RATE_LIMIT_RPM disables throttling entirely.
func NewRateLimiter(cfg config.Config, logger *zap.Logger) *RateLimiter {
	rpm := cfg.RateLimitRPM
	if rpm <= 0 {
		return nil
	}
	burst := rpm / 10
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		logger:  logger,
		limit:   rate.Limit(float64(rpm) / 60.0),
		burst:   burst,
		clients: make(map[string]*clientBucket),
	}
}

// Handler returns the gin middleware enforcing the limit. A nil receiver
// yields a pass-through, so a disabled limiter needs no branching at the
// router.
func (r *RateLimiter) Handler() gin.HandlerFunc {
	if r == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !r.allow(ip) {
			if r.logger != nil {
				r.logger.Warn("request throttled",
					zap.String("client_ip", ip),
					zap.String("path", c.Request.URL.Path))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":             "rate_limited",
				"error_description": "Too many requests. Please slow down.",
			})
			return
		}

		c.Next()
	}
}

func (r *RateLimiter) allow(ip string) bool {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.clients[ip]
	if !ok {
		bucket = &clientBucket{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.clients[ip] = bucket
	}
	bucket.lastSeen = now

	if now.Sub(r.lastSweep) > idleEviction {
		r.sweepLocked(now)
		r.lastSweep = now
	}

	return bucket.limiter.Allow()
}

func (r *RateLimiter) sweepLocked(now time.Time) {
	for ip, bucket := range r.clients {
		if now.Sub(bucket.lastSeen) > idleEviction {
			delete(r.clients, ip)
		}
	}
}
