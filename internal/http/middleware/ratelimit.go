// Package middleware – per-client token-bucket rate limiting.
//
// Buckets are golang.org/x/time/rate limiters kept in the bot's expiring
// cache under a sliding TTL, so idle clients are forgotten without a
// separate sweep. The limiter is process-local.
package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/tbourn/go-modbot/internal/cache"
)

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByAdminOrIP buckets authenticated admin calls together and everyone
// else by client IP.
func KeyByAdminOrIP() keyFunc {
	return func(c *gin.Context) string {
		if IsAdmin(c) {
			return "admin"
		}
		return "ip:" + c.ClientIP()
	}
}

// RateLimiter implements a per-key token-bucket rate limiter. It is safe
// for concurrent use.
type RateLimiter struct {
	rps     rate.Limit
	burst   int
	keyFn   keyFunc
	idleTTL time.Duration
	buckets *cache.Cache[*rate.Limiter]
}

// NewRateLimiter builds a limiter refilling rps tokens per second up to
// burst (coerced to at least 1). Buckets idle for 10 minutes are dropped.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		keyFn:   keyFn,
		idleTTL: 10 * time.Minute,
		buckets: cache.New(
			cache.WithName[*rate.Limiter]("http_ratelimit"),
			cache.WithJanitor[*rate.Limiter](time.Minute),
		),
	}
}

// Close stops the bucket janitor.
func (rl *RateLimiter) Close() { rl.buckets.Close() }

// limiter returns the bucket for key, creating it on first use.
func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	lim, err := rl.buckets.GetOrCreate(key, cache.Sliding(rl.idleTTL), func() *rate.Limiter {
		return rate.NewLimiter(rl.rps, rl.burst)
	})
	if err != nil {
		// Closed cache: fall back to a throwaway bucket.
		return rate.NewLimiter(rl.rps, rl.burst)
	}
	return lim
}

// Handler returns the middleware. Rejected requests get 429 with
// Retry-After: 1 and the standard error envelope.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.limiter(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
