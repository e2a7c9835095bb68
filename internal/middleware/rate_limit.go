package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	redisClient *redis.Client
}

type RateLimit struct {
	Requests int           // Number of requests
	Window   time.Duration // Time window
}

// NewRateLimiter returns a limiter backed by Redis. A nil client disables
// limiting, which is how the in-memory mode runs.
func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{
		redisClient: redisClient,
	}
}

// rateLimitKey buckets authenticated callers by user and everyone else by IP
func rateLimitKey(c *gin.Context) string {
	if identity, ok := CurrentIdentity(c); ok {
		return fmt.Sprintf("rate_limit:user:%d", identity.UserID)
	}
	return fmt.Sprintf("rate_limit:%s", c.ClientIP())
}

func (rl *RateLimiter) Limit(limit RateLimit) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.redisClient == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := rateLimitKey(c)

		val, err := rl.redisClient.Get(ctx, key).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			// If Redis is down, allow the request
			c.Next()
			return
		}

		var count int
		if err == nil {
			count, _ = strconv.Atoi(val)
		}

		if count >= limit.Requests {
			ttl, _ := rl.redisClient.TTL(ctx, key).Result()

			c.Header("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))

			abortWithError(c, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Too many requests. Please try again later.")
			return
		}

		pipe := rl.redisClient.Pipeline()
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, limit.Window)
		if _, err := pipe.Exec(ctx); err != nil {
			c.Next()
			return
		}

		remaining := limit.Requests - count - 1
		if remaining < 0 {
			remaining = 0
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(limit.Window).Unix(), 10))

		c.Next()
	}
}

func (rl *RateLimiter) APILimit() gin.HandlerFunc {
	return rl.Limit(RateLimit{
		Requests: 100,
		Window:   time.Minute,
	})
}

// AdminLimit guards the sweep and report endpoints, which scan whole tables
func (rl *RateLimiter) AdminLimit() gin.HandlerFunc {
	return rl.Limit(RateLimit{
		Requests: 10,
		Window:   time.Minute,
	})
}
