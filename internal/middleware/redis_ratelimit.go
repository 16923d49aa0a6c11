package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/improveclean/cleaning-site/internal/metrics"
)

var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local window = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)

local current = redis.call('ZCARD', key)
if current < limit then
	redis.call('ZADD', key, now, member)
	redis.call('PEXPIRE', key, window)
	return {1, limit - current - 1}
end
return {0, 0}
`)

// windowFor is how long `burst` requests take to refill at `rps`.
func windowFor(rps, burst int) time.Duration {
	if rps <= 0 {
		rps = 1
	}
	return time.Duration(burst) * time.Second / time.Duration(rps)
}

// HybridRateLimit enforces a per-IP sliding window in Redis and falls back to an
// in-memory limiter whenever Redis errors.
func HybridRateLimit(redisClient *redis.Client, rps int, burst int) gin.HandlerFunc {
	memory := newMemoryLimiter(rps, burst)
	window := windowFor(rps, burst)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if clientIP == "" {
			clientIP = "unknown"
		}
		key := fmt.Sprintf("rate_limit:%s", clientIP)
		now := time.Now().UnixMilli()

		res, err := slidingWindow.Run(c.Request.Context(), redisClient, []string{key},
			window.Milliseconds(), burst, now, uuid.NewString()).Int64Slice()
		if err != nil || len(res) < 2 {
			if !memory.allow(clientIP) {
				metrics.RateLimitedTotal.WithLabelValues("memory").Inc()
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
				return
			}
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(burst))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(res[1], 10))

		if res[0] == 0 {
			retry := int(window.Seconds())
			if retry < 1 {
				retry = 1
			}
			metrics.RateLimitedTotal.WithLabelValues("redis").Inc()
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": retry,
			})
			return
		}
		c.Next()
	}
}
