package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/improveclean/cleaning-site/internal/metrics"
)

// memoryLimiter keeps one token bucket per client IP.
type memoryLimiter struct {
	limiters sync.Map
	rps      rate.Limit
	burst    int
}

func newMemoryLimiter(rps, burst int) *memoryLimiter {
	return &memoryLimiter{rps: rate.Limit(rps), burst: burst}
}

func (m *memoryLimiter) allow(key string) bool {
	v, _ := m.limiters.LoadOrStore(key, rate.NewLimiter(m.rps, m.burst))
	return v.(*rate.Limiter).Allow()
}

// RateLimit is the in-process limiter used when Redis is not available.
func RateLimit(rps int, burst int) gin.HandlerFunc {
	limiter := newMemoryLimiter(rps, burst)
	return func(c *gin.Context) {
		if !limiter.allow(c.ClientIP()) {
			metrics.RateLimitedTotal.WithLabelValues("memory").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}
