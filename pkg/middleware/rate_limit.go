package middleware

import (
	"net/http"
	"sync"

	"github.com/docflow/docflow/backend/go-services/pkg/metrics"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ClientHeader lets a caller (the generator CLI, a worker fleet) identify
// itself for rate limiting instead of sharing a NATed IP bucket.
const ClientHeader = "X-Client-ID"

func limitKey(c *gin.Context) string {
	if id := c.GetHeader(ClientHeader); id != "" {
		return "client:" + id
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

func rejectRateLimited(c *gin.Context, retryAfter string) {
	c.Header("Retry-After", retryAfter)
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"code": "RATE_LIMITED", "message": "Rate limit exceeded"})
}

// RateLimitMiddleware returns a Gin middleware enforcing a token-bucket per-key limit.
// Key selection: the X-Client-ID header when present, otherwise the client IP.
// rps = allowed events per second, burst = maximum tokens in bucket.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	var limiters sync.Map // map[string]*rate.Limiter
	get := func(key string) *rate.Limiter {
		if v, ok := limiters.Load(key); ok {
			return v.(*rate.Limiter)
		}
		v, _ := limiters.LoadOrStore(key, rate.NewLimiter(rate.Limit(rps), burst))
		return v.(*rate.Limiter)
	}

	return func(c *gin.Context) {
		if !get(limitKey(c)).Allow() {
			metrics.RateLimitRejected.WithLabelValues("memory").Inc()
			rejectRateLimited(c, "1")
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
		c.Next()
	}
}
