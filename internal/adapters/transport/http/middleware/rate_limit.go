package middleware

import (
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter *rate.Limiter
	last    atomic.Int64 // unix nanos of the most recent request
}

func (v *visitor) touch() { v.last.Store(time.Now().UnixNano()) }

func (v *visitor) stale(ttl time.Duration) bool {
	return time.Since(time.Unix(0, v.last.Load())) > ttl
}

// RateLimitPerIP throttles credential endpoints per client IP with an
// LRU-bounded limiter cache.
func RateLimitPerIP(limit, burst, cacheSize int, ttl time.Duration) gin.HandlerFunc {
	visitors, _ := lru.New[string, *visitor](cacheSize)

	return func(c *gin.Context) {
		host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err != nil {
			host = c.ClientIP()
		}

		// Неактивные IP вытесняются лениво: LRU ограничивает память,
		// а протухший лимитер пересоздаётся при следующем запросе.
		v, ok := visitors.Get(host)
		if !ok || v.stale(ttl) {
			v = &visitor{limiter: rate.NewLimiter(rate.Limit(limit), burst)}
			visitors.Add(host, v)
		}
		v.touch()

		if !v.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
