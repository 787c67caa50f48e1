package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// RateLimitConfig bounds request throughput per client IP.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// DefaultRateLimitConfig is generous enough for a busy front desk while
// still cutting off runaway clients.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{RequestsPerSecond: 100, BurstSize: 200}
}

// limiter is the token bucket shared by all requests from one client.
type limiter struct {
	mu     sync.Mutex
	tokens float64
	seen   time.Time
	cfg    RateLimitConfig
}

// take consumes one token, reporting how long the client should wait when
// the bucket is empty.
func (l *limiter) take(now time.Time) (ok bool, wait time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.tokens += now.Sub(l.seen).Seconds() * l.cfg.RequestsPerSecond
	if max := float64(l.cfg.BurstSize); l.tokens > max {
		l.tokens = max
	}
	l.seen = now

	if l.tokens < 1 {
		if l.cfg.RequestsPerSecond <= 0 {
			return false, time.Second
		}
		return false, time.Duration((1 - l.tokens) / l.cfg.RequestsPerSecond * float64(time.Second))
	}
	l.tokens--
	return true, 0
}

// RateLimit rejects clients exceeding the configured throughput with a 429
// and a Retry-After hint.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	var mu sync.Mutex
	limiters := make(map[string]*limiter)

	clientLimiter := func(ip string) *limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[ip]
		if !ok {
			l = &limiter{tokens: float64(cfg.BurstSize), seen: time.Now(), cfg: cfg}
			limiters[ip] = l
		}
		return l
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ok, wait := clientLimiter(c.RealIP()).take(time.Now())
			if !ok {
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(wait/time.Second)+1))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
