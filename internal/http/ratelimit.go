package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// ipLimiters hands out one token bucket per client IP.
type ipLimiters struct {
	perMinute int

	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
	lastCleanup time.Time
}

func newIPLimiters(perMinute int) *ipLimiters {
	return &ipLimiters{perMinute: perMinute, limiters: make(map[string]*rate.Limiter), lastCleanup: time.Now()}
}

func (l *ipLimiters) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Reset hourly so the map cannot grow without bound.
	if time.Since(l.lastCleanup) > time.Hour {
		l.limiters = make(map[string]*rate.Limiter)
		l.lastCleanup = time.Now()
	}

	limiter, ok := l.limiters[ip]
	if !ok {
		burst := min(l.perMinute, 10)
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), burst)
		l.limiters[ip] = limiter
	}
	return limiter
}

// rateLimit rejects clients that exceed the configured creation rate.
func (s *Server) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.limiters.perMinute <= 0 {
			return next(c)
		}
		if !s.limiters.get(c.RealIP()).Allow() {
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		}
		return next(c)
	}
}
