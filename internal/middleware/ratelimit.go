package middleware

import (
	"net/http"
	"sync"
	"time"

	"calibra/internal/config"
)

// RateLimiter throttles requests per client IP with a fixed-window token
// budget. Calibration traffic is low-volume and interactive, so a coarse
// per-IP window is enough.
type RateLimiter struct {
	enabled bool
	budget  int
	window  time.Duration
	clients map[string]*clientWindow
	mu      sync.Mutex
}

type clientWindow struct {
	windowStart time.Time
	remaining   int
}

// NewRateLimiter creates a rate limiter from config and starts its
// background eviction loop
func NewRateLimiter(cfg *config.RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		enabled: cfg.Enabled,
		budget:  cfg.Requests,
		window:  cfg.Duration,
		clients: make(map[string]*clientWindow),
	}

	go rl.evictIdle()

	return rl
}

// Limit enforces the per-IP request budget
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.enabled {
			next.ServeHTTP(w, r)
			return
		}

		if !rl.allow(getIP(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"Rate limit exceeded. Please try again later."}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	c, ok := rl.clients[ip]
	if !ok || now.Sub(c.windowStart) >= rl.window {
		rl.clients[ip] = &clientWindow{windowStart: now, remaining: rl.budget - 1}
		return true
	}

	if c.remaining > 0 {
		c.remaining--
		return true
	}
	return false
}

// evictIdle drops clients that have not been seen for several windows
func (rl *RateLimiter) evictIdle() {
	for {
		time.Sleep(time.Minute)

		rl.mu.Lock()
		for ip, c := range rl.clients {
			if time.Since(c.windowStart) > 3*time.Minute {
				delete(rl.clients, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// getIP resolves the client address, honoring proxy headers
func getIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
