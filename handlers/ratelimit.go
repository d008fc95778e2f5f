package handlers

import (
	"net/http"
	"sync"
	"time"
)

// RateLimiter is a per-client-address sliding window limiter. each client
// gets at most `rate` requests per `window`; requests over the cap are
// rejected with 429 before they reach the store or the filesystem.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int
	window   time.Duration
}

// visitor tracks request timestamps for a single client address
type visitor struct {
	mu       sync.Mutex
	requests []time.Time
}

func NewRateLimiter(rate int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
	}
	go rl.cleanup()
	return rl
}

// Middleware enforces the limit for every request passing through it.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r)) {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Too many requests, please try again later"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// allow checks if a request from the given address fits in the window
func (rl *RateLimiter) allow(addr string) bool {
	rl.mu.Lock()
	v, exists := rl.visitors[addr]
	if !exists {
		v = &visitor{requests: make([]time.Time, 0, rl.rate)}
		rl.visitors[addr] = v
	}
	rl.mu.Unlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	valid := v.requests[:0]
	for _, t := range v.requests {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	v.requests = valid

	if len(v.requests) >= rl.rate {
		return false
	}
	v.requests = append(v.requests, now)
	return true
}

// cleanup periodically drops visitors with no recent requests
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-rl.window * 2)
		rl.mu.Lock()
		for addr, v := range rl.visitors {
			v.mu.Lock()
			if len(v.requests) == 0 || v.requests[len(v.requests)-1].Before(cutoff) {
				delete(rl.visitors, addr)
			}
			v.mu.Unlock()
		}
		rl.mu.Unlock()
	}
}

// clientIP extracts the client address, preferring reverse-proxy headers.
// chi's RealIP middleware normally rewrites RemoteAddr already; this keeps
// the limiter usable without it.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i, c := range xff {
			if c == ',' {
				return xff[:i]
			}
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	for i := len(r.RemoteAddr) - 1; i >= 0; i-- {
		if r.RemoteAddr[i] == ':' {
			return r.RemoteAddr[:i]
		}
	}
	return r.RemoteAddr
}
