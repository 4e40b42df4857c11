package devserver

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/thruflo/gamecheck/internal/logging"
)

// RateLimitConfig holds submission rate limiting configuration.
type RateLimitConfig struct {
	MaxRequests int           // Maximum submissions per window (default: 6)
	Window      time.Duration // Sliding window (default: 1 minute)
	BlockAfter  int           // Block after this many rejected submissions (default: 5)
	BlockTime   time.Duration // Base block duration (default: 1 minute, doubles each block)
}

// DefaultRateLimitConfig returns the default rate limiting configuration.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 6,
		Window:      time.Minute,
		BlockAfter:  5,
		BlockTime:   time.Minute,
	}
}

// rateLimiter implements a sliding window rate limiter with exponential
// backoff for clients that keep submitting while limited.
type rateLimiter struct {
	mu     sync.Mutex
	config RateLimitConfig
	logger *logging.Logger

	// requests tracks timestamps of accepted requests per client
	requests map[string][]time.Time

	// rejections counts consecutive rejected requests per client
	rejections map[string]int

	// blocked maps a client to the time its block expires
	blocked map[string]time.Time
}

func newRateLimiter(config RateLimitConfig, logger *logging.Logger) *rateLimiter {
	defaults := DefaultRateLimitConfig()
	if config.MaxRequests <= 0 {
		config.MaxRequests = defaults.MaxRequests
	}
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	if config.BlockAfter <= 0 {
		config.BlockAfter = defaults.BlockAfter
	}
	if config.BlockTime <= 0 {
		config.BlockTime = defaults.BlockTime
	}

	return &rateLimiter{
		config:     config,
		logger:     logger,
		requests:   make(map[string][]time.Time),
		rejections: make(map[string]int),
		blocked:    make(map[string]time.Time),
	}
}

// checkResult is the outcome of a rate limit check.
type checkResult struct {
	Allowed    bool
	RetryAfter time.Duration // How long until the client can retry
	IsBlocked  bool          // True if blocked for repeated rejections
	Reason     string
}

// check records a request from client and reports whether it is allowed.
// Rejected requests count towards a block.
func (rl *rateLimiter) check(client string) checkResult {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	if expiry, isBlocked := rl.blocked[client]; isBlocked {
		if now.Before(expiry) {
			rl.reject(client, now)
			return checkResult{
				RetryAfter: rl.blocked[client].Sub(now),
				IsBlocked:  true,
				Reason:     "too many rejected submissions",
			}
		}
		delete(rl.blocked, client)
	}

	rl.requests[client] = inWindow(rl.requests[client], now.Add(-rl.config.Window))

	if n := len(rl.requests[client]); n >= rl.config.MaxRequests {
		retryAfter := rl.requests[client][0].Add(rl.config.Window).Sub(now)
		if retryAfter <= 0 {
			retryAfter = time.Second
		}
		rl.reject(client, now)
		if expiry, isBlocked := rl.blocked[client]; isBlocked && expiry.After(now) {
			return checkResult{
				RetryAfter: expiry.Sub(now),
				IsBlocked:  true,
				Reason:     "too many rejected submissions",
			}
		}
		return checkResult{
			RetryAfter: retryAfter,
			Reason:     "rate limit exceeded",
		}
	}

	rl.requests[client] = append(rl.requests[client], now)
	delete(rl.rejections, client)
	return checkResult{Allowed: true}
}

// reject counts a rejection and blocks the client each time the count
// reaches a multiple of BlockAfter. Each block doubles the previous one,
// capped at a day. Callers hold rl.mu.
func (rl *rateLimiter) reject(client string, now time.Time) {
	rl.rejections[client]++
	n := rl.rejections[client]
	if n < rl.config.BlockAfter || n%rl.config.BlockAfter != 0 {
		return
	}

	blocks := (n - rl.config.BlockAfter) / rl.config.BlockAfter
	if blocks > 10 {
		blocks = 10
	}
	d := rl.config.BlockTime * time.Duration(1<<blocks)
	if d > 24*time.Hour {
		d = 24 * time.Hour
	}
	rl.blocked[client] = now.Add(d)
	rl.logger.Warn("client blocked", "client", client, "for", d, "rejections", n)
}

// cleanup removes expired entries. Called periodically.
func (rl *rateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.config.Window)

	for client, timestamps := range rl.requests {
		if valid := inWindow(timestamps, windowStart); len(valid) > 0 {
			rl.requests[client] = valid
		} else {
			delete(rl.requests, client)
		}
	}

	for client, expiry := range rl.blocked {
		if now.After(expiry) {
			delete(rl.blocked, client)
			delete(rl.rejections, client)
		}
	}
}

func inWindow(timestamps []time.Time, start time.Time) []time.Time {
	valid := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(start) {
			valid = append(valid, ts)
		}
	}
	return valid
}

// clientIP extracts the client address from the request, preferring
// X-Forwarded-For and X-Real-IP when running behind a proxy.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
