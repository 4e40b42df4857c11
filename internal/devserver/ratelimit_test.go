package devserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/gamecheck/internal/logging"
)

func newTestLimiter(cfg RateLimitConfig) *rateLimiter {
	return newRateLimiter(cfg, logging.Component("test"))
}

func TestRateLimiterBasicLimit(t *testing.T) {
	t.Parallel()

	rl := newTestLimiter(RateLimitConfig{MaxRequests: 3, Window: time.Second, BlockAfter: 10, BlockTime: time.Second})

	for i := 0; i < 3; i++ {
		assert.True(t, rl.check("10.0.0.1").Allowed, "request %d should be allowed", i+1)
	}

	res := rl.check("10.0.0.1")
	assert.False(t, res.Allowed)
	assert.False(t, res.IsBlocked)
	assert.Equal(t, "rate limit exceeded", res.Reason)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, res.RetryAfter, time.Second)

	assert.True(t, rl.check("10.0.0.2").Allowed, "clients are limited separately")
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	t.Parallel()

	rl := newTestLimiter(RateLimitConfig{MaxRequests: 2, Window: 50 * time.Millisecond, BlockAfter: 10, BlockTime: time.Second})

	require.True(t, rl.check("c").Allowed)
	require.True(t, rl.check("c").Allowed)
	require.False(t, rl.check("c").Allowed)

	time.Sleep(70 * time.Millisecond)
	assert.True(t, rl.check("c").Allowed)
}

func TestRateLimiterBlocksRepeatOffenders(t *testing.T) {
	t.Parallel()

	rl := newTestLimiter(RateLimitConfig{MaxRequests: 1, Window: time.Hour, BlockAfter: 2, BlockTime: time.Minute})

	require.True(t, rl.check("c").Allowed)
	assert.False(t, rl.check("c").IsBlocked, "first rejection only counts")

	res := rl.check("c")
	assert.True(t, res.IsBlocked, "second rejection blocks")
	assert.InDelta(t, time.Minute.Seconds(), res.RetryAfter.Seconds(), 1)

	// Two more rejections while blocked double the block.
	rl.check("c")
	res = rl.check("c")
	assert.True(t, res.IsBlocked)
	assert.Equal(t, "too many rejected submissions", res.Reason)
	assert.InDelta(t, (2 * time.Minute).Seconds(), res.RetryAfter.Seconds(), 1)
}

func TestRateLimiterBlockExpires(t *testing.T) {
	t.Parallel()

	rl := newTestLimiter(RateLimitConfig{MaxRequests: 1, Window: 20 * time.Millisecond, BlockAfter: 1, BlockTime: 30 * time.Millisecond})

	require.True(t, rl.check("c").Allowed)
	require.True(t, rl.check("c").IsBlocked)

	time.Sleep(50 * time.Millisecond)
	assert.True(t, rl.check("c").Allowed)
}

func TestRateLimiterDefaults(t *testing.T) {
	t.Parallel()

	rl := newTestLimiter(RateLimitConfig{})
	assert.Equal(t, DefaultRateLimitConfig(), rl.config)
}

func TestRateLimiterCleanup(t *testing.T) {
	t.Parallel()

	rl := newTestLimiter(RateLimitConfig{MaxRequests: 1, Window: 10 * time.Millisecond, BlockAfter: 1, BlockTime: 10 * time.Millisecond})
	rl.check("a")
	rl.check("a")
	rl.check("b")

	time.Sleep(30 * time.Millisecond)
	rl.cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.requests)
	assert.Empty(t, rl.blocked)
	assert.Empty(t, rl.rejections)
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "remote address", remote: "192.0.2.1:5555", want: "192.0.2.1"},
		{name: "remote without port", remote: "192.0.2.1", want: "192.0.2.1"},
		{name: "forwarded for", headers: map[string]string{"X-Forwarded-For": " 203.0.113.7 , 10.0.0.1"}, remote: "10.0.0.1:1", want: "203.0.113.7"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "203.0.113.9"}, remote: "10.0.0.1:1", want: "203.0.113.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/game-catalogue", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(r))
		})
	}
}
