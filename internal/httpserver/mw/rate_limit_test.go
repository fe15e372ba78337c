package mw

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/teslahub/internal/api"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func submit(h http.Handler, remote, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitBurstAndRefill(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	h := RateLimit(RateLimitConfig{Burst: 2, RefillPerIPPerMin: 6, Now: clock.Now})(okHandler)

	rec := submit(h, "192.0.2.1:1", "/complete")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusNoContent, submit(h, "192.0.2.1:1", "/complete").Code)

	rec = submit(h, "192.0.2.1:1", "/complete")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "10", rec.Header().Get("Retry-After"))
	var body api.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, limitedReason, body.Reason)

	// Another client has its own bucket.
	assert.Equal(t, http.StatusNoContent, submit(h, "192.0.2.2:1", "/complete").Code)

	clock.Advance(10 * time.Second)
	assert.Equal(t, http.StatusNoContent, submit(h, "192.0.2.1:1", "/complete").Code)
}

func TestLimiterSweepForgetsIdleBuckets(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := newLimiter(RateLimitConfig{Burst: 1, IdleTTL: time.Minute, Now: clock.Now})

	_, _, ok := l.take("a")
	require.True(t, ok)
	assert.Len(t, l.buckets, 1)

	clock.Advance(2 * time.Minute)
	_, _, ok = l.take("b")
	require.True(t, ok)
	assert.Len(t, l.buckets, 1)
	assert.Contains(t, l.buckets, "b")
}
