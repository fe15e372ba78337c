package mw

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/MrSnakeDoc/teslahub/internal/api"
	"github.com/MrSnakeDoc/teslahub/internal/logger"
	"github.com/MrSnakeDoc/teslahub/internal/utils"
)

// limitedReason is shown on the phone when submissions come too fast.
const limitedReason = "Too many attempts. Please wait a moment and try again."

// RateLimitConfig configures RateLimit. Zero values take the defaults
// noted on each field.
type RateLimitConfig struct {
	Burst             int           // bucket size (min 1)
	RefillPerIPPerMin int           // tokens regained per minute (min 1)
	MaxEntries        int           // forces an early sweep when reached, 0 = unbounded
	IdleTTL           time.Duration // idle buckets are forgotten after this (15m)
	TrustProxy        bool          // resolve the client from proxy headers

	Logger logger.Logger
	Now    func() time.Time
}

type bucket struct {
	tokens   float64
	refilled time.Time
}

type limiter struct {
	cfg       RateLimitConfig
	perSecond float64
	capacity  float64

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

func newLimiter(cfg RateLimitConfig) *limiter {
	cfg.Burst = max(cfg.Burst, 1)
	cfg.RefillPerIPPerMin = max(cfg.RefillPerIPPerMin, 1)
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	return &limiter{
		cfg:       cfg,
		perSecond: float64(cfg.RefillPerIPPerMin) / 60,
		capacity:  float64(cfg.Burst),
		buckets:   make(map[string]*bucket),
		lastSweep: cfg.Now(),
	}
}

// take spends one token for key. When none is left it returns the wait
// until the next one.
func (l *limiter) take(key string) (remaining int, wait time.Duration, ok bool) {
	now := l.cfg.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.cfg.IdleTTL ||
		(l.cfg.MaxEntries > 0 && len(l.buckets) >= l.cfg.MaxEntries) {
		l.sweep(now)
	}

	b, found := l.buckets[key]
	if !found {
		b = &bucket{tokens: l.capacity, refilled: now}
		l.buckets[key] = b
	}
	if elapsed := now.Sub(b.refilled).Seconds(); elapsed > 0 {
		b.tokens = math.Min(l.capacity, b.tokens+elapsed*l.perSecond)
		b.refilled = now
	}

	if b.tokens < 1 {
		secs := math.Ceil((1 - b.tokens) / l.perSecond)
		return 0, time.Duration(max(secs, 1)) * time.Second, false
	}
	b.tokens--
	return int(b.tokens), 0, true
}

// sweep drops buckets untouched for IdleTTL.
func (l *limiter) sweep(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.refilled) >= l.cfg.IdleTTL {
			delete(l.buckets, k)
		}
	}
	l.lastSweep = now
}

// RateLimit is a token bucket per client guarding the submit endpoints.
// Rejections get 429 with Retry-After and an ErrorResponse whose reason is
// meant for the phone.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	l := newLimiter(cfg)
	limit := strconv.Itoa(l.cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, l.cfg.TrustProxy)
			remaining, wait, ok := l.take(ip)
			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			l.cfg.Logger.Warn("submission rate limited",
				logger.String("remote_ip", ip),
				logger.String("path", r.URL.Path),
				logger.Duration("retry_after", wait))

			w.Header().Set("Retry-After", strconv.Itoa(int(wait/time.Second)))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{
				Error:  http.StatusText(http.StatusTooManyRequests),
				Reason: limitedReason,
			})
		})
	}
}
