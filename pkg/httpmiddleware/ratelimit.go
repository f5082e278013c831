package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Decision is the result of a rate limit check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter counts requests per key in a sliding window.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (Decision, error)
}

// RateLimitConfig configures the rate limit middleware.
type RateLimitConfig struct {
	// Max is the maximum number of requests allowed per window.
	Max int
	// Window is the duration of each sliding window.
	Window time.Duration
	// KeyFunc extracts the rate limit key from a request.
	// If nil, the client IP address is used.
	KeyFunc func(*http.Request) string
}

// estimate returns the request rate over the last window from the counts of
// the previous and current fixed windows, weighting the previous one by how
// much of it the sliding window still covers.
func estimate(prev, curr float64, currStart, now time.Time, window time.Duration) float64 {
	overlap := 1.0 - now.Sub(currStart).Seconds()/window.Seconds()
	if overlap < 0 {
		overlap = 0
	}
	return prev*overlap + curr
}

type memoryEntry struct {
	prevCount float64
	prevStart time.Time
	currCount float64
	currStart time.Time
}

// MemoryLimiter is a Limiter local to the process.
type MemoryLimiter struct {
	max    int
	window time.Duration

	mu      sync.Mutex
	entries map[string]*memoryEntry
}

// NewMemoryLimiter creates a MemoryLimiter allowing max requests per window.
func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		max:     max,
		window:  window,
		entries: make(map[string]*memoryEntry),
	}
}

// Allow implements Limiter. Rejected requests are not counted.
func (l *MemoryLimiter) Allow(_ context.Context, key string, now time.Time) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &memoryEntry{currStart: now.Truncate(l.window)}
		l.entries[key] = e
	}

	if now.Sub(e.currStart) >= l.window {
		e.prevCount = e.currCount
		e.prevStart = e.currStart
		e.currCount = 0
		e.currStart = now.Truncate(l.window)
		if now.Sub(e.prevStart) >= 2*l.window {
			e.prevCount = 0
		}
	}

	count := estimate(e.prevCount, e.currCount, e.currStart, now, l.window)
	d := Decision{ResetAt: e.currStart.Add(l.window)}
	if count >= float64(l.max) {
		return d, nil
	}

	e.currCount++
	d.Allowed = true
	d.Remaining = max(int(float64(l.max)-count-1), 0)
	return d, nil
}

// Cleanup removes entries whose windows have fully expired.
func (l *MemoryLimiter) Cleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, e := range l.entries {
		if now.Sub(e.currStart) >= 2*l.window {
			delete(l.entries, key)
		}
	}
}

// RunCleanup calls Cleanup every two windows until ctx is cancelled.
func (l *MemoryLimiter) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(2 * l.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.Cleanup(now)
		}
	}
}

// RedisLimiter is a Limiter shared by every API instance using the same
// Redis. Each fixed window is a counter key expiring after two windows.
// Rejected requests are counted too.
type RedisLimiter struct {
	rdb    redis.UniversalClient
	max    int
	window time.Duration
	prefix string
}

// NewRedisLimiter creates a RedisLimiter allowing max requests per window.
func NewRedisLimiter(rdb redis.UniversalClient, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, max: max, window: window, prefix: "ratelimit:"}
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string, now time.Time) (Decision, error) {
	currStart := now.Truncate(l.window)
	prevStart := currStart.Add(-l.window)
	currKey := l.prefix + key + ":" + strconv.FormatInt(currStart.UnixMilli(), 10)
	prevKey := l.prefix + key + ":" + strconv.FormatInt(prevStart.UnixMilli(), 10)

	var (
		prev *redis.StringCmd
		curr *redis.IntCmd
	)
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		prev = pipe.Get(ctx, prevKey)
		curr = pipe.Incr(ctx, currKey)
		pipe.PExpire(ctx, currKey, 2*l.window)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return Decision{}, errors.Wrap(err, "count request")
	}

	prevCount, err := prev.Float64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Decision{}, errors.Wrap(err, "read previous window")
	}

	// The counter already includes this request.
	count := estimate(prevCount, float64(curr.Val()), currStart, now, l.window)
	d := Decision{ResetAt: currStart.Add(l.window)}
	if count > float64(l.max) {
		return d, nil
	}
	d.Allowed = true
	d.Remaining = max(int(float64(l.max)-count), 0)
	return d, nil
}

// RateLimit returns a middleware enforcing limiter per client key. When the
// limit is exceeded it responds with 429 Too Many Requests and a JSON body.
// Every response includes X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset headers. Limiter errors let the request through.
func RateLimit(cfg RateLimitConfig, limiter Limiter) Middleware {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = ClientIP
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			d, err := limiter.Allow(r.Context(), keyFunc(r), now)
			if err != nil {
				zctx.From(r.Context()).Warn("Rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Max))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

			if !d.Allowed {
				retryAfter := max(d.ResetAt.Sub(now), 0)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the client IP from the request, checking X-Forwarded-For
// first, then X-Real-IP, then falling back to RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeError writes the {"code", "message"} error body used across the API.
func writeError(w http.ResponseWriter, code int, msg string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(code)
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}
