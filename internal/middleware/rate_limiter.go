package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Counter increments a fixed-window counter and reports the hits seen in the
// current window.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// ── Redis counter ─────────────────────────────────────────────────────────────

// RedisCounter shares rate-limit windows across every API replica.
type RedisCounter struct {
	rdb *redis.Client
}

func NewRedisCounter(rdb *redis.Client) *RedisCounter {
	return &RedisCounter{rdb: rdb}
}

func (r *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	key = "ratelimit:" + key
	n, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := r.rdb.Expire(ctx, key, window).Err(); err != nil {
			return 0, err
		}
	}
	return n, nil
}

// ── In-memory counter ─────────────────────────────────────────────────────────

type windowEntry struct {
	count     int64
	windowEnd time.Time
}

// MemoryCounter is a single-process counter used when Redis is unavailable
// and in tests.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	now     func() time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{entries: make(map[string]*windowEntry), now: time.Now}
}

func (m *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.entries[key]
	if !ok || now.After(e.windowEnd) {
		e = &windowEntry{windowEnd: now.Add(window)}
		m.entries[key] = e
	}
	e.count++
	return e.count, nil
}

// Purge drops expired windows so IPs that never return do not accumulate.
func (m *MemoryCounter) Purge() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	purged := 0
	for k, e := range m.entries {
		if now.After(e.windowEnd) {
			delete(m.entries, k)
			purged++
		}
	}
	return purged
}

// RunPurge purges expired windows every interval until ctx is cancelled.
func (m *MemoryCounter) RunPurge(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Purge(); n > 0 {
				log.Debug().Int("entries_purged", n).Msg("rate limiter windows purged")
			}
		}
	}
}

// ── Middleware ────────────────────────────────────────────────────────────────

// RateLimiter returns a fixed-window limiter keyed by client IP and scope.
// A counter failure lets the request through.
func RateLimiter(counter Counter, scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := counter.Incr(c.Request.Context(), scope+":"+c.ClientIP(), window)
		if err != nil {
			log.Warn().Err(err).Str("scope", scope).Msg("rate limiter unavailable")
			c.Next()
			return
		}
		if n > int64(limit) {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.WithCode("rate_limited", "Too many requests. Try again shortly."))
			return
		}
		c.Next()
	}
}

// LoginRateLimiter limits login attempts to 20 per minute per IP.
func LoginRateLimiter(counter Counter) gin.HandlerFunc {
	return RateLimiter(counter, "login", 20, time.Minute)
}
