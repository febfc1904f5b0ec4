// Package ratelimit throttles requests per client IP with fixed windows.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/intervention-service/internal/audit"
	apperrors "github.com/spec-kit/intervention-service/pkg/util/errorutil"
)

// Bucket names one throttled route group.
type Bucket struct {
	Name   string
	Max    int
	Window time.Duration
}

// Counter increments the hit count of key within its window and returns the
// new count. The first hit starts the window.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// windowClient is the part of *redis.Client the counter uses.
type windowClient interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	ExpireNX(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

type redisCounter struct {
	client windowClient
}

// NewRedisCounter counts with INCR and starts windows with EXPIRE NX.
func NewRedisCounter(client *redis.Client) Counter {
	return &redisCounter{client: client}
}

// Incr sets the window TTL on every hit with NX, so a key whose first EXPIRE
// was lost still gets one on the next request.
func (r *redisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if err := r.client.ExpireNX(ctx, key, window).Err(); err != nil {
		return 0, err
	}
	return count, nil
}

// MemoryCounter is a process-local Counter for single instance deployments.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]memoryWindow
	sweepAt time.Time
	now     func() time.Time
}

type memoryWindow struct {
	count   int64
	expires time.Time
}

// NewMemoryCounter returns an empty MemoryCounter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{windows: map[string]memoryWindow{}, now: time.Now}
}

func (m *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if !now.Before(m.sweepAt) {
		m.sweep(now)
		m.sweepAt = now.Add(window)
	}
	w, ok := m.windows[key]
	if !ok || !now.Before(w.expires) {
		w = memoryWindow{expires: now.Add(window)}
	}
	w.count++
	m.windows[key] = w
	return w.count, nil
}

// sweep drops windows that ended before now.
func (m *MemoryCounter) sweep(now time.Time) {
	for key, w := range m.windows {
		if !now.Before(w.expires) {
			delete(m.windows, key)
		}
	}
}

// Len reports the number of tracked windows.
func (m *MemoryCounter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

// Limiter builds fiber middleware for buckets.
type Limiter struct {
	counter  Counter
	recorder audit.Recorder
	logger   *zap.Logger
	enabled  bool
}

// NewLimiter constructs a limiter. A disabled limiter passes every request.
func NewLimiter(counter Counter, recorder audit.Recorder, logger *zap.Logger, enabled bool) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{counter: counter, recorder: recorder, logger: logger, enabled: enabled}
}

// Middleware throttles requests of one client IP within the bucket. Counter
// failures let the request through.
func (l *Limiter) Middleware(bucket Bucket) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !l.enabled || l.counter == nil || bucket.Max <= 0 {
			return c.Next()
		}
		key := fmt.Sprintf("ratelimit:%s:%s", bucket.Name, c.IP())
		count, err := l.counter.Incr(c.UserContext(), key, bucket.Window)
		if err != nil {
			l.logger.Warn("rate limiter unavailable", zap.String("bucket", bucket.Name), zap.Error(err))
			return c.Next()
		}

		remaining := int64(bucket.Max) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(bucket.Max))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		if count <= int64(bucket.Max) {
			return c.Next()
		}

		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(bucket.Window.Seconds())))
		l.recordThrottle(c, bucket)
		return apperrors.NewRateLimited("too many requests, try again later")
	}
}

func (l *Limiter) recordThrottle(c *fiber.Ctx, bucket Bucket) {
	if l.recorder == nil {
		return
	}
	err := l.recorder.RecordSecurityEvent(c.UserContext(), audit.SecurityEvent{
		Type:      audit.SecurityRateLimited,
		IP:        c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
		Details: map[string]any{
			"bucket": bucket.Name,
			"method": c.Method(),
			"path":   c.Path(),
		},
	})
	if err != nil {
		l.logger.Warn("security event not recorded", zap.String("bucket", bucket.Name), zap.Error(err))
	}
}
