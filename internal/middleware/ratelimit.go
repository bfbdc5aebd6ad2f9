package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sutnist/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// FailPolicy defines the behavior when the rate limit store (Redis) is unavailable.
type FailPolicy int

const (
	// FailOpen falls back to an in-process limiter when Redis is unavailable.
	FailOpen FailPolicy = iota
	// FailClosed blocks the request (503 Service Unavailable) if Redis is unavailable.
	FailClosed
)

// maxLocalBuckets caps the in-process fallback map; it is reset when full.
const maxLocalBuckets = 10000

var errNoRedis = errors.New("redis client is nil")

// RateLimiter enforces fixed-window limits in Redis and keeps token buckets in memory for
// when Redis cannot be reached.
type RateLimiter struct {
	rdb     *redis.Client
	enabled bool

	mu    sync.Mutex
	local map[string]*rate.Limiter
}

// NewRateLimiter builds a limiter. Limits are skipped entirely in test, development and
// stress environments so local workflows are not throttled.
func NewRateLimiter(rdb *redis.Client, env string) *RateLimiter {
	enabled := true
	switch env {
	case "", "test", "development", "stress":
		enabled = false
	}
	return &RateLimiter{rdb: rdb, enabled: enabled, local: make(map[string]*rate.Limiter)}
}

// Check reports whether one more hit on resource by id fits in limit per window.
// The error is non-nil only when Redis failed; allowed then reflects the local fallback.
func (l *RateLimiter) Check(ctx context.Context, resource, id string, limit int, window time.Duration) (bool, error) {
	if !l.enabled {
		return true, nil
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)
	if l.rdb == nil {
		return l.allowLocal(key, limit, window), errNoRedis
	}

	cnt, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return l.allowLocal(key, limit, window), err
	}
	if cnt == 1 {
		l.rdb.Expire(ctx, key, window)
	}
	return cnt <= int64(limit), nil
}

func (l *RateLimiter) allowLocal(key string, limit int, window time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.local[key]
	if !ok {
		if len(l.local) >= maxLocalBuckets {
			l.local = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(rate.Every(window/time.Duration(max(limit, 1))), max(limit, 1))
		l.local[key] = lim
	}
	return lim.Allow()
}

// Limit returns a Fiber middleware enforcing limit requests per window, keyed by the
// authenticated user when present and by remote IP otherwise.
func (l *RateLimiter) Limit(name string, limit int, window time.Duration, policy FailPolicy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var id string
		if uid := c.Locals("userID"); uid != nil {
			id = fmt.Sprintf("user:%v", uid)
		} else {
			id = fmt.Sprintf("ip:%s", c.IP())
		}

		resource := name
		if resource == "" {
			resource = c.Path()
		}

		allowed, err := l.Check(c.UserContext(), resource, id, limit, window)
		if err != nil {
			if policy == FailClosed {
				slog.WarnContext(c.UserContext(), "rate limit fail-closed",
					slog.String("path", c.Path()),
					slog.String("resource", resource),
					slog.String("error", err.Error()))
				return models.RespondWithError(c, fiber.StatusServiceUnavailable,
					models.NewStorageError(err))
			}
			slog.DebugContext(c.UserContext(), "rate limit using local fallback",
				slog.String("resource", resource), slog.String("error", err.Error()))
		}

		if !allowed {
			return models.RespondWithError(c, fiber.StatusTooManyRequests,
				models.NewRateLimitedError("Too many requests, slow down"))
		}
		return c.Next()
	}
}
