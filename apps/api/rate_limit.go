package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

var errRateLimited = &apiError{Status: http.StatusTooManyRequests, Code: "rate_limited", Message: "too many requests"}

type rateLimiter interface {
	// Allow reports whether one more request for key is within the limit.
	Allow(ctx context.Context, key string) (bool, error)
	Kind() string
	RetryAfter() time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// memoryRateLimiter is a per-process token bucket per key.
type memoryRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	r        rate.Limit
	b        int
	now      func() time.Time
}

func newMemoryRateLimiter(rps float64, burst int) *memoryRateLimiter {
	return &memoryRateLimiter{
		visitors: make(map[string]*visitor),
		r:        rate.Limit(rps),
		b:        burst,
		now:      time.Now,
	}
}

func (m *memoryRateLimiter) Kind() string { return "memory" }

func (m *memoryRateLimiter) RetryAfter() time.Duration {
	if m.r <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / float64(m.r))
}

func (m *memoryRateLimiter) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	v, ok := m.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(m.r, m.b)}
		m.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1), nil
}

// prune drops visitors idle for longer than ttl.
func (m *memoryRateLimiter) prune(ttl time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, v := range m.visitors {
		if now.Sub(v.lastSeen) > ttl {
			delete(m.visitors, key)
			removed++
		}
	}
	return removed
}

func (m *memoryRateLimiter) startCleanup(ctx context.Context, interval, ttl time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.prune(ttl)
			}
		}
	}()
}

// redisRateLimiter is a fixed-window counter shared by every replica.
// Each window admits floor(rps*window)+burst requests per key.
type redisRateLimiter struct {
	client  *redis.Client
	window  time.Duration
	allowed int64
	now     func() time.Time
}

func newRedisRateLimiter(client *redis.Client, rps float64, burst int, window time.Duration) *redisRateLimiter {
	if window < time.Second {
		window = time.Second
	}
	return &redisRateLimiter{
		client:  client,
		window:  window,
		allowed: int64(rps*window.Seconds()) + int64(burst),
		now:     time.Now,
	}
}

func (r *redisRateLimiter) Kind() string { return "redis" }

func (r *redisRateLimiter) RetryAfter() time.Duration { return r.window }

func (r *redisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	windowSeconds := int64(r.window / time.Second)
	bucket := r.now().Unix() / windowSeconds
	redisKey := fmt.Sprintf("rl:%s:%d", key, bucket)

	cnt, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("incr %s: %w", redisKey, err)
	}
	if cnt == 1 {
		_ = r.client.Expire(ctx, redisKey, r.window+time.Second).Err()
	}
	return cnt <= r.allowed, nil
}

// rateLimit throttles a route per client IP. Limiter failures let the request through.
func (a *App) rateLimit(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.limiter == nil {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		kind := a.limiter.Kind()

		allowed, err := a.limiter.Allow(c.Request.Context(), scope+":"+ip)
		if err != nil {
			a.log.Warn("rate limit check failed; allowing request", "scope", scope, "limiter", kind, "err", err)
			a.metrics.rateLimitDecisions.WithLabelValues(kind, "error").Inc()
			c.Next()
			return
		}
		if !allowed {
			a.metrics.rateLimitDecisions.WithLabelValues(kind, "rejected").Inc()
			retry := int(a.limiter.RetryAfter().Seconds())
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			writeAPIError(c, errRateLimited)
			return
		}
		a.metrics.rateLimitDecisions.WithLabelValues(kind, "allowed").Inc()
		c.Next()
	}
}
