package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMemoryRateLimiterAllowsBurstThenRefills(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	limiter := newMemoryRateLimiter(1, 2)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, "login:10.0.0.1")
		require.NoError(t, err)
		require.True(t, ok, "request %d", i)
	}
	ok, _ := limiter.Allow(ctx, "login:10.0.0.1")
	require.False(t, ok)

	other, _ := limiter.Allow(ctx, "login:10.0.0.2")
	require.True(t, other, "keys are independent")

	now = now.Add(time.Second)
	ok, _ = limiter.Allow(ctx, "login:10.0.0.1")
	require.True(t, ok)
}

func TestMemoryRateLimiterPrunesIdleVisitors(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	limiter := newMemoryRateLimiter(1, 1)
	limiter.now = func() time.Time { return now }

	_, _ = limiter.Allow(context.Background(), "stale")
	now = now.Add(5 * time.Minute)
	_, _ = limiter.Allow(context.Background(), "recent")
	now = now.Add(time.Minute)

	require.Equal(t, 1, limiter.prune(3*time.Minute))
	require.Len(t, limiter.visitors, 1)
	require.Contains(t, limiter.visitors, "recent")
}

func newMiniredisLimiter(t *testing.T, rps float64, burst int, window time.Duration) (*redisRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return newRedisRateLimiter(client, rps, burst, window), mr
}

func TestRedisRateLimiterFixedWindow(t *testing.T) {
	limiter, mr := newMiniredisLimiter(t, 1, 1, 2*time.Second)
	now := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	// floor(1 rps * 2s) + 1 burst
	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "contact:10.0.0.1")
		require.NoError(t, err)
		require.True(t, ok, "request %d", i)
	}
	ok, err := limiter.Allow(ctx, "contact:10.0.0.1")
	require.NoError(t, err)
	require.False(t, ok)

	key := "rl:contact:10.0.0.1:850000000"
	require.True(t, mr.Exists(key))
	require.Equal(t, 3*time.Second, mr.TTL(key))

	now = now.Add(2 * time.Second)
	ok, err = limiter.Allow(ctx, "contact:10.0.0.1")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(4 * time.Second)
	require.False(t, mr.Exists(key))
}

func TestRedisRateLimiterReportsBackendErrors(t *testing.T) {
	limiter, mr := newMiniredisLimiter(t, 1, 1, time.Second)
	mr.Close()

	_, err := limiter.Allow(context.Background(), "login:10.0.0.1")
	require.Error(t, err)
}

func TestRateLimitMiddlewareRejectsWithRetryAfter(t *testing.T) {
	app := newTestApp(t, &memoryContentStore{}, nil)
	app.limiter = newMemoryRateLimiter(0.5, 1)
	r := testRouter(t, app)

	first := doRequest(r, http.MethodPost, "/api/login", `{"password":"west123"}`, nil)
	require.Equal(t, http.StatusOK, first.Code)

	second := doRequest(r, http.MethodPost, "/api/login", `{"password":"west123"}`, nil)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	require.Equal(t, "2", second.Header().Get("Retry-After"))
	require.JSONEq(t, `{"error":"too many requests"}`, second.Body.String())

	// scopes are limited separately
	probe := doRequest(r, http.MethodPost, "/api/contact", `{}`, nil)
	require.Equal(t, http.StatusBadRequest, probe.Code)

	require.Equal(t, float64(1), testutil.ToFloat64(app.metrics.rateLimitDecisions.WithLabelValues("memory", "rejected")))
}

func TestRateLimitMiddlewareFailsOpen(t *testing.T) {
	app := newTestApp(t, &memoryContentStore{}, nil)
	limiter, mr := newMiniredisLimiter(t, 1, 1, time.Second)
	app.limiter = limiter
	mr.Close()
	r := testRouter(t, app)

	for i := 0; i < 3; i++ {
		rec := doRequest(r, http.MethodPost, "/api/login", `{"password":"west123"}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	require.Equal(t, float64(3), testutil.ToFloat64(app.metrics.rateLimitDecisions.WithLabelValues("redis", "error")))
}
