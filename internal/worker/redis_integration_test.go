//go:build integration

package worker_test

// Exercises the Redis-backed pieces against a real Redis via testcontainers.
// Run with: go test -tags integration ./internal/worker/... -v

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/infra"
	"github.com/aiaimg/taxcollecotr-sub000/internal/middleware"
	"github.com/aiaimg/taxcollecotr-sub000/internal/model"
	"github.com/aiaimg/taxcollecotr-sub000/internal/worker"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	rdC, err := tcRedis.RunContainer(ctx,
		testcontainers.WithImage("redis:7-alpine"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	rdb, err := infra.NewRedis(rdURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedis_Integration(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()

	t.Run("broker is FIFO across pushes", func(t *testing.T) {
		b := worker.NewRedisBroker(rdb)
		require.NoError(t, b.Push(ctx, "q:test", []byte("first")))
		require.NoError(t, b.Push(ctx, "q:test", []byte("second")))

		n, err := b.Len(ctx, "q:test")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		queue, payload, err := b.Pop(ctx, time.Second, "q:test")
		require.NoError(t, err)
		assert.Equal(t, "q:test", queue)
		assert.Equal(t, "first", string(payload))

		_, payload, err = b.Pop(ctx, time.Second, "q:test")
		require.NoError(t, err)
		assert.Equal(t, "second", string(payload))

		_, _, err = b.Pop(ctx, time.Second, "q:test")
		assert.ErrorIs(t, err, worker.ErrEmpty)
	})

	t.Run("dispatcher jobs reach the pool handler", func(t *testing.T) {
		b := worker.NewRedisBroker(rdb)
		pool := worker.NewPool(b, 3)
		var got worker.ReceiptJob
		pool.Register(worker.QueueReceipt, worker.HandlerFunc(func(_ context.Context, raw json.RawMessage) error {
			return json.Unmarshal(raw, &got)
		}))

		artifact := uuid.New()
		require.NoError(t, worker.NewDispatcher(b).EnqueueReceipt(ctx, artifact))

		ok, err := pool.ProcessNext(ctx, time.Second, worker.QueueReceipt)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, artifact, got.ArtifactID)
	})

	t.Run("lock admits one holder and only the owner releases", func(t *testing.T) {
		l := worker.NewRedisLock(rdb)

		release, ok, err := l.Acquire(ctx, "task:verify", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		_, ok, err = l.Acquire(ctx, "task:verify", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		release()
		release2, ok, err := l.Acquire(ctx, "task:verify", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		// A stale release from the first holder must not free the new holder's lock.
		release()
		_, ok, err = l.Acquire(ctx, "task:verify", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
		release2()
	})

	t.Run("rate counter windows expire", func(t *testing.T) {
		c := middleware.NewRedisCounter(rdb)
		for i := int64(1); i <= 3; i++ {
			n, err := c.Incr(ctx, "login:10.0.0.1", 2*time.Second)
			require.NoError(t, err)
			assert.Equal(t, i, n)
		}
		ttl, err := rdb.TTL(ctx, "ratelimit:login:10.0.0.1").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))

		require.Eventually(t, func() bool {
			n, err := c.Incr(ctx, "login:10.0.0.1", 2*time.Second)
			return err == nil && n == 1
		}, 5*time.Second, 250*time.Millisecond)
	})

	t.Run("tax assessments are cached", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"amount":"100000","is_exempt":false,"currency":"MGA"}`))
		}))
		defer srv.Close()

		c := infra.NewTaxClient(srv.URL, time.Second, nil, rdb, time.Minute)
		v := &model.Vehicle{ID: uuid.New(), Plate: "1234TAA", Category: "car", FirstUseYear: 2018}

		for i := 0; i < 3; i++ {
			a, err := c.CalculateTax(ctx, v, 2026)
			require.NoError(t, err)
			assert.True(t, a.Amount.Equal(decimal.NewFromInt(100000)))
		}
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("config changes are broadcast to every listener", func(t *testing.T) {
		bus := infra.NewRedisConfigBus(rdb)
		listenCtx, stop := context.WithCancel(ctx)
		defer stop()

		var invalidated atomic.Int32
		ready := make(chan struct{})
		done := make(chan error, 1)
		go func() { done <- bus.Listen(listenCtx, func() { invalidated.Add(1) }, ready) }()
		select {
		case <-ready:
		case err := <-done:
			t.Fatalf("listener exited early: %v", err)
		}

		require.NoError(t, bus.PublishConfigChange(ctx))
		assert.Eventually(t, func() bool { return invalidated.Load() == 1 }, 5*time.Second, 50*time.Millisecond)

		stop()
		assert.NoError(t, <-done)
	})
}
