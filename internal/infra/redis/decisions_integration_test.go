//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/vietddude/purity/internal/core/domain"
	"github.com/vietddude/purity/internal/infra/storage"
	"github.com/vietddude/purity/internal/infra/storage/memory"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	addr, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	return addr
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(Config{URL: startRedis(t)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCachedDecisions(t *testing.T) {
	client := newTestClient(t)
	inner := memory.NewMemoryStorage().Store().Decisions
	cache := NewCachedDecisions(inner, client, time.Minute)
	ctx := context.Background()

	d := domain.Reject("tx-1", domain.ReasonPegMismatch, time.Now().UTC())
	require.NoError(t, cache.Save(ctx, storage.DecisionRecord{Decision: d}))

	ttl, err := client.rdb.TTL(ctx, decisionKey("tx-1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	got, err := cache.Get(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonPegMismatch, got.Decision.Reason)

	// Evicted entries are refilled from the repository.
	require.NoError(t, client.rdb.Del(ctx, decisionKey("tx-1")).Err())
	_, err = cache.Get(ctx, "tx-1")
	require.NoError(t, err)
	_, err = client.rdb.Get(ctx, decisionKey("tx-1")).Result()
	assert.NotErrorIs(t, err, redis.Nil)

	_, err = cache.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCachedDecisions_SharedClient(t *testing.T) {
	opts, err := redis.ParseURL(startRedis(t))
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	client := NewClientFromRedis(rdb)
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	require.NoError(t, client.Health(ctx))

	cache := NewCachedDecisions(memory.NewMemoryStorage().Store().Decisions, client, time.Minute)
	d := domain.Accept("tx-2", time.Now().UTC())
	require.NoError(t, cache.Save(ctx, storage.DecisionRecord{Decision: d}))

	// Writes through the wrapper are visible on the caller's own client.
	n, err := rdb.Exists(ctx, decisionKey("tx-2")).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
