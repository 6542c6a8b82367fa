package cache_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/matchd/internal/cache"
	"github.com/oggyb/matchd/internal/config"
)

func setupCache(t *testing.T) *cache.RedisCache {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	return cache.NewRedisCache(cfg)
}

func TestLikedByCountRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := setupCache(t)

	_, found, err := c.GetLikedByCount(ctx, 1)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.SetLikedByCount(ctx, 1, 7))

	n, found, err := c.GetLikedByCount(ctx, 1)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(7), n)
}

func TestBumpLeavesMissingKeyMissing(t *testing.T) {
	ctx := context.Background()
	c := setupCache(t)

	// A bump without a cached value must not invent one.
	require.NoError(t, c.BumpLikedByCount(ctx, 1, 1))

	_, found, err := c.GetLikedByCount(ctx, 1)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBumpAdjustsExistingCount(t *testing.T) {
	ctx := context.Background()
	c := setupCache(t)

	require.NoError(t, c.SetLikedByCount(ctx, 1, 3))
	require.NoError(t, c.BumpLikedByCount(ctx, 1, 1))
	require.NoError(t, c.BumpLikedByCount(ctx, 1, -2))

	n, found, err := c.GetLikedByCount(ctx, 1)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(2), n)
}
