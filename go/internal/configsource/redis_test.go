package configsource

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := OpenRedis(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisCache_RoundTrip(t *testing.T) {
	mr, client := newTestRedis(t)
	cache := NewRedisCache(client, "")
	ctx := context.Background()

	_, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	config := sampleConfig(time.Hour)
	require.NoError(t, cache.Set(ctx, config, time.Minute))
	assert.Equal(t, time.Minute, mr.TTL(DefaultRedisKey))

	got, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, config, got)

	mr.FastForward(2 * time.Minute)
	_, ok, err = cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_Delete(t *testing.T) {
	mr, client := newTestRedis(t)
	cache := NewRedisCache(client, "custom:key")
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, sampleConfig(time.Hour), time.Minute))
	assert.True(t, mr.Exists("custom:key"))

	require.NoError(t, cache.Delete(ctx))
	assert.False(t, mr.Exists("custom:key"))
}

func TestRedisCache_CorruptValue(t *testing.T) {
	mr, client := newTestRedis(t)
	cache := NewRedisCache(client, "")
	require.NoError(t, mr.Set(DefaultRedisKey, "{not json"))

	_, ok, err := cache.Get(context.Background())
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestOpenRedis_EmptyAddr(t *testing.T) {
	_, err := OpenRedis(context.Background(), "", "", 0)
	assert.Error(t, err)
}
