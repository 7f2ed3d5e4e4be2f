package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInMemoryCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(time.Hour)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "unit:A", []byte(`{"unitId":"A"}`), 60))

	got, ok := c.Get(ctx, "unit:A")
	require.True(t, ok)
	assert.Equal(t, `{"unitId":"A"}`, string(got))

	got[0] = 'X'
	again, _ := c.Get(ctx, "unit:A")
	assert.Equal(t, byte('{'), again[0])

	require.NoError(t, c.Delete(ctx, "unit:A", "unit:B"))
	_, ok = c.Get(ctx, "unit:A")
	assert.False(t, ok)
}

func TestInMemoryCache_ExpiresEntries(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(time.Hour)
	defer c.Close()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 10))
	now = now.Add(11 * time.Second)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)

	c.sweep()
	assert.Zero(t, c.Len())
}

func TestInMemoryCache_Clear(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(time.Hour)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 60))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 60))
	require.NoError(t, c.Clear(ctx))

	assert.Zero(t, c.Len())
}

func TestInMemoryCache_CloseIsIdempotent(t *testing.T) {
	c := NewInMemoryCache(time.Millisecond)

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestOpenRedis_EmptyAddr(t *testing.T) {
	assert.Nil(t, OpenRedis("", "", 0))
}

func TestRedisCache_UnreachableIsMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	c := NewRedisCache(client, "districtgraph:", zap.NewNop())

	_, ok := c.Get(context.Background(), "unit:A")
	assert.False(t, ok)
	assert.Error(t, c.Set(context.Background(), "unit:A", []byte("x"), 60))
	assert.Equal(t, "districtgraph:unit:A", c.key("unit:A"))
}
