package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStore_GetSet(t *testing.T) {
	store, mr := newTestRedis(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	mr.FastForward(2 * time.Minute)
	_, err = store.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_Lists(t *testing.T) {
	store, _ := newTestRedis(t)
	ctx := context.Background()

	for _, v := range []string{"a", "b", "c", "d"} {
		require.NoError(t, store.LPush(ctx, "list", []byte(v)))
	}
	require.NoError(t, store.LTrim(ctx, "list", 0, 2))

	got, err := store.LRange(ctx, "list", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("d"), []byte("c"), []byte("b")}, got)
}

func TestRedisStore_IncrExpire(t *testing.T) {
	store, mr := newTestRedis(t)
	ctx := context.Background()

	n, err := store.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = store.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, store.Expire(ctx, "counter", time.Second))
	mr.FastForward(2 * time.Second)
	assert.False(t, mr.Exists("counter"))

	require.NoError(t, store.Ping(ctx))
}

func TestRedisStore_Unavailable(t *testing.T) {
	store, mr := newTestRedis(t)
	mr.Close()

	_, err := store.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
