package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/dbscope/dbscope/internal/config"
)

func newTestRedisStore(t *testing.T, prefix string, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreWithClient(client, prefix, ttl)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := newTestRedisStore(t, "dbscope", 0)

	ctx := context.Background()
	payload := []byte(`{"version":1}`)

	require.NoError(t, store.Set(ctx, "snapshot-abc.json", payload))

	got, err := store.Get(ctx, "snapshot-abc.json")
	require.NoError(t, err)
	require.Equal(t, payload, got)

	require.NoError(t, store.Set(ctx, "snapshot-abc.json", []byte("v2")))

	got, err = store.Get(ctx, "snapshot-abc.json")
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), got)
}

func TestRedisStoreMiss(t *testing.T) {
	store, _ := newTestRedisStore(t, "dbscope", 0)

	_, err := store.Get(context.Background(), "snapshot-missing.json")
	require.True(t, IsCacheMiss(err))

	// The miss reports the caller's key, not the prefixed one.
	var miss ErrCacheMiss
	require.True(t, errors.As(err, &miss))
	require.Equal(t, "snapshot-missing.json", miss.Key)
}

func TestRedisStoreKeyPrefix(t *testing.T) {
	ctx := context.Background()

	t.Run("With Prefix", func(t *testing.T) {
		store, mr := newTestRedisStore(t, "dbscope", 0)

		require.NoError(t, store.Set(ctx, "snapshot-abc.json", []byte("data")))

		stored, err := mr.Get("dbscope:snapshot-abc.json")
		require.NoError(t, err)
		require.Equal(t, "data", stored)
	})

	t.Run("Without Prefix", func(t *testing.T) {
		store, mr := newTestRedisStore(t, "", 0)

		require.NoError(t, store.Set(ctx, "snapshot-abc.json", []byte("data")))

		stored, err := mr.Get("snapshot-abc.json")
		require.NoError(t, err)
		require.Equal(t, "data", stored)
	})
}

func TestRedisStoreDelete(t *testing.T) {
	store, mr := newTestRedisStore(t, "dbscope", 0)

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "snapshot-abc.json", []byte("data")))

	require.NoError(t, store.Delete(ctx, "snapshot-abc.json"))
	require.False(t, mr.Exists("dbscope:snapshot-abc.json"))

	// Deleting an absent key is not an error.
	require.NoError(t, store.Delete(ctx, "snapshot-abc.json"))
}

func TestRedisStoreTTL(t *testing.T) {
	ctx := context.Background()

	t.Run("Entries Expire", func(t *testing.T) {
		store, mr := newTestRedisStore(t, "dbscope", time.Minute)

		require.NoError(t, store.Set(ctx, "snapshot-abc.json", []byte("data")))
		require.Equal(t, time.Minute, mr.TTL("dbscope:snapshot-abc.json"))

		mr.FastForward(2 * time.Minute)

		_, err := store.Get(ctx, "snapshot-abc.json")
		require.True(t, IsCacheMiss(err))
	})

	t.Run("Zero TTL Persists", func(t *testing.T) {
		store, mr := newTestRedisStore(t, "dbscope", 0)

		require.NoError(t, store.Set(ctx, "snapshot-abc.json", []byte("data")))
		require.Equal(t, time.Duration(0), mr.TTL("dbscope:snapshot-abc.json"))

		mr.FastForward(24 * time.Hour)

		got, err := store.Get(ctx, "snapshot-abc.json")
		require.NoError(t, err)
		require.Equal(t, []byte("data"), got)
	})
}

func TestNewRedisStore(t *testing.T) {
	t.Run("Connects", func(t *testing.T) {
		mr := miniredis.RunT(t)

		store, err := NewRedisStore(config.RedisConfig{Addr: mr.Addr(), Prefix: "dbscope"})
		require.NoError(t, err)
		defer store.Close()

		require.NoError(t, store.Set(context.Background(), "key", []byte("data")))
		require.True(t, mr.Exists("dbscope:key"))
	})

	t.Run("Unreachable Server", func(t *testing.T) {
		_, err := NewRedisStore(config.RedisConfig{Addr: "127.0.0.1:1"})
		require.Error(t, err)
	})
}
