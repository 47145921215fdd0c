package cache

import (
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/dbscope/dbscope/internal/config"
)

func TestIsCacheMiss(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"Miss", ErrCacheMiss{Key: "k"}, true},
		{"Wrapped Miss", fmt.Errorf("load snapshot: %w", ErrCacheMiss{Key: "k"}), true},
		{"Other Error", fmt.Errorf("boom"), false},
		{"Nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsCacheMiss(tt.err))
		})
	}
}

func TestNewStore(t *testing.T) {
	t.Run("File Backend", func(t *testing.T) {
		store, err := New(config.CacheConfig{Backend: "file", Dir: t.TempDir()})
		require.NoError(t, err)
		defer store.Close()
		require.IsType(t, (*FileStore)(nil), store)
	})

	t.Run("Empty Backend Defaults To File", func(t *testing.T) {
		store, err := New(config.CacheConfig{Dir: t.TempDir()})
		require.NoError(t, err)
		defer store.Close()
		require.IsType(t, (*FileStore)(nil), store)
	})

	t.Run("Redis Backend", func(t *testing.T) {
		mr := miniredis.RunT(t)

		store, err := New(config.CacheConfig{
			Backend: "redis",
			Redis:   config.RedisConfig{Addr: mr.Addr()},
		})
		require.NoError(t, err)
		defer store.Close()
		require.IsType(t, (*RedisStore)(nil), store)
	})

	t.Run("Unknown Backend", func(t *testing.T) {
		_, err := New(config.CacheConfig{Backend: "memcached"})
		require.Error(t, err)
		require.Contains(t, err.Error(), "unsupported cache backend")
	})
}
