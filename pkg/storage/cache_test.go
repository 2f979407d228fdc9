package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInMemoryCache(t *testing.T) {
	cache, err := NewInMemoryLRUCache[string](WithMaxCacheSize[string](100))
	require.NoError(t, err)
	defer cache.Stop()

	t.Run("set_and_get", func(t *testing.T) {
		cache.Set("key", "value", 1*time.Minute)
		result, ok := cache.Get("key")
		require.True(t, ok)
		require.Equal(t, "value", result)
	})

	t.Run("without_ttl", func(t *testing.T) {
		cache.Set("forever", "value", 0)
		result, ok := cache.Get("forever")
		require.True(t, ok)
		require.Equal(t, "value", result)
	})

	t.Run("missing_key", func(t *testing.T) {
		result, ok := cache.Get("missing")
		require.False(t, ok)
		require.Empty(t, result)
	})

	t.Run("stop_multiple_times", func(t *testing.T) {
		cache.Stop()
		cache.Stop()
	})
}
