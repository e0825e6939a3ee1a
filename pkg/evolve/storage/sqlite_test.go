package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	t.Run("AbsentKey", func(t *testing.T) {
		value, err := store.Get("never-written")
		require.NoError(t, err)
		assert.Nil(t, value)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		require.NoError(t, store.Set(MetricsKey, []byte(`{"visit_count":3}`)))

		value, err := store.Get(MetricsKey)
		require.NoError(t, err)
		assert.Equal(t, `{"visit_count":3}`, string(value))
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.Set(HistoryKey, []byte("[]")))
		require.NoError(t, store.Set(HistoryKey, []byte(`[{"id":"a"}]`)))

		value, err := store.Get(HistoryKey)
		require.NoError(t, err)
		assert.Equal(t, `[{"id":"a"}]`, string(value))
	})
}

func TestSQLiteStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(MetricsKey, []byte(`{"scroll_depth_percent":70}`)))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	value, err := reopened.Get(MetricsKey)
	require.NoError(t, err)
	assert.Equal(t, `{"scroll_depth_percent":70}`, string(value))
}

func TestMemoryStoreIsolation(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set("k", []byte("original")))

	value, err := store.Get("k")
	require.NoError(t, err)
	value[0] = 'X'

	again, err := store.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "original", string(again), "mutating a returned value must not affect the store")
}
