package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStores(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		store func(t *testing.T) Store
	}{
		{
			name:  "memory",
			store: func(*testing.T) Store { return NewMemoryStore() },
		},
		{
			name: "file",
			store: func(t *testing.T) Store {
				return NewFileStore(filepath.Join(t.TempDir(), "nested", "cache.json"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := tt.store(t)

			_, ok, err := store.Get("missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Put("a", json.RawMessage(`{"x":1}`)))
			require.NoError(t, store.Put("b", json.RawMessage(`[1,2]`)))

			got, ok, err := store.Get("a")
			require.NoError(t, err)
			require.True(t, ok)
			assert.JSONEq(t, `{"x":1}`, string(got))

			require.NoError(t, store.Put("a", json.RawMessage(`{"x":2}`)))
			got, _, err = store.Get("a")
			require.NoError(t, err)
			assert.JSONEq(t, `{"x":2}`, string(got))

			require.NoError(t, store.Delete("a"))
			require.NoError(t, store.Delete("a"))

			_, ok, err = store.Get("a")
			require.NoError(t, err)
			assert.False(t, ok)

			_, ok, err = store.Get("b")
			require.NoError(t, err)
			assert.True(t, ok)

			require.Error(t, store.Put("c", json.RawMessage(`{not json`)))
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	value := json.RawMessage(`"abc"`)
	require.NoError(t, store.Put("k", value))

	value[1] = 'z'

	got, _, err := store.Get("k")
	require.NoError(t, err)
	assert.Equal(t, `"abc"`, string(got))

	got[1] = 'y'

	again, _, err := store.Get("k")
	require.NoError(t, err)
	assert.Equal(t, `"abc"`, string(again))
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.json")

	first := NewFileStore(path)
	require.NoError(t, first.Put("events", json.RawMessage(`{"1":{"id":"1"}}`)))

	_, err := os.Stat(path)
	require.NoError(t, err)

	second := NewFileStore(path)
	got, ok, err := second.Get("events")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"1":{"id":"1"}}`, string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStore_LazyAndTolerant(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	t.Run("no file until first write", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(dir, "lazy.json")
		store := NewFileStore(path)

		_, ok, err := store.Get("x")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("empty file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(dir, "empty.json")
		require.NoError(t, os.WriteFile(path, nil, 0o600))

		_, ok, err := NewFileStore(path).Get("x")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("corrupt file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(dir, "corrupt.json")
		require.NoError(t, os.WriteFile(path, []byte("{oops"), 0o600))

		store := NewFileStore(path)
		_, _, err := store.Get("x")
		require.Error(t, err)

		require.Error(t, store.Put("x", json.RawMessage(`1`)))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "{oops", string(data))
	})
}

func TestFileStore_ConcurrentWrites(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.json")
	store := NewFileStore(path)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Put(string(rune('a'+i)), json.RawMessage(`true`)))
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var values map[string]bool
	require.NoError(t, json.Unmarshal(data, &values))
	assert.Len(t, values, 20)
}
