package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBoltStore_PutGet(t *testing.T) {
	store := newTestStore(t)

	_, ok, err := store.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put("abc123/nb.ipynb", []byte(`{"content":"x"}`)))

	value, ok, err := store.Get("abc123/nb.ipynb")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"content":"x"}`, string(value))
}

func TestBoltStore_LenAndClear(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Put("a", []byte("1")))
	require.NoError(t, store.Put("b", []byte("2")))

	n, err := store.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, store.Clear())
	n, err = store.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

// BoltStore は Store インターフェースを満たす
var _ Store = (*BoltStore)(nil)
