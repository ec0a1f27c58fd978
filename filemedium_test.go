package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileMediumPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.json")

	m, err := OpenFileMedium(path)
	require.NoError(t, err)
	store := NewKVStore(m, "shop")
	require.NoError(t, store.Set("cart", []CartLine{{ProductID: 3, Quantity: 2}}))
	require.NoError(t, store.Set("scratch", "tmp"))
	require.NoError(t, store.Remove("scratch"))
	require.NoError(t, m.Close())

	reopened, err := OpenFileMedium(path)
	require.NoError(t, err)
	defer reopened.Close()

	keys, err := reopened.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"shop_cart"}, keys)

	var lines []CartLine
	require.NoError(t, NewKVStore(reopened, "shop").Get("cart", &lines))
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].ProductID)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestFileMediumShrinkingRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	m, err := OpenFileMedium(path)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Set("big", string(make([]byte, 512))))
	require.NoError(t, m.Set("big", "small"))

	reopened, err := OpenFileMedium(path)
	require.NoError(t, err)
	defer reopened.Close()
	v, ok, err := reopened.Get("big")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "small", v)
}

func TestFileMediumRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte("{oops"), 0o600))

	_, err := OpenFileMedium(path)
	assert.Error(t, err)
}

func TestOpenSQLMediumUnknownDriver(t *testing.T) {
	_, err := OpenSQLMedium("sqlite", "")
	assert.ErrorContains(t, err, "unsupported sql driver")
}

func TestFileMediumFailedFlushRestoresEntry(t *testing.T) {
	m, err := OpenFileMedium(filepath.Join(t.TempDir(), "store.json"))
	require.NoError(t, err)
	require.NoError(t, m.Set("kept", "old"))
	require.NoError(t, m.Close())

	assert.Error(t, m.Set("fresh", "v"))
	_, ok, err := m.Get("fresh")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Error(t, m.Set("kept", "new"))
	v, ok, err := m.Get("kept")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "old", v)

	assert.Error(t, m.Remove("kept"))
	keys, err := m.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, keys)
}
