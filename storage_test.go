package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// brokenMedium fails every call.
type brokenMedium struct{}

var errDiskGone = errors.New("disk gone")

func (brokenMedium) Get(string) (string, bool, error) { return "", false, errDiskGone }
func (brokenMedium) Set(string, string) error         { return errDiskGone }
func (brokenMedium) Remove(string) error              { return errDiskGone }
func (brokenMedium) Keys() ([]string, error)          { return nil, errDiskGone }

func newTestStore(t *testing.T) *KVStore {
	t.Helper()
	return NewKVStore(NewMemoryMedium(), "testDB")
}

// newSeededStore returns a store bootstrapped with the default data set.
func newSeededStore(t *testing.T) *KVStore {
	t.Helper()
	store := newTestStore(t)
	require.NoError(t, Bootstrap(store, bcrypt.MinCost))
	return store
}

func TestKVStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("things", []int{1, 2, 3}))

	var got []int
	require.NoError(t, store.Get("things", &got))
	assert.Equal(t, []int{1, 2, 3}, got)

	ok, err := store.Has("things")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestKVStoreKeysAreNamespaced(t *testing.T) {
	medium := NewMemoryMedium()
	store := NewKVStore(medium, "shop")

	require.NoError(t, store.Set("cart", []CartLine{}))

	raw, ok, err := medium.Get("shop_cart")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "[]", raw)
}

func TestGetOrDefaultDoesNotStoreDefault(t *testing.T) {
	store := newTestStore(t)

	got, err := GetOrDefault(store, "missing", []string{"fallback"})
	require.NoError(t, err)
	assert.Equal(t, []string{"fallback"}, got)

	ok, err := store.Has("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKVStoreNullRoundTrip(t *testing.T) {
	store := newTestStore(t)

	var nothing []int
	require.NoError(t, store.Set("things", nothing))

	got, err := GetOrDefault(store, "things", []int{7})
	require.NoError(t, err)
	assert.Nil(t, got)

	ok, err := store.Has("things")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBootstrapReseedsNull(t *testing.T) {
	medium := NewMemoryMedium()
	store := NewKVStore(medium, "testDB")
	require.NoError(t, medium.Set("testDB_users", "null"))

	require.NoError(t, Bootstrap(store, bcrypt.MinCost))

	users, err := GetOrDefault(store, "users", []User{})
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

// flakyMedium rejects every write once failSet is on, and writes to failKey always.
type flakyMedium struct {
	*MemoryMedium
	failSet bool
	failKey string
}

var errQuota = errors.New("quota exceeded")

func newFlakyMedium() *flakyMedium {
	return &flakyMedium{MemoryMedium: NewMemoryMedium()}
}

func (m *flakyMedium) Set(key, value string) error {
	if m.failSet || (m.failKey != "" && key == m.failKey) {
		return errQuota
	}
	return m.MemoryMedium.Set(key, value)
}

func TestKVStoreCorruptValue(t *testing.T) {
	medium := NewMemoryMedium()
	store := NewKVStore(medium, "testDB")
	require.NoError(t, medium.Set("testDB_products", "{not json"))

	_, err := GetOrDefault(store, "products", []Product{})
	assert.ErrorIs(t, err, ErrStorage)
}

func TestKVStoreMediumFailure(t *testing.T) {
	store := NewKVStore(brokenMedium{}, "testDB")

	tests := []struct {
		name string
		run  func() error
	}{
		{"get", func() error { var v []int; return store.Get("k", &v) }},
		{"set", func() error { return store.Set("k", 1) }},
		{"remove", func() error { return store.Remove("k") }},
		{"has", func() error { _, err := store.Has("k"); return err }},
		{"clear", func() error { return store.ClearNamespace() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			assert.ErrorIs(t, err, ErrStorage)
			assert.ErrorIs(t, err, errDiskGone)
		})
	}
}

func TestKVStoreRemove(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("k", "v"))
	require.NoError(t, store.Remove("k"))
	require.NoError(t, store.Remove("k"))

	var v string
	assert.ErrorIs(t, store.Get("k", &v), ErrKeyNotFound)
}

func TestClearNamespaceKeepsOtherNamespaces(t *testing.T) {
	medium := NewMemoryMedium()
	mine := NewKVStore(medium, "shop")
	other := NewKVStore(medium, "shopping")

	require.NoError(t, mine.Set("cart", 1))
	require.NoError(t, mine.Set("users", 2))
	require.NoError(t, other.Set("cart", 3))
	require.NoError(t, medium.Set("unrelated", "x"))

	require.NoError(t, mine.ClearNamespace())

	keys, err := medium.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"shopping_cart", "unrelated"}, keys)
}
