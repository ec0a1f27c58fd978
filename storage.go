package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
)

// Medium is the durable backend underneath a KVStore. Values are opaque strings.
type Medium interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
	Keys() ([]string, error)
}

// KVStore keeps JSON values under "<namespace>_<key>" in a Medium.
// Writes are durable as soon as Set or Remove returns.
type KVStore struct {
	medium    Medium
	namespace string
}

func NewKVStore(medium Medium, namespace string) *KVStore {
	return &KVStore{
		medium:    medium,
		namespace: namespace,
	}
}

func (s *KVStore) key(key string) string {
	return s.namespace + "_" + key
}

// Get decodes the value stored under key into v. It returns ErrKeyNotFound
// when the key is absent or empty and an ErrStorage error when reading or
// decoding fails. A stored null decodes like any other value.
func (s *KVStore) Get(key string, v any) error {
	raw, ok, err := s.medium.Get(s.key(key))
	if err != nil {
		log.Printf("kvstore: error retrieving %s: %v", key, err)
		return fmt.Errorf("%w: get %s: %w", ErrStorage, key, err)
	}
	if !ok || raw == "" {
		return ErrKeyNotFound
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		log.Printf("kvstore: corrupt value under %s: %v", key, err)
		return fmt.Errorf("%w: decode %s: %w", ErrStorage, key, err)
	}
	return nil
}

// GetOrDefault returns def unchanged when key is absent; def is not stored.
// On a storage failure it also returns def, together with the error.
func GetOrDefault[T any](s *KVStore, key string, def T) (T, error) {
	var v T
	err := s.Get(key, &v)
	if errors.Is(err, ErrKeyNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	return v, nil
}

func (s *KVStore) Set(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("kvstore: error encoding %s: %v", key, err)
		return fmt.Errorf("%w: encode %s: %w", ErrStorage, key, err)
	}
	if err := s.medium.Set(s.key(key), string(b)); err != nil {
		log.Printf("kvstore: error saving %s: %v", key, err)
		return fmt.Errorf("%w: set %s: %w", ErrStorage, key, err)
	}
	return nil
}

func (s *KVStore) Remove(key string) error {
	if err := s.medium.Remove(s.key(key)); err != nil {
		log.Printf("kvstore: error removing %s: %v", key, err)
		return fmt.Errorf("%w: remove %s: %w", ErrStorage, key, err)
	}
	return nil
}

// Has reports whether key holds a value. An empty or null value counts as
// missing so Bootstrap reseeds it.
func (s *KVStore) Has(key string) (bool, error) {
	raw, ok, err := s.medium.Get(s.key(key))
	if err != nil {
		return false, fmt.Errorf("%w: get %s: %w", ErrStorage, key, err)
	}
	return ok && raw != "" && raw != "null", nil
}

// ClearNamespace removes every key of this namespace and leaves other data alone.
func (s *KVStore) ClearNamespace() error {
	keys, err := s.medium.Keys()
	if err != nil {
		log.Printf("kvstore: error listing keys: %v", err)
		return fmt.Errorf("%w: keys: %w", ErrStorage, err)
	}
	prefix := s.namespace + "_"
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if err := s.medium.Remove(k); err != nil {
			log.Printf("kvstore: error clearing %s: %v", k, err)
			return fmt.Errorf("%w: remove %s: %w", ErrStorage, k, err)
		}
	}
	return nil
}

// MemoryMedium keeps everything in a map. Used in dev mode and tests.
type MemoryMedium struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryMedium() *MemoryMedium {
	return &MemoryMedium{data: map[string]string{}}
}

func (m *MemoryMedium) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryMedium) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryMedium) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryMedium) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
