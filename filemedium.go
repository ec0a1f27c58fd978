package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileMedium persists all keys as one JSON object in a single file.
// Every mutation rewrites and fsyncs the file before returning.
type FileMedium struct {
	mu   sync.RWMutex
	file *os.File
	data map[string]string
	path string
}

func OpenFileMedium(path string) (*FileMedium, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}
	m := &FileMedium{file: f, path: path}
	if err := m.load(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return m, nil
}

func (m *FileMedium) Close() error { return m.file.Close() }

func (m *FileMedium) Path() string { return m.path }

func (m *FileMedium) load() error {
	info, err := m.file.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		m.data = map[string]string{}
		return m.flushLocked()
	}
	var data map[string]string
	if err := json.NewDecoder(m.file).Decode(&data); err != nil {
		return err
	}
	if data == nil {
		data = map[string]string{}
	}
	m.data = data
	return nil
}

func (m *FileMedium) flushLocked() error {
	if _, err := m.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	enc := json.NewEncoder(m.file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m.data); err != nil {
		return err
	}
	// new content may be shorter than the old one
	pos, err := m.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if err := m.file.Truncate(pos); err != nil {
		return err
	}
	return m.file.Sync()
}

// withWrite applies fn to key and flushes. A failed flush puts the previous
// entry back so readers never see an unpersisted value.
func (m *FileMedium) withWrite(key string, fn func(map[string]string)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, existed := m.data[key]
	fn(m.data)
	if err := m.flushLocked(); err != nil {
		if existed {
			m.data[key] = prev
		} else {
			delete(m.data, key)
		}
		return err
	}
	return nil
}

func (m *FileMedium) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *FileMedium) Set(key, value string) error {
	return m.withWrite(key, func(d map[string]string) {
		d[key] = value
	})
}

func (m *FileMedium) Remove(key string) error {
	return m.withWrite(key, func(d map[string]string) {
		delete(d, key)
	})
}

func (m *FileMedium) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
