// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package cart

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/samber/oops"
)

// StorageKey is the single key the cart is stored under.
const StorageKey = "cartItems"

// Storage is a string-keyed byte store with browser local storage
// semantics: reads and writes are atomic, and the last write wins.
type Storage interface {
	// Get returns the value for key and whether it was present.
	Get(key string) ([]byte, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error
}

// Load reads the cart from storage. A missing key is an empty cart.
func Load(st Storage) (State, error) {
	raw, ok, err := st.Get(StorageKey)
	if err != nil {
		return nil, oops.Code("CART_LOAD_FAILED").Wrap(err)
	}
	if !ok || len(raw) == 0 {
		return State{}, nil
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, oops.Code("CART_CORRUPT").
			With("key", StorageKey).
			Wrap(err)
	}
	if s == nil {
		s = State{}
	}
	return s, nil
}

// Save writes the cart to storage.
func Save(st Storage, s State) error {
	if s == nil {
		s = State{}
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return oops.Code("CART_SAVE_FAILED").Wrap(err)
	}
	if err := st.Set(StorageKey, raw); err != nil {
		return oops.Code("CART_SAVE_FAILED").Wrap(err)
	}
	return nil
}

// MemoryStorage is an in-process Storage.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

// Get implements Storage.
func (m *MemoryStorage) Get(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set implements Storage.
func (m *MemoryStorage) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// FileStorage keeps all keys in one JSON object file. Each Set rewrites the
// file through a temporary file and rename. Separate processes are not
// coordinated.
type FileStorage struct {
	path string
	mu   sync.Mutex
}

// NewFileStorage returns a FileStorage backed by path. The file is created
// on the first Set.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Path returns the backing file path.
func (f *FileStorage) Path() string {
	return f.path
}

// Get implements Storage.
func (f *FileStorage) Get(key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return nil, false, err
	}
	v, ok := doc[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

// Set implements Storage.
func (f *FileStorage) Set(key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	if !json.Valid(value) {
		return oops.Code("STORAGE_INVALID_VALUE").
			With("key", key).
			Errorf("value is not valid JSON")
	}
	doc[key] = json.RawMessage(value)

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return oops.Code("STORAGE_WRITE_FAILED").With("path", f.path).Wrap(err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return oops.Code("STORAGE_WRITE_FAILED").With("path", f.path).Wrap(err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".cart-*.json")
	if err != nil {
		return oops.Code("STORAGE_WRITE_FAILED").With("path", f.path).Wrap(err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(out); err != nil {
		_ = tmp.Close()
		return oops.Code("STORAGE_WRITE_FAILED").With("path", f.path).Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return oops.Code("STORAGE_WRITE_FAILED").With("path", f.path).Wrap(err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return oops.Code("STORAGE_WRITE_FAILED").With("path", f.path).Wrap(err)
	}
	return nil
}

func (f *FileStorage) read() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, oops.Code("STORAGE_READ_FAILED").With("path", f.path).Wrap(err)
	}
	doc := map[string]json.RawMessage{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, oops.Code("STORAGE_CORRUPT").With("path", f.path).Wrap(err)
	}
	// A JSON null decodes to a nil map.
	if doc == nil {
		doc = map[string]json.RawMessage{}
	}
	return doc, nil
}

// Compile-time interface checks.
var (
	_ Storage = (*MemoryStorage)(nil)
	_ Storage = (*FileStorage)(nil)
)
