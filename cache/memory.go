package cache

import (
	"bytes"
	"sort"
	"sync"
)

// ---------------------------------------------------------------------------
// MemoryStore: in-process content-addressed store
// ---------------------------------------------------------------------------

// MemoryStore keeps entries in a map. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[Key][]byte
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[Key][]byte)}
}

// Get returns the entry for k.
func (s *MemoryStore) Get(k Key) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.entries[k]
	return data, ok, nil
}

// Put stores a copy of data under k.
func (s *MemoryStore) Put(k Key, data []byte) error {
	s.mu.Lock()
	s.entries[k] = bytes.Clone(data)
	s.mu.Unlock()
	return nil
}

// Has reports whether k is present.
func (s *MemoryStore) Has(k Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[k]
	return ok
}

// Keys returns all keys in byte order.
func (s *MemoryStore) Keys() []Key {
	s.mu.RLock()
	keys := make([]Key, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i][:], keys[j][:]) < 0 })
	return keys
}

// Len returns the number of entries.
func (s *MemoryStore) Len() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
