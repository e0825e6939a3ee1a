// Package storage is the persistence boundary: two logical key-value
// entries serialized as JSON text. The rest of the core never sees how
// they are stored, so a backing store can be swapped without touching
// the tracker or the engine.
package storage

import "sync"

// Logical keys for the two durable records.
const (
	MetricsKey = "portfolio.metrics"
	HistoryKey = "portfolio.evolutionHistory"
)

// Store is a durable key-value facility. Get returns (nil, nil) for an
// absent key; absence is never an error.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Close() error
}

// MemoryStore keeps entries in a map. It backs tests and ephemeral runs
// where nothing should outlive the process.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]byte)}
}

func (m *MemoryStore) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (m *MemoryStore) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	m.entries[key] = stored
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
