// Package memory implements the kvstore.Store interface using a map.
package memory

import (
	"sync"

	"github.com/ardanlabs/blockfeed/foundation/kvstore"
)

// Memory represents the in-memory implementation for reading and storing
// values. This implements the kvstore.Store interface.
type Memory struct {
	mu     sync.RWMutex
	values map[string][]byte
	writes int
}

// New constructs a Memory value for use.
func New() *Memory {
	return &Memory{
		values: make(map[string][]byte),
	}
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (m *Memory) Close() error {
	return nil
}

// Get returns a copy of the value stored under the key.
func (m *Memory) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, exists := m.values[key]
	if !exists {
		return nil, kvstore.ErrNotFound
	}

	return append([]byte(nil), v...), nil
}

// Set stores a copy of the value under the key.
func (m *Memory) Set(key string, value []byte) error {
	if err := kvstore.ValidateKey(key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = append([]byte(nil), value...)
	m.writes++

	return nil
}

// Delete removes the key. Deleting a missing key is not an error.
func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)

	return nil
}

// Writes returns the number of successful Set calls. Tests use this to
// prove a code path did not persist anything.
func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.writes
}
