package cache

import (
	"encoding/json"
	"sync"

	"github.com/rohmanhakim/parkfetch/pkg/failure"
)

// MemoryStore is an in-memory Store without persistence.
// It lives only for the duration of the process and is mostly useful for tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]json.RawMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]json.RawMessage),
	}
}

func (c *MemoryStore) Lookup(key string) (json.RawMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, exists := c.data[key]
	return value, exists
}

func (c *MemoryStore) Insert(key string, value json.RawMessage) failure.ClassifiedError {
	if err := validateEntry(key, value); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = cloneRaw(value)
	return nil
}

func (c *MemoryStore) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.data)
}
