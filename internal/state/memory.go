package state

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryBackend keeps committed state in process memory.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	value, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(value), true, nil
}

func (m *MemoryBackend) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0)
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryBackend) Apply(_ context.Context, reads []Read, changes []Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := Validate(reads, m.data); err != nil {
		return err
	}
	applyChanges(m.data, changes)
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func applyChanges(data map[string][]byte, changes []Change) {
	for _, change := range changes {
		if change.Delete {
			delete(data, change.Key)
			continue
		}
		data[change.Key] = cloneBytes(change.Value)
	}
}
