package objectstore

import (
	"context"
	"sync"
)

// MemoryStore keeps objects in a map. FailPut, when set, is consulted before
// every Put with the 1-based attempt number.
type MemoryStore struct {
	mu      sync.Mutex
	Objects map[string][]byte
	FailPut func(attempt int) error

	EnsureCalls int
	PutCalls    int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{Objects: make(map[string][]byte)}
}

func (m *MemoryStore) EnsureBucket(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EnsureCalls++
	return nil
}

func (m *MemoryStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutCalls++
	if m.FailPut != nil {
		if err := m.FailPut(m.PutCalls); err != nil {
			return err
		}
	}
	m.Objects[key] = append([]byte(nil), body...)
	return nil
}

func (m *MemoryStore) PublicURL(key string) string {
	return "https://images.test/" + key
}

// Calls returns the number of EnsureBucket and Put calls made so far
func (m *MemoryStore) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.EnsureCalls + m.PutCalls
}
