package cache

import (
	"context"
	"sync"
	"time"
)

// MockRedisClient keeps roles in process memory. It is used when Redis is not
// configured and in tests.
type MockRedisClient struct {
	mu      sync.Mutex
	data    map[string]entry
	now     func() time.Time
	Fail    error
	Lookups int
}

type entry struct {
	role    string
	expires time.Time
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{
		data: make(map[string]entry),
		now:  time.Now,
	}
}

func (m *MockRedisClient) Close() error {
	return nil
}

func (m *MockRedisClient) GetRole(ctx context.Context, profileID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lookups++
	if m.Fail != nil {
		return "", m.Fail
	}
	e, ok := m.data[profileID]
	if !ok {
		return "", ErrMiss
	}
	if !e.expires.IsZero() && m.now().After(e.expires) {
		delete(m.data, profileID)
		return "", ErrMiss
	}
	return e.role, nil
}

func (m *MockRedisClient) SetRole(ctx context.Context, profileID, role string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	e := entry{role: role}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.data[profileID] = e
	return nil
}

func (m *MockRedisClient) InvalidateRole(ctx context.Context, profileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, profileID)
	return nil
}
