package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process; used when Redis is not configured
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session), now: time.Now}
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[key(s.ID)] = *s
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[key(id)]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNoSession
	}
	if !m.now().Before(s.ExpiresAt) {
		m.mu.Lock()
		delete(m.sessions, key(id))
		m.mu.Unlock()
		return nil, ErrNoSession
	}
	return &s, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key(id))
	return nil
}
