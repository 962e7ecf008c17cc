package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	id      Identity
	expires time.Time
}

// MemoryStore is the single-process fallback used when Redis is not
// configured.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Create(_ context.Context, id Identity) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	// Expired entries are dropped on write so the map cannot grow forever.
	for t, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, t)
		}
	}
	s.entries[token] = memoryEntry{id: id, expires: now.Add(s.ttl)}
	return token, nil
}

func (s *MemoryStore) Get(_ context.Context, token string) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[token]
	if !ok {
		return nil, ErrNoSession
	}
	if s.now().After(e.expires) {
		delete(s.entries, token)
		return nil, ErrNoSession
	}
	id := e.id
	return &id, nil
}

func (s *MemoryStore) Update(_ context.Context, token string, id Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[token]
	if !ok || s.now().After(e.expires) {
		return ErrNoSession
	}
	e.id = id
	s.entries[token] = e
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, token)
	return nil
}
