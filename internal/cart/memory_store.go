package cart

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps carts in process. Records are copied in and out.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string]*Aggregate
}

// NewMemoryStore builds an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string]*Aggregate)}
}

func (s *MemoryStore) Load(_ context.Context, sessionKey string) (*Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agg, ok := s.carts[sessionKey]
	if !ok {
		return nil, ErrNotFound
	}
	return agg.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, agg *Aggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[agg.SessionKey] = agg.Clone()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, sessionKey)
	return nil
}

func (s *MemoryStore) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for key, agg := range s.carts {
		if agg.Expired(cutoff) {
			delete(s.carts, key)
			removed++
		}
	}
	return removed, nil
}
