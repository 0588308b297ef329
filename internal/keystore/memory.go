package keystore

import (
	"context"
	"sync"
)

// MemoryStore keeps values in process memory only. It backs tests and
// ephemeral profiles where nothing should survive a restart.
type MemoryStore struct {
	mu     sync.Mutex
	items  map[string]string
	setErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: map[string]string{}}
}

// FailWrites makes every subsequent Set return err. Used to exercise the
// partial-write handling of callers.
func (s *MemoryStore) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setErr = err
}

func (s *MemoryStore) Get(_ context.Context, key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[key]
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.items[key] = value
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

func (s *MemoryStore) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.items = map[string]string{}
	return nil
}
