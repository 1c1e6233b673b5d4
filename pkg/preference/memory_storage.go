package preference

import (
	"context"
	"sync"
)

// MemoryStorage is an in-memory implementation of the Storage interface.
// Suitable for development and testing.
type MemoryStorage struct {
	prefs map[string]Preferences
	mu    sync.RWMutex
}

// NewMemoryStorage creates a new in-memory preference storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		prefs: make(map[string]Preferences),
	}
}

func (s *MemoryStorage) Get(ctx context.Context, userAddress string) (*Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.prefs[userAddress]
	if !ok {
		return nil, ErrNotFound
	}

	// Return a copy to prevent external mutation of stored data
	prefs := stored
	return &prefs, nil
}

func (s *MemoryStorage) Save(ctx context.Context, prefs Preferences) error {
	if prefs.UserAddress == "" {
		return ErrMissingUserAddress
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.prefs[prefs.UserAddress] = prefs
	return nil
}
