package digest

import (
	"context"
	"sync"
	"time"
)

type bufferEntry struct {
	id string
	at time.Time
}

// MemoryBufferStore is an in-memory implementation of the BufferStore
// interface. Suitable for development and testing; buffered items do not
// survive a restart, so production deployments should use the Redis store.
type MemoryBufferStore struct {
	buffers map[string][]bufferEntry
	flushed map[string]struct{}
	mu      sync.Mutex
}

// NewMemoryBufferStore creates a new in-memory digest buffer store.
func NewMemoryBufferStore() *MemoryBufferStore {
	return &MemoryBufferStore{
		buffers: make(map[string][]bufferEntry),
		flushed: make(map[string]struct{}),
	}
}

func (s *MemoryBufferStore) Append(ctx context.Context, key BufferKey, notificationID string, at time.Time) error {
	if notificationID == "" {
		return ErrMissingNotificationID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffers[key.String()] = append(s.buffers[key.String()], bufferEntry{id: notificationID, at: at})
	return nil
}

func (s *MemoryBufferStore) Take(ctx context.Context, key BufferKey, until time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		taken   []string
		keep    []bufferEntry
		encoded = key.String()
	)
	for _, entry := range s.buffers[encoded] {
		if entry.at.After(until) {
			keep = append(keep, entry)
			continue
		}
		taken = append(taken, entry.id)
	}

	if len(keep) == 0 {
		delete(s.buffers, encoded)
	} else {
		s.buffers[encoded] = keep
	}
	return taken, nil
}

func (s *MemoryBufferStore) Pending(ctx context.Context) ([]BufferKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]BufferKey, 0, len(s.buffers))
	for encoded, entries := range s.buffers {
		if len(entries) == 0 {
			continue
		}
		if key, ok := ParseBufferKey(encoded); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *MemoryBufferStore) MarkFlushed(ctx context.Context, key BufferKey, periodKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	marker := key.String() + "|" + periodKey
	if _, done := s.flushed[marker]; done {
		return false, nil
	}
	s.flushed[marker] = struct{}{}
	return true, nil
}
