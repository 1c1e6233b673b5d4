package notification

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStorage is an in-memory implementation of the Storage interface.
// Suitable for development and testing.
type MemoryStorage struct {
	byID   map[string]*Notification
	byUser map[string][]string // userAddress -> notification IDs in insertion order
	mu     sync.RWMutex
}

// NewMemoryStorage creates a new in-memory notification storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		byID:   make(map[string]*Notification),
		byUser: make(map[string][]string),
	}
}

func (s *MemoryStorage) Create(ctx context.Context, notif Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if notif.ID == "" {
		return ErrMissingID
	}
	if notif.UserAddress == "" {
		return ErrMissingUserAddress
	}
	if !notif.Type.Valid() {
		return ErrInvalidType
	}

	if notif.CreatedAt.IsZero() {
		notif.CreatedAt = time.Now()
	}

	stored := notif
	s.byID[notif.ID] = &stored
	s.byUser[notif.UserAddress] = append(s.byUser[notif.UserAddress], notif.ID)
	return nil
}

func (s *MemoryStorage) Get(ctx context.Context, notifID string) (*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.byID[notifID]
	if !ok {
		return nil, ErrNotFound
	}

	// Return a copy to prevent external mutation of stored data
	notif := *stored
	return &notif, nil
}

func (s *MemoryStorage) List(ctx context.Context, userAddress string, opts ListOptions) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, ok := s.byUser[userAddress]
	if !ok {
		return []Notification{}, nil
	}

	var filtered []Notification
	for _, id := range ids {
		n := s.byID[id]
		if n == nil {
			continue
		}

		if opts.OnlyUnread && n.Read {
			continue
		}

		if opts.Archived != nil && n.Archived != *opts.Archived {
			continue
		}

		if opts.PoolID != "" && n.PoolID != opts.PoolID {
			continue
		}

		if len(opts.Types) > 0 {
			found := false
			for _, t := range opts.Types {
				if n.Type == t {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}

		if opts.Since != nil && n.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && n.CreatedAt.After(*opts.Until) {
			continue
		}

		filtered = append(filtered, *n)
	}

	// Newest first
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	start := opts.Offset
	if start > len(filtered) {
		return []Notification{}, nil
	}

	end := start + opts.Limit
	if opts.Limit == 0 || end > len(filtered) {
		end = len(filtered)
	}

	return filtered[start:end], nil
}

func (s *MemoryStorage) SetRead(ctx context.Context, read bool, notifIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range notifIDs {
		if n, ok := s.byID[id]; ok {
			if read {
				n.MarkAsRead()
			} else {
				n.MarkAsUnread()
			}
		}
	}
	return nil
}

func (s *MemoryStorage) SetArchived(ctx context.Context, archived bool, notifIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range notifIDs {
		if n, ok := s.byID[id]; ok {
			n.SetArchived(archived)
		}
	}
	return nil
}

func (s *MemoryStorage) Delete(ctx context.Context, notifIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range notifIDs {
		n, ok := s.byID[id]
		if !ok {
			continue
		}

		ids := s.byUser[n.UserAddress]
		for i, stored := range ids {
			if stored == id {
				s.byUser[n.UserAddress] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
		delete(s.byID, id)
	}
	return nil
}

func (s *MemoryStorage) CountUnread(ctx context.Context, userAddress string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, id := range s.byUser[userAddress] {
		if n := s.byID[id]; n != nil && !n.Read && !n.Archived {
			count++
		}
	}
	return count, nil
}
