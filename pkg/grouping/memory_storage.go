package grouping

import (
	"context"
	"sort"
	"sync"
)

// MemoryStorage is an in-memory implementation of the Storage interface.
// Suitable for development and testing.
type MemoryStorage struct {
	byID  map[string]*Group
	byKey map[string]string // userAddress|key -> group ID
	mu    sync.RWMutex
}

// NewMemoryStorage creates a new in-memory group storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		byID:  make(map[string]*Group),
		byKey: make(map[string]string),
	}
}

func compoundKey(userAddress, key string) string {
	return userAddress + "|" + key
}

func (s *MemoryStorage) GetByKey(ctx context.Context, userAddress, key string) (*Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[compoundKey(userAddress, key)]
	if !ok {
		return nil, ErrNotFound
	}

	g := *s.byID[id]
	g.MemberIDs = append([]string(nil), g.MemberIDs...)
	return &g, nil
}

func (s *MemoryStorage) GetByID(ctx context.Context, groupID string) (*Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.byID[groupID]
	if !ok {
		return nil, ErrNotFound
	}

	g := *stored
	g.MemberIDs = append([]string(nil), g.MemberIDs...)
	return &g, nil
}

func (s *MemoryStorage) Save(ctx context.Context, g Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := g
	stored.MemberIDs = append([]string(nil), g.MemberIDs...)
	s.byID[g.ID] = &stored
	s.byKey[compoundKey(g.UserAddress, g.Key)] = g.ID
	return nil
}

func (s *MemoryStorage) Delete(ctx context.Context, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.byID[groupID]
	if !ok {
		return nil
	}

	delete(s.byKey, compoundKey(g.UserAddress, g.Key))
	delete(s.byID, groupID)
	return nil
}

func (s *MemoryStorage) ListByUser(ctx context.Context, userAddress string, opts ListOptions) ([]Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var groups []Group
	for _, g := range s.byID {
		if g.UserAddress != userAddress {
			continue
		}
		if opts.Archived != nil && g.IsArchived != *opts.Archived {
			continue
		}
		if opts.Unread && g.IsRead {
			continue
		}

		copied := *g
		copied.MemberIDs = append([]string(nil), g.MemberIDs...)
		groups = append(groups, copied)
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].LastDate.After(groups[j].LastDate)
	})

	start := opts.Offset
	if start > len(groups) {
		return []Group{}, nil
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(groups) {
		end = len(groups)
	}

	return groups[start:end], nil
}
