package event

import (
	"context"
	"sync"
)

// MemoryStorage is an in-memory implementation of the Storage interface.
// Suitable for development and testing.
//
// Appends for the same notification are serialized by a per-notification
// mutex so sequence numbers match arrival order without a global write lock
// across notifications.
type MemoryStorage struct {
	mu      sync.RWMutex
	events  []Event
	byNotif map[string][]int // notificationID -> indexes into events

	seqMu   sync.Mutex
	seqs    map[string]*notifSeq
}

type notifSeq struct {
	mu   sync.Mutex
	next int64
}

// NewMemoryStorage creates a new in-memory event storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		byNotif: make(map[string][]int),
		seqs:    make(map[string]*notifSeq),
	}
}

func (s *MemoryStorage) seqFor(notificationID string) *notifSeq {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	seq, ok := s.seqs[notificationID]
	if !ok {
		seq = &notifSeq{next: 1}
		s.seqs[notificationID] = seq
	}
	return seq
}

func (s *MemoryStorage) Append(ctx context.Context, e Event) (Event, error) {
	if err := e.Validate(); err != nil {
		return Event{}, err
	}

	seq := s.seqFor(e.NotificationID)

	// Holding the per-notification lock across both sequence assignment and
	// the append keeps Seq consistent with storage order for this
	// notification under concurrent channel attempts.
	seq.mu.Lock()
	defer seq.mu.Unlock()

	e.Seq = seq.next
	seq.next++

	s.mu.Lock()
	idx := len(s.events)
	s.events = append(s.events, e)
	s.byNotif[e.NotificationID] = append(s.byNotif[e.NotificationID], idx)
	s.mu.Unlock()

	return e, nil
}

func (s *MemoryStorage) Timeline(ctx context.Context, notificationID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idxs := s.byNotif[notificationID]
	timeline := make([]Event, 0, len(idxs))
	for _, i := range idxs {
		timeline = append(timeline, s.events[i])
	}
	return timeline, nil
}

func (s *MemoryStorage) Query(ctx context.Context, c Criteria) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Event
	for i := range s.events {
		e := s.events[i]

		if c.NotificationID != "" && e.NotificationID != c.NotificationID {
			continue
		}
		if c.UserAddress != "" && e.UserAddress != c.UserAddress {
			continue
		}
		if len(c.Types) > 0 {
			found := false
			for _, t := range c.Types {
				if e.Type == t {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		if c.Since != nil && e.CreatedAt.Before(*c.Since) {
			continue
		}
		if c.Until != nil && e.CreatedAt.After(*c.Until) {
			continue
		}

		matched = append(matched, e)
	}

	start := c.Offset
	if start > len(matched) {
		return []Event{}, nil
	}
	end := start + c.Limit
	if c.Limit == 0 || end > len(matched) {
		end = len(matched)
	}

	return matched[start:end], nil
}
