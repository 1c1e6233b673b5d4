package dispatch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/poolfi/notifier/pkg/notification"
)

// MemoryStorage is an in-memory implementation of the Storage interface.
// Suitable for development and testing. It enforces the delivery state
// machine on every update.
type MemoryStorage struct {
	deliveries map[string]*Delivery
	byNotif    map[string][]string // notificationID -> delivery IDs
	byProvider map[string]string   // providerID -> delivery ID
	mu         sync.RWMutex
}

// NewMemoryStorage creates a new in-memory delivery storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		deliveries: make(map[string]*Delivery),
		byNotif:    make(map[string][]string),
		byProvider: make(map[string]string),
	}
}

func (s *MemoryStorage) Create(ctx context.Context, d Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	d.UpdatedAt = d.CreatedAt

	stored := d
	s.deliveries[d.ID] = &stored
	s.byNotif[d.NotificationID] = append(s.byNotif[d.NotificationID], d.ID)
	if d.ProviderID != "" {
		s.byProvider[d.ProviderID] = d.ID
	}
	return nil
}

func (s *MemoryStorage) Get(ctx context.Context, deliveryID string) (*Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.deliveries[deliveryID]
	if !ok {
		return nil, ErrNotFound
	}

	d := *stored
	return &d, nil
}

func (s *MemoryStorage) Update(ctx context.Context, d Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.deliveries[d.ID]
	if !ok {
		return ErrNotFound
	}

	if stored.Status.Terminal() {
		return ErrTerminalState
	}
	if !stored.Status.CanTransition(d.Status) {
		return ErrInvalidTransition
	}
	if d.RetryCount > d.MaxRetries {
		return ErrRetryLimit
	}

	d.CreatedAt = stored.CreatedAt
	d.UpdatedAt = time.Now()

	updated := d
	s.deliveries[d.ID] = &updated
	if d.ProviderID != "" {
		s.byProvider[d.ProviderID] = d.ID
	}
	return nil
}

func (s *MemoryStorage) FindByProviderID(ctx context.Context, providerID string) (*Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byProvider[providerID]
	if !ok {
		return nil, ErrNotFound
	}

	d := *s.deliveries[id]
	return &d, nil
}

func (s *MemoryStorage) ListByNotification(ctx context.Context, notificationID string) ([]Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byNotif[notificationID]
	list := make([]Delivery, 0, len(ids))
	for _, id := range ids {
		list = append(list, *s.deliveries[id])
	}
	return list, nil
}

func (s *MemoryStorage) HasActive(ctx context.Context, notificationID string, ch notification.Channel) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.byNotif[notificationID] {
		d := s.deliveries[id]
		if d.Channel == ch && !d.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStorage) DueForAttempt(ctx context.Context, now time.Time, limit int) ([]Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []Delivery
	for _, d := range s.deliveries {
		if d.Status == StatusPending && !d.NextAttemptAt.After(now) {
			due = append(due, *d)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].NextAttemptAt.Before(due[j].NextAttemptAt)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}
