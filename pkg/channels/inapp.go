package channels

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/poolfi/notifier/pkg/notification"
)

// InAppHub fans notifications out to live in-process subscribers, typically
// websocket or SSE bridges held by the host application. Subscriptions are
// per user address. Slow consumers have messages dropped rather than
// blocking delivery.
type InAppHub struct {
	subscribers map[string]map[*InAppSubscription]struct{}
	bufferSize  int
	closed      bool
	mu          sync.RWMutex
	cleanupWg   sync.WaitGroup
}

// InAppSubscription is one live feed of a user's notifications.
type InAppSubscription struct {
	ch     chan notification.Notification
	closed bool
	mu     sync.RWMutex
}

// Receive returns the channel delivering the user's notifications.
func (s *InAppSubscription) Receive() <-chan notification.Notification {
	return s.ch
}

// Close stops the subscription. Idempotent.
func (s *InAppSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		close(s.ch)
		s.closed = true
	}
	return nil
}

func (s *InAppSubscription) send(notif notification.Notification) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}
	select {
	case s.ch <- notif:
		return true
	default:
		return false
	}
}

// NewInAppHub creates a hub with the given per-subscription buffer size.
// A minimum buffer of 1 is enforced so sends never block.
func NewInAppHub(bufferSize int) *InAppHub {
	return &InAppHub{
		subscribers: make(map[string]map[*InAppSubscription]struct{}),
		bufferSize:  max(bufferSize, 1),
	}
}

// Subscribe opens a live feed for one user. The subscription is cleaned up
// when the context is cancelled. Subscribing on a closed hub returns an
// already-closed subscription.
func (h *InAppHub) Subscribe(ctx context.Context, userAddress string) *InAppSubscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &InAppSubscription{ch: make(chan notification.Notification, h.bufferSize)}
	if h.closed {
		_ = sub.Close()
		return sub
	}

	if h.subscribers[userAddress] == nil {
		h.subscribers[userAddress] = make(map[*InAppSubscription]struct{})
	}
	h.subscribers[userAddress][sub] = struct{}{}

	if ctx.Done() != nil {
		h.cleanupWg.Add(1)
		go func() {
			defer h.cleanupWg.Done()
			<-ctx.Done()
			h.unsubscribe(userAddress, sub)
		}()
	}

	return sub
}

// Publish delivers a notification to every live subscription of its user.
func (h *InAppHub) Publish(notif notification.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}

	for sub := range h.subscribers[notif.UserAddress] {
		if !sub.send(notif) {
			go h.unsubscribe(notif.UserAddress, sub)
		}
	}
}

// Close shuts down the hub and every subscription. Idempotent.
func (h *InAppHub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for _, subs := range h.subscribers {
		for sub := range subs {
			_ = sub.Close()
		}
	}
	clear(h.subscribers)
	h.mu.Unlock()

	h.cleanupWg.Wait()
	return nil
}

func (h *InAppHub) unsubscribe(userAddress string, sub *InAppSubscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.subscribers[userAddress]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subscribers, userAddress)
		}
	}
	_ = sub.Close()
}

// InAppSender completes in-app deliveries by pushing the already-persisted
// notification to live subscribers. Persistence happens upstream, so the
// send itself cannot reject and always succeeds even with nobody listening.
type InAppSender struct {
	hub *InAppHub
}

// NewInAppSender creates an in-app sender backed by the given hub.
func NewInAppSender(hub *InAppHub) (*InAppSender, error) {
	if hub == nil {
		return nil, ErrStorageNil
	}
	return &InAppSender{hub: hub}, nil
}

func (s *InAppSender) Channel() notification.Channel {
	return notification.ChannelInApp
}

func (s *InAppSender) Send(ctx context.Context, notif notification.Notification) (string, error) {
	s.hub.Publish(notif)
	return "inapp-" + uuid.New().String(), nil
}
