package event

import (
	"context"
	"time"
)

// DeliveryMetrics aggregates delivery outcomes derived from the event log.
type DeliveryMetrics struct {
	Notifications  int           // notifications with at least one send-related event
	Delivered      int           // notifications that reached DELIVERED
	Failed         int           // notifications whose last send-related event is FAILED or BOUNCED
	SuccessRate    float64       // Delivered / (Delivered + Failed), 0 when no outcomes
	MeanRetries    float64       // mean RETRIED events per notification
	MeanTimeToSend time.Duration // mean CREATED -> DELIVERED latency across delivered notifications
}

// Metrics derives aggregate delivery metrics from events matching the
// criteria.
//
// WARNING: this loads all matching events into memory. Storage
// implementations backed by a database should be queried with a bounded time
// range.
func (r *Recorder) Metrics(ctx context.Context, c Criteria) (DeliveryMetrics, error) {
	events, err := r.storage.Query(ctx, c)
	if err != nil {
		return DeliveryMetrics{}, err
	}
	return computeMetrics(events), nil
}

type notifOutcome struct {
	createdAt   *time.Time
	deliveredAt *time.Time
	retries     int
	sendSeen    bool
	failed      bool
}

func computeMetrics(events []Event) DeliveryMetrics {
	outcomes := make(map[string]*notifOutcome)

	for i := range events {
		e := &events[i]
		o := outcomes[e.NotificationID]
		if o == nil {
			o = &notifOutcome{}
			outcomes[e.NotificationID] = o
		}

		switch e.Type {
		case TypeCreated:
			if o.createdAt == nil {
				t := e.CreatedAt
				o.createdAt = &t
			}
		case TypeSent:
			o.sendSeen = true
			o.failed = false
		case TypeDelivered:
			o.sendSeen = true
			o.failed = false
			if o.deliveredAt == nil {
				t := e.CreatedAt
				o.deliveredAt = &t
			}
		case TypeRetried:
			o.sendSeen = true
			o.retries++
		case TypeFailed, TypeBounced:
			o.sendSeen = true
			// Overall failure only if no channel later succeeds; DELIVERED
			// for any channel clears the flag above.
			if o.deliveredAt == nil {
				o.failed = true
			}
		}
	}

	var m DeliveryMetrics
	var totalRetries int
	var totalLatency time.Duration
	var latencySamples int

	for _, o := range outcomes {
		if !o.sendSeen {
			continue
		}
		m.Notifications++
		totalRetries += o.retries

		if o.deliveredAt != nil {
			m.Delivered++
			if o.createdAt != nil {
				totalLatency += o.deliveredAt.Sub(*o.createdAt)
				latencySamples++
			}
		} else if o.failed {
			m.Failed++
		}
	}

	if m.Notifications > 0 {
		m.MeanRetries = float64(totalRetries) / float64(m.Notifications)
	}
	if outcomes := m.Delivered + m.Failed; outcomes > 0 {
		m.SuccessRate = float64(m.Delivered) / float64(outcomes)
	}
	if latencySamples > 0 {
		m.MeanTimeToSend = totalLatency / time.Duration(latencySamples)
	}

	return m
}
