// Package event records the append-only lifecycle trail for notifications
// and their deliveries. Every state transition produces exactly one event;
// events are never mutated or deleted. Per-notification ordering is enforced
// through a sequence number assigned at append time, so a full timeline can
// be reconstructed even when multiple channels report concurrently.
//
// The recorder also derives aggregate delivery metrics (success rate, mean
// retries, mean time-to-delivery) from the log.
package event
