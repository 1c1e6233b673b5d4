// Package digest buffers digest-eligible notifications per user and channel
// and flushes each buffer on the user's configured schedule as one batched
// send. Exactly-once delivery per (user, channel, period) is guaranteed by an
// idempotency marker claimed before the buffer is taken, so repeated timer
// ticks and process restarts cannot double-send; a period missed while the
// process was down is flushed once on the next tick after recovery.
package digest
