// Package dispatch sends per-channel delivery attempts and manages their
// lifecycle: PENDING deliveries are attempted with a bounded concurrency
// pump, transient failures retry with capped exponential backoff, permanent
// failures and exhausted retry budgets fail terminally, and provider
// callbacks (delivered/bounced) arrive through an explicit confirmation
// inbox. At most one send attempt runs per (notification, channel) pair at
// any time, and every status transition appends exactly one event to the
// audit trail.
package dispatch
