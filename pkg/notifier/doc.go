// Package notifier is the application-facing facade over the notification
// pipeline. One Service call persists the notification, appends its audit
// event, indexes it into the user's display groups and routes each channel
// per the user's preferences: dispatch immediately, buffer for the next
// digest flush, or suppress.
//
// The Service also exposes the read-side operations an inbox UI needs:
// listing, unread counts, grouped views, read/archive/delete actions, the
// per-notification event timeline and aggregate delivery metrics.
package notifier
