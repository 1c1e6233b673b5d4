// Package preference stores per-user notification preferences and resolves,
// for each candidate channel, whether a notification is delivered
// immediately, batched into a digest, or suppressed.
//
// Resolution rules, in order: the channel-level enabled flag is a hard
// switch; per-type overrides narrow it further; email honors the digest
// frequency except for urgent types; push and in-app are deferred during the
// user's quiet hours. Malformed configuration never drops a notification -
// the resolver logs the condition and falls back to immediate delivery.
package preference
