// Package channels provides the concrete delivery senders: transactional
// email via Postmark, mobile push behind a provider abstraction, and an
// in-process in-app feed. Each sender resolves its recipient details from
// the user's saved preferences at send time and classifies failures as
// transient or permanent for the dispatcher's retry policy.
//
// Development variants (DevEmailSender, LogPushProvider) let the full
// pipeline run locally without external services.
package channels
