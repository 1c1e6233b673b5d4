// Package notification defines the core notification domain model shared by
// the delivery subsystem: the Notification entity, the catalogue of
// notification types, supported delivery channels, and the persistence
// interface with an in-memory implementation for development and testing.
package notification
