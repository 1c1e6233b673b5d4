// Package redis provides the Redis connection used by the durable digest
// buffer store: retried connection setup from a URL config and a health
// check closure.
package redis
