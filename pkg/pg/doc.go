// Package pg provides the PostgreSQL connection pool used by the durable
// event log: pooled connections with startup retries, goose-driven schema
// migrations and a health check closure.
package pg
