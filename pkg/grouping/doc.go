// Package grouping clusters notifications into display groups keyed by type
// and pool, and maintains the aggregate read/archived state. Aggregates are
// always recomputed from the member set under a per-key lock, so the group
// count matches the member set and the flags are the logical AND over all
// members even under concurrent updates.
package grouping
