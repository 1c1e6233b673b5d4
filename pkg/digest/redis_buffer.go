package digest

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisPendingSet   = "digest:pending"
	redisBufferKeyFmt = "digest:buffer:%s"
	redisFlushKeyFmt  = "digest:flushed:%s:%s"

	// flushMarkerTTL keeps idempotency markers long enough to cover any
	// realistic restart window without growing the keyspace forever.
	flushMarkerTTL = 45 * 24 * time.Hour
)

// RedisBufferStore is a Redis-backed implementation of the BufferStore
// interface. Buffers and flush markers survive process restarts, which is
// what allows a missed digest period to be flushed exactly once after
// recovery.
//
// Buffers are sorted sets scored by the buffering time in milliseconds, so
// Take can clear exactly the items that belong to the period being flushed.
type RedisBufferStore struct {
	client redis.UniversalClient
}

// NewRedisBufferStore creates a Redis-backed digest buffer store.
func NewRedisBufferStore(client redis.UniversalClient) (*RedisBufferStore, error) {
	if client == nil {
		return nil, ErrStoreNil
	}
	return &RedisBufferStore{client: client}, nil
}

func (s *RedisBufferStore) Append(ctx context.Context, key BufferKey, notificationID string, at time.Time) error {
	if notificationID == "" {
		return ErrMissingNotificationID
	}

	// ZADD + SADD in one transaction so the pending index never misses a
	// non-empty buffer.
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, fmt.Sprintf(redisBufferKeyFmt, key.String()), redis.Z{
			Score:  float64(at.UnixMilli()),
			Member: notificationID,
		})
		pipe.SAdd(ctx, redisPendingSet, key.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("append to digest buffer %s: %w", key, err)
	}
	return nil
}

func (s *RedisBufferStore) Take(ctx context.Context, key BufferKey, until time.Time) ([]string, error) {
	bufferKey := fmt.Sprintf(redisBufferKeyFmt, key.String())
	max := strconv.FormatInt(until.UnixMilli(), 10)

	// Range, trim and count run inside one MULTI/EXEC so the read-and-clear
	// is atomic: concurrent takers can never both see the same entries.
	var (
		rangeCmd *redis.StringSliceCmd
		cardCmd  *redis.IntCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		rangeCmd = pipe.ZRangeByScore(ctx, bufferKey, &redis.ZRangeBy{Min: "-inf", Max: max})
		pipe.ZRemRangeByScore(ctx, bufferKey, "-inf", max)
		cardCmd = pipe.ZCard(ctx, bufferKey)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("take digest buffer %s: %w", key, err)
	}

	ids, err := rangeCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("read digest buffer %s: %w", key, err)
	}

	// Entries buffered after the cutoff stay behind for the next period;
	// the key only leaves the pending index once the buffer is empty.
	if remaining, err := cardCmd.Result(); err == nil && remaining == 0 {
		if err := s.client.SRem(ctx, redisPendingSet, key.String()).Err(); err != nil {
			return nil, fmt.Errorf("unindex digest buffer %s: %w", key, err)
		}
	}
	return ids, nil
}

func (s *RedisBufferStore) Pending(ctx context.Context) ([]BufferKey, error) {
	members, err := s.client.SMembers(ctx, redisPendingSet).Result()
	if err != nil {
		return nil, fmt.Errorf("list pending digest buffers: %w", err)
	}

	keys := make([]BufferKey, 0, len(members))
	for _, m := range members {
		if key, ok := ParseBufferKey(m); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *RedisBufferStore) MarkFlushed(ctx context.Context, key BufferKey, periodKey string) (bool, error) {
	marker := fmt.Sprintf(redisFlushKeyFmt, key.String(), periodKey)
	claimed, err := s.client.SetNX(ctx, marker, 1, flushMarkerTTL).Result()
	if err != nil {
		return false, fmt.Errorf("claim digest flush %s: %w", marker, err)
	}
	return claimed, nil
}
