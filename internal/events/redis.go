package events

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	processedKeyPrefix = "processed:"
	processedTTL       = 24 * time.Hour
)

// RedisStore claims event ids with SET NX. Keys expire after a day,
// which outlives every provider's redelivery window. Cache-only
// deployments use this in place of PostgresStore.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed deduper.
func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		panic("events: redis client required")
	}
	return &RedisStore{redis: client}
}

func (s *RedisStore) key(provider, eventID string) string {
	return processedKeyPrefix + provider + ":" + eventID
}

// AlreadyProcessed reports whether the provider event id was seen before.
func (s *RedisStore) AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(provider, eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("events: check processed: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed claims the event id, returning false when another
// delivery already claimed it.
func (s *RedisStore) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	ok, err := s.redis.SetNX(ctx, s.key(provider, eventID), "1", processedTTL).Result()
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ok, nil
}
