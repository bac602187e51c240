package reminder

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	limiterKeyPrefix = "reminder:"
	limiterTTL       = 24 * time.Hour

	defaultMaxSends = 2
	defaultCooldown = time.Hour
)

// Limiter caps how often one pharmacist is nudged about one request.
type Limiter interface {
	// Allow reports whether a reminder may be sent now.
	Allow(ctx context.Context, requestID, pharmacistID string, now time.Time) (bool, error)
	// MarkSent records a delivered reminder.
	MarkSent(ctx context.Context, requestID, pharmacistID string, now time.Time) error
}

// RedisLimiter keeps a hash per (request, pharmacist) holding the send
// count and the last send time. A pair is allowed maxSends reminders,
// with at least cooldown between consecutive sends. Entries expire
// after a day, past any redelivery window that still matters.
type RedisLimiter struct {
	redis    *redis.Client
	maxSends int
	cooldown time.Duration
}

// NewRedisLimiter creates a Redis-backed limiter. Non-positive
// maxSends or cooldown fall back to the defaults (2 sends, 1h apart).
func NewRedisLimiter(client *redis.Client, maxSends int, cooldown time.Duration) *RedisLimiter {
	if client == nil {
		panic("reminder: redis client required")
	}
	if maxSends <= 0 {
		maxSends = defaultMaxSends
	}
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	return &RedisLimiter{redis: client, maxSends: maxSends, cooldown: cooldown}
}

func (l *RedisLimiter) key(requestID, pharmacistID string) string {
	return limiterKeyPrefix + requestID + ":" + pharmacistID
}

// Allow reads the pair's counter. A missing key allows; a count at the
// cap or a send within the cooldown suppresses.
func (l *RedisLimiter) Allow(ctx context.Context, requestID, pharmacistID string, now time.Time) (bool, error) {
	vals, err := l.redis.HGetAll(ctx, l.key(requestID, pharmacistID)).Result()
	if err != nil {
		return false, fmt.Errorf("reminder: read counter: %w", err)
	}
	count, _ := strconv.Atoi(vals["count"])
	if count >= l.maxSends {
		return false, nil
	}
	if count > 0 {
		last, _ := strconv.ParseInt(vals["last_at"], 10, 64)
		if now.Sub(time.Unix(last, 0)) < l.cooldown {
			return false, nil
		}
	}
	return true, nil
}

// MarkSent bumps the pair's count, stamps the send time and refreshes
// the TTL.
func (l *RedisLimiter) MarkSent(ctx context.Context, requestID, pharmacistID string, now time.Time) error {
	key := l.key(requestID, pharmacistID)
	pipe := l.redis.TxPipeline()
	pipe.HIncrBy(ctx, key, "count", 1)
	pipe.HSet(ctx, key, "last_at", now.Unix())
	pipe.Expire(ctx, key, limiterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("reminder: record send: %w", err)
	}
	return nil
}

// MemoryLimiter is an in-process Limiter for tests and cache-less runs.
type MemoryLimiter struct {
	mu       sync.Mutex
	pairs    map[string]limiterEntry
	maxSends int
	cooldown time.Duration
}

type limiterEntry struct {
	count  int
	lastAt time.Time
}

// NewMemoryLimiter creates an in-memory limiter with the same
// defaulting rules as NewRedisLimiter.
func NewMemoryLimiter(maxSends int, cooldown time.Duration) *MemoryLimiter {
	if maxSends <= 0 {
		maxSends = defaultMaxSends
	}
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	return &MemoryLimiter{
		pairs:    make(map[string]limiterEntry),
		maxSends: maxSends,
		cooldown: cooldown,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, requestID, pharmacistID string, now time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry := l.pairs[requestID+":"+pharmacistID]
	if entry.count >= l.maxSends {
		return false, nil
	}
	if entry.count > 0 && now.Sub(entry.lastAt) < l.cooldown {
		return false, nil
	}
	return true, nil
}

func (l *MemoryLimiter) MarkSent(ctx context.Context, requestID, pharmacistID string, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := requestID + ":" + pharmacistID
	entry := l.pairs[key]
	entry.count++
	entry.lastAt = now
	l.pairs[key] = entry
	return nil
}
