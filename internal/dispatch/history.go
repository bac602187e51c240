package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	historyKeyPrefix = "notified:"
	historyTTL       = 24 * time.Hour
)

// RedisHistory records per-recipient send outcomes in a hash per
// request. Entries expire after a day; the admin API reads them back
// through Notifications.
type RedisHistory struct {
	redis *redis.Client
}

// NewRedisHistory creates a Redis-backed notification history.
func NewRedisHistory(client *redis.Client) *RedisHistory {
	if client == nil {
		panic("dispatch: redis client cannot be nil")
	}
	return &RedisHistory{redis: client}
}

func (h *RedisHistory) key(requestID string) string {
	return historyKeyPrefix + requestID
}

// RecordNotification stores the delivery status for one recipient and
// refreshes the hash TTL.
func (h *RedisHistory) RecordNotification(ctx context.Context, requestID, pharmacistID, status string) error {
	key := h.key(requestID)
	pipe := h.redis.TxPipeline()
	pipe.HSet(ctx, key, pharmacistID, status)
	pipe.Expire(ctx, key, historyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("dispatch: record notification: %w", err)
	}
	return nil
}

// Notifications returns recipient ids mapped to their last delivery
// status. An expired or never-written request yields an empty map.
func (h *RedisHistory) Notifications(ctx context.Context, requestID string) (map[string]string, error) {
	out, err := h.redis.HGetAll(ctx, h.key(requestID)).Result()
	if err != nil {
		return nil, fmt.Errorf("dispatch: read notification history: %w", err)
	}
	return out, nil
}

// MemoryHistory is an in-process History for tests and cache-less runs.
type MemoryHistory struct {
	mu      sync.Mutex
	entries map[string]map[string]string
}

// NewMemoryHistory creates an empty in-memory history.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{entries: make(map[string]map[string]string)}
}

func (h *MemoryHistory) RecordNotification(ctx context.Context, requestID, pharmacistID, status string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.entries[requestID]
	if !ok {
		m = make(map[string]string)
		h.entries[requestID] = m
	}
	m[pharmacistID] = status
	return nil
}

// Notifications returns a copy of the recorded statuses for a request.
func (h *MemoryHistory) Notifications(ctx context.Context, requestID string) (map[string]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]string, len(h.entries[requestID]))
	for k, v := range h.entries[requestID] {
		out[k] = v
	}
	return out, nil
}
