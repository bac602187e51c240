// Package events deduplicates webhook deliveries. Chat providers
// redeliver an event whenever the webhook response is slow or lost, so
// every delivery carries a provider-assigned event id and handlers
// claim the id before acting on it.
package events

import (
	"context"
	"sync"
)

// Deduper filters webhook redeliveries by event id.
type Deduper interface {
	// MarkProcessed claims a (provider, event id) pair. It returns
	// false when an earlier delivery already claimed the pair.
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

// MemoryDeduper is an in-process Deduper for tests and single-node runs.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryDeduper creates an empty in-memory deduper.
func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]struct{})}
}

func (d *MemoryDeduper) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := provider + ":" + eventID
	if _, ok := d.seen[key]; ok {
		return false, nil
	}
	d.seen[key] = struct{}{}
	return true, nil
}
