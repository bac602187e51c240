package events

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisStore(client)
}

func TestRedisStoreClaimsOnce(t *testing.T) {
	mr, store := newRedisStore(t)
	ctx := context.Background()

	ok, err := store.MarkProcessed(ctx, "line", "evt-1")
	if err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	if !ok {
		t.Fatal("expected first delivery to claim the event id")
	}

	ok, err = store.MarkProcessed(ctx, "line", "evt-1")
	if err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	if ok {
		t.Fatal("expected redelivery to be refused")
	}

	if ttl := mr.TTL("processed:line:evt-1"); ttl != processedTTL {
		t.Fatalf("TTL = %v, want %v", ttl, processedTTL)
	}
}

func TestRedisStoreSeparatesProviders(t *testing.T) {
	_, store := newRedisStore(t)
	ctx := context.Background()

	if ok, _ := store.MarkProcessed(ctx, "line", "evt-1"); !ok {
		t.Fatal("line claim refused")
	}
	if ok, _ := store.MarkProcessed(ctx, "webchat", "evt-1"); !ok {
		t.Fatal("same event id under another provider should claim independently")
	}

	seen, err := store.AlreadyProcessed(ctx, "line", "evt-1")
	if err != nil || !seen {
		t.Fatalf("expected line event to be recorded, got seen=%v err=%v", seen, err)
	}
	seen, err = store.AlreadyProcessed(ctx, "line", "evt-2")
	if err != nil || seen {
		t.Fatalf("expected unknown event to be unseen, got seen=%v err=%v", seen, err)
	}
}

func TestMemoryDeduper(t *testing.T) {
	d := NewMemoryDeduper()
	ctx := context.Background()

	if ok, _ := d.MarkProcessed(ctx, "line", "evt-1"); !ok {
		t.Fatal("first claim refused")
	}
	if ok, _ := d.MarkProcessed(ctx, "line", "evt-1"); ok {
		t.Fatal("duplicate claim accepted")
	}
	if ok, _ := d.MarkProcessed(ctx, "line", "evt-2"); !ok {
		t.Fatal("distinct event id refused")
	}
}
