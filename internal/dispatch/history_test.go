package dispatch

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisHistoryRecordsStatuses(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	h := NewRedisHistory(client)
	ctx := context.Background()

	if err := h.RecordNotification(ctx, "req_1", "Upharm1", "sent"); err != nil {
		t.Fatalf("RecordNotification failed: %v", err)
	}
	if err := h.RecordNotification(ctx, "req_1", "Upharm2", "failed"); err != nil {
		t.Fatalf("RecordNotification failed: %v", err)
	}

	got, err := h.Notifications(ctx, "req_1")
	if err != nil {
		t.Fatalf("Notifications failed: %v", err)
	}
	if got["Upharm1"] != "sent" || got["Upharm2"] != "failed" {
		t.Fatalf("history = %v", got)
	}

	if ttl := mr.TTL("notified:req_1"); ttl != historyTTL {
		t.Fatalf("TTL = %v, want %v", ttl, historyTTL)
	}
}

func TestRedisHistoryMissingRequestIsEmpty(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	h := NewRedisHistory(client)
	got, err := h.Notifications(context.Background(), "req_unknown")
	if err != nil {
		t.Fatalf("Notifications failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("history = %v, want empty", got)
	}
}

func TestMemoryHistoryReturnsCopies(t *testing.T) {
	h := NewMemoryHistory()
	ctx := context.Background()

	if err := h.RecordNotification(ctx, "req_1", "Upharm1", "sent"); err != nil {
		t.Fatalf("RecordNotification failed: %v", err)
	}

	first, _ := h.Notifications(ctx, "req_1")
	first["Upharm1"] = "tampered"

	second, _ := h.Notifications(ctx, "req_1")
	if second["Upharm1"] != "sent" {
		t.Fatalf("stored history mutated: %v", second)
	}
}
