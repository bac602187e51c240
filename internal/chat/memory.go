package chat

import (
	"context"
	"sync"
)

// Delivery records one outbound message captured by the memory transport.
type Delivery struct {
	UserID     string
	ReplyToken string
	Message    Message
}

// MemoryTransport is an in-process Notifier for tests and the dev console.
// It records everything it is asked to send and can stream deliveries to a
// subscriber per user.
type MemoryTransport struct {
	mu          sync.Mutex
	deliveries  []Delivery
	subscribers map[string][]chan Message
}

// NewMemoryTransport builds an empty memory transport.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{subscribers: make(map[string][]chan Message)}
}

var _ Notifier = (*MemoryTransport)(nil)

// Notify records the message and forwards it to any subscriber of the user.
func (t *MemoryTransport) Notify(_ context.Context, userID string, msg Message) error {
	t.mu.Lock()
	t.deliveries = append(t.deliveries, Delivery{UserID: userID, Message: msg})
	subs := append([]chan Message(nil), t.subscribers[userID]...)
	t.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

// Reply records a reply-token delivery. The memory transport has no real
// reply concept, so the token is kept only for assertions.
func (t *MemoryTransport) Reply(_ context.Context, replyToken string, msg Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deliveries = append(t.deliveries, Delivery{ReplyToken: replyToken, Message: msg})
	return nil
}

// Subscribe returns a buffered channel receiving future pushes to userID.
func (t *MemoryTransport) Subscribe(userID string) <-chan Message {
	ch := make(chan Message, 16)
	t.mu.Lock()
	t.subscribers[userID] = append(t.subscribers[userID], ch)
	t.mu.Unlock()
	return ch
}

// Deliveries returns a copy of everything sent so far.
func (t *MemoryTransport) Deliveries() []Delivery {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Delivery(nil), t.deliveries...)
}

// DeliveriesTo filters recorded pushes by user id.
func (t *MemoryTransport) DeliveriesTo(userID string) []Delivery {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Delivery
	for _, d := range t.deliveries {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out
}

// Reset drops all recorded deliveries.
func (t *MemoryTransport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deliveries = nil
}
