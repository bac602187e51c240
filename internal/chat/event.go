package chat

import "time"

// EventKind discriminates inbound chat events.
type EventKind string

const (
	EventText     EventKind = "text"
	EventAction   EventKind = "action"
	EventFollow   EventKind = "follow"
	EventUnfollow EventKind = "unfollow"
)

// Event is one inbound occurrence from a chat transport, normalized away from
// the wire format. Text carries the message body for EventText; ActionToken
// carries the raw postback token for EventAction.
type Event struct {
	Kind        EventKind
	UserID      string
	Text        string
	ActionToken string

	// ReplyToken allows one direct reply to this event when the transport
	// supports it. Empty means reply via push.
	ReplyToken string

	// DeliveryID identifies the transport delivery for duplicate detection.
	// Retried webhook deliveries reuse the same id.
	DeliveryID string

	ReceivedAt time.Time
}

// NewTextEvent builds a text event.
func NewTextEvent(userID, text string) Event {
	return Event{Kind: EventText, UserID: userID, Text: text, ReceivedAt: time.Now()}
}

// NewActionEvent builds an action (button tap) event.
func NewActionEvent(userID, token string) Event {
	return Event{Kind: EventAction, UserID: userID, ActionToken: token, ReceivedAt: time.Now()}
}

// NewFollowEvent builds a follow event.
func NewFollowEvent(userID string) Event {
	return Event{Kind: EventFollow, UserID: userID, ReceivedAt: time.Now()}
}

// NewUnfollowEvent builds an unfollow event.
func NewUnfollowEvent(userID string) Event {
	return Event{Kind: EventUnfollow, UserID: userID, ReceivedAt: time.Now()}
}
