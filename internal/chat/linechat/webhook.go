package linechat

import (
	"encoding/json"
	"fmt"
)

// WebhookPayload is the body of an inbound webhook call.
type WebhookPayload struct {
	Destination string         `json:"destination"`
	Events      []WebhookEvent `json:"events"`
}

// WebhookEvent is one event inside a webhook payload.
type WebhookEvent struct {
	Type            string           `json:"type"`
	WebhookEventID  string           `json:"webhookEventId"`
	DeliveryContext *DeliveryContext `json:"deliveryContext,omitempty"`
	Timestamp       int64            `json:"timestamp"`
	Source          *EventSource     `json:"source,omitempty"`
	ReplyToken      string           `json:"replyToken,omitempty"`
	Message         *EventMessage    `json:"message,omitempty"`
	Postback        *EventPostback   `json:"postback,omitempty"`
}

// DeliveryContext marks redelivered events.
type DeliveryContext struct {
	IsRedelivery bool `json:"isRedelivery"`
}

// EventSource identifies the sender.
type EventSource struct {
	Type    string `json:"type"`
	UserID  string `json:"userId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
}

// EventMessage is the message body of a message event.
type EventMessage struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// EventPostback carries the action token of a button tap.
type EventPostback struct {
	Data string `json:"data"`
}

// DecodeWebhook parses a webhook body.
func DecodeWebhook(data []byte) (*WebhookPayload, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("linechat: decode webhook: %w", err)
	}
	return &payload, nil
}

// UserID returns the sending user id, empty for non-user sources.
func (e WebhookEvent) UserID() string {
	if e.Source == nil {
		return ""
	}
	return e.Source.UserID
}
