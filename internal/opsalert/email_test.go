package opsalert

import (
	"context"
	"testing"
)

func TestNewSendGridSenderNilWithoutAPIKey(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{FromEmail: "ops@example.com"}, nil)
	if sender != nil {
		t.Fatal("expected nil sender when API key is empty")
	}
}

func TestNewSendGridSenderDefaultFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{
		APIKey:    "test-key",
		FromEmail: "ops@example.com",
	}, nil)
	if sender == nil {
		t.Fatal("expected non-nil sender")
	}
	if sender.fromName != "Yakushift" {
		t.Fatalf("fromName = %q, want Yakushift", sender.fromName)
	}
}

func TestSendGridSenderSendNilClient(t *testing.T) {
	sender := &SendGridSender{}
	err := sender.Send(context.Background(), EmailMessage{
		To:      "ops@example.com",
		Subject: "Test",
		Body:    "Test body",
	})
	if err == nil {
		t.Fatal("expected error when client is nil")
	}
}

func TestNewSESSenderNilWithoutClient(t *testing.T) {
	if sender := NewSESSender(nil, SESConfig{FromEmail: "ops@example.com"}, nil); sender != nil {
		t.Fatal("expected nil sender when client is nil")
	}
}

func TestStubEmailSenderSend(t *testing.T) {
	sender := NewStubEmailSender(nil)
	err := sender.Send(context.Background(), EmailMessage{
		To:      "ops@example.com",
		Subject: "Test Subject",
		Body:    "Test body",
	})
	if err != nil {
		t.Fatalf("stub sender returned error: %v", err)
	}
}
