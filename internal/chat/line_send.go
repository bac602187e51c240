package chat

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yakushift/staffing-platform/internal/chat/linechat"
	"github.com/yakushift/staffing-platform/pkg/logging"
)

var lineSendTracer = otel.Tracer("yakushift.internal.chat.line_send")

// LineSender delivers messages through the LINE Messaging API.
type LineSender struct {
	client *linechat.Client
	logger *logging.Logger
}

// NewLineSender wraps a configured linechat client.
func NewLineSender(client *linechat.Client, logger *logging.Logger) *LineSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &LineSender{client: client, logger: logger}
}

var _ Notifier = (*LineSender)(nil)

// Notify pushes a message to a user id.
func (s *LineSender) Notify(ctx context.Context, userID string, msg Message) error {
	if s.client == nil {
		return errors.New("chat: line client not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return errors.New("chat: user id required")
	}

	ctx, span := lineSendTracer.Start(ctx, "chat.line.push")
	defer span.End()
	span.SetAttributes(
		attribute.String("yakushift.provider", "line"),
		attribute.String("yakushift.to", userID),
		attribute.Bool("yakushift.menu", msg.IsMenu()),
	)

	err := s.client.PushMessage(ctx, userID, toWire(msg))
	if err != nil {
		span.RecordError(err)
		s.logger.Error("line push failed", "error", err, "to", userID)
		return err
	}
	s.logger.Info("line push sent", "to", userID, "menu", msg.IsMenu())
	return nil
}

// Reply answers an inbound event through its reply token.
func (s *LineSender) Reply(ctx context.Context, replyToken string, msg Message) error {
	if s.client == nil {
		return errors.New("chat: line client not configured")
	}
	if strings.TrimSpace(replyToken) == "" {
		return errors.New("chat: reply token required")
	}

	ctx, span := lineSendTracer.Start(ctx, "chat.line.reply")
	defer span.End()
	span.SetAttributes(
		attribute.String("yakushift.provider", "line"),
		attribute.Bool("yakushift.menu", msg.IsMenu()),
	)

	err := s.client.ReplyMessage(ctx, replyToken, toWire(msg))
	if err != nil {
		span.RecordError(err)
		s.logger.Error("line reply failed", "error", err)
		return err
	}
	return nil
}

func toWire(msg Message) []linechat.WireMessage {
	if !msg.IsMenu() {
		return []linechat.WireMessage{linechat.TextMessage(msg.Body)}
	}
	actions := make([]linechat.WireAction, 0, len(msg.Actions))
	for _, a := range msg.Actions {
		actions = append(actions, linechat.PostbackAction(a.Label, a.Token))
	}
	return linechat.TemplateMessages(msg.Title, msg.Body, actions)
}
