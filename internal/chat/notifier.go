package chat

import (
	"context"

	"github.com/yakushift/staffing-platform/pkg/logging"
)

// Notifier delivers outbound messages to chat users. Implementations exist
// for LINE, Telegram and the in-process memory transport.
type Notifier interface {
	// Notify pushes a message to a user by id.
	Notify(ctx context.Context, userID string, msg Message) error
	// Reply answers a specific inbound event using its reply token. Falls
	// back to a push when the transport has no reply concept.
	Reply(ctx context.Context, replyToken string, msg Message) error
}

// TryNotify pushes a message and logs delivery failures instead of
// propagating them. Every best-effort send in dispatch and arbitration goes
// through here so failure isolation stays uniform. Returns true on success.
func TryNotify(ctx context.Context, n Notifier, logger *logging.Logger, userID string, msg Message) bool {
	if n == nil || userID == "" {
		return false
	}
	if logger == nil {
		logger = logging.Default()
	}
	if err := n.Notify(ctx, userID, msg); err != nil {
		logger.Warn("chat: notify failed", "error", err, "user_id", userID)
		return false
	}
	return true
}

// TryReply answers an event best-effort, pushing to userID when the reply
// token is empty or the reply fails.
func TryReply(ctx context.Context, n Notifier, logger *logging.Logger, replyToken, userID string, msg Message) bool {
	if n == nil {
		return false
	}
	if logger == nil {
		logger = logging.Default()
	}
	if replyToken != "" {
		err := n.Reply(ctx, replyToken, msg)
		if err == nil {
			return true
		}
		logger.Warn("chat: reply failed, falling back to push", "error", err, "user_id", userID)
	}
	return TryNotify(ctx, n, logger, userID, msg)
}
