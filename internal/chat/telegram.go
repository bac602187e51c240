package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/yakushift/staffing-platform/pkg/logging"
)

// TelegramConfig holds Telegram transport configuration.
type TelegramConfig struct {
	Token     string  // Bot token from @BotFather
	AllowFrom []int64 // Allowed Telegram user IDs (empty = allow all)
}

// Telegram is a chat transport over the Telegram Bot API. The chat id doubles
// as the user id; menus render as inline keyboards whose callback data carries
// the action token.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	config TelegramConfig
	logger *logging.Logger
	cancel context.CancelFunc
}

// NewTelegram creates a Telegram transport.
func NewTelegram(cfg TelegramConfig, logger *logging.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("chat: init telegram bot: %w", err)
	}
	if logger == nil {
		logger = logging.Default()
	}
	logger.Info("telegram bot authorized", "username", bot.Self.UserName)
	return &Telegram{bot: bot, config: cfg, logger: logger}, nil
}

var _ Notifier = (*Telegram)(nil)

// Notify delivers a message to a Telegram chat.
func (t *Telegram) Notify(_ context.Context, userID string, msg Message) error {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return fmt.Errorf("chat: invalid telegram chat id %q: %w", userID, err)
	}
	body := msg.Body
	if msg.Title != "" {
		body = msg.Title + "\n" + body
	}
	if strings.TrimSpace(body) == "" {
		t.logger.Warn("skipping empty telegram message", "chat_id", userID)
		return nil
	}

	tgMsg := tgbotapi.NewMessage(chatID, body)
	if msg.IsMenu() {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(msg.Actions))
		for _, a := range msg.Actions {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(a.Label, a.Token),
			))
		}
		tgMsg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	_, err = t.bot.Send(tgMsg)
	return err
}

// Reply has no token concept on Telegram; the caller falls back to Notify.
func (t *Telegram) Reply(context.Context, string, Message) error {
	return errors.New("chat: telegram has no reply tokens")
}

// Start long-polls for updates until ctx is cancelled, converting each update
// into an Event for the handler. Blocks.
func (t *Telegram) Start(ctx context.Context, handle func(context.Context, Event)) error {
	ctx, t.cancel = context.WithCancel(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)

	t.logger.Info("telegram transport started", "bot", t.bot.Self.UserName)

	for {
		select {
		case update := <-updates:
			if evt, ok := t.toEvent(update); ok {
				handle(ctx, evt)
			}
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			t.logger.Info("telegram transport stopped")
			return ctx.Err()
		}
	}
}

// Stop cancels the polling loop.
func (t *Telegram) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
}

func (t *Telegram) toEvent(update tgbotapi.Update) (Event, bool) {
	if update.CallbackQuery != nil {
		cq := update.CallbackQuery
		if cq.From == nil || !t.allowed(cq.From.ID) {
			return Event{}, false
		}
		// Dismiss the inline keyboard spinner.
		_, _ = t.bot.Request(tgbotapi.NewCallback(cq.ID, ""))
		evt := NewActionEvent(strconv.FormatInt(cq.From.ID, 10), cq.Data)
		evt.DeliveryID = "tg:" + cq.ID
		return evt, true
	}
	if update.Message == nil || update.Message.From == nil {
		return Event{}, false
	}
	msg := update.Message
	if !t.allowed(msg.From.ID) {
		t.logger.Warn("unauthorized telegram user", "user_id", msg.From.ID, "username", msg.From.UserName)
		return Event{}, false
	}
	text := msg.Text
	if text == "" && msg.Caption != "" {
		text = msg.Caption
	}
	if strings.TrimSpace(text) == "" {
		return Event{}, false
	}
	evt := NewTextEvent(strconv.FormatInt(msg.From.ID, 10), text)
	evt.DeliveryID = fmt.Sprintf("tg:%d:%d", msg.Chat.ID, msg.MessageID)
	return evt, true
}

func (t *Telegram) allowed(userID int64) bool {
	if len(t.config.AllowFrom) == 0 {
		return true
	}
	for _, id := range t.config.AllowFrom {
		if id == userID {
			return true
		}
	}
	return false
}
