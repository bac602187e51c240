package chat

import (
	"fmt"
	"strings"

	"github.com/yakushift/staffing-platform/internal/chat/linechat"
	"github.com/yakushift/staffing-platform/pkg/logging"
)

const (
	// ProviderAuto picks LINE when configured, then Telegram, then memory.
	ProviderAuto = "auto"
	// ProviderLine forces the LINE sender when credentials exist.
	ProviderLine = "line"
	// ProviderTelegram forces the Telegram sender when a token exists.
	ProviderTelegram = "telegram"
	// ProviderMemory is the in-process transport for tests and dev runs.
	ProviderMemory = "memory"
)

// ProviderSelectionConfig captures the credentials required to build notifiers.
type ProviderSelectionConfig struct {
	Preference        string
	LineChannelSecret string
	LineChannelToken  string
	LineAPIBaseURL    string
	TelegramBotToken  string
	TelegramAllowFrom []int64
}

// BuildResult is what provider selection produced.
type BuildResult struct {
	Notifier Notifier
	Provider string
	// Telegram is set when the Telegram transport was built, so the caller
	// can start its polling loop.
	Telegram *Telegram
	// Memory is set for the memory provider, so the dev console can attach.
	Memory *MemoryTransport
}

// BuildNotifier instantiates a Notifier based on the preferred provider.
// It returns the result, and a reason when no provider could be initialized.
func BuildNotifier(cfg ProviderSelectionConfig, logger *logging.Logger) (*BuildResult, string) {
	if logger == nil {
		logger = logging.Default()
	}
	preference := strings.ToLower(strings.TrimSpace(cfg.Preference))
	if preference == "" {
		preference = ProviderAuto
	}

	missing := map[string]string{}

	var lineSender *LineSender
	if cfg.LineChannelSecret != "" && cfg.LineChannelToken != "" {
		client, err := linechat.New(linechat.Config{
			BaseURL:       cfg.LineAPIBaseURL,
			ChannelToken:  cfg.LineChannelToken,
			ChannelSecret: cfg.LineChannelSecret,
			Logger:        logger.Logger,
		})
		if err != nil {
			missing[ProviderLine] = err.Error()
		} else {
			lineSender = NewLineSender(client, logger)
		}
	} else {
		var reasons []string
		if cfg.LineChannelSecret == "" {
			reasons = append(reasons, "LINE_CHANNEL_SECRET missing")
		}
		if cfg.LineChannelToken == "" {
			reasons = append(reasons, "LINE_CHANNEL_ACCESS_TOKEN missing")
		}
		missing[ProviderLine] = strings.Join(reasons, ", ")
	}

	var telegram *Telegram
	if cfg.TelegramBotToken != "" {
		t, err := NewTelegram(TelegramConfig{Token: cfg.TelegramBotToken, AllowFrom: cfg.TelegramAllowFrom}, logger)
		if err != nil {
			missing[ProviderTelegram] = err.Error()
		} else {
			telegram = t
		}
	} else {
		missing[ProviderTelegram] = "TELEGRAM_BOT_TOKEN missing"
	}

	switch preference {
	case ProviderLine:
		if lineSender != nil {
			return &BuildResult{Notifier: lineSender, Provider: ProviderLine}, ""
		}
		return nil, missing[ProviderLine]
	case ProviderTelegram:
		if telegram != nil {
			return &BuildResult{Notifier: telegram, Provider: ProviderTelegram, Telegram: telegram}, ""
		}
		return nil, missing[ProviderTelegram]
	case ProviderMemory:
		mem := NewMemoryTransport()
		return &BuildResult{Notifier: mem, Provider: ProviderMemory, Memory: mem}, ""
	case ProviderAuto:
		if lineSender != nil {
			return &BuildResult{Notifier: lineSender, Provider: ProviderLine}, ""
		}
		if telegram != nil {
			return &BuildResult{Notifier: telegram, Provider: ProviderTelegram, Telegram: telegram}, ""
		}
		mem := NewMemoryTransport()
		logger.Warn("no chat provider configured, using in-process memory transport",
			"line", missing[ProviderLine],
			"telegram", missing[ProviderTelegram],
		)
		return &BuildResult{Notifier: mem, Provider: ProviderMemory, Memory: mem}, ""
	default:
		return nil, fmt.Sprintf("unknown chat provider %q", preference)
	}
}
