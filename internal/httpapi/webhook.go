package httpapi

import (
	"context"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yakushift/staffing-platform/internal/chat"
	"github.com/yakushift/staffing-platform/internal/chat/linechat"
	"github.com/yakushift/staffing-platform/internal/events"
	"github.com/yakushift/staffing-platform/internal/observability/metrics"
	"github.com/yakushift/staffing-platform/pkg/logging"
)

var webhookTracer = otel.Tracer("yakushift.internal.httpapi.webhook")

const lineSignatureHeader = "X-Line-Signature"
const lineProvider = "line"

// maxWebhookBody caps inbound webhook payloads.
const maxWebhookBody = 1 << 20

// EventHandler consumes normalized chat events. The conversation engine
// implements this.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev chat.Event)
}

// WebhookHandler verifies, decodes and dispatches LINE webhook calls.
// Events are handled synchronously; the 200 answers only after every
// event in the payload ran to completion.
type WebhookHandler struct {
	channelSecret string
	engine        EventHandler
	deduper       events.Deduper
	metrics       *metrics.WebhookMetrics
	log           *logging.Logger
	now           func() time.Time
}

// NewWebhookHandler builds the LINE webhook endpoint. The deduper is
// optional; without one, redelivered events are handled again.
func NewWebhookHandler(channelSecret string, engine EventHandler, deduper events.Deduper,
	m *metrics.WebhookMetrics, logger *logging.Logger) *WebhookHandler {
	if engine == nil {
		panic("httpapi: event handler cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		channelSecret: channelSecret,
		engine:        engine,
		deduper:       deduper,
		metrics:       m,
		log:           logger,
		now:           time.Now,
	}
}

// HandleLine processes one webhook delivery. Invalid signatures get a
// 403 without touching any event. Handler errors never surface as
// non-200s: LINE retries on failure and the engine owns its own error
// isolation, so a processed delivery is always acknowledged.
func (h *WebhookHandler) HandleLine(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.log.Warn("webhook: read body failed", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if err := linechat.VerifySignature(h.channelSecret, r.Header.Get(lineSignatureHeader), body); err != nil {
		h.metrics.ObserveSignatureFailure()
		h.log.Warn("webhook: signature rejected", "error", err)
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	payload, err := linechat.DecodeWebhook(body)
	if err != nil {
		h.log.Warn("webhook: decode failed", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	ctx, span := webhookTracer.Start(r.Context(), "webhook.line")
	defer span.End()
	span.SetAttributes(attribute.Int("yakushift.events", len(payload.Events)))

	for _, we := range payload.Events {
		h.handleOne(ctx, we)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) handleOne(ctx context.Context, we linechat.WebhookEvent) {
	ev, ok := toEvent(we)
	if !ok {
		h.metrics.ObserveInbound(we.Type, "skipped")
		return
	}

	if h.deduper != nil && ev.DeliveryID != "" {
		fresh, err := h.deduper.MarkProcessed(ctx, lineProvider, ev.DeliveryID)
		if err != nil {
			// Better a duplicate handled twice than an event dropped.
			h.log.Warn("webhook: dedup check failed", "error", err, "event_id", ev.DeliveryID)
		} else if !fresh {
			h.metrics.ObserveInbound(string(ev.Kind), "duplicate")
			h.log.Info("webhook: duplicate delivery dropped", "event_id", ev.DeliveryID)
			return
		}
	}

	start := h.now()
	h.engine.HandleEvent(ctx, ev)
	h.metrics.ObserveInbound(string(ev.Kind), "processed")
	h.metrics.ObserveLatency(string(ev.Kind), h.now().Sub(start).Seconds())
}

// toEvent maps a wire event to the transport-neutral model. Events
// without a user source (group chats, beacons) are skipped.
func toEvent(we linechat.WebhookEvent) (chat.Event, bool) {
	userID := we.UserID()
	if userID == "" {
		return chat.Event{}, false
	}

	var ev chat.Event
	switch we.Type {
	case "message":
		if we.Message == nil || we.Message.Type != "text" {
			return chat.Event{}, false
		}
		ev = chat.NewTextEvent(userID, we.Message.Text)
	case "postback":
		if we.Postback == nil {
			return chat.Event{}, false
		}
		ev = chat.NewActionEvent(userID, we.Postback.Data)
	case "follow":
		ev = chat.NewFollowEvent(userID)
	case "unfollow":
		ev = chat.NewUnfollowEvent(userID)
	default:
		return chat.Event{}, false
	}

	ev.ReplyToken = we.ReplyToken
	ev.DeliveryID = we.WebhookEventID
	if we.Timestamp > 0 {
		ev.ReceivedAt = time.UnixMilli(we.Timestamp)
	}
	return ev, true
}
