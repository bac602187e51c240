// Package webchat is the WebSocket dev console: a browser chat session
// posing as a synthetic LINE user, wired straight into the conversation
// engine through the in-process memory transport. Development only.
package webchat

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/yakushift/staffing-platform/internal/chat"
	"github.com/yakushift/staffing-platform/internal/chatlog"
	"github.com/yakushift/staffing-platform/pkg/logging"
)

// EventHandler consumes normalized chat events.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev chat.Event)
}

// HistoryReader loads a user's recent transcript lines.
type HistoryReader interface {
	History(ctx context.Context, userID string, limit int) ([]chatlog.Message, error)
}

// Handler upgrades dev console connections and relays messages between
// the socket and the engine.
type Handler struct {
	engine    EventHandler
	transport *chat.MemoryTransport
	history   HistoryReader
	log       *logging.Logger
}

// InboundFrame is what the console sends over the socket.
type InboundFrame struct {
	Type  string `json:"type"` // "message", "action", "ping"
	Text  string `json:"text,omitempty"`
	Token string `json:"token,omitempty"`
}

// OutboundFrame is what the console receives.
type OutboundFrame struct {
	Type      string         `json:"type"` // "session", "message", "history", "pong", "error"
	UserID    string         `json:"user_id,omitempty"`
	Title     string         `json:"title,omitempty"`
	Text      string         `json:"text,omitempty"`
	Buttons   []FrameButton  `json:"buttons,omitempty"`
	Messages  []HistoryEntry `json:"messages,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// FrameButton is one tappable menu action.
type FrameButton struct {
	Label string `json:"label"`
	Token string `json:"token"`
}

// HistoryEntry is one transcript line for the history frame.
type HistoryEntry struct {
	Direction string `json:"direction"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// NewHandler builds the dev console. History is optional.
func NewHandler(engine EventHandler, transport *chat.MemoryTransport, history HistoryReader,
	logger *logging.Logger) *Handler {
	if engine == nil {
		panic("webchat: event handler cannot be nil")
	}
	if transport == nil {
		panic("webchat: memory transport cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{engine: engine, transport: transport, history: history, log: logger}
}

// ServeHTTP upgrades the connection and serves the session.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serve(conn, r)
	}).ServeHTTP(w, r)
}

// serve runs one console session. The user id is taken from ?user= so a
// session can be resumed, otherwise a synthetic one is minted.
func (h *Handler) serve(conn *websocket.Conn, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user"))
	if userID == "" {
		userID = "dev_" + uuid.NewString()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := websocket.JSON.Send(conn, OutboundFrame{Type: "session", UserID: userID}); err != nil {
		h.log.Warn("webchat: session frame failed", "error", err)
		return
	}
	h.sendHistory(ctx, conn, userID)

	// Outbound messages for this user stream back over the socket.
	deliveries := h.transport.Subscribe(userID)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-deliveries:
				if !ok {
					return
				}
				if err := websocket.JSON.Send(conn, toFrame(msg)); err != nil {
					h.log.Warn("webchat: forward failed", "error", err, "user_id", userID)
					cancel()
					return
				}
			}
		}
	}()

	for {
		var frame InboundFrame
		if err := websocket.JSON.Receive(conn, &frame); err != nil {
			h.log.Info("webchat: session closed", "user_id", userID)
			return
		}
		switch frame.Type {
		case "message":
			if strings.TrimSpace(frame.Text) == "" {
				continue
			}
			h.engine.HandleEvent(ctx, chat.NewTextEvent(userID, frame.Text))
		case "action":
			if strings.TrimSpace(frame.Token) == "" {
				continue
			}
			h.engine.HandleEvent(ctx, chat.NewActionEvent(userID, frame.Token))
		case "ping":
			_ = websocket.JSON.Send(conn, OutboundFrame{Type: "pong"})
		default:
			_ = websocket.JSON.Send(conn, OutboundFrame{Type: "error", Text: "unknown frame type"})
		}
	}
}

func (h *Handler) sendHistory(ctx context.Context, conn *websocket.Conn, userID string) {
	if h.history == nil {
		return
	}
	lines, err := h.history.History(ctx, userID, 50)
	if err != nil {
		h.log.Warn("webchat: history load failed", "error", err, "user_id", userID)
		return
	}
	if len(lines) == 0 {
		return
	}
	entries := make([]HistoryEntry, 0, len(lines))
	for _, m := range lines {
		entries = append(entries, HistoryEntry{
			Direction: m.Direction,
			Text:      m.Body,
			Timestamp: m.CreatedAt.Format(time.RFC3339),
		})
	}
	_ = websocket.JSON.Send(conn, OutboundFrame{Type: "history", Messages: entries})
}

func toFrame(msg chat.Message) OutboundFrame {
	frame := OutboundFrame{
		Type:      "message",
		Title:     msg.Title,
		Text:      msg.Body,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	for _, a := range msg.Actions {
		frame.Buttons = append(frame.Buttons, FrameButton{Label: a.Label, Token: a.Token})
	}
	return frame
}
