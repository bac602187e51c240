package linechat

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"
)

const (
	defaultBaseURL   = "https://api.line.me/v2/bot"
	defaultUserAgent = "yakushift-linechat/0.1"

	// The buttons template allows at most four actions; longer menus are
	// split across messages.
	maxTemplateActions = 4
	// One reply/push call carries at most five message objects.
	maxMessagesPerCall = 5
)

// Config controls how the LINE Messaging API client behaves.
type Config struct {
	BaseURL       string
	ChannelToken  string
	ChannelSecret string
	Timeout       time.Duration
	MaxRetries    int
	Backoff       time.Duration
	HTTPClient    *http.Client
	Logger        *slog.Logger
	UserAgent     string
}

// Client wraps the LINE Messaging API endpoints the service needs.
type Client struct {
	channelToken  string
	channelSecret string
	baseURL       string
	httpClient    *http.Client
	maxRetries    int
	backoff       time.Duration
	logger        *slog.Logger
	userAgent     string
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.ChannelToken) == "" {
		return nil, errors.New("linechat: channel access token is required")
	}
	if strings.TrimSpace(cfg.ChannelSecret) == "" {
		return nil, errors.New("linechat: channel secret is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		channelToken:  cfg.ChannelToken,
		channelSecret: cfg.ChannelSecret,
		baseURL:       baseURL,
		httpClient:    httpClient,
		maxRetries:    maxRetries,
		backoff:       backoff,
		logger:        logger,
		userAgent:     userAgent,
	}, nil
}

// WireMessage is one message object in reply/push payloads.
type WireMessage struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	AltText  string        `json:"altText,omitempty"`
	Template *WireTemplate `json:"template,omitempty"`
}

// WireTemplate is a buttons template.
type WireTemplate struct {
	Type    string       `json:"type"`
	Title   string       `json:"title,omitempty"`
	Text    string       `json:"text"`
	Actions []WireAction `json:"actions"`
}

// WireAction is a postback button.
type WireAction struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Data  string `json:"data"`
}

// TextMessage builds a plain text wire message.
func TextMessage(text string) WireMessage {
	return WireMessage{Type: "text", Text: text}
}

// TemplateMessages renders a titled menu into one or more buttons templates,
// chunking the actions to the template limit.
func TemplateMessages(title, body string, actions []WireAction) []WireMessage {
	if len(actions) == 0 {
		return []WireMessage{TextMessage(body)}
	}
	alt := body
	if alt == "" {
		alt = title
	}
	var out []WireMessage
	for start := 0; start < len(actions); start += maxTemplateActions {
		end := start + maxTemplateActions
		if end > len(actions) {
			end = len(actions)
		}
		tmpl := &WireTemplate{
			Type:    "buttons",
			Text:    body,
			Actions: actions[start:end],
		}
		if start == 0 {
			tmpl.Title = title
		}
		out = append(out, WireMessage{Type: "template", AltText: alt, Template: tmpl})
	}
	return out
}

// PostbackAction builds one postback button.
func PostbackAction(label, data string) WireAction {
	return WireAction{Type: "postback", Label: label, Data: data}
}

// ReplyMessage answers an inbound event through its reply token.
func (c *Client) ReplyMessage(ctx context.Context, replyToken string, messages []WireMessage) error {
	if strings.TrimSpace(replyToken) == "" {
		return errors.New("linechat: reply token required")
	}
	if len(messages) == 0 {
		return errors.New("linechat: at least one message required")
	}
	if len(messages) > maxMessagesPerCall {
		messages = messages[:maxMessagesPerCall]
	}
	body, err := json.Marshal(struct {
		ReplyToken string        `json:"replyToken"`
		Messages   []WireMessage `json:"messages"`
	}{ReplyToken: replyToken, Messages: messages})
	if err != nil {
		return fmt.Errorf("linechat: marshal reply body: %w", err)
	}
	return c.invoke(ctx, "/message/reply", body)
}

// PushMessage delivers messages to a user by id.
func (c *Client) PushMessage(ctx context.Context, to string, messages []WireMessage) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("linechat: recipient required")
	}
	if len(messages) == 0 {
		return errors.New("linechat: at least one message required")
	}
	if len(messages) > maxMessagesPerCall {
		messages = messages[:maxMessagesPerCall]
	}
	body, err := json.Marshal(struct {
		To       string        `json:"to"`
		Messages []WireMessage `json:"messages"`
	}{To: to, Messages: messages})
	if err != nil {
		return fmt.Errorf("linechat: marshal push body: %w", err)
	}
	return c.invoke(ctx, "/message/push", body)
}

// VerifySignature validates the X-Line-Signature header: base64 of the
// HMAC-SHA256 digest of the raw request body keyed by the channel secret.
func (c *Client) VerifySignature(signature string, payload []byte) error {
	return VerifySignature(c.channelSecret, signature, payload)
}

// VerifySignature is the standalone form used by webhook handlers.
func VerifySignature(channelSecret, signature string, payload []byte) error {
	if channelSecret == "" {
		return errors.New("linechat: channel secret not configured")
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return errors.New("linechat: missing signature header")
	}
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return errors.New("linechat: signature mismatch")
	}
	return nil
}

func (c *Client) invoke(ctx context.Context, path string, body []byte) error {
	fullURL := c.baseURL + "/" + strings.TrimLeft(path, "/")
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("linechat: build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.channelToken)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !shouldRetry(0, err) || attempt == c.maxRetries {
				return fmt.Errorf("linechat: http error: %w", err)
			}
			lastErr = err
			c.logRetry(path, attempt, 0, err)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return sleepErr
			}
			continue
		}
		data, readErr := io.ReadAll(io.LimitReader(resp.Body, 8192))
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("linechat: read response: %w", readErr)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		apiErr := decodeAPIError(resp.StatusCode, data)
		if attempt < c.maxRetries && shouldRetry(resp.StatusCode, nil) {
			lastErr = apiErr
			c.logRetry(path, attempt, resp.StatusCode, apiErr)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return sleepErr
			}
			continue
		}
		return apiErr
	}
	if lastErr != nil {
		return lastErr
	}
	return errors.New("linechat: request failed without response")
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	delay := c.backoff * time.Duration(1<<attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) logRetry(path string, attempt int, status int, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Warn("linechat retry",
		"path", path,
		"attempt", attempt+1,
		"status", status,
		"error", err,
	)
}

// APIError is a non-2xx response from the LINE API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("linechat: api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("linechat: api error: status %d: %s", e.StatusCode, e.Message)
}

func decodeAPIError(status int, data []byte) error {
	var parsed struct {
		Message string `json:"message"`
	}
	if len(data) > 0 {
		_ = json.Unmarshal(data, &parsed)
	}
	return &APIError{StatusCode: status, Message: parsed.Message}
}

func shouldRetry(status int, err error) bool {
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return true
		}
		return !errors.Is(err, context.Canceled)
	}
	if status == http.StatusTooManyRequests {
		return true
	}
	if status >= 500 && status <= 599 {
		return true
	}
	return false
}
