package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yakushift/staffing-platform/internal/chat"
	"github.com/yakushift/staffing-platform/internal/directory"
	"github.com/yakushift/staffing-platform/internal/dispatch"
	"github.com/yakushift/staffing-platform/internal/staffing"
	"github.com/yakushift/staffing-platform/pkg/logging"
)

// Dispatcher fans a stored request out; inline and queued dispatch both
// satisfy this.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *staffing.Request) (*dispatch.Result, error)
}

// NotificationReader exposes per-recipient send outcomes for a request.
type NotificationReader interface {
	Notifications(ctx context.Context, requestID string) (map[string]string, error)
}

// AdminHandler serves the token-gated operations API: request
// inspection, programmatic creation, manual response injection and the
// directory/statistics queries.
type AdminHandler struct {
	registry   staffing.Registry
	arbiter    *staffing.Arbiter
	dispatcher Dispatcher
	engine     EventHandler
	directory  directory.Directory
	history    NotificationReader
	stats      statisticsFunc
	latency    latencyFunc
	log        *logging.Logger
}

// AdminOption configures optional admin collaborators.
type AdminOption func(*AdminHandler)

// WithAdminDispatcher wires fan-out for programmatically created requests.
func WithAdminDispatcher(d Dispatcher) AdminOption {
	return func(h *AdminHandler) { h.dispatcher = d }
}

// WithAdminHistory wires the notification history store.
func WithAdminHistory(r NotificationReader) AdminOption {
	return func(h *AdminHandler) { h.history = r }
}

// WithAdminStatistics wires the records-store aggregates.
func WithAdminStatistics(fn statisticsFunc) AdminOption {
	return func(h *AdminHandler) { h.stats = fn }
}

// WithAdminLatencySnapshot wires the dispatch latency snapshot source.
func WithAdminLatencySnapshot(fn latencyFunc) AdminOption {
	return func(h *AdminHandler) { h.latency = fn }
}

// NewAdminHandler builds the admin API. Registry, arbiter, engine and
// directory are required.
func NewAdminHandler(registry staffing.Registry, arbiter *staffing.Arbiter, engine EventHandler,
	dir directory.Directory, logger *logging.Logger, opts ...AdminOption) *AdminHandler {
	if registry == nil {
		panic("httpapi: registry cannot be nil")
	}
	if arbiter == nil {
		panic("httpapi: arbiter cannot be nil")
	}
	if engine == nil {
		panic("httpapi: event handler cannot be nil")
	}
	if dir == nil {
		panic("httpapi: directory cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	h := &AdminHandler{
		registry:  registry,
		arbiter:   arbiter,
		engine:    engine,
		directory: dir,
		log:       logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type createRequestBody struct {
	StoreRef      string `json:"store_ref"`
	StoreUserID   string `json:"store_user_id"`
	Date          string `json:"date"`
	StartLabel    string `json:"start_label"`
	EndLabel      string `json:"end_label"`
	BreakLabel    string `json:"break_label"`
	TimeSlot      string `json:"time_slot"`
	RequiredCount int    `json:"required_count"`
	Notes         string `json:"notes"`
}

type createRequestResponse struct {
	Request  *staffing.Request `json:"request"`
	Dispatch *dispatch.Result  `json:"dispatch,omitempty"`
}

// CreateRequest stores a staffing request directly and fans it out when
// a dispatcher is wired, bypassing the conversation flow.
func (h *AdminHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.StoreRef == "" || body.Date == "" {
		respondError(w, http.StatusBadRequest, "store_ref and date are required")
		return
	}
	if _, err := time.Parse(staffing.DateLayout, body.Date); err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	slot := staffing.TimeSlot(body.TimeSlot)
	if body.TimeSlot == "" {
		slot = staffing.SlotFromStart(body.StartLabel)
	}
	req := &staffing.Request{
		StoreRef:      body.StoreRef,
		StoreUserID:   body.StoreUserID,
		Date:          body.Date,
		StartLabel:    body.StartLabel,
		EndLabel:      body.EndLabel,
		BreakLabel:    body.BreakLabel,
		TimeSlot:      slot,
		RequiredCount: staffing.ClampRequiredCount(body.RequiredCount),
		Notes:         body.Notes,
	}

	stored, err := h.registry.Create(r.Context(), req)
	if err != nil {
		h.log.Error("admin: create request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to store request")
		return
	}

	resp := createRequestResponse{Request: stored}
	if h.dispatcher != nil {
		res, err := h.dispatcher.Dispatch(r.Context(), stored)
		if err != nil {
			h.log.Warn("admin: dispatch failed", "error", err, "request_id", stored.ID)
		} else {
			resp.Dispatch = res
		}
	}
	respondJSON(w, http.StatusCreated, resp)
}

// ListRequests lists stored requests, optionally filtered by ?status=.
func (h *AdminHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	status := staffing.Status(strings.TrimSpace(r.URL.Query().Get("status")))
	reqs, err := h.registry.List(r.Context(), status)
	if err != nil {
		h.log.Error("admin: list requests failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list requests")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"requests": reqs, "count": len(reqs)})
}

type requestDetail struct {
	Request       *staffing.Request `json:"request"`
	Notifications map[string]string `json:"notifications,omitempty"`
}

// GetRequest returns one request with its applicant/confirmed sets and,
// when history is wired, the per-recipient notification outcomes.
func (h *AdminHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, err := h.registry.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, staffing.ErrRequestNotFound) {
			respondError(w, http.StatusNotFound, "request not found")
			return
		}
		h.log.Error("admin: get request failed", "error", err, "request_id", id)
		respondError(w, http.StatusInternalServerError, "failed to load request")
		return
	}

	detail := requestDetail{Request: req}
	if h.history != nil {
		if notes, err := h.history.Notifications(r.Context(), id); err != nil {
			h.log.Warn("admin: notification history lookup failed", "error", err, "request_id", id)
		} else {
			detail.Notifications = notes
		}
	}
	respondJSON(w, http.StatusOK, detail)
}

type injectResponseBody struct {
	PharmacistID string `json:"pharmacist_id"`
	Action       string `json:"action"` // apply | decline
}

// InjectResponse replays a pharmacist response through the conversation
// engine, exactly as a button tap would arrive. Used for testing and
// manual operation.
func (h *AdminHandler) InjectResponse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body injectResponseBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.PharmacistID == "" {
		respondError(w, http.StatusBadRequest, "pharmacist_id is required")
		return
	}

	var verb chat.ActionVerb
	switch strings.ToLower(strings.TrimSpace(body.Action)) {
	case "apply":
		verb = chat.ActionPharmacistApply
	case "decline":
		verb = chat.ActionPharmacistDecline
	default:
		respondError(w, http.StatusBadRequest, "action must be apply or decline")
		return
	}

	if _, err := h.registry.Get(r.Context(), id); err != nil {
		if errors.Is(err, staffing.ErrRequestNotFound) {
			respondError(w, http.StatusNotFound, "request not found")
			return
		}
		h.log.Error("admin: response lookup failed", "error", err, "request_id", id)
		respondError(w, http.StatusInternalServerError, "failed to load request")
		return
	}

	h.engine.HandleEvent(r.Context(), chat.NewActionEvent(body.PharmacistID, chat.Token(verb, id)))
	respondJSON(w, http.StatusAccepted, map[string]string{
		"request_id":    id,
		"pharmacist_id": body.PharmacistID,
		"action":        strings.ToLower(body.Action),
	})
}

// CancelRequest closes an open request.
func (h *AdminHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, err := h.arbiter.Cancel(r.Context(), id)
	switch {
	case errors.Is(err, staffing.ErrRequestNotFound):
		respondError(w, http.StatusNotFound, "request not found")
	case errors.Is(err, staffing.ErrRequestClosed):
		respondError(w, http.StatusConflict, "request already closed")
	case err != nil:
		h.log.Error("admin: cancel failed", "error", err, "request_id", id)
		respondError(w, http.StatusInternalServerError, "failed to cancel request")
	default:
		respondJSON(w, http.StatusOK, map[string]any{"request": req})
	}
}

// AvailablePharmacists runs the directory availability query.
func (h *AdminHandler) AvailablePharmacists(w http.ResponseWriter, r *http.Request) {
	dateRaw := strings.TrimSpace(r.URL.Query().Get("date"))
	date, err := time.Parse(staffing.DateLayout, dateRaw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	slot := strings.TrimSpace(r.URL.Query().Get("time_slot"))
	if slot == "" {
		slot = string(staffing.SlotFullDay)
	}

	ids, err := h.directory.ListAvailable(r.Context(), date, slot)
	if err != nil {
		h.log.Error("admin: availability query failed", "error", err, "date", dateRaw)
		respondError(w, http.StatusInternalServerError, "availability query failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"date":        dateRaw,
		"time_slot":   slot,
		"pharmacists": ids,
		"count":       len(ids),
	})
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, map[string]string{"error": msg})
}
