// Package dispatch fans a stored staffing request out to the
// pharmacists who are free on its date. The inline Dispatcher queries
// the directory and notifies directly; the Enqueuer defers the same
// work to a queue consumed by the worker pool.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/yakushift/staffing-platform/internal/chat"
	"github.com/yakushift/staffing-platform/internal/directory"
	"github.com/yakushift/staffing-platform/internal/observability/metrics"
	"github.com/yakushift/staffing-platform/internal/staffing"
	"github.com/yakushift/staffing-platform/pkg/logging"
)

// Result is the outcome of one fan-out. Total counts selected
// recipients, Notified counts delivered sends, Failed lists recipients
// whose delivery failed. Queued marks a deferred fan-out whose counts
// are not yet known.
type Result struct {
	Total    int      `json:"total"`
	Notified int      `json:"notified"`
	Failed   []string `json:"failed,omitempty"`
	Queued   bool     `json:"queued,omitempty"`
}

// History records per-recipient send outcomes for the admin API.
type History interface {
	RecordNotification(ctx context.Context, requestID, pharmacistID, status string) error
}

// overshootFactor selects twice the required headcount so arbitration
// has applicants to choose from.
const overshootFactor = 2

// RequestMessage is the notification an available pharmacist receives:
// the request summary with apply, decline and view-details buttons.
func RequestMessage(req *staffing.Request) chat.Message {
	dateText := req.DateText
	if dateText == "" {
		dateText = req.ShortDate()
	}
	body := fmt.Sprintf("💼 勤務依頼が届きました！\n\n"+
		"📅 勤務日: %s\n"+
		"⏰ 時間帯: %s\n"+
		"👥 必要人数: %d名\n"+
		"🆔 依頼ID: %s\n\n"+
		"ご応募をご検討ください。", dateText, req.Window(), req.RequiredCount, req.ID)
	return chat.Menu("勤務依頼", body,
		chat.Button("応募する", chat.ActionPharmacistApply, req.ID),
		chat.Button("辞退する", chat.ActionPharmacistDecline, req.ID),
		chat.Button("詳細を確認", chat.ActionPharmacistDetails, req.ID),
	)
}

// Dispatcher runs the fan-out inline.
type Dispatcher struct {
	directory directory.Directory
	registry  staffing.Registry
	notifier  chat.Notifier
	history   History
	metrics   *metrics.DispatchMetrics
	log       *logging.Logger
	now       func() time.Time
}

// Option configures optional dispatcher collaborators.
type Option func(*Dispatcher)

// WithHistory wires the notification history store.
func WithHistory(h History) Option {
	return func(d *Dispatcher) { d.history = h }
}

// WithMetrics wires dispatch metrics.
func WithMetrics(m *metrics.DispatchMetrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// New builds an inline dispatcher.
func New(dir directory.Directory, registry staffing.Registry, notifier chat.Notifier,
	logger *logging.Logger, opts ...Option) *Dispatcher {
	if dir == nil {
		panic("dispatch: directory cannot be nil")
	}
	if registry == nil {
		panic("dispatch: registry cannot be nil")
	}
	if notifier == nil {
		panic("dispatch: notifier cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	d := &Dispatcher{
		directory: dir,
		registry:  registry,
		notifier:  notifier,
		log:       logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch selects up to required_count*2 available pharmacists and
// pushes the request to each. Roster entries without a chat id are
// skipped without counting as failures; per-recipient delivery
// failures never abort the batch. The set of successfully notified
// ids is written back onto the request for the reminder sweep.
func (d *Dispatcher) Dispatch(ctx context.Context, req *staffing.Request) (*Result, error) {
	date, err := req.DateValue()
	if err != nil {
		d.metrics.ObserveDispatch("invalid_date")
		return nil, fmt.Errorf("dispatch: %w", err)
	}

	available, err := d.directory.ListAvailable(ctx, date, string(req.TimeSlot))
	if err != nil {
		d.metrics.ObserveDispatch("directory_error")
		return nil, fmt.Errorf("dispatch: list available: %w", err)
	}

	limit := req.RequiredCount * overshootFactor
	if limit > len(available) {
		limit = len(available)
	}
	targets := available[:limit]

	res := &Result{Total: limit}
	msg := RequestMessage(req)
	var delivered []string
	for _, p := range targets {
		if p.UserID == "" {
			d.log.Info("skipping pharmacist without chat id",
				"pharmacist", p.Name, "request_id", req.ID)
			continue
		}
		if chat.TryNotify(ctx, d.notifier, d.log, p.UserID, msg) {
			res.Notified++
			delivered = append(delivered, p.UserID)
			d.metrics.ObserveNotification("sent")
			d.recordHistory(ctx, req.ID, p.UserID, "sent")
		} else {
			res.Failed = append(res.Failed, p.UserID)
			d.metrics.ObserveNotification("failed")
			d.recordHistory(ctx, req.ID, p.UserID, "failed")
		}
	}

	if len(delivered) > 0 {
		if _, err := d.registry.Update(ctx, req.ID, func(r *staffing.Request) error {
			for _, id := range delivered {
				r.AddNotified(id)
			}
			return nil
		}); err != nil {
			d.log.Error("failed to record notified set", "error", err, "request_id", req.ID)
		}
	}

	outcome := "ok"
	if res.Notified == 0 {
		outcome = "empty"
	}
	d.metrics.ObserveDispatch(outcome)
	d.log.Info("dispatch finished", "request_id", req.ID,
		"total", res.Total, "notified", res.Notified, "failed", len(res.Failed))
	return res, nil
}

func (d *Dispatcher) recordHistory(ctx context.Context, requestID, pharmacistID, status string) {
	if d.history == nil {
		return
	}
	if err := d.history.RecordNotification(ctx, requestID, pharmacistID, status); err != nil {
		d.log.Warn("failed to record notification history", "error", err,
			"request_id", requestID, "pharmacist_id", pharmacistID)
	}
}
