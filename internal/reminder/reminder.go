// Package reminder nudges pharmacists who were told about a staffing
// request but have not answered. A cron sweep walks the open requests,
// finds notified-but-silent pharmacists and pushes a short summary to
// each, capped per (request, pharmacist) by the Limiter. A pharmacist
// who declined looks silent here too; the send cap is what keeps the
// nudging bounded for them.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yakushift/staffing-platform/internal/chat"
	"github.com/yakushift/staffing-platform/internal/observability/metrics"
	"github.com/yakushift/staffing-platform/internal/staffing"
	"github.com/yakushift/staffing-platform/pkg/logging"
)

// Service runs the reminder sweep on a cron schedule.
type Service struct {
	registry staffing.Registry
	limiter  Limiter
	notifier chat.Notifier
	log      *logging.Logger
	metrics  *metrics.ReminderMetrics
	now      func() time.Time
	cron     *cron.Cron
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithMetrics wires reminder metrics.
func WithMetrics(m *metrics.ReminderMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService builds the reminder sweep over the request registry.
func NewService(registry staffing.Registry, limiter Limiter, notifier chat.Notifier,
	logger *logging.Logger, opts ...Option) *Service {
	if registry == nil {
		panic("reminder: registry cannot be nil")
	}
	if limiter == nil {
		panic("reminder: limiter cannot be nil")
	}
	if notifier == nil {
		panic("reminder: notifier cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		registry: registry,
		limiter:  limiter,
		notifier: notifier,
		log:      logger,
		now:      time.Now,
		cron:     cron.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the sweep under the given cron schedule ("@every 10m"
// or a five-field expression) and starts the scheduler in the
// background.
func (s *Service) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			s.log.Error("reminder sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("reminder: invalid schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	s.log.Info("reminder sweep scheduled", "schedule", schedule)
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep nudges every notified-but-silent pharmacist on every open
// request, subject to the limiter. Per-pharmacist failures never abort
// the sweep. Returns the number of reminders delivered.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	var open []*staffing.Request
	for _, status := range []staffing.Status{staffing.StatusPending, staffing.StatusProcessing} {
		reqs, err := s.registry.List(ctx, status)
		if err != nil {
			return 0, fmt.Errorf("reminder: list %s requests: %w", status, err)
		}
		open = append(open, reqs...)
	}

	now := s.now().UTC()
	sent, suppressed := 0, 0
	for _, req := range open {
		msg := Message(req)
		for _, pharmacistID := range req.AwaitingResponse() {
			ok, err := s.limiter.Allow(ctx, req.ID, pharmacistID, now)
			if err != nil {
				s.log.Warn("reminder counter unavailable", "error", err,
					"request_id", req.ID, "pharmacist_id", pharmacistID)
				continue
			}
			if !ok {
				suppressed++
				s.metrics.ObserveSuppressed()
				continue
			}
			if !chat.TryNotify(ctx, s.notifier, s.log, pharmacistID, msg) {
				continue
			}
			sent++
			s.metrics.ObserveSent()
			if err := s.limiter.MarkSent(ctx, req.ID, pharmacistID, now); err != nil {
				s.log.Warn("failed to record reminder send", "error", err,
					"request_id", req.ID, "pharmacist_id", pharmacistID)
			}
		}
	}

	if sent > 0 || suppressed > 0 {
		s.log.Info("reminder sweep finished",
			"requests", len(open), "sent", sent, "suppressed", suppressed)
	}
	return sent, nil
}

// Message renders the nudge a silent pharmacist receives.
func Message(req *staffing.Request) chat.Message {
	return chat.Text(fmt.Sprintf("【勤務依頼リマインダー】\n%s %s %s\nまだご回答いただいていません。\nご確認をお願いします。",
		req.ShortDate(), req.Window(), req.StoreRef))
}
