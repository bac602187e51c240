package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/yakushift/staffing-platform/internal/staffing"
	"github.com/yakushift/staffing-platform/pkg/logging"
)

// Enqueuer defers fan-out to the queue. The store's confirmation ack
// never waits on pharmacist deliveries; the worker runs the inline
// dispatcher later and the job record carries the eventual counts.
type Enqueuer struct {
	queue queueClient
	jobs  JobRecorder
	log   *logging.Logger
	now   func() time.Time
}

// EnqueuerOption configures optional enqueuer collaborators.
type EnqueuerOption func(*Enqueuer)

// WithJobRecorder wires the job tracker that records pending jobs.
func WithJobRecorder(jobs JobRecorder) EnqueuerOption {
	return func(e *Enqueuer) { e.jobs = jobs }
}

// WithEnqueuerClock overrides the wall clock, for tests.
func WithEnqueuerClock(now func() time.Time) EnqueuerOption {
	return func(e *Enqueuer) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEnqueuer builds a queue-backed dispatcher front.
func NewEnqueuer(queue queueClient, logger *logging.Logger, opts ...EnqueuerOption) *Enqueuer {
	if queue == nil {
		panic("dispatch: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	e := &Enqueuer{
		queue: queue,
		log:   logger,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dispatch enqueues a fan-out job for the request and reports Queued.
// The pending job record is best-effort; a queue write failure is not.
func (e *Enqueuer) Dispatch(ctx context.Context, req *staffing.Request) (*Result, error) {
	job, body, err := encodeJob(Job{RequestID: req.ID, EnqueuedAt: e.now().UTC()})
	if err != nil {
		return nil, err
	}

	if e.jobs != nil {
		rec := &JobRecord{JobID: job.ID, RequestID: req.ID}
		if err := e.jobs.PutPending(ctx, rec); err != nil {
			e.log.Warn("failed to record pending dispatch job", "error", err,
				"job_id", job.ID, "request_id", req.ID)
		}
	}

	if err := e.queue.Send(ctx, body); err != nil {
		return nil, fmt.Errorf("dispatch: failed to enqueue job: %w", err)
	}

	e.log.Info("dispatch job enqueued", "job_id", job.ID, "request_id", req.ID)
	return &Result{Queued: true}, nil
}
