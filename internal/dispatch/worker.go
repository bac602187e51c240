package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/yakushift/staffing-platform/internal/observability/metrics"
	"github.com/yakushift/staffing-platform/internal/staffing"
	"github.com/yakushift/staffing-platform/pkg/logging"
)

const (
	defaultWorkerCount  = 2
	defaultWaitSeconds  = 2
	defaultBatchSize    = 5
	maxWaitSeconds      = 20
	maxReceiveBatchSize = 10
	deleteTimeout       = 5 * time.Second
)

// Worker consumes dispatch jobs from the queue and runs the inline
// dispatcher for each. Jobs for requests that went terminal while
// queued complete as no-ops.
type Worker struct {
	queue      queueClient
	registry   staffing.Registry
	dispatcher *Dispatcher
	jobs       JobUpdater
	metrics    *metrics.DispatchMetrics
	log        *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	jobs             JobUpdater
	metrics          *metrics.DispatchMetrics
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the queue long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithJobUpdater wires the job tracker the worker reports outcomes to.
func WithJobUpdater(jobs JobUpdater) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.jobs = jobs
	}
}

// WithWorkerMetrics wires dispatch metrics for job latency and queue depth.
func WithWorkerMetrics(m *metrics.DispatchMetrics) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.metrics = m
	}
}

// NewWorker constructs a queue consumer around the inline dispatcher.
func NewWorker(queue queueClient, registry staffing.Registry, dispatcher *Dispatcher,
	logger *logging.Logger, opts ...WorkerOption) *Worker {
	if queue == nil {
		panic("dispatch: queue cannot be nil")
	}
	if registry == nil {
		panic("dispatch: registry cannot be nil")
	}
	if dispatcher == nil {
		panic("dispatch: dispatcher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		queue:      queue,
		registry:   registry,
		dispatcher: dispatcher,
		jobs:       cfg.jobs,
		metrics:    cfg.metrics,
		log:        logger,
		cfg:        cfg,
	}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.log.Debug("dispatch worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("dispatch worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.log.Error("failed to receive dispatch jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
		w.observeDepth()
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	started := time.Now()

	var job Job
	if err := json.Unmarshal([]byte(msg.Body), &job); err != nil {
		w.log.Error("failed to decode dispatch job", "error", err, "msg_id", msg.ID)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	w.log.Info("worker processing dispatch job", "job_id", job.ID, "request_id", job.RequestID)

	req, err := w.registry.Get(ctx, job.RequestID)
	if err != nil {
		w.log.Error("dispatch job failed: request lookup", "error", err,
			"job_id", job.ID, "request_id", job.RequestID)
		w.markFailed(ctx, job.ID, err.Error())
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	if req.Terminal() {
		w.log.Info("skipping dispatch for closed request",
			"job_id", job.ID, "request_id", job.RequestID, "status", req.Status)
		w.markCompleted(ctx, job.ID, &Result{})
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	res, err := w.dispatcher.Dispatch(ctx, req)
	if err != nil {
		w.log.Error("dispatch job failed", "error", err,
			"job_id", job.ID, "request_id", job.RequestID)
		w.markFailed(ctx, job.ID, err.Error())
	} else {
		w.markCompleted(ctx, job.ID, res)
	}

	w.metrics.ObserveJobLatency(time.Since(started).Seconds())
	w.deleteMessage(context.Background(), msg.ReceiptHandle)
}

func (w *Worker) markCompleted(ctx context.Context, jobID string, res *Result) {
	if w.jobs == nil {
		return
	}
	if err := w.jobs.MarkCompleted(ctx, jobID, res); err != nil {
		w.log.Error("failed to update job status", "error", err, "job_id", jobID)
	}
}

func (w *Worker) markFailed(ctx context.Context, jobID, errMsg string) {
	if w.jobs == nil {
		return
	}
	if err := w.jobs.MarkFailed(ctx, jobID, errMsg); err != nil {
		w.log.Error("failed to update job status", "error", err, "job_id", jobID)
	}
}

func (w *Worker) observeDepth() {
	if w.metrics == nil {
		return
	}
	if d, ok := w.queue.(interface{ Depth() int }); ok {
		w.metrics.SetQueueDepth(d.Depth())
	}
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}

	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeout)
	defer cancel()

	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.log.Error("failed to delete dispatch job", "error", err)
	}
}
