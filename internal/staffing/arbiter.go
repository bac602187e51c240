package staffing

import (
	"context"
	"time"

	"github.com/yakushift/staffing-platform/pkg/logging"
)

// AssignmentDirectory is the slice of the directory store arbitration
// writes to when a pharmacist is confirmed.
type AssignmentDirectory interface {
	WriteAssignment(ctx context.Context, pharmacistUserID string, date time.Time, label string) error
}

// Arbiter applies pharmacist responses to the registry: first come,
// first confirmed, until the request's headcount is reached. It mutates
// registry state and reports what happened; composing and sending the
// resulting chat messages is the caller's job.
type Arbiter struct {
	registry  Registry
	directory AssignmentDirectory
	log       *logging.Logger
}

// NewArbiter creates an arbiter. The directory may be nil, in which case
// confirmed assignments are not written back.
func NewArbiter(registry Registry, dir AssignmentDirectory, log *logging.Logger) *Arbiter {
	if registry == nil {
		panic("staffing: registry required")
	}
	if log == nil {
		log = logging.Default()
	}
	return &Arbiter{
		registry:  registry,
		directory: dir,
		log:       log,
	}
}

// ApplyOutcome reports an application attempt.
type ApplyOutcome struct {
	Request *Request
	// Duplicate is true when the pharmacist had already applied; the
	// registry is unchanged in that case.
	Duplicate bool
}

// Apply records a pharmacist's application. Applying twice is a no-op.
func (a *Arbiter) Apply(ctx context.Context, requestID, pharmacistID string) (*ApplyOutcome, error) {
	duplicate := false
	req, err := a.registry.Update(ctx, requestID, func(r *Request) error {
		if r.Terminal() {
			return ErrRequestClosed
		}
		duplicate = !r.AddApplicant(pharmacistID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ApplyOutcome{Request: req, Duplicate: duplicate}, nil
}

// AcceptOutcome reports a store's acceptance of an applicant.
type AcceptOutcome struct {
	Request *Request
	// Filled is true when this acceptance reached the required count.
	Filled bool
	// Closure lists the applicants who were not confirmed and should be
	// told the request has closed. Only set when Filled.
	Closure []string
}

// Accept confirms an applicant for the request. The fill check runs
// under the request's lock, so with one slot left exactly one of two
// concurrent accepts completes the request. Accepting a pharmacist who
// never applied is a consistency error, not a silent add.
func (a *Arbiter) Accept(ctx context.Context, requestID, pharmacistID string) (*AcceptOutcome, error) {
	outcome := &AcceptOutcome{}
	req, err := a.registry.Update(ctx, requestID, func(r *Request) error {
		if r.Terminal() {
			return ErrRequestClosed
		}
		if !r.HasApplicant(pharmacistID) {
			return ErrNotApplicant
		}
		if r.HasConfirmed(pharmacistID) {
			return ErrAlreadyConfirmed
		}
		r.AddConfirmed(pharmacistID)
		if r.IsFilled() {
			r.Status = StatusCompleted
			outcome.Filled = true
			outcome.Closure = r.UnconfirmedApplicants()
		} else if r.Status == StatusPending {
			r.Status = StatusProcessing
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	outcome.Request = req

	a.writeAssignment(ctx, req, pharmacistID)
	return outcome, nil
}

// Reject looks up the request a store is rejecting an applicant for.
// The applicant and confirmed sets are untouched; the request stays
// open. The request is returned so the caller can compose the closure
// message for the rejected pharmacist.
func (a *Arbiter) Reject(ctx context.Context, requestID string) (*Request, error) {
	return a.registry.Get(ctx, requestID)
}

// Decline records nothing; a decline only needs an acknowledgment. The
// request is returned for message context when it still exists.
func (a *Arbiter) Decline(ctx context.Context, requestID string) (*Request, error) {
	return a.registry.Get(ctx, requestID)
}

// Cancel closes an open request. Terminal requests cannot be cancelled.
func (a *Arbiter) Cancel(ctx context.Context, requestID string) (*Request, error) {
	return a.registry.Update(ctx, requestID, func(r *Request) error {
		if r.Terminal() {
			return ErrRequestClosed
		}
		r.Status = StatusCancelled
		return nil
	})
}

// writeAssignment pushes the confirmed assignment into the directory
// cell. Failures are logged and swallowed; the registry is the source
// of truth for confirmations.
func (a *Arbiter) writeAssignment(ctx context.Context, req *Request, pharmacistID string) {
	if a.directory == nil {
		return
	}
	date, err := req.DateValue()
	if err != nil {
		a.log.Error("skipping assignment write", "error", err, "request_id", req.ID)
		return
	}
	if err := a.directory.WriteAssignment(ctx, pharmacistID, date, req.AssignmentLabel()); err != nil {
		a.log.Error("failed to write assignment", "error", err,
			"request_id", req.ID, "pharmacist_id", pharmacistID)
	}
}
