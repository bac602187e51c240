package conversation

import (
	"context"
	"errors"

	"github.com/yakushift/staffing-platform/internal/chat"
	"github.com/yakushift/staffing-platform/internal/directory"
	"github.com/yakushift/staffing-platform/internal/staffing"
)

// handlePharmacistAction routes apply, decline and details taps.
func (e *Engine) handlePharmacistAction(ctx context.Context, ev chat.Event, act chat.Action) {
	requestID := act.RequestID()
	if requestID == "" {
		// malformed token, usually a stripped argument
		e.log.Warn("conversation: action without request id", "token", act.Raw, "user_id", ev.UserID)
		e.reply(ctx, ev, chat.Text(textPostbackError))
		return
	}
	switch act.Verb {
	case chat.ActionPharmacistApply:
		e.handleApply(ctx, ev, requestID)
	case chat.ActionPharmacistDecline:
		e.handleDecline(ctx, ev, requestID)
	case chat.ActionPharmacistDetails:
		e.handleDetails(ctx, ev, requestID)
	}
}

// handleApply records the application, acks the pharmacist, and pushes
// the accept/reject prompt to the requesting store. The ack goes out
// as soon as the registry write lands; everything after is best-effort.
func (e *Engine) handleApply(ctx context.Context, ev chat.Event, requestID string) {
	outcome, err := e.arbiter.Apply(ctx, requestID, ev.UserID)
	switch {
	case errors.Is(err, staffing.ErrRequestNotFound):
		e.arbMetrics.ObserveApplication("not_found")
		e.reply(ctx, ev, chat.Text(requestNotFound(requestID)))
		return
	case errors.Is(err, staffing.ErrRequestClosed):
		e.arbMetrics.ObserveApplication("closed")
		e.reply(ctx, ev, chat.Text(requestClosedNotice(requestID)))
		return
	case err != nil:
		e.arbMetrics.ObserveApplication("error")
		e.failStep(ctx, ev, textApplyStepError, err)
		return
	}

	req := outcome.Request
	if outcome.Duplicate {
		e.arbMetrics.ObserveApplication("duplicate")
		e.reply(ctx, ev, chat.Text(applyDuplicate(requestID)))
		return
	}
	e.arbMetrics.ObserveApplication("accepted")
	e.reply(ctx, ev, chat.Text(applyAccepted(req)))

	if e.recorder != nil {
		e.tryHook("record application", func() error {
			return e.recorder.RecordApplication(ctx, req.ID, ev.UserID)
		})
	}
	e.tryHook("application log", func() error {
		return e.directory.RecordApplication(ctx, directory.ApplicationRecord{
			Timestamp:  e.now(),
			RequestID:  req.ID,
			Store:      req.StoreRef,
			Date:       req.Date,
			TimeText:   req.Window(),
			Pharmacist: e.displayName(ctx, ev.UserID),
			Status:     "applied",
		})
	})

	if req.StoreUserID != "" {
		e.notify(ctx, req.StoreUserID, applicantMenu(req, ev.UserID, e.now()))
	}
}

// handleDecline acks the decline. Nothing in the registry changes, and
// the ack goes out even when the request has already disappeared.
func (e *Engine) handleDecline(ctx context.Context, ev chat.Event, requestID string) {
	if _, err := e.arbiter.Decline(ctx, requestID); err != nil && !errors.Is(err, staffing.ErrRequestNotFound) {
		e.failStep(ctx, ev, textDeclineStepError, err)
		return
	}
	e.reply(ctx, ev, chat.Text(declineAccepted(requestID)))
}

func (e *Engine) handleDetails(ctx context.Context, ev chat.Event, requestID string) {
	req, err := e.registry.Get(ctx, requestID)
	switch {
	case errors.Is(err, staffing.ErrRequestNotFound):
		e.reply(ctx, ev, chat.Text(requestNotFound(requestID)))
		return
	case err != nil:
		e.failStep(ctx, ev, textDetailsStepError, err)
		return
	}
	e.reply(ctx, ev, detailsMenu(req))
}

// handleConfirmAction routes the store's accept/reject taps on an
// applicant notice.
func (e *Engine) handleConfirmAction(ctx context.Context, ev chat.Event, act chat.Action) {
	requestID, pharmacistID := act.RequestID(), act.PharmacistID()
	if requestID == "" || pharmacistID == "" {
		e.log.Warn("conversation: confirm action missing ids", "token", act.Raw, "user_id", ev.UserID)
		e.reply(ctx, ev, chat.Text(textPostbackError))
		return
	}
	switch act.Verb {
	case chat.ActionConfirmAccept:
		e.handleAccept(ctx, ev, requestID, pharmacistID)
	case chat.ActionConfirmReject:
		e.handleReject(ctx, ev, requestID, pharmacistID)
	}
}

// handleAccept confirms an applicant. The arbiter serializes the fill
// check per request, writes the schedule cell, and reports who to send
// closure notices to once the request fills.
func (e *Engine) handleAccept(ctx context.Context, ev chat.Event, requestID, pharmacistID string) {
	outcome, err := e.arbiter.Accept(ctx, requestID, pharmacistID)
	switch {
	case errors.Is(err, staffing.ErrRequestNotFound):
		e.arbMetrics.ObserveConfirmation("not_found")
		e.reply(ctx, ev, chat.Text(requestNotFound(requestID)))
		return
	case errors.Is(err, staffing.ErrRequestClosed):
		e.arbMetrics.ObserveConfirmation("closed")
		e.reply(ctx, ev, chat.Text(requestClosedNotice(requestID)))
		return
	case errors.Is(err, staffing.ErrNotApplicant):
		e.arbMetrics.ObserveConfirmation("not_applicant")
		e.reply(ctx, ev, chat.Text(acceptNotApplicant(requestID)))
		return
	case errors.Is(err, staffing.ErrAlreadyConfirmed):
		e.arbMetrics.ObserveConfirmation("already_confirmed")
		e.reply(ctx, ev, chat.Text(alreadyConfirmedNotice(requestID)))
		return
	case err != nil:
		e.arbMetrics.ObserveConfirmation("error")
		e.failStep(ctx, ev, textConfirmStepError, err)
		return
	}
	e.arbMetrics.ObserveConfirmation("accepted")

	req := outcome.Request
	e.notify(ctx, pharmacistID, chat.Text(confirmedPharmacist(req)))

	if e.recorder != nil {
		e.tryHook("record confirmation", func() error {
			return e.recorder.RecordConfirmation(ctx, req.ID, pharmacistID)
		})
	}
	e.tryHook("application log", func() error {
		return e.directory.RecordApplication(ctx, directory.ApplicationRecord{
			Timestamp:  e.now(),
			RequestID:  req.ID,
			Store:      req.StoreRef,
			Date:       req.Date,
			TimeText:   req.Window(),
			Pharmacist: e.displayName(ctx, pharmacistID),
			Status:     "confirmed",
		})
	})

	if outcome.Filled {
		e.arbMetrics.ObserveFilled()
		for _, loser := range outcome.Closure {
			e.notify(ctx, loser, chat.Text(closureNotice(req)))
		}
		if e.recorder != nil {
			e.tryHook("record status", func() error {
				return e.recorder.RecordStatus(ctx, req.ID, req.Status)
			})
		}
		if e.archiver != nil {
			e.tryHook("archive request", func() error {
				return e.archiver.ArchiveRequest(ctx, req)
			})
		}
		if e.alerts != nil {
			e.tryHook("filled alert", func() error {
				return e.alerts.RequestFilled(ctx, req)
			})
		}
	}

	names := make([]string, 0, len(req.Confirmed))
	for _, id := range req.Confirmed {
		names = append(names, e.displayName(ctx, id))
	}
	e.reply(ctx, ev, chat.Text(confirmedStore(req, names)))
}

// handleReject sends the closure notice to exactly the named
// pharmacist. The applicant and confirmed sets stay untouched and the
// request stays open.
func (e *Engine) handleReject(ctx context.Context, ev chat.Event, requestID, pharmacistID string) {
	req, err := e.arbiter.Reject(ctx, requestID)
	switch {
	case errors.Is(err, staffing.ErrRequestNotFound):
		e.reply(ctx, ev, chat.Text(requestNotFound(requestID)))
		return
	case err != nil:
		e.failStep(ctx, ev, textConfirmStepError, err)
		return
	}
	e.notify(ctx, pharmacistID, chat.Text(rejectNotice(req)))
	e.reply(ctx, ev, chat.Text(textRejectAck))
}

// displayName resolves a chat user id to the roster name, falling back
// to the id itself.
func (e *Engine) displayName(ctx context.Context, userID string) string {
	id, err := e.directory.FindByUserID(ctx, userID)
	if err != nil || id == nil || id.Name == "" {
		return userID
	}
	return id.Name
}
