package conversation

import (
	"context"
	"strconv"
	"time"

	"github.com/yakushift/staffing-platform/internal/chat"
	"github.com/yakushift/staffing-platform/internal/session"
	"github.com/yakushift/staffing-platform/internal/staffing"
	"github.com/yakushift/staffing-platform/internal/textparse"
)

// handleStoreText drives the composition dialogue for store users.
// Custom-date mode and the confirmation gate consume the message
// before anything else, so はい at the gate is never read as a trigger.
func (e *Engine) handleStoreText(ctx context.Context, ev chat.Event, sess *session.Session, text string) {
	if sess.Step == session.StepAwaitingDate && sess.DraftField(session.FieldAwaitingCustomDate) == "1" {
		e.handleDateInput(ctx, ev, sess, text)
		return
	}
	if sess.Step == session.StepAwaitingConfirmation {
		e.handleConfirmationText(ctx, ev, sess, text)
		return
	}
	if textparse.IsRequestTrigger(text) {
		e.startComposition(ctx, ev, sess, text)
		return
	}

	switch sess.Step {
	case session.StepAwaitingDate:
		e.handleDateInput(ctx, ev, sess, text)
	case session.StepAwaitingStartTime:
		e.reply(ctx, ev, startBandMenu())
	case session.StepAwaitingEndTime:
		e.reply(ctx, ev, endBandMenu())
	case session.StepAwaitingBreak:
		e.reply(ctx, ev, breakMenu())
	case session.StepAwaitingHeadcount:
		e.reply(ctx, ev, countMenu())
	default:
		if text == "メニュー" || text == "ヘルプ" {
			e.reply(ctx, ev, chat.Text(textStoreMenu))
			return
		}
		// arbitrary store text short-circuits into composition
		e.startComposition(ctx, ev, sess, text)
	}
}

// startComposition clears any earlier draft and either takes the fast
// path, when one message carried the whole request, or opens the date
// menu.
func (e *Engine) startComposition(ctx context.Context, ev chat.Event, sess *session.Session, text string) {
	if err := e.sessions.ClearDraft(ctx, ev.UserID); err != nil {
		e.failStep(ctx, ev, textGenericError, err)
		return
	}
	sess.Step = session.StepIdle

	if partial := textparse.ParseRequest(text, e.now()); partial != nil {
		e.applyFastPath(ctx, ev, sess, partial)
		return
	}

	if err := e.setStep(ctx, sess, session.StepAwaitingDate); err != nil {
		e.failStep(ctx, ev, textDateStepError, err)
		return
	}
	e.reply(ctx, ev, dateMenu())
}

// applyFastPath jumps straight to the confirmation gate with every
// field the one-shot parser extracted. Times stay unset; the slot label
// stands in for the window.
func (e *Engine) applyFastPath(ctx context.Context, ev chat.Event, sess *session.Session, partial *textparse.PartialRequest) {
	count := staffing.ClampRequiredCount(partial.RequiredCount)
	fields := []string{
		session.FieldDate, partial.Date.Format(staffing.DateLayout),
		session.FieldDateText, dateWithWeekday(partial.Date),
		session.FieldTimeSlot, string(partial.TimeSlot),
		session.FieldTimeText, partial.TimeSlot.Label(),
		session.FieldRequiredCount, strconv.Itoa(count),
	}
	if partial.Notes != "" {
		fields = append(fields, session.FieldNotes, partial.Notes)
	}
	if err := e.setFields(ctx, ev.UserID, fields...); err != nil {
		e.failStep(ctx, ev, textGenericError, err)
		return
	}
	if err := e.setStep(ctx, sess, session.StepAwaitingConfirmation); err != nil {
		e.failStep(ctx, ev, textGenericError, err)
		return
	}
	e.reply(ctx, ev, chat.Text(confirmationSummary(dateWithWeekday(partial.Date), partial.TimeSlot.Label(), count)))
}

// handleDateInput parses a typed date at the date step. Parse failure
// re-prompts with the format example and changes nothing else.
func (e *Engine) handleDateInput(ctx context.Context, ev chat.Event, sess *session.Session, text string) {
	d, ok := textparse.ParseDate(text, e.now())
	if !ok {
		e.reply(ctx, ev, chat.Text(textCustomDatePrompt))
		return
	}
	e.acceptDate(ctx, ev, sess, d)
}

// acceptDate stores the chosen date and opens the start-band menu.
func (e *Engine) acceptDate(ctx context.Context, ev chat.Event, sess *session.Session, d time.Time) {
	if err := e.setFields(ctx, ev.UserID,
		session.FieldDate, d.Format(staffing.DateLayout),
		session.FieldDateText, dateWithWeekday(d),
		session.FieldAwaitingCustomDate, "",
	); err != nil {
		e.failStep(ctx, ev, textDateStepError, err)
		return
	}
	if err := e.setStep(ctx, sess, session.StepAwaitingStartTime); err != nil {
		e.failStep(ctx, ev, textDateStepError, err)
		return
	}
	msg := startBandMenu()
	msg.Body = dateChosen(d)
	e.reply(ctx, ev, msg)
}

// handleComposeAction applies one composition button tap. Handlers are
// verb-driven: a tap on a stale menu re-enters the flow at that field
// and the step follows the tap.
func (e *Engine) handleComposeAction(ctx context.Context, ev chat.Event, sess *session.Session, act chat.Action) {
	switch act.Verb {
	case chat.ActionDateToday:
		e.acceptDate(ctx, ev, sess, e.today(0))
	case chat.ActionDateTomorrow:
		e.acceptDate(ctx, ev, sess, e.today(1))
	case chat.ActionDateDayAfterTomorrow:
		e.acceptDate(ctx, ev, sess, e.today(2))
	case chat.ActionDateCustom:
		e.enterCustomDate(ctx, ev, sess)

	case chat.ActionStartBandMorning, chat.ActionStartBandAfternoon:
		e.offerStartTimes(ctx, ev, sess, act.Verb)
	case chat.ActionStartAt:
		e.acceptStart(ctx, ev, sess, act.Arg(0))

	case chat.ActionEndBandDay, chat.ActionEndBandEvening, chat.ActionEndBandNight:
		e.offerEndTimes(ctx, ev, sess, act.Verb)
	case chat.ActionEndAt:
		e.acceptEnd(ctx, ev, sess, act.Arg(0))

	case chat.ActionBreak30:
		e.acceptBreak(ctx, ev, sess, "30")
	case chat.ActionBreak60:
		e.acceptBreak(ctx, ev, sess, "60")
	case chat.ActionBreak90:
		e.acceptBreak(ctx, ev, sess, "90")
	case chat.ActionBreak120:
		e.acceptBreak(ctx, ev, sess, "120")

	case chat.ActionCount1:
		e.acceptCount(ctx, ev, sess, 1)
	case chat.ActionCount2:
		e.acceptCount(ctx, ev, sess, 2)
	case chat.ActionCount3, chat.ActionCount4Plus:
		e.acceptCount(ctx, ev, sess, staffing.MaxRequiredCount)

	// legacy coarse slots from the one-shot parser's vocabulary; kept
	// so old menus in chat history still work
	case chat.ActionTimeMorning:
		e.acceptSlot(ctx, ev, sess, staffing.SlotMorning)
	case chat.ActionTimeAfternoon:
		e.acceptSlot(ctx, ev, sess, staffing.SlotAfternoon)
	case chat.ActionTimeEvening:
		e.acceptSlot(ctx, ev, sess, staffing.SlotEvening)
	case chat.ActionTimeFullDay:
		e.acceptSlot(ctx, ev, sess, staffing.SlotFullDay)

	default:
		e.reply(ctx, ev, chat.Text(textUnknownAction))
	}
}

// today returns midnight plus the given day offset in server time.
func (e *Engine) today(offset int) time.Time {
	now := e.now()
	d := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return d.AddDate(0, 0, offset)
}

func (e *Engine) enterCustomDate(ctx context.Context, ev chat.Event, sess *session.Session) {
	if err := e.setFields(ctx, ev.UserID, session.FieldAwaitingCustomDate, "1"); err != nil {
		e.failStep(ctx, ev, textDateStepError, err)
		return
	}
	if err := e.setStep(ctx, sess, session.StepAwaitingDate); err != nil {
		e.failStep(ctx, ev, textDateStepError, err)
		return
	}
	e.reply(ctx, ev, chat.Text(textCustomDatePrompt))
}

func (e *Engine) offerStartTimes(ctx context.Context, ev chat.Event, sess *session.Session, band chat.ActionVerb) {
	menu, ok := startTimeMenu(band)
	if !ok {
		e.reply(ctx, ev, chat.Text(textPostbackError))
		return
	}
	if err := e.setStep(ctx, sess, session.StepAwaitingStartTime); err != nil {
		e.failStep(ctx, ev, textTimeStepError, err)
		return
	}
	e.reply(ctx, ev, menu)
}

func (e *Engine) acceptStart(ctx context.Context, ev chat.Event, sess *session.Session, label string) {
	if _, ok := parseClock(label); !ok {
		e.reply(ctx, ev, chat.Text(textPostbackError))
		return
	}
	if err := e.setFields(ctx, ev.UserID, session.FieldStartTime, label); err != nil {
		e.failStep(ctx, ev, textTimeStepError, err)
		return
	}
	if err := e.setStep(ctx, sess, session.StepAwaitingEndTime); err != nil {
		e.failStep(ctx, ev, textTimeStepError, err)
		return
	}
	msg := endBandMenu()
	msg.Body = startChosen(label)
	e.reply(ctx, ev, msg)
}

func (e *Engine) offerEndTimes(ctx context.Context, ev chat.Event, sess *session.Session, band chat.ActionVerb) {
	start, err := e.sessions.GetDraftField(ctx, ev.UserID, session.FieldStartTime)
	if err != nil {
		e.failStep(ctx, ev, textTimeStepError, err)
		return
	}
	if start == "" {
		// stale tap before any start was chosen
		e.reply(ctx, ev, startBandMenu())
		return
	}
	menu, empty, ok := endTimeMenu(band, start)
	if !ok {
		e.reply(ctx, ev, chat.Text(textPostbackError))
		return
	}
	if empty {
		// nothing after the start in this band; stay and re-offer
		msg := endBandMenu()
		msg.Body = endBandEmpty(start)
		e.reply(ctx, ev, msg)
		return
	}
	if err := e.setStep(ctx, sess, session.StepAwaitingEndTime); err != nil {
		e.failStep(ctx, ev, textTimeStepError, err)
		return
	}
	e.reply(ctx, ev, menu)
}

func (e *Engine) acceptEnd(ctx context.Context, ev chat.Event, sess *session.Session, label string) {
	endMin, ok := parseClock(label)
	if !ok {
		e.reply(ctx, ev, chat.Text(textPostbackError))
		return
	}
	start, err := e.sessions.GetDraftField(ctx, ev.UserID, session.FieldStartTime)
	if err != nil {
		e.failStep(ctx, ev, textTimeStepError, err)
		return
	}
	if start == "" {
		e.reply(ctx, ev, startBandMenu())
		return
	}
	if startMin, ok := parseClock(start); !ok || endMin <= startMin {
		msg := endBandMenu()
		msg.Body = endBandEmpty(start)
		e.reply(ctx, ev, msg)
		return
	}
	if err := e.setFields(ctx, ev.UserID, session.FieldEndTime, label); err != nil {
		e.failStep(ctx, ev, textTimeStepError, err)
		return
	}
	if err := e.setStep(ctx, sess, session.StepAwaitingBreak); err != nil {
		e.failStep(ctx, ev, textTimeStepError, err)
		return
	}
	msg := breakMenu()
	msg.Body = endChosen(start, label)
	e.reply(ctx, ev, msg)
}

func (e *Engine) acceptBreak(ctx context.Context, ev chat.Event, sess *session.Session, minutes string) {
	if err := e.setFields(ctx, ev.UserID, session.FieldBreakTime, minutes); err != nil {
		e.failStep(ctx, ev, textTimeStepError, err)
		return
	}
	if err := e.setStep(ctx, sess, session.StepAwaitingHeadcount); err != nil {
		e.failStep(ctx, ev, textTimeStepError, err)
		return
	}
	msg := countMenu()
	msg.Body = breakChosen(minutes)
	e.reply(ctx, ev, msg)
}

// acceptCount closes the field-collection phase: the headcount lands,
// the slot is derived from the start time, and the summary goes out.
func (e *Engine) acceptCount(ctx context.Context, ev chat.Event, sess *session.Session, count int) {
	count = staffing.ClampRequiredCount(count)

	start, err := e.sessions.GetDraftField(ctx, ev.UserID, session.FieldStartTime)
	if err != nil {
		e.failStep(ctx, ev, textCountStepError, err)
		return
	}
	end, err := e.sessions.GetDraftField(ctx, ev.UserID, session.FieldEndTime)
	if err != nil {
		e.failStep(ctx, ev, textCountStepError, err)
		return
	}
	slot := staffing.SlotFullDay
	if start != "" {
		slot = staffing.SlotFromStart(start)
	} else if stored, err := e.sessions.GetDraftField(ctx, ev.UserID, session.FieldTimeSlot); err == nil && stored != "" {
		slot = staffing.TimeSlot(stored)
	}
	window := timeWindow(start, end, slot)

	if err := e.setFields(ctx, ev.UserID,
		session.FieldRequiredCount, strconv.Itoa(count),
		session.FieldTimeSlot, string(slot),
		session.FieldTimeText, window,
	); err != nil {
		e.failStep(ctx, ev, textCountStepError, err)
		return
	}
	if err := e.setStep(ctx, sess, session.StepAwaitingConfirmation); err != nil {
		e.failStep(ctx, ev, textCountStepError, err)
		return
	}
	dateText, err := e.sessions.GetDraftField(ctx, ev.UserID, session.FieldDateText)
	if err != nil || dateText == "" {
		dateText = "-"
	}
	e.reply(ctx, ev, chat.Text(confirmationSummary(dateText, window, count)))
}

// acceptSlot handles the coarse morning/afternoon/evening/full-day
// buttons, skipping the fine time steps entirely.
func (e *Engine) acceptSlot(ctx context.Context, ev chat.Event, sess *session.Session, slot staffing.TimeSlot) {
	if err := e.setFields(ctx, ev.UserID,
		session.FieldTimeSlot, string(slot),
		session.FieldTimeText, slot.Label(),
		session.FieldStartTime, "",
		session.FieldEndTime, "",
	); err != nil {
		e.failStep(ctx, ev, textTimeStepError, err)
		return
	}
	if err := e.setStep(ctx, sess, session.StepAwaitingHeadcount); err != nil {
		e.failStep(ctx, ev, textTimeStepError, err)
		return
	}
	msg := countMenu()
	msg.Body = slotChosen(slot)
	e.reply(ctx, ev, msg)
}

// handleConfirmationText is the yes/no gate. Anything outside the
// fixed vocabulary repeats the summary.
func (e *Engine) handleConfirmationText(ctx context.Context, ev chat.Event, sess *session.Session, text string) {
	switch {
	case textparse.IsAffirmative(text):
		e.submitRequest(ctx, ev, sess)
	case textparse.IsNegative(text):
		e.cancelDraft(ctx, ev)
	default:
		e.repeatConfirmation(ctx, ev)
	}
}

func (e *Engine) repeatConfirmation(ctx context.Context, ev chat.Event) {
	draft, err := e.loadDraft(ctx, ev.UserID)
	if err != nil {
		e.failStep(ctx, ev, textConfirmStepError, err)
		return
	}
	if draft.date == "" {
		e.abandonDraft(ctx, ev)
		return
	}
	e.reply(ctx, ev, chat.Text(confirmationSummary(draft.dateText, draft.window(), draft.count)))
}

// draftView is the assembled draft at submit time.
type draftView struct {
	date     string
	dateText string
	start    string
	end      string
	breakMin string
	slot     staffing.TimeSlot
	timeText string
	count    int
	notes    string
}

func (d draftView) window() string {
	if d.timeText != "" && d.start == "" {
		return d.timeText
	}
	return timeWindow(d.start, d.end, d.slot)
}

func (e *Engine) loadDraft(ctx context.Context, userID string) (draftView, error) {
	var d draftView
	var err error
	read := func(key string) string {
		if err != nil {
			return ""
		}
		var v string
		v, err = e.sessions.GetDraftField(ctx, userID, key)
		return v
	}
	d.date = read(session.FieldDate)
	d.dateText = read(session.FieldDateText)
	d.start = read(session.FieldStartTime)
	d.end = read(session.FieldEndTime)
	d.breakMin = read(session.FieldBreakTime)
	d.slot = staffing.TimeSlot(read(session.FieldTimeSlot))
	d.timeText = read(session.FieldTimeText)
	d.notes = read(session.FieldNotes)
	countText := read(session.FieldRequiredCount)
	if err != nil {
		return draftView{}, err
	}
	if d.slot == "" {
		d.slot = staffing.SlotFullDay
	}
	d.count = 1
	if n, convErr := strconv.Atoi(countText); convErr == nil {
		d.count = staffing.ClampRequiredCount(n)
	}
	return d, nil
}

// abandonDraft handles a confirmation turn arriving with no draft
// behind it (expired session backend, cleared draft).
func (e *Engine) abandonDraft(ctx context.Context, ev chat.Event) {
	if err := e.sessions.ClearDraft(ctx, ev.UserID); err != nil {
		e.log.Warn("conversation: draft clear failed", "error", err, "user_id", ev.UserID)
	}
	e.reply(ctx, ev, chat.Text(textDraftMissing))
}

// submitRequest turns the draft into a stored request and fans it out.
// The acknowledgment always follows the registry write; dispatch
// failures downgrade the ack, never block it.
func (e *Engine) submitRequest(ctx context.Context, ev chat.Event, sess *session.Session) {
	draft, err := e.loadDraft(ctx, ev.UserID)
	if err != nil {
		e.failStep(ctx, ev, textConfirmStepError, err)
		return
	}
	if draft.date == "" {
		e.abandonDraft(ctx, ev)
		return
	}

	storeName := ev.UserID
	if id, err := e.directory.FindByUserID(ctx, ev.UserID); err == nil && id != nil && id.Name != "" {
		storeName = id.Name
	}

	req := &staffing.Request{
		StoreRef:      storeName,
		StoreUserID:   ev.UserID,
		Date:          draft.date,
		DateText:      draft.dateText,
		StartLabel:    draft.start,
		EndLabel:      draft.end,
		BreakLabel:    draft.breakMin,
		TimeSlot:      draft.slot,
		RequiredCount: draft.count,
		Notes:         draft.notes,
	}
	created, err := e.registry.Create(ctx, req)
	if err != nil {
		e.failStep(ctx, ev, textConfirmStepError, err)
		return
	}
	if err := e.sessions.ClearDraft(ctx, ev.UserID); err != nil {
		e.log.Warn("conversation: draft clear failed", "error", err, "user_id", ev.UserID)
	}
	sess.Step = session.StepIdle

	if e.recorder != nil {
		e.tryHook("record request", func() error {
			return e.recorder.RecordRequest(ctx, created)
		})
	}

	notified := 0
	queued := false
	if e.dispatcher != nil {
		res, err := e.dispatcher.Dispatch(ctx, created)
		if err != nil {
			e.log.Error("conversation: dispatch failed", "error", err, "request_id", created.ID)
		} else if res != nil {
			notified = res.Notified
			queued = res.Queued
		}
	}

	if queued || notified > 0 {
		e.reply(ctx, ev, chat.Text(submitAccepted(created)))
	} else {
		e.reply(ctx, ev, chat.Text(submitNoAvailability(created)))
	}

	if e.alerts != nil {
		e.tryHook("submit alert", func() error {
			return e.alerts.RequestSubmitted(ctx, created, notified)
		})
	}
}

func (e *Engine) cancelDraft(ctx context.Context, ev chat.Event) {
	if err := e.sessions.ClearDraft(ctx, ev.UserID); err != nil {
		e.failStep(ctx, ev, textCancelStepError, err)
		return
	}
	e.reply(ctx, ev, chat.Text(textCancelled))
}
