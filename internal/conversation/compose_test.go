package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/yakushift/staffing-platform/internal/chat"
	"github.com/yakushift/staffing-platform/internal/dispatch"
	"github.com/yakushift/staffing-platform/internal/session"
	"github.com/yakushift/staffing-platform/internal/staffing"
)

// stubDispatcher records dispatched requests and returns a canned result.
type stubDispatcher struct {
	mu     sync.Mutex
	reqs   []*staffing.Request
	result *dispatch.Result
	err    error
}

func (s *stubDispatcher) Dispatch(ctx context.Context, req *staffing.Request) (*dispatch.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubDispatcher) dispatched() []*staffing.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*staffing.Request(nil), s.reqs...)
}

// stubRecorder collects lifecycle hook calls.
type stubRecorder struct {
	mu            sync.Mutex
	requests      []string
	applications  []string
	confirmations []string
	statuses      []string
}

func (s *stubRecorder) RecordRequest(ctx context.Context, req *staffing.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req.ID)
	return nil
}

func (s *stubRecorder) RecordApplication(ctx context.Context, requestID, pharmacistID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applications = append(s.applications, requestID+"/"+pharmacistID)
	return nil
}

func (s *stubRecorder) RecordConfirmation(ctx context.Context, requestID, pharmacistID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmations = append(s.confirmations, requestID+"/"+pharmacistID)
	return nil
}

func (s *stubRecorder) RecordStatus(ctx context.Context, requestID string, status staffing.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, requestID+"/"+string(status))
	return nil
}

// stubAlerter collects operator alert calls.
type stubAlerter struct {
	mu        sync.Mutex
	submitted []int
	filled    []string
}

func (s *stubAlerter) RequestSubmitted(ctx context.Context, req *staffing.Request, notified int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = append(s.submitted, notified)
	return nil
}

func (s *stubAlerter) RequestFilled(ctx context.Context, req *staffing.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filled = append(s.filled, req.ID)
	return nil
}

func TestFastPathLandsOnConfirmationGate(t *testing.T) {
	f := newFixture(t)
	f.text(t, "Ustore1", "勤務依頼 4/15 午後 2名")

	want := confirmationSummary("4/15（火）", "午後", 2)
	if got := f.lastTo(t, "Ustore1").Body; got != want {
		t.Fatalf("summary mismatch:\ngot  %q\nwant %q", got, want)
	}
	if step := f.session(t, "Ustore1").Step; step != session.StepAwaitingConfirmation {
		t.Fatalf("step = %v, want awaiting confirmation", step)
	}
	if reqs := f.pendingRequests(t); len(reqs) != 0 {
		t.Fatalf("request created before confirmation: %d", len(reqs))
	}
}

func TestFastPathSubmitCreatesAndDispatches(t *testing.T) {
	disp := &stubDispatcher{result: &dispatch.Result{Total: 2, Notified: 2}}
	rec := &stubRecorder{}
	alerts := &stubAlerter{}
	f := newFixture(t, WithDispatcher(disp), WithRecorder(rec), WithAlerter(alerts))

	f.text(t, "Ustore1", "勤務依頼 4/15 午後 2名")
	f.text(t, "Ustore1", "はい")

	reqs := f.pendingRequests(t)
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	req := reqs[0]
	if req.Date != "2025-04-15" || req.DateText != "4/15（火）" {
		t.Fatalf("date fields wrong: %q %q", req.Date, req.DateText)
	}
	if req.TimeSlot != staffing.SlotAfternoon || req.RequiredCount != 2 {
		t.Fatalf("slot/count wrong: %q %d", req.TimeSlot, req.RequiredCount)
	}
	if req.StoreRef != "メイプル薬局" || req.StoreUserID != "Ustore1" {
		t.Fatalf("store fields wrong: %q %q", req.StoreRef, req.StoreUserID)
	}

	if got := f.lastTo(t, "Ustore1").Body; got != submitAccepted(req) {
		t.Fatalf("ack mismatch: %q", got)
	}
	if d := disp.dispatched(); len(d) != 1 || d[0].ID != req.ID {
		t.Fatalf("dispatcher saw %v", d)
	}
	if len(rec.requests) != 1 || rec.requests[0] != req.ID {
		t.Fatalf("recorder saw %v", rec.requests)
	}
	if len(alerts.submitted) != 1 || alerts.submitted[0] != 2 {
		t.Fatalf("alerter saw %v", alerts.submitted)
	}

	if step := f.session(t, "Ustore1").Step; step != session.StepIdle {
		t.Fatalf("step = %v after submit", step)
	}
	left, err := f.sessions.GetDraftField(context.Background(), "Ustore1", session.FieldDate)
	if err != nil || left != "" {
		t.Fatalf("draft not cleared: %q %v", left, err)
	}
}

func TestSubmitWithoutAvailabilityWarns(t *testing.T) {
	disp := &stubDispatcher{result: &dispatch.Result{}}
	f := newFixture(t, WithDispatcher(disp))

	f.text(t, "Ustore1", "勤務依頼 4/15 午後 2名")
	f.text(t, "Ustore1", "はい")

	req := f.pendingRequests(t)[0]
	if got := f.lastTo(t, "Ustore1").Body; got != submitNoAvailability(req) {
		t.Fatalf("ack mismatch: %q", got)
	}
}

func TestSubmitQueuedReportsAccepted(t *testing.T) {
	disp := &stubDispatcher{result: &dispatch.Result{Queued: true}}
	f := newFixture(t, WithDispatcher(disp))

	f.text(t, "Ustore1", "勤務依頼 4/15 午後 2名")
	f.text(t, "Ustore1", "はい")

	req := f.pendingRequests(t)[0]
	if got := f.lastTo(t, "Ustore1").Body; got != submitAccepted(req) {
		t.Fatalf("queued submit should ack optimistically, got %q", got)
	}
}

func TestSubmitSurvivesDispatchFailure(t *testing.T) {
	disp := &stubDispatcher{err: errors.New("sheet unreachable")}
	f := newFixture(t, WithDispatcher(disp))

	f.text(t, "Ustore1", "勤務依頼 4/15 午後 2名")
	f.text(t, "Ustore1", "はい")

	reqs := f.pendingRequests(t)
	if len(reqs) != 1 {
		t.Fatalf("request lost on dispatch failure: %d", len(reqs))
	}
	if got := f.lastTo(t, "Ustore1").Body; got != submitNoAvailability(reqs[0]) {
		t.Fatalf("ack mismatch: %q", got)
	}
}

func TestConfirmationNoCancelsDraft(t *testing.T) {
	f := newFixture(t)
	f.text(t, "Ustore1", "勤務依頼 4/15 午後 2名")
	f.text(t, "Ustore1", "いいえ")

	if got := f.lastTo(t, "Ustore1").Body; got != textCancelled {
		t.Fatalf("unexpected reply %q", got)
	}
	if step := f.session(t, "Ustore1").Step; step != session.StepIdle {
		t.Fatalf("step = %v after cancel", step)
	}
	if reqs := f.pendingRequests(t); len(reqs) != 0 {
		t.Fatalf("cancelled draft still created %d requests", len(reqs))
	}
}

func TestConfirmationGateRepeatsSummary(t *testing.T) {
	f := newFixture(t)
	f.text(t, "Ustore1", "勤務依頼 4/15 午後 2名")
	first := f.lastTo(t, "Ustore1").Body

	f.text(t, "Ustore1", "うーん")
	if got := f.lastTo(t, "Ustore1").Body; got != first {
		t.Fatalf("gate did not repeat summary:\ngot  %q\nwant %q", got, first)
	}
	if step := f.session(t, "Ustore1").Step; step != session.StepAwaitingConfirmation {
		t.Fatalf("step = %v, want awaiting confirmation", step)
	}
}

func TestConfirmationWithLostDraftApologizes(t *testing.T) {
	f := newFixture(t)
	f.text(t, "Ustore1", "メニュー") // cache the role
	if err := f.sessions.SetStep(context.Background(), "Ustore1", session.StepAwaitingConfirmation); err != nil {
		t.Fatalf("set step: %v", err)
	}

	f.text(t, "Ustore1", "はい")
	if got := f.lastTo(t, "Ustore1").Body; got != textDraftMissing {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestTriggerWithoutDetailsOpensDateMenu(t *testing.T) {
	f := newFixture(t)
	f.text(t, "Ustore1", "勤務依頼")

	msg := f.lastTo(t, "Ustore1")
	if !msg.IsMenu() || msg.Title != "勤務日を選択" {
		t.Fatalf("expected date menu, got %+v", msg)
	}
	if len(msg.Actions) != 4 {
		t.Fatalf("date menu has %d actions", len(msg.Actions))
	}
	if step := f.session(t, "Ustore1").Step; step != session.StepAwaitingDate {
		t.Fatalf("step = %v, want awaiting date", step)
	}
}

func TestButtonFlowComposesRequest(t *testing.T) {
	disp := &stubDispatcher{result: &dispatch.Result{Notified: 1}}
	f := newFixture(t, WithDispatcher(disp))

	f.text(t, "Ustore1", "勤務依頼")
	f.tap(t, "Ustore1", chat.ActionDateTomorrow)
	if step := f.session(t, "Ustore1").Step; step != session.StepAwaitingStartTime {
		t.Fatalf("step after date = %v", step)
	}

	f.tap(t, "Ustore1", chat.ActionStartBandMorning)
	menu := f.lastTo(t, "Ustore1")
	if len(menu.Actions) != 10 {
		t.Fatalf("morning band offers %d marks", len(menu.Actions))
	}
	if menu.Actions[0].Label != "08:00" || menu.Actions[len(menu.Actions)-1].Label != "12:30" {
		t.Fatalf("band range wrong: %s..%s", menu.Actions[0].Label, menu.Actions[len(menu.Actions)-1].Label)
	}

	f.tap(t, "Ustore1", chat.ActionStartAt, "09:00")
	if step := f.session(t, "Ustore1").Step; step != session.StepAwaitingEndTime {
		t.Fatalf("step after start = %v", step)
	}

	f.tap(t, "Ustore1", chat.ActionEndBandEvening)
	f.tap(t, "Ustore1", chat.ActionEndAt, "18:00")
	if step := f.session(t, "Ustore1").Step; step != session.StepAwaitingBreak {
		t.Fatalf("step after end = %v", step)
	}
	if got := f.lastTo(t, "Ustore1").Body; got != endChosen("09:00", "18:00") {
		t.Fatalf("break menu body wrong: %q", got)
	}

	f.tap(t, "Ustore1", chat.ActionBreak60)
	if step := f.session(t, "Ustore1").Step; step != session.StepAwaitingHeadcount {
		t.Fatalf("step after break = %v", step)
	}

	f.tap(t, "Ustore1", chat.ActionCount2)
	want := confirmationSummary("4/11（金）", "09:00〜18:00", 2)
	if got := f.lastTo(t, "Ustore1").Body; got != want {
		t.Fatalf("summary mismatch:\ngot  %q\nwant %q", got, want)
	}

	f.text(t, "Ustore1", "はい")
	reqs := f.pendingRequests(t)
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	req := reqs[0]
	if req.Date != "2025-04-11" || req.StartLabel != "09:00" || req.EndLabel != "18:00" {
		t.Fatalf("request window wrong: %q %q..%q", req.Date, req.StartLabel, req.EndLabel)
	}
	if req.BreakLabel != "60" || req.RequiredCount != 2 {
		t.Fatalf("break/count wrong: %q %d", req.BreakLabel, req.RequiredCount)
	}
	if req.TimeSlot != staffing.SlotMorning {
		t.Fatalf("slot should follow the start hour, got %q", req.TimeSlot)
	}
}

func TestCustomDateRepromptsUntilParsable(t *testing.T) {
	f := newFixture(t)
	f.text(t, "Ustore1", "勤務依頼")
	f.tap(t, "Ustore1", chat.ActionDateCustom)

	if got := f.lastTo(t, "Ustore1").Body; got != textCustomDatePrompt {
		t.Fatalf("custom date prompt missing: %q", got)
	}

	f.text(t, "Ustore1", "13月40日")
	if got := f.lastTo(t, "Ustore1").Body; got != textCustomDatePrompt {
		t.Fatalf("unparsable date should re-prompt, got %q", got)
	}
	if step := f.session(t, "Ustore1").Step; step != session.StepAwaitingDate {
		t.Fatalf("step = %v after bad date", step)
	}

	f.text(t, "Ustore1", "4月20日")
	if step := f.session(t, "Ustore1").Step; step != session.StepAwaitingStartTime {
		t.Fatalf("step = %v after good date", step)
	}
	date, err := f.sessions.GetDraftField(context.Background(), "Ustore1", session.FieldDate)
	if err != nil || date != "2025-04-20" {
		t.Fatalf("stored date %q (%v)", date, err)
	}
	flag, err := f.sessions.GetDraftField(context.Background(), "Ustore1", session.FieldAwaitingCustomDate)
	if err != nil || flag != "" {
		t.Fatalf("custom date flag not cleared: %q (%v)", flag, err)
	}
}

func TestEndSelectionMustFollowStart(t *testing.T) {
	f := newFixture(t)
	f.text(t, "Ustore1", "勤務依頼")
	f.tap(t, "Ustore1", chat.ActionDateToday)
	f.tap(t, "Ustore1", chat.ActionStartAt, "13:00")

	f.tap(t, "Ustore1", chat.ActionEndAt, "12:00")
	if got := f.lastTo(t, "Ustore1").Body; got != endBandEmpty("13:00") {
		t.Fatalf("expected re-offer, got %q", got)
	}
	if step := f.session(t, "Ustore1").Step; step != session.StepAwaitingEndTime {
		t.Fatalf("step = %v after rejected end", step)
	}
	end, err := f.sessions.GetDraftField(context.Background(), "Ustore1", session.FieldEndTime)
	if err != nil || end != "" {
		t.Fatalf("end time stored despite rejection: %q (%v)", end, err)
	}
}

func TestEndBandTapWithoutStartReentersStartFlow(t *testing.T) {
	f := newFixture(t)
	f.text(t, "Ustore1", "メニュー") // cache the role
	f.tap(t, "Ustore1", chat.ActionEndBandDay)

	msg := f.lastTo(t, "Ustore1")
	if !msg.IsMenu() || msg.Title != "開始時間を選択" {
		t.Fatalf("expected start band menu, got %+v", msg)
	}
}

func TestEndBandWithNoLaterMarksReoffers(t *testing.T) {
	f := newFixture(t)
	f.text(t, "Ustore1", "勤務依頼")
	f.tap(t, "Ustore1", chat.ActionDateToday)
	f.tap(t, "Ustore1", chat.ActionStartAt, "17:30")

	f.tap(t, "Ustore1", chat.ActionEndBandDay)
	if got := f.lastTo(t, "Ustore1").Body; got != endBandEmpty("17:30") {
		t.Fatalf("expected empty-band re-offer, got %q", got)
	}
}

func TestHeadcountClampedToMaximum(t *testing.T) {
	f := newFixture(t)
	f.text(t, "Ustore1", "勤務依頼 4/15 午後 5名")

	if got := f.lastTo(t, "Ustore1").Body; !strings.Contains(got, "人数: 3名") {
		t.Fatalf("headcount not clamped: %q", got)
	}
}

func TestCoarseSlotSkipsTimeSteps(t *testing.T) {
	disp := &stubDispatcher{result: &dispatch.Result{Notified: 1}}
	f := newFixture(t, WithDispatcher(disp))

	f.text(t, "Ustore1", "勤務依頼")
	f.tap(t, "Ustore1", chat.ActionDateToday)
	f.tap(t, "Ustore1", chat.ActionTimeAfternoon)
	if step := f.session(t, "Ustore1").Step; step != session.StepAwaitingHeadcount {
		t.Fatalf("coarse slot should jump to headcount, step = %v", step)
	}

	f.tap(t, "Ustore1", chat.ActionCount1)
	want := confirmationSummary("4/10（木）", "午後", 1)
	if got := f.lastTo(t, "Ustore1").Body; got != want {
		t.Fatalf("summary mismatch:\ngot  %q\nwant %q", got, want)
	}

	f.text(t, "Ustore1", "はい")
	req := f.pendingRequests(t)[0]
	if req.TimeSlot != staffing.SlotAfternoon || req.StartLabel != "" {
		t.Fatalf("slot request wrong: %q start=%q", req.TimeSlot, req.StartLabel)
	}
}

func TestMidFlowTextRepeatsCurrentMenu(t *testing.T) {
	f := newFixture(t)
	f.text(t, "Ustore1", "勤務依頼")
	f.tap(t, "Ustore1", chat.ActionDateToday)
	f.tap(t, "Ustore1", chat.ActionTimeAfternoon)

	f.text(t, "Ustore1", "えーと")
	msg := f.lastTo(t, "Ustore1")
	if !msg.IsMenu() || msg.Title != "必要人数を選択" {
		t.Fatalf("expected count menu re-offer, got %+v", msg)
	}
}

func TestTriggerRestartsComposition(t *testing.T) {
	f := newFixture(t)
	f.text(t, "Ustore1", "勤務依頼")
	f.tap(t, "Ustore1", chat.ActionDateToday)

	f.text(t, "Ustore1", "勤務依頼")
	msg := f.lastTo(t, "Ustore1")
	if !msg.IsMenu() || msg.Title != "勤務日を選択" {
		t.Fatalf("expected fresh date menu, got %+v", msg)
	}
	date, err := f.sessions.GetDraftField(context.Background(), "Ustore1", session.FieldDate)
	if err != nil || date != "" {
		t.Fatalf("old draft survived restart: %q (%v)", date, err)
	}
}

func TestStoreFreeTextStartsComposition(t *testing.T) {
	f := newFixture(t)
	f.text(t, "Ustore1", "4/20 午前 1名")

	want := confirmationSummary("4/20（日）", "午前", 1)
	if got := f.lastTo(t, "Ustore1").Body; got != want {
		t.Fatalf("summary mismatch:\ngot  %q\nwant %q", got, want)
	}
}

func TestHelpKeywordShowsStoreMenu(t *testing.T) {
	f := newFixture(t)
	f.text(t, "Ustore1", "ヘルプ")

	if got := f.lastTo(t, "Ustore1").Body; got != textStoreMenu {
		t.Fatalf("unexpected reply %q", got)
	}
}
