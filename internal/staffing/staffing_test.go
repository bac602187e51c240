package staffing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRequest(required int) *Request {
	return &Request{
		StoreRef:      "メイプル薬局",
		StoreUserID:   "Ustore1",
		Date:          "2025-04-15",
		DateText:      "4/15",
		StartLabel:    "13:00",
		EndLabel:      "18:00",
		BreakLabel:    "60",
		TimeSlot:      SlotAfternoon,
		RequiredCount: required,
	}
}

func TestSlotFromStart(t *testing.T) {
	cases := []struct {
		start string
		want  TimeSlot
	}{
		{"08:00", SlotMorning},
		{"09:30", SlotMorning},
		{"12:00", SlotMorning},
		{"13:00", SlotAfternoon},
		{"16:30", SlotAfternoon},
		{"17:00", SlotEvening},
		{"22:00", SlotEvening},
		{"07:00", SlotFullDay},
		{"23:00", SlotFullDay},
		{"garbage", SlotFullDay},
		{"", SlotFullDay},
	}
	for _, tc := range cases {
		if got := SlotFromStart(tc.start); got != tc.want {
			t.Errorf("SlotFromStart(%q) = %v, want %v", tc.start, got, tc.want)
		}
	}
}

func TestClampRequiredCount(t *testing.T) {
	for in, want := range map[int]int{-1: 1, 0: 1, 1: 1, 2: 2, 3: 3, 4: 3, 10: 3} {
		if got := ClampRequiredCount(in); got != want {
			t.Errorf("ClampRequiredCount(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestMemoryRegistryCreateAssignsIDAndBumpsCollisions(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	first, err := reg.Create(ctx, newTestRequest(2))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if first.ID == "" || first.Status != StatusPending {
		t.Fatalf("created request = %+v", first)
	}

	// Same store, same second: the second id must be bumped, not
	// overwrite the first.
	second, err := reg.Create(ctx, newTestRequest(2))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("collision not bumped: both ids %q", first.ID)
	}

	got, err := reg.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.StoreRef != "メイプル薬局" {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestMemoryRegistryClampsRequiredCount(t *testing.T) {
	reg := NewMemoryRegistry()
	req, err := reg.Create(context.Background(), newTestRequest(5))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if req.RequiredCount != MaxRequiredCount {
		t.Fatalf("RequiredCount = %d, want %d", req.RequiredCount, MaxRequiredCount)
	}
}

func TestMemoryRegistryListFiltersByStatus(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	a, _ := reg.Create(ctx, newTestRequest(1))
	b, _ := reg.Create(ctx, newTestRequest(1))
	if _, err := reg.Update(ctx, b.ID, func(r *Request) error {
		r.Status = StatusCompleted
		return nil
	}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	pending, err := reg.List(ctx, StatusPending)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != a.ID {
		t.Fatalf("pending list = %+v", pending)
	}

	all, err := reg.List(ctx, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all list len = %d, want 2", len(all))
	}
}

func TestArbiterApplyIsIdempotent(t *testing.T) {
	reg := NewMemoryRegistry()
	arb := NewArbiter(reg, nil, nil)
	ctx := context.Background()

	req, _ := reg.Create(ctx, newTestRequest(2))

	out, err := arb.Apply(ctx, req.ID, "Upharm1")
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if out.Duplicate {
		t.Fatal("first apply flagged duplicate")
	}

	out, err = arb.Apply(ctx, req.ID, "Upharm1")
	if err != nil {
		t.Fatalf("second Apply failed: %v", err)
	}
	if !out.Duplicate {
		t.Fatal("second apply not flagged duplicate")
	}
	if len(out.Request.Applicants) != 1 {
		t.Fatalf("applicants = %v, want one entry", out.Request.Applicants)
	}
}

func TestArbiterAcceptRequiresApplication(t *testing.T) {
	reg := NewMemoryRegistry()
	arb := NewArbiter(reg, nil, nil)
	ctx := context.Background()

	req, _ := reg.Create(ctx, newTestRequest(1))

	_, err := arb.Accept(ctx, req.ID, "Unever")
	if !errors.Is(err, ErrNotApplicant) {
		t.Fatalf("Accept of non-applicant: err = %v, want ErrNotApplicant", err)
	}

	got, _ := reg.Get(ctx, req.ID)
	if len(got.Confirmed) != 0 {
		t.Fatalf("confirmed = %v, want empty", got.Confirmed)
	}
}

func TestArbiterAcceptFillsAndCloses(t *testing.T) {
	reg := NewMemoryRegistry()
	dir := &fakeAssignmentDir{}
	arb := NewArbiter(reg, dir, nil)
	ctx := context.Background()

	req, _ := reg.Create(ctx, newTestRequest(2))
	for _, p := range []string{"UpA", "UpB", "UpC"} {
		if _, err := arb.Apply(ctx, req.ID, p); err != nil {
			t.Fatalf("Apply(%s) failed: %v", p, err)
		}
	}

	out, err := arb.Accept(ctx, req.ID, "UpA")
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if out.Filled {
		t.Fatal("request filled after 1 of 2 confirmations")
	}
	if out.Request.Status != StatusProcessing {
		t.Fatalf("status = %q, want processing", out.Request.Status)
	}

	out, err = arb.Accept(ctx, req.ID, "UpB")
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if !out.Filled {
		t.Fatal("request not filled after reaching required count")
	}
	if out.Request.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", out.Request.Status)
	}
	if len(out.Closure) != 1 || out.Closure[0] != "UpC" {
		t.Fatalf("closure = %v, want [UpC]", out.Closure)
	}
	if len(dir.writes) != 2 {
		t.Fatalf("assignment writes = %d, want 2", len(dir.writes))
	}
	if dir.writes[0].label != "13:00〜18:00 メイプル薬局" {
		t.Fatalf("assignment label = %q", dir.writes[0].label)
	}

	// The request is terminal now; further accepts must fail.
	if _, err := arb.Accept(ctx, req.ID, "UpC"); !errors.Is(err, ErrRequestClosed) {
		t.Fatalf("accept on completed request: err = %v, want ErrRequestClosed", err)
	}
}

func TestArbiterConcurrentAcceptsSingleSlot(t *testing.T) {
	reg := NewMemoryRegistry()
	arb := NewArbiter(reg, nil, nil)
	ctx := context.Background()

	req, _ := reg.Create(ctx, newTestRequest(1))
	arb.Apply(ctx, req.ID, "UpA")
	arb.Apply(ctx, req.ID, "UpB")

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, p := range []string{"UpA", "UpB"} {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			_, results[i] = arb.Accept(ctx, req.ID, p)
		}(i, p)
	}
	wg.Wait()

	var succeeded, closed int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrRequestClosed):
			closed++
		default:
			t.Fatalf("unexpected accept error: %v", err)
		}
	}
	if succeeded != 1 || closed != 1 {
		t.Fatalf("succeeded=%d closed=%d, want exactly one of each", succeeded, closed)
	}

	got, _ := reg.Get(ctx, req.ID)
	if len(got.Confirmed) != 1 {
		t.Fatalf("confirmed = %v, want a single winner", got.Confirmed)
	}
}

func TestArbiterDoubleAcceptSamePharmacist(t *testing.T) {
	reg := NewMemoryRegistry()
	arb := NewArbiter(reg, nil, nil)
	ctx := context.Background()

	req, _ := reg.Create(ctx, newTestRequest(2))
	arb.Apply(ctx, req.ID, "UpA")
	if _, err := arb.Accept(ctx, req.ID, "UpA"); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if _, err := arb.Accept(ctx, req.ID, "UpA"); !errors.Is(err, ErrAlreadyConfirmed) {
		t.Fatalf("double accept: err = %v, want ErrAlreadyConfirmed", err)
	}
}

func TestArbiterCancel(t *testing.T) {
	reg := NewMemoryRegistry()
	arb := NewArbiter(reg, nil, nil)
	ctx := context.Background()

	req, _ := reg.Create(ctx, newTestRequest(1))
	got, err := arb.Cancel(ctx, req.ID)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Fatalf("status = %q, want cancelled", got.Status)
	}
	if _, err := arb.Cancel(ctx, req.ID); !errors.Is(err, ErrRequestClosed) {
		t.Fatalf("cancel of terminal request: err = %v, want ErrRequestClosed", err)
	}
}

func TestRequestAssignmentLabelFallback(t *testing.T) {
	req := newTestRequest(1)
	req.StartLabel, req.EndLabel = "", ""
	if got := req.AssignmentLabel(); got != "応募確定 - メイプル薬局" {
		t.Fatalf("AssignmentLabel = %q", got)
	}
}

func TestRedisRegistryRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	reg := NewRedisRegistry(client)
	ctx := context.Background()

	req, err := reg.Create(ctx, newTestRequest(2))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	updated, err := reg.Update(ctx, req.ID, func(r *Request) error {
		r.AddApplicant("UpA")
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !updated.HasApplicant("UpA") {
		t.Fatalf("applicants = %v", updated.Applicants)
	}

	list, err := reg.List(ctx, StatusPending)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != req.ID {
		t.Fatalf("list = %+v", list)
	}

	if _, err := reg.Get(ctx, "missing"); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("Get missing: err = %v, want ErrRequestNotFound", err)
	}
}

type fakeAssignmentDir struct {
	mu     sync.Mutex
	writes []assignmentWrite
}

type assignmentWrite struct {
	pharmacistID string
	date         time.Time
	label        string
}

func (f *fakeAssignmentDir) WriteAssignment(ctx context.Context, pharmacistUserID string, date time.Time, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, assignmentWrite{pharmacistUserID, date, label})
	return nil
}
