package directory

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryListAvailable(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory()
	date := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)

	free := dir.AddIdentity(Identity{Kind: KindPharmacist, Name: "佐藤花子", UserID: "Upharm1"})
	busy := dir.AddIdentity(Identity{Kind: KindPharmacist, Name: "鈴木一郎", UserID: "Upharm2"})
	noChat := dir.AddIdentity(Identity{Kind: KindPharmacist, Name: "田中次郎"})
	dir.AddIdentity(Identity{Kind: KindStore, Name: "メイプル薬局", StoreNumber: "001", UserID: "Ustore1"})

	dir.SetCell(busy.ID, date, "勤務不可")

	got, err := dir.ListAvailable(ctx, date, "afternoon")
	if err != nil {
		t.Fatalf("ListAvailable: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("available = %d, want 2", len(got))
	}
	ids := map[string]bool{}
	for _, p := range got {
		ids[p.ID] = true
		if p.Kind != KindPharmacist {
			t.Fatalf("kind = %q, want pharmacist", p.Kind)
		}
	}
	if !ids[free.ID] || !ids[noChat.ID] {
		t.Fatalf("available ids = %v, want %s and %s", ids, free.ID, noChat.ID)
	}
}

func TestMemoryListAvailableWhitespaceCellIsFree(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory()
	date := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)

	id := dir.AddIdentity(Identity{Kind: KindPharmacist, Name: "佐藤花子", UserID: "U1"})
	dir.SetCell(id.ID, date, "   ")

	got, err := dir.ListAvailable(ctx, date, "am")
	if err != nil {
		t.Fatalf("ListAvailable: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("available = %d, want 1 (whitespace cell counts as free)", len(got))
	}
}

func TestMemoryFindByUserID(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory()
	dir.AddIdentity(Identity{Kind: KindStore, Name: "メイプル薬局", StoreNumber: "001", UserID: "Ustore1"})
	dir.AddIdentity(Identity{Kind: KindPharmacist, Name: "佐藤花子", UserID: "Upharm1"})

	got, err := dir.FindByUserID(ctx, "Ustore1")
	if err != nil {
		t.Fatalf("FindByUserID: %v", err)
	}
	if got == nil || got.Kind != KindStore || got.Name != "メイプル薬局" {
		t.Fatalf("FindByUserID = %+v, want store メイプル薬局", got)
	}

	got, err = dir.FindByUserID(ctx, "Unknown")
	if err != nil {
		t.Fatalf("FindByUserID: %v", err)
	}
	if got != nil {
		t.Fatalf("FindByUserID unknown = %+v, want nil", got)
	}

	got, err = dir.FindByUserID(ctx, "")
	if err != nil || got != nil {
		t.Fatalf("FindByUserID empty = %+v, %v, want nil, nil", got, err)
	}
}

func TestMemoryWriteAssignment(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory()
	date := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)
	id := dir.AddIdentity(Identity{Kind: KindPharmacist, Name: "佐藤花子", UserID: "Upharm1"})

	if err := dir.WriteAssignment(ctx, "Upharm1", date, "13:00〜18:00 メイプル薬局"); err != nil {
		t.Fatalf("WriteAssignment: %v", err)
	}
	if got := dir.Cell(id.ID, date); got != "13:00〜18:00 メイプル薬局" {
		t.Fatalf("cell = %q", got)
	}

	avail, err := dir.ListAvailable(ctx, date, "pm")
	if err != nil {
		t.Fatalf("ListAvailable: %v", err)
	}
	if len(avail) != 0 {
		t.Fatalf("available after assignment = %d, want 0", len(avail))
	}

	err = dir.WriteAssignment(ctx, "Unobody", date, "x")
	if !errors.Is(err, ErrIdentityNotFound) {
		t.Fatalf("WriteAssignment unknown user err = %v, want ErrIdentityNotFound", err)
	}
}

func TestMemoryRegisterStore(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory()
	dir.AddIdentity(Identity{Kind: KindStore, Name: "メイプル薬局", StoreNumber: "001"})

	if err := dir.RegisterStore(ctx, "001", "メイプル薬局", "Ustore9"); err != nil {
		t.Fatalf("RegisterStore: %v", err)
	}
	got, err := dir.FindByUserID(ctx, "Ustore9")
	if err != nil || got == nil {
		t.Fatalf("FindByUserID after register = %+v, %v", got, err)
	}
	if got.StoreNumber != "001" {
		t.Fatalf("store number = %q, want 001", got.StoreNumber)
	}

	err = dir.RegisterStore(ctx, "002", "メイプル薬局", "Ustore9")
	if !errors.Is(err, ErrIdentityNotFound) {
		t.Fatalf("RegisterStore mismatched number err = %v, want ErrIdentityNotFound", err)
	}
}

func TestMemoryRegisterPharmacist(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory()
	dir.AddIdentity(Identity{Kind: KindPharmacist, Name: "佐藤花子", Phone: "090-1111-2222"})

	if err := dir.RegisterPharmacist(ctx, "佐藤花子", "090-1111-2222", "Upharm9"); err != nil {
		t.Fatalf("RegisterPharmacist: %v", err)
	}
	got, err := dir.FindByUserID(ctx, "Upharm9")
	if err != nil || got == nil || got.Kind != KindPharmacist {
		t.Fatalf("FindByUserID after register = %+v, %v", got, err)
	}

	err = dir.RegisterPharmacist(ctx, "佐藤花子", "090-9999-9999", "Upharm9")
	if !errors.Is(err, ErrIdentityNotFound) {
		t.Fatalf("RegisterPharmacist mismatched phone err = %v, want ErrIdentityNotFound", err)
	}
}

func TestMemoryRecordApplication(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory()
	rec := ApplicationRecord{
		Timestamp:  time.Date(2025, 4, 10, 9, 30, 0, 0, time.UTC),
		RequestID:  "store_req_001_20250410_093000",
		Store:      "メイプル薬局",
		Date:       "2025-04-15",
		TimeText:   "13:00-18:00",
		Pharmacist: "佐藤花子",
		Status:     "confirmed",
	}
	if err := dir.RecordApplication(ctx, rec); err != nil {
		t.Fatalf("RecordApplication: %v", err)
	}
	recs := dir.Records()
	if len(recs) != 1 || recs[0].RequestID != rec.RequestID {
		t.Fatalf("records = %+v", recs)
	}
}

func TestMonthSheet(t *testing.T) {
	d := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)
	if got := MonthSheet(d); got != "2025-04" {
		t.Fatalf("MonthSheet = %q, want 2025-04", got)
	}
}

func TestDayHeader(t *testing.T) {
	cases := []struct {
		date time.Time
		want string
	}{
		{time.Date(2025, 4, 5, 0, 0, 0, 0, time.UTC), "4/5"},
		{time.Date(2025, 11, 28, 0, 0, 0, 0, time.UTC), "11/28"},
	}
	for _, tc := range cases {
		if got := DayHeader(tc.date); got != tc.want {
			t.Fatalf("DayHeader(%v) = %q, want %q", tc.date, got, tc.want)
		}
	}
}
