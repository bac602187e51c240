package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

type capturedWrite struct {
	Path   string
	Values [][]interface{}
}

// fakeSheetsAPI serves canned Values.Get responses keyed by a range
// substring and records Update and Append calls.
type fakeSheetsAPI struct {
	mu      sync.Mutex
	get     map[string][][]interface{}
	updates []capturedWrite
	appends []capturedWrite
}

func (f *fakeSheetsAPI) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && strings.Contains(path, ":append"):
			var vr sheets.ValueRange
			if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			f.mu.Lock()
			f.appends = append(f.appends, capturedWrite{Path: path, Values: vr.Values})
			f.mu.Unlock()
			json.NewEncoder(w).Encode(&sheets.AppendValuesResponse{})
		case r.Method == http.MethodPut:
			var vr sheets.ValueRange
			if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			f.mu.Lock()
			f.updates = append(f.updates, capturedWrite{Path: path, Values: vr.Values})
			f.mu.Unlock()
			json.NewEncoder(w).Encode(&sheets.UpdateValuesResponse{UpdatedCells: 1})
		default:
			f.mu.Lock()
			defer f.mu.Unlock()
			for sub, vals := range f.get {
				if strings.Contains(path, sub) {
					json.NewEncoder(w).Encode(&sheets.ValueRange{Values: vals})
					return
				}
			}
			json.NewEncoder(w).Encode(&sheets.ValueRange{})
		}
	}
}

func newTestSheets(t *testing.T, fake *fakeSheetsAPI) *Sheets {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	svc, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL), option.WithoutAuthentication())
	if err != nil {
		t.Fatalf("sheets.NewService: %v", err)
	}
	return NewSheets(svc, "sheet-test", "", "", nil)
}

func testRoster() [][]interface{} {
	return [][]interface{}{
		{"佐藤花子", "Upharm1", "090-1111-2222", "薬剤師"},
		{"鈴木一郎", "Upharm2", "090-2222-3333", "薬剤師"},
		{"田中次郎", "", "090-3333-4444", "薬剤師"},
	}
}

func testHeaderRow() [][]interface{} {
	return [][]interface{}{
		{"薬剤師名", "LINE ID", "電話番号", "区分", "4/14", "4/15", "4/16"},
	}
}

func TestSheetsListAvailable(t *testing.T) {
	fake := &fakeSheetsAPI{get: map[string][][]interface{}{
		"!1:1":  testHeaderRow(),
		"A2:D":  testRoster(),
		"F2:F4": {{""}, {"勤務不可"}},
	}}
	dir := newTestSheets(t, fake)

	date := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)
	got, err := dir.ListAvailable(context.Background(), date, "afternoon")
	if err != nil {
		t.Fatalf("ListAvailable: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("available = %d, want 2", len(got))
	}
	if got[0].Name != "佐藤花子" || got[1].Name != "田中次郎" {
		t.Fatalf("available = %q, %q; want 佐藤花子, 田中次郎", got[0].Name, got[1].Name)
	}
	if got[0].Row != 2 || got[1].Row != 4 {
		t.Fatalf("rows = %d, %d; want 2, 4", got[0].Row, got[1].Row)
	}
}

func TestSheetsListAvailableDateMissing(t *testing.T) {
	fake := &fakeSheetsAPI{get: map[string][][]interface{}{
		"!1:1": testHeaderRow(),
		"A2:D": testRoster(),
	}}
	dir := newTestSheets(t, fake)

	date := time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC)
	_, err := dir.ListAvailable(context.Background(), date, "am")
	if !errors.Is(err, ErrDateNotFound) {
		t.Fatalf("err = %v, want ErrDateNotFound", err)
	}
}

func TestSheetsWriteAssignment(t *testing.T) {
	fake := &fakeSheetsAPI{get: map[string][][]interface{}{
		"!1:1": testHeaderRow(),
		"A2:D": testRoster(),
	}}
	dir := newTestSheets(t, fake)

	date := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)
	err := dir.WriteAssignment(context.Background(), "Upharm2", date, "13:00〜18:00 メイプル薬局")
	if err != nil {
		t.Fatalf("WriteAssignment: %v", err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(fake.updates))
	}
	up := fake.updates[0]
	if !strings.Contains(up.Path, "2025-04!F3") {
		t.Fatalf("update path = %q, want cell 2025-04!F3", up.Path)
	}
	if len(up.Values) != 1 || len(up.Values[0]) != 1 || up.Values[0][0] != "13:00〜18:00 メイプル薬局" {
		t.Fatalf("update values = %v", up.Values)
	}
}

func TestSheetsWriteAssignmentUnknownUser(t *testing.T) {
	fake := &fakeSheetsAPI{get: map[string][][]interface{}{
		"!1:1": testHeaderRow(),
		"A2:D": testRoster(),
	}}
	dir := newTestSheets(t, fake)

	date := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)
	err := dir.WriteAssignment(context.Background(), "Unobody", date, "x")
	if !errors.Is(err, ErrIdentityNotFound) {
		t.Fatalf("err = %v, want ErrIdentityNotFound", err)
	}
}

func TestSheetsRegisterPharmacist(t *testing.T) {
	fake := &fakeSheetsAPI{get: map[string][][]interface{}{
		"A2:D": testRoster(),
	}}
	dir := newTestSheets(t, fake)

	err := dir.RegisterPharmacist(context.Background(), "田中次郎", "090-3333-4444", "Upharm3")
	if err != nil {
		t.Fatalf("RegisterPharmacist: %v", err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(fake.updates))
	}
	wantCell := fmt.Sprintf("%s!B4", MonthSheet(time.Now()))
	if !strings.Contains(fake.updates[0].Path, wantCell) {
		t.Fatalf("update path = %q, want cell %s", fake.updates[0].Path, wantCell)
	}
	if fake.updates[0].Values[0][0] != "Upharm3" {
		t.Fatalf("update values = %v", fake.updates[0].Values)
	}
}

func TestSheetsRegisterStore(t *testing.T) {
	fake := &fakeSheetsAPI{get: map[string][][]interface{}{
		"A2:E": {
			{"001", "メイプル薬局", "", "03-1111-2222", "店舗"},
			{"002", "さくら薬局", "Ustore2", "03-2222-3333", "店舗"},
		},
	}}
	dir := newTestSheets(t, fake)

	err := dir.RegisterStore(context.Background(), "001", "メイプル薬局", "Ustore1")
	if err != nil {
		t.Fatalf("RegisterStore: %v", err)
	}
	fake.mu.Lock()
	if len(fake.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(fake.updates))
	}
	if !strings.Contains(fake.updates[0].Path, "店舗登録!C2") {
		t.Fatalf("update path = %q, want cell 店舗登録!C2", fake.updates[0].Path)
	}
	fake.mu.Unlock()

	err = dir.RegisterStore(context.Background(), "001", "別の薬局", "Ustore1")
	if !errors.Is(err, ErrIdentityNotFound) {
		t.Fatalf("err = %v, want ErrIdentityNotFound", err)
	}
}

func TestSheetsFindByUserID(t *testing.T) {
	fake := &fakeSheetsAPI{get: map[string][][]interface{}{
		"A2:D": testRoster(),
		"A2:E": {
			{"001", "メイプル薬局", "Ustore1", "03-1111-2222", "店舗"},
		},
	}}
	dir := newTestSheets(t, fake)

	got, err := dir.FindByUserID(context.Background(), "Upharm2")
	if err != nil {
		t.Fatalf("FindByUserID: %v", err)
	}
	if got == nil || got.Kind != KindPharmacist || got.Name != "鈴木一郎" {
		t.Fatalf("FindByUserID = %+v, want pharmacist 鈴木一郎", got)
	}

	got, err = dir.FindByUserID(context.Background(), "Ustore1")
	if err != nil {
		t.Fatalf("FindByUserID: %v", err)
	}
	if got == nil || got.Kind != KindStore || got.StoreNumber != "001" {
		t.Fatalf("FindByUserID = %+v, want store 001", got)
	}

	got, err = dir.FindByUserID(context.Background(), "Unobody")
	if err != nil || got != nil {
		t.Fatalf("FindByUserID = %+v, %v; want nil, nil", got, err)
	}
}

func TestSheetsRecordApplication(t *testing.T) {
	fake := &fakeSheetsAPI{get: map[string][][]interface{}{}}
	dir := newTestSheets(t, fake)

	rec := ApplicationRecord{
		Timestamp:  time.Date(2025, 4, 10, 9, 30, 0, 0, time.UTC),
		RequestID:  "store_req_001_20250410_093000",
		Store:      "メイプル薬局",
		Date:       "2025-04-15",
		TimeText:   "13:00-18:00",
		Pharmacist: "佐藤花子",
		Status:     "confirmed",
	}
	if err := dir.RecordApplication(context.Background(), rec); err != nil {
		t.Fatalf("RecordApplication: %v", err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.appends) != 1 {
		t.Fatalf("appends = %d, want 1", len(fake.appends))
	}
	ap := fake.appends[0]
	if !strings.Contains(ap.Path, "応募記録") {
		t.Fatalf("append path = %q, want records sheet", ap.Path)
	}
	row := ap.Values[0]
	if len(row) != 7 {
		t.Fatalf("row has %d cells, want 7: %v", len(row), row)
	}
	if row[0] != "2025-04-10 09:30:00" || row[1] != rec.RequestID || row[6] != "confirmed" {
		t.Fatalf("row = %v", row)
	}
}

func TestColumnName(t *testing.T) {
	cases := []struct {
		idx  int
		want string
	}{
		{0, "A"}, {4, "E"}, {25, "Z"}, {26, "AA"}, {27, "AB"}, {51, "AZ"}, {52, "BA"}, {701, "ZZ"}, {702, "AAA"},
	}
	for _, tc := range cases {
		if got := columnName(tc.idx); got != tc.want {
			t.Fatalf("columnName(%d) = %q, want %q", tc.idx, got, tc.want)
		}
	}
}
