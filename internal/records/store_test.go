package records

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/yakushift/staffing-platform/internal/staffing"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	return mock, newStoreWithDB(mock, nil)
}

func TestRecordRequestUpserts(t *testing.T) {
	mock, store := newMockStore(t)
	defer mock.Close()

	created := time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)
	req := &staffing.Request{
		ID:            "req_1",
		StoreRef:      "メイプル薬局",
		StoreUserID:   "Ustore1",
		Date:          "2025-04-15",
		DateText:      "4/15（火）",
		StartLabel:    "13:00",
		EndLabel:      "18:00",
		BreakLabel:    "60",
		TimeSlot:      staffing.SlotAfternoon,
		RequiredCount: 2,
		Status:        staffing.StatusPending,
		CreatedAt:     created,
		UpdatedAt:     created,
	}

	mock.ExpectExec("INSERT INTO staffing_requests").
		WithArgs("req_1", "メイプル薬局", "Ustore1", "2025-04-15", "4/15（火）",
			"13:00", "18:00", "60", "afternoon", 2, "", "pending", created, created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := store.RecordRequest(context.Background(), req); err != nil {
		t.Fatalf("record request: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRecordRequestNil(t *testing.T) {
	mock, store := newMockStore(t)
	defer mock.Close()

	if err := store.RecordRequest(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil request")
	}
}

func TestRecordApplicationIgnoresDuplicate(t *testing.T) {
	mock, store := newMockStore(t)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO request_applications").
		WithArgs("req_1", "Upharm1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	if err := store.RecordApplication(context.Background(), "req_1", "Upharm1"); err != nil {
		t.Fatalf("duplicate application should be a no-op, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRecordConfirmationFlagsRow(t *testing.T) {
	mock, store := newMockStore(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE request_applications").
		WithArgs("req_1", "Upharm1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := store.RecordConfirmation(context.Background(), "req_1", "Upharm1"); err != nil {
		t.Fatalf("record confirmation: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRecordConfirmationWithoutApplication(t *testing.T) {
	mock, store := newMockStore(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE request_applications").
		WithArgs("req_1", "Upharm9", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := store.RecordConfirmation(context.Background(), "req_1", "Upharm9"); err == nil {
		t.Fatal("expected error when no application row exists")
	}
}

func TestRecordStatus(t *testing.T) {
	mock, store := newMockStore(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE staffing_requests").
		WithArgs("req_1", "completed", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := store.RecordStatus(context.Background(), "req_1", staffing.StatusCompleted); err != nil {
		t.Fatalf("record status: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
