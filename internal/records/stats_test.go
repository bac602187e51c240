package records

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/yakushift/staffing-platform/internal/staffing"
)

var historyColumns = []string{
	"id", "store_ref", "store_user_id", "work_date", "date_text", "start_label",
	"end_label", "break_label", "time_slot", "required_count", "notes", "status",
	"created_at", "updated_at",
}

func TestStoreHistoryScansRows(t *testing.T) {
	mock, store := newMockStore(t)
	defer mock.Close()

	created := time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM staffing_requests").
		WithArgs("Ustore1", 50).
		WillReturnRows(pgxmock.NewRows(historyColumns).
			AddRow("req_2", "メイプル薬局", "Ustore1", "2025-04-16", "4/16（水）",
				"", "", "", "full_day", 1, "", "pending", created.Add(time.Hour), created.Add(time.Hour)).
			AddRow("req_1", "メイプル薬局", "Ustore1", "2025-04-15", "4/15（火）",
				"13:00", "18:00", "60", "afternoon", 2, "", "completed", created, created))

	rows, err := store.StoreHistory(context.Background(), "Ustore1", 0)
	if err != nil {
		t.Fatalf("store history: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].ID != "req_2" || rows[1].ID != "req_1" {
		t.Fatalf("row order wrong: %s, %s", rows[0].ID, rows[1].ID)
	}
	if rows[1].StartLabel != "13:00" || rows[1].RequiredCount != 2 || rows[1].Status != "completed" {
		t.Fatalf("row fields wrong: %+v", rows[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStatusCounts(t *testing.T) {
	mock, store := newMockStore(t)
	defer mock.Close()

	mock.ExpectQuery("GROUP BY status").
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow("pending", int64(2)).
			AddRow("completed", int64(3)))

	counts, err := store.StatusCounts(context.Background())
	if err != nil {
		t.Fatalf("status counts: %v", err)
	}
	if counts[staffing.StatusPending] != 2 || counts[staffing.StatusCompleted] != 3 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestStatisticsAggregates(t *testing.T) {
	mock, store := newMockStore(t)
	defer mock.Close()

	mock.ExpectQuery("GROUP BY status").
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow("pending", int64(1)).
			AddRow("processing", int64(1)).
			AddRow("completed", int64(3)).
			AddRow("cancelled", int64(1)))
	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(pgxmock.NewRows([]string{"avg"}).AddRow(2.5))

	stats, err := store.Statistics(context.Background())
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.TotalRequests != 6 || stats.CompletedRequests != 3 || stats.CancelledRequests != 1 {
		t.Fatalf("totals wrong: %+v", stats)
	}
	if stats.OpenRequests != 2 {
		t.Fatalf("open count wrong: %+v", stats)
	}
	if stats.FillRate != 0.5 {
		t.Fatalf("fill rate = %v, want 0.5", stats.FillRate)
	}
	if stats.AverageApplicants != 2.5 {
		t.Fatalf("average applicants = %v", stats.AverageApplicants)
	}
}

func TestStatisticsEmptyDatabase(t *testing.T) {
	mock, store := newMockStore(t)
	defer mock.Close()

	mock.ExpectQuery("GROUP BY status").
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}))
	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(pgxmock.NewRows([]string{"avg"}).AddRow(0.0))

	stats, err := store.Statistics(context.Background())
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.TotalRequests != 0 || stats.FillRate != 0 {
		t.Fatalf("empty stats wrong: %+v", stats)
	}
}
