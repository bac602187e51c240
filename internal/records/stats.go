package records

import (
	"context"
	"fmt"
	"time"

	"github.com/yakushift/staffing-platform/internal/staffing"
)

const defaultHistoryLimit = 50

// RequestRow is one persisted request snapshot.
type RequestRow struct {
	ID            string    `json:"id"`
	StoreRef      string    `json:"store_ref"`
	StoreUserID   string    `json:"store_user_id"`
	Date          string    `json:"date"`
	DateText      string    `json:"date_text,omitempty"`
	StartLabel    string    `json:"start_label,omitempty"`
	EndLabel      string    `json:"end_label,omitempty"`
	BreakLabel    string    `json:"break_label,omitempty"`
	TimeSlot      string    `json:"time_slot"`
	RequiredCount int       `json:"required_count"`
	Notes         string    `json:"notes,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StoreHistory lists a store's submitted requests, newest first.
func (s *Store) StoreHistory(ctx context.Context, storeUserID string, limit int) ([]RequestRow, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	query := `
		SELECT id, store_ref, store_user_id, work_date, date_text, start_label,
		       end_label, break_label, time_slot, required_count, notes, status,
		       created_at, updated_at
		FROM staffing_requests
		WHERE store_user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.Query(ctx, query, storeUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("records: query history: %w", err)
	}
	defer rows.Close()

	var out []RequestRow
	for rows.Next() {
		var r RequestRow
		if err := rows.Scan(
			&r.ID, &r.StoreRef, &r.StoreUserID, &r.Date, &r.DateText,
			&r.StartLabel, &r.EndLabel, &r.BreakLabel, &r.TimeSlot,
			&r.RequiredCount, &r.Notes, &r.Status, &r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("records: scan history row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("records: iterate history: %w", err)
	}
	return out, nil
}

// StatusCounts groups stored requests by status.
func (s *Store) StatusCounts(ctx context.Context) (map[staffing.Status]int64, error) {
	rows, err := s.db.Query(ctx, `SELECT status, COUNT(*) FROM staffing_requests GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("records: query status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[staffing.Status]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("records: scan status count: %w", err)
		}
		counts[staffing.Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("records: iterate status counts: %w", err)
	}
	return counts, nil
}

// Statistics aggregates fill-rate numbers for the admin API.
type Statistics struct {
	TotalRequests     int64   `json:"total_requests"`
	CompletedRequests int64   `json:"completed_requests"`
	CancelledRequests int64   `json:"cancelled_requests"`
	OpenRequests      int64   `json:"open_requests"`
	FillRate          float64 `json:"fill_rate"`
	AverageApplicants float64 `json:"average_applicants"`
}

// Statistics computes all-time aggregates. FillRate is completed over
// total; AverageApplicants counts applications per stored request,
// including requests nobody applied to.
func (s *Store) Statistics(ctx context.Context) (*Statistics, error) {
	counts, err := s.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{}
	for status, n := range counts {
		stats.TotalRequests += n
		switch status {
		case staffing.StatusCompleted:
			stats.CompletedRequests = n
		case staffing.StatusCancelled:
			stats.CancelledRequests = n
		default:
			stats.OpenRequests += n
		}
	}
	if stats.TotalRequests > 0 {
		stats.FillRate = float64(stats.CompletedRequests) / float64(stats.TotalRequests)
	}

	query := `
		SELECT COALESCE(AVG(applicant_count), 0) FROM (
			SELECT COUNT(a.pharmacist_id) AS applicant_count
			FROM staffing_requests r
			LEFT JOIN request_applications a ON a.request_id = r.id
			GROUP BY r.id
		) counts
	`
	if err := s.db.QueryRow(ctx, query).Scan(&stats.AverageApplicants); err != nil {
		return nil, fmt.Errorf("records: average applicants: %w", err)
	}
	return stats, nil
}
