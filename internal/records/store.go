// Package records mirrors request lifecycle events into PostgreSQL so
// history and statistics survive the registry's retention window. Every
// write is best-effort from the caller's point of view: the dialogue
// engine logs failures and moves on, and the registry stays the source
// of truth for live arbitration.
package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yakushift/staffing-platform/internal/staffing"
	"github.com/yakushift/staffing-platform/pkg/logging"
)

// querier is the slice of pgxpool.Pool the store uses. pgxmock
// implements it for tests.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists request snapshots and application rows.
type Store struct {
	db  querier
	log *logging.Logger
}

// NewStore creates a records store backed by pgxpool.
func NewStore(pool *pgxpool.Pool, logger *logging.Logger) *Store {
	if pool == nil {
		panic("records: pgx pool required")
	}
	return newStoreWithDB(pool, logger)
}

func newStoreWithDB(db querier, logger *logging.Logger) *Store {
	if db == nil {
		panic("records: db required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{db: db, log: logger}
}

// RecordRequest upserts the submitted request snapshot. Re-recording an
// existing id refreshes only status and updated_at, so replayed submit
// hooks cannot rewrite history.
func (s *Store) RecordRequest(ctx context.Context, req *staffing.Request) error {
	if req == nil {
		return errors.New("records: request cannot be nil")
	}
	query := `
		INSERT INTO staffing_requests
			(id, store_ref, store_user_id, work_date, date_text, start_label,
			 end_label, break_label, time_slot, required_count, notes, status,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.Exec(ctx, query,
		req.ID, req.StoreRef, req.StoreUserID, req.Date, req.DateText,
		req.StartLabel, req.EndLabel, req.BreakLabel, string(req.TimeSlot),
		req.RequiredCount, req.Notes, string(req.Status),
		req.CreatedAt, req.UpdatedAt,
	); err != nil {
		return fmt.Errorf("records: insert request: %w", err)
	}
	return nil
}

// RecordApplication inserts an application row. Duplicate applications
// are no-ops, mirroring the registry's idempotent apply.
func (s *Store) RecordApplication(ctx context.Context, requestID, pharmacistID string) error {
	query := `
		INSERT INTO request_applications (request_id, pharmacist_id, applied_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (request_id, pharmacist_id) DO NOTHING
	`
	if _, err := s.db.Exec(ctx, query, requestID, pharmacistID, time.Now().UTC()); err != nil {
		return fmt.Errorf("records: insert application: %w", err)
	}
	return nil
}

// RecordConfirmation flags an application row as confirmed. A missing
// row is an error: confirmations only ever follow applications.
func (s *Store) RecordConfirmation(ctx context.Context, requestID, pharmacistID string) error {
	query := `
		UPDATE request_applications
		SET confirmed = TRUE, confirmed_at = $3
		WHERE request_id = $1 AND pharmacist_id = $2
	`
	ct, err := s.db.Exec(ctx, query, requestID, pharmacistID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("records: confirm application: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("records: confirm application: no row for %s/%s", requestID, pharmacistID)
	}
	return nil
}

// RecordStatus updates a stored request's status.
func (s *Store) RecordStatus(ctx context.Context, requestID string, status staffing.Status) error {
	query := `UPDATE staffing_requests SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := s.db.Exec(ctx, query, requestID, string(status), time.Now().UTC()); err != nil {
		return fmt.Errorf("records: update status: %w", err)
	}
	return nil
}
