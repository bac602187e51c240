// Package directory fronts the roster of registered stores and
// pharmacists and their per-day occupancy grid. The production backend
// is a Google Sheets workbook; an in-memory implementation backs tests
// and local development.
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind distinguishes the two identity types on the roster.
type Kind string

const (
	KindStore      Kind = "store"
	KindPharmacist Kind = "pharmacist"
)

// Identity is one roster entry. UserID is the chat user id bound by
// registration; it may be empty for entries that never registered.
type Identity struct {
	ID          string `json:"id"`
	Kind        Kind   `json:"kind"`
	Name        string `json:"name"`
	UserID      string `json:"user_id,omitempty"`
	Phone       string `json:"phone,omitempty"`
	StoreNumber string `json:"store_number,omitempty"`
	// Row is the backing sheet row, for write-backs.
	Row int `json:"-"`
}

// ApplicationRecord is one row appended to the application log sheet.
type ApplicationRecord struct {
	Timestamp  time.Time
	RequestID  string
	Store      string
	Date       string
	TimeText   string
	Pharmacist string
	Status     string
}

var (
	ErrIdentityNotFound = errors.New("directory: identity not found")
	ErrDateNotFound     = errors.New("directory: date column not found")
)

// Directory is the roster contract the rest of the system depends on.
//
// Availability is strict blank-only: a pharmacist is available on a
// date exactly when their grid cell for that date is empty. Busy
// markers and unrelated notes both exclude. The timeSlot parameter
// travels with the query for logging and the application log; it does
// not loosen the blank-only rule.
type Directory interface {
	ListAvailable(ctx context.Context, date time.Time, timeSlot string) ([]Identity, error)
	// FindByUserID returns (nil, nil) when no identity has the user id.
	FindByUserID(ctx context.Context, userID string) (*Identity, error)
	// WriteAssignment writes the assignment label into the pharmacist's
	// cell for the date.
	WriteAssignment(ctx context.Context, pharmacistUserID string, date time.Time, label string) error
	// RegisterStore binds a chat user id to the roster row matching the
	// store number and name. ErrIdentityNotFound when no row matches.
	RegisterStore(ctx context.Context, number, name, userID string) error
	// RegisterPharmacist binds a chat user id to the roster row
	// matching the name and phone.
	RegisterPharmacist(ctx context.Context, name, phone, userID string) error
	RecordApplication(ctx context.Context, rec ApplicationRecord) error
}

// MonthSheet names the occupancy sheet holding a date, e.g. "2025-07".
func MonthSheet(date time.Time) string {
	return date.Format("2006-01")
}

// DayHeader is the row-1 header cell content for a date, e.g. "7/25".
// No zero padding; the sheet headers carry bare month/day numbers.
func DayHeader(date time.Time) string {
	return fmt.Sprintf("%d/%d", int(date.Month()), date.Day())
}
