// Package staffing holds the request registry and the arbitration rules
// that decide which applicants fill a staffing request.
package staffing

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status tracks a request through its lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// TimeSlot is the machine-usable bucket a request's working window falls
// into. It drives the availability query; the display strings shown to
// users come from the start/end labels.
type TimeSlot string

const (
	SlotMorning   TimeSlot = "morning"
	SlotAfternoon TimeSlot = "afternoon"
	SlotEvening   TimeSlot = "evening"
	SlotFullDay   TimeSlot = "full_day"
)

// Label returns the Japanese display name for the slot.
func (t TimeSlot) Label() string {
	switch t {
	case SlotMorning:
		return "午前"
	case SlotAfternoon:
		return "午後"
	case SlotEvening:
		return "夜間"
	case SlotFullDay:
		return "終日"
	default:
		return string(t)
	}
}

// SlotFromStart derives the slot bucket from an "HH:MM" start label.
// Start hours 8-12 bucket as morning, 13-16 as afternoon, 17-22 as
// evening; anything else (or an unparseable label) is full_day.
func SlotFromStart(start string) TimeSlot {
	hh, _, ok := strings.Cut(start, ":")
	if !ok {
		return SlotFullDay
	}
	hour, err := strconv.Atoi(strings.TrimSpace(hh))
	if err != nil {
		return SlotFullDay
	}
	switch {
	case hour >= 8 && hour <= 12:
		return SlotMorning
	case hour >= 13 && hour <= 16:
		return SlotAfternoon
	case hour >= 17 && hour <= 22:
		return SlotEvening
	default:
		return SlotFullDay
	}
}

// MaxRequiredCount caps how many pharmacists one request may ask for.
const MaxRequiredCount = 3

// ClampRequiredCount forces a requested headcount into the 1..3 band.
func ClampRequiredCount(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxRequiredCount {
		return MaxRequiredCount
	}
	return n
}

// DateLayout is the wire format for request dates.
const DateLayout = "2006-01-02"

// Request is one store's ask for pharmacist cover on a date.
type Request struct {
	ID          string `json:"id"`
	StoreRef    string `json:"store_ref"`     // store display name
	StoreUserID string `json:"store_user_id"` // chat user id of the requester

	Date       string `json:"date"` // DateLayout
	DateText   string `json:"date_text,omitempty"`
	StartLabel string `json:"start_label,omitempty"` // "09:00"
	EndLabel   string `json:"end_label,omitempty"`   // "18:00"
	BreakLabel string `json:"break_label,omitempty"` // minutes as text

	TimeSlot      TimeSlot `json:"time_slot"`
	RequiredCount int      `json:"required_count"`
	Notes         string   `json:"notes,omitempty"`

	Applicants []string `json:"applicants,omitempty"`
	Confirmed  []string `json:"confirmed,omitempty"`
	Notified   []string `json:"notified,omitempty"`

	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DateValue parses the request date.
func (r *Request) DateValue() (time.Time, error) {
	d, err := time.Parse(DateLayout, r.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("staffing: parse date %q: %w", r.Date, err)
	}
	return d, nil
}

// Terminal reports whether the request can no longer change.
func (r *Request) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusCancelled
}

// IsFilled reports whether enough pharmacists are confirmed.
func (r *Request) IsFilled() bool {
	return len(r.Confirmed) >= r.RequiredCount
}

// HasApplicant reports whether the pharmacist has applied.
func (r *Request) HasApplicant(pharmacistID string) bool {
	return contains(r.Applicants, pharmacistID)
}

// HasConfirmed reports whether the pharmacist is already confirmed.
func (r *Request) HasConfirmed(pharmacistID string) bool {
	return contains(r.Confirmed, pharmacistID)
}

// AddApplicant appends the pharmacist if absent. Returns false on a
// duplicate apply.
func (r *Request) AddApplicant(pharmacistID string) bool {
	if r.HasApplicant(pharmacistID) {
		return false
	}
	r.Applicants = append(r.Applicants, pharmacistID)
	return true
}

// AddConfirmed appends the pharmacist if absent.
func (r *Request) AddConfirmed(pharmacistID string) bool {
	if r.HasConfirmed(pharmacistID) {
		return false
	}
	r.Confirmed = append(r.Confirmed, pharmacistID)
	return true
}

// UnconfirmedApplicants returns applicants − confirmed, the recipients
// of closure notices once the request fills.
func (r *Request) UnconfirmedApplicants() []string {
	var out []string
	for _, id := range r.Applicants {
		if !r.HasConfirmed(id) {
			out = append(out, id)
		}
	}
	return out
}

// AwaitingResponse returns notified pharmacists who have not applied,
// the reminder sweep's targets.
func (r *Request) AwaitingResponse() []string {
	var out []string
	for _, id := range r.Notified {
		if !r.HasApplicant(id) {
			out = append(out, id)
		}
	}
	return out
}

// AddNotified appends the pharmacist if absent.
func (r *Request) AddNotified(pharmacistID string) bool {
	if contains(r.Notified, pharmacistID) {
		return false
	}
	r.Notified = append(r.Notified, pharmacistID)
	return true
}

// Window renders the working window for display: "09:00〜18:00" when
// both times are known, otherwise the slot label.
func (r *Request) Window() string {
	if r.StartLabel != "" && r.EndLabel != "" {
		return fmt.Sprintf("%s〜%s", r.StartLabel, r.EndLabel)
	}
	return r.TimeSlot.Label()
}

// ShortDate renders the date as unpadded "M/D", the same shape the
// roster sheet headers use. Falls back to DateText when the stored
// date does not parse.
func (r *Request) ShortDate() string {
	d, err := r.DateValue()
	if err != nil {
		return r.DateText
	}
	return fmt.Sprintf("%d/%d", int(d.Month()), d.Day())
}

// AssignmentLabel is the cell content written into the directory when a
// pharmacist is confirmed: "<start>〜<end> <store>" when the times are
// known, otherwise the acceptance marker.
func (r *Request) AssignmentLabel() string {
	if r.StartLabel != "" && r.EndLabel != "" {
		return fmt.Sprintf("%s〜%s %s", r.StartLabel, r.EndLabel, r.StoreRef)
	}
	return fmt.Sprintf("応募確定 - %s", r.StoreRef)
}

// NewRequestID derives a request id from the requester and the wall
// clock. Collisions within one second are bumped by the registry.
func NewRequestID(storeKey string, now time.Time) string {
	return fmt.Sprintf("store_req_%s_%s", storeKey, now.Format("20060102_150405"))
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
