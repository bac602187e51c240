// Package session tracks per-user conversation state: the user's role,
// the step the dialogue is at, and the draft staffing request being
// accumulated across turns.
package session

import (
	"context"
	"time"
)

// Role classifies a chat user. It is set once via registration and
// cached on the session; the directory sheet is the durable copy.
type Role string

const (
	RoleUnknown    Role = ""
	RoleStore      Role = "store"
	RolePharmacist Role = "pharmacist"
)

// Step is the explicit position of a user inside the request-composition
// dialogue. Handlers branch on it instead of inferring progress from
// which draft fields happen to be present.
type Step int

const (
	StepIdle Step = iota
	StepAwaitingDate
	StepAwaitingStartTime
	StepAwaitingEndTime
	StepAwaitingBreak
	StepAwaitingHeadcount
	StepAwaitingConfirmation
)

// String returns a stable name for logging and metrics labels.
func (s Step) String() string {
	switch s {
	case StepIdle:
		return "idle"
	case StepAwaitingDate:
		return "awaiting_date"
	case StepAwaitingStartTime:
		return "awaiting_start_time"
	case StepAwaitingEndTime:
		return "awaiting_end_time"
	case StepAwaitingBreak:
		return "awaiting_break"
	case StepAwaitingHeadcount:
		return "awaiting_headcount"
	case StepAwaitingConfirmation:
		return "awaiting_confirmation"
	default:
		return "unknown"
	}
}

// Draft field keys. Values are stored as opaque strings; the
// conversation engine owns their formats.
const (
	FieldDate              = "date"       // ISO date "2006-01-02"
	FieldDateText          = "date_text"  // display label, e.g. "7/25（金）"
	FieldStartTime         = "start_time" // "09:00"
	FieldEndTime           = "end_time"   // "18:00"
	FieldBreakTime         = "break_time" // minutes, e.g. "60"
	FieldTimeSlot          = "time_slot"  // morning|afternoon|evening|full_day
	FieldTimeText          = "time_text"  // display label for the window
	FieldRequiredCount     = "required_count"
	FieldNotes             = "notes"
	FieldAwaitingCustomDate = "awaiting_custom_date" // transient flag
)

// Session is one chat user's conversation state.
type Session struct {
	UserID       string            `json:"user_id"`
	Role         Role              `json:"role,omitempty"`
	Step         Step              `json:"step"`
	Draft        map[string]string `json:"draft,omitempty"`
	LastActivity time.Time         `json:"last_activity"`
}

// DraftField returns the draft value for key, or "" when unset.
func (s *Session) DraftField(key string) string {
	if s == nil || s.Draft == nil {
		return ""
	}
	return s.Draft[key]
}

// Store persists sessions keyed by chat user id. Implementations provide
// per-user key isolation only; callers for a single user are expected to
// run one event at a time.
type Store interface {
	// GetOrCreate returns the user's session, creating an idle one with
	// RoleUnknown on first contact. LastActivity is refreshed.
	GetOrCreate(ctx context.Context, userID string) (*Session, error)
	SetRole(ctx context.Context, userID string, role Role) error
	SetStep(ctx context.Context, userID string, step Step) error
	SetDraftField(ctx context.Context, userID, key, value string) error
	// GetDraftField returns "" when the field is unset.
	GetDraftField(ctx context.Context, userID, key string) (string, error)
	// ClearDraft drops every draft field and resets the step to Idle.
	// The role survives.
	ClearDraft(ctx context.Context, userID string) error
}

func newSession(userID string) *Session {
	return &Session{
		UserID:       userID,
		Step:         StepIdle,
		Draft:        make(map[string]string),
		LastActivity: time.Now().UTC(),
	}
}
