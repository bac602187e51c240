// Package textparse extracts staffing-request fields from free text:
// the fast path that turns one chat message into a full request, the
// flexible date parser behind the custom-date prompt, and the
// registration commands.
package textparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/yakushift/staffing-platform/internal/staffing"
)

// PartialRequest is what could be pulled out of a single free-text
// message. Date is always set; TimeSlot defaults to full_day and
// RequiredCount to 1 when the message does not say.
type PartialRequest struct {
	Date          time.Time
	TimeSlot      staffing.TimeSlot
	RequiredCount int
	Notes         string
}

// StoreRegistration is a parsed 店舗登録 command.
type StoreRegistration struct {
	Number string
	Name   string
}

// PharmacistRegistration is a parsed 薬剤師登録 command.
type PharmacistRegistration struct {
	Name         string
	Phone        string
	Availability []string
}

var (
	isoDateRE   = regexp.MustCompile(`(\d{4})[/\-](\d{1,2})[/\-](\d{1,2})`)
	kanjiDateRE = regexp.MustCompile(`(\d{1,2})月(\d{1,2})日`)
	shortDateRE = regexp.MustCompile(`(\d{1,2})[/\-](\d{1,2})`)

	countRE = regexp.MustCompile(`(\d+)名`)
	notesRE = regexp.MustCompile(`(?:備考|メモ)[:：]\s*(.+)`)

	morningRE   = regexp.MustCompile(`午前|AM|am|9:00|10:00|11:00|12:00`)
	afternoonRE = regexp.MustCompile(`午後|PM|pm|13:00|14:00|15:00|16:00|17:00`)
	eveningRE   = regexp.MustCompile(`夜間|18:00|19:00|20:00|21:00`)

	separatorRE = regexp.MustCompile(`[ ,、\x{3000}]+`)
)

// Command prefixes and trigger words.
const (
	StoreRegistrationPrefix      = "店舗登録"
	PharmacistRegistrationPrefix = "薬剤師登録"
)

var requestTriggers = []string{"勤務依頼", "シフト"}

// IsRequestTrigger reports whether the text asks to start composing a
// staffing request.
func IsRequestTrigger(text string) bool {
	for _, t := range requestTriggers {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

var affirmatives = []string{"はい", "確認", "確定", "yes", "ok"}
var negatives = []string{"いいえ", "キャンセル", "取り消し", "no"}

// IsAffirmative matches the fixed confirmation vocabulary,
// case-insensitively for the Latin entries.
func IsAffirmative(text string) bool {
	return matchesVocabulary(text, affirmatives)
}

// IsNegative matches the fixed cancellation vocabulary.
func IsNegative(text string) bool {
	return matchesVocabulary(text, negatives)
}

func matchesVocabulary(text string, vocab []string) bool {
	norm := strings.ToLower(strings.TrimSpace(text))
	for _, v := range vocab {
		if norm == v {
			return true
		}
	}
	return false
}

// ParseRequest runs the fast path: date, time-slot keyword, and
// headcount out of one message. Returns nil when no date is present;
// the other fields fall back to full_day and one person.
func ParseRequest(text string, now time.Time) *PartialRequest {
	date, ok := ParseDate(text, now)
	if !ok {
		return nil
	}

	slot := staffing.SlotFullDay
	switch {
	case morningRE.MatchString(text):
		slot = staffing.SlotMorning
	case afternoonRE.MatchString(text):
		slot = staffing.SlotAfternoon
	case eveningRE.MatchString(text):
		slot = staffing.SlotEvening
	}

	count := 1
	if m := countRE.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			count = n
		}
	}

	notes := ""
	if m := notesRE.FindStringSubmatch(text); m != nil {
		notes = strings.TrimSpace(m[1])
	}

	return &PartialRequest{
		Date:          date,
		TimeSlot:      slot,
		RequiredCount: count,
		Notes:         notes,
	}
}

// ParseDate pulls a calendar date out of free text. It tries, in order,
// YYYY/M/D, M月D日, and M/D (slash or hyphen); month/day forms resolve
// against now's year and roll into the next year once the date has
// passed. Falls back to dateparse for western formats. An invalid
// candidate from one pattern (e.g. "13月40日") does not stop the later
// patterns from matching elsewhere in the text.
func ParseDate(text string, now time.Time) (time.Time, bool) {
	if m := isoDateRE.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if d, ok := makeDate(year, month, day, now.Location()); ok {
			return d, true
		}
	}
	if m := kanjiDateRE.FindStringSubmatch(text); m != nil {
		if d, ok := monthDay(m[1], m[2], now); ok {
			return d, true
		}
	}
	if m := shortDateRE.FindStringSubmatch(text); m != nil {
		if d, ok := monthDay(m[1], m[2], now); ok {
			return d, true
		}
	}

	parsed, err := dateparse.ParseIn(text, now.Location())
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, now.Location()), true
}

func monthDay(monthStr, dayStr string, now time.Time) (time.Time, bool) {
	month, _ := strconv.Atoi(monthStr)
	day, _ := strconv.Atoi(dayStr)
	d, ok := makeDate(now.Year(), month, day, now.Location())
	if !ok {
		return time.Time{}, false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if d.Before(today) {
		bumped, ok := makeDate(now.Year()+1, month, day, now.Location())
		if !ok {
			return time.Time{}, false
		}
		d = bumped
	}
	return d, true
}

// makeDate rejects out-of-range components instead of letting time.Date
// normalize them (2/30 must not become 3/2).
func makeDate(year, month, day int, loc *time.Location) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if int(d.Month()) != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

// ParseStoreRegistration parses "店舗登録 <number> <name>" with comma,
// full-width comma, space, or full-width space separators.
func ParseStoreRegistration(text string) (*StoreRegistration, bool) {
	rest, ok := cutPrefix(text, StoreRegistrationPrefix)
	if !ok {
		return nil, false
	}
	parts := splitFields(rest)
	if len(parts) < 2 {
		return nil, false
	}
	return &StoreRegistration{Number: parts[0], Name: parts[1]}, true
}

// ParsePharmacistRegistration parses "薬剤師登録 <name> <phone>
// [availability...]".
func ParsePharmacistRegistration(text string) (*PharmacistRegistration, bool) {
	rest, ok := cutPrefix(text, PharmacistRegistrationPrefix)
	if !ok {
		return nil, false
	}
	parts := splitFields(rest)
	if len(parts) < 2 {
		return nil, false
	}
	return &PharmacistRegistration{
		Name:         parts[0],
		Phone:        parts[1],
		Availability: parts[2:],
	}, true
}

func cutPrefix(text, prefix string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, prefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(trimmed, prefix)), true
}

func splitFields(text string) []string {
	var out []string
	for _, p := range separatorRE.Split(text, -1) {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
