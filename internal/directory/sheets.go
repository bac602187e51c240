package directory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/sheets/v4"

	"github.com/yakushift/staffing-platform/pkg/logging"
)

// Default sheet names in the workbook.
const (
	DefaultStoresSheet  = "店舗登録"
	DefaultRecordsSheet = "応募記録"
)

// rosterScanRows bounds roster reads; rows beyond this are ignored.
const rosterScanRows = 100

// Sheets is the Google Sheets backed Directory.
//
// Workbook layout: one occupancy sheet per month named "2006-01", row 1
// holding "M/D" day headers, pharmacist rows from row 2 with columns
// A=name, B=chat user id, C=phone, D=user type. The stores sheet keeps
// A=store number, B=name, C=chat user id, D=phone, E=user type.
type Sheets struct {
	svc           *sheets.Service
	spreadsheetID string
	storesSheet   string
	recordsSheet  string
	log           *logging.Logger
}

// NewSheets creates a Sheets directory. Empty sheet names fall back to
// the defaults.
func NewSheets(svc *sheets.Service, spreadsheetID, storesSheet, recordsSheet string, log *logging.Logger) *Sheets {
	if svc == nil {
		panic("directory: sheets service required")
	}
	if spreadsheetID == "" {
		panic("directory: spreadsheet id required")
	}
	if storesSheet == "" {
		storesSheet = DefaultStoresSheet
	}
	if recordsSheet == "" {
		recordsSheet = DefaultRecordsSheet
	}
	if log == nil {
		log = logging.Default()
	}
	return &Sheets{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		storesSheet:   storesSheet,
		recordsSheet:  recordsSheet,
		log:           log,
	}
}

// ListAvailable returns pharmacists whose occupancy cell for the date
// is blank. Pharmacists without a bound chat user id are included; the
// dispatcher decides what to do with them.
func (s *Sheets) ListAvailable(ctx context.Context, date time.Time, timeSlot string) ([]Identity, error) {
	sheet := MonthSheet(date)
	col, err := s.dayColumn(ctx, sheet, date)
	if err != nil {
		return nil, err
	}
	pharmacists, err := s.pharmacists(ctx, sheet)
	if err != nil {
		return nil, err
	}
	if len(pharmacists) == 0 {
		return nil, nil
	}

	maxRow := 0
	for _, p := range pharmacists {
		if p.Row > maxRow {
			maxRow = p.Row
		}
	}
	colName := columnName(col)
	rangeName := fmt.Sprintf("%s!%s2:%s%d", sheet, colName, colName, maxRow)
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rangeName).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("directory: read occupancy: %w", err)
	}

	var out []Identity
	for _, p := range pharmacists {
		idx := p.Row - 2
		cell := ""
		if idx >= 0 && idx < len(resp.Values) && len(resp.Values[idx]) > 0 {
			cell = cellString(resp.Values[idx][0])
		}
		if strings.TrimSpace(cell) != "" {
			continue
		}
		out = append(out, p)
	}
	s.log.Info("directory availability query",
		"date", date.Format("2006-01-02"), "time_slot", timeSlot,
		"available", len(out), "roster", len(pharmacists))
	return out, nil
}

// FindByUserID scans the current month's roster, then the stores sheet.
func (s *Sheets) FindByUserID(ctx context.Context, userID string) (*Identity, error) {
	if userID == "" {
		return nil, nil
	}
	pharmacists, err := s.pharmacists(ctx, MonthSheet(time.Now()))
	if err != nil {
		return nil, err
	}
	for i := range pharmacists {
		if pharmacists[i].UserID == userID {
			return &pharmacists[i], nil
		}
	}
	stores, err := s.stores(ctx)
	if err != nil {
		return nil, err
	}
	for i := range stores {
		if stores[i].UserID == userID {
			return &stores[i], nil
		}
	}
	return nil, nil
}

// WriteAssignment fills the pharmacist's cell for the date with the
// assignment label.
func (s *Sheets) WriteAssignment(ctx context.Context, pharmacistUserID string, date time.Time, label string) error {
	sheet := MonthSheet(date)
	pharmacists, err := s.pharmacists(ctx, sheet)
	if err != nil {
		return err
	}
	var target *Identity
	for i := range pharmacists {
		if pharmacists[i].UserID == pharmacistUserID {
			target = &pharmacists[i]
			break
		}
	}
	if target == nil {
		return ErrIdentityNotFound
	}
	col, err := s.dayColumn(ctx, sheet, date)
	if err != nil {
		return err
	}
	cell := fmt.Sprintf("%s!%s%d", sheet, columnName(col), target.Row)
	if err := s.update(ctx, cell, label); err != nil {
		return fmt.Errorf("directory: write assignment: %w", err)
	}
	return nil
}

// RegisterStore binds the chat user id to the store row matching
// number and name.
func (s *Sheets) RegisterStore(ctx context.Context, number, name, userID string) error {
	stores, err := s.stores(ctx)
	if err != nil {
		return err
	}
	for _, st := range stores {
		if st.StoreNumber == number && st.Name == name {
			cell := fmt.Sprintf("%s!C%d", s.storesSheet, st.Row)
			if err := s.update(ctx, cell, userID); err != nil {
				return fmt.Errorf("directory: register store: %w", err)
			}
			return nil
		}
	}
	return ErrIdentityNotFound
}

// RegisterPharmacist binds the chat user id to the roster row matching
// name and phone in the current month's sheet.
func (s *Sheets) RegisterPharmacist(ctx context.Context, name, phone, userID string) error {
	sheet := MonthSheet(time.Now())
	pharmacists, err := s.pharmacists(ctx, sheet)
	if err != nil {
		return err
	}
	for _, p := range pharmacists {
		if p.Name == name && p.Phone == phone {
			cell := fmt.Sprintf("%s!B%d", sheet, p.Row)
			if err := s.update(ctx, cell, userID); err != nil {
				return fmt.Errorf("directory: register pharmacist: %w", err)
			}
			return nil
		}
	}
	return ErrIdentityNotFound
}

// RecordApplication appends one row to the application log sheet.
func (s *Sheets) RecordApplication(ctx context.Context, rec ApplicationRecord) error {
	row := []interface{}{
		rec.Timestamp.Format("2006-01-02 15:04:05"),
		rec.RequestID,
		rec.Store,
		rec.Date,
		rec.TimeText,
		rec.Pharmacist,
		rec.Status,
	}
	vr := &sheets.ValueRange{Values: [][]interface{}{row}}
	_, err := s.svc.Spreadsheets.Values.
		Append(s.spreadsheetID, fmt.Sprintf("%s!A:G", s.recordsSheet), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("directory: record application: %w", err)
	}
	return nil
}

// dayColumn finds the zero-based column index whose row-1 header
// matches the date.
func (s *Sheets) dayColumn(ctx context.Context, sheet string, date time.Time) (int, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, sheet+"!1:1").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("directory: read header row: %w", err)
	}
	if len(resp.Values) == 0 {
		return 0, fmt.Errorf("%w: %s in %s", ErrDateNotFound, DayHeader(date), sheet)
	}
	want := DayHeader(date)
	for idx, cell := range resp.Values[0] {
		if strings.TrimSpace(cellString(cell)) == want {
			return idx, nil
		}
	}
	return 0, fmt.Errorf("%w: %s in %s", ErrDateNotFound, want, sheet)
}

func (s *Sheets) pharmacists(ctx context.Context, sheet string) ([]Identity, error) {
	rangeName := fmt.Sprintf("%s!A2:D%d", sheet, rosterScanRows)
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rangeName).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("directory: read roster: %w", err)
	}
	var out []Identity
	for i, row := range resp.Values {
		name := strings.TrimSpace(cellAt(row, 0))
		if name == "" {
			continue
		}
		out = append(out, Identity{
			ID:     fmt.Sprintf("pharm_%03d", i+1),
			Kind:   KindPharmacist,
			Name:   name,
			UserID: strings.TrimSpace(cellAt(row, 1)),
			Phone:  strings.TrimSpace(cellAt(row, 2)),
			Row:    i + 2,
		})
	}
	return out, nil
}

func (s *Sheets) stores(ctx context.Context) ([]Identity, error) {
	rangeName := fmt.Sprintf("%s!A2:E%d", s.storesSheet, rosterScanRows)
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rangeName).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("directory: read stores: %w", err)
	}
	var out []Identity
	for i, row := range resp.Values {
		number := strings.TrimSpace(cellAt(row, 0))
		name := strings.TrimSpace(cellAt(row, 1))
		if number == "" || name == "" {
			continue
		}
		out = append(out, Identity{
			ID:          fmt.Sprintf("store_%03d", i+1),
			Kind:        KindStore,
			Name:        name,
			StoreNumber: number,
			UserID:      strings.TrimSpace(cellAt(row, 2)),
			Phone:       strings.TrimSpace(cellAt(row, 3)),
			Row:         i + 2,
		})
	}
	return out, nil
}

func (s *Sheets) update(ctx context.Context, cell, value string) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{{value}}}
	_, err := s.svc.Spreadsheets.Values.
		Update(s.spreadsheetID, cell, vr).
		ValueInputOption("RAW").
		Context(ctx).Do()
	return err
}

func cellAt(row []interface{}, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return cellString(row[idx])
}

func cellString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// columnName converts a zero-based column index to its A1 letter form
// (0 → A, 25 → Z, 26 → AA). Month sheets run past column Z once the
// day headers pass the 22nd.
func columnName(idx int) string {
	name := ""
	n := idx + 1
	for n > 0 {
		n--
		name = string(rune('A'+n%26)) + name
		n /= 26
	}
	return name
}
