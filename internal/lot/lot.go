package lot

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// DateLayout is the calendar-date format used for lot dates everywhere.
const DateLayout = "2006-01-02"

// Lot is the parent unit of work spanning production, inspection and shipping.
type Lot struct {
	// ID is assigned by ingestion and never changes. Zero asks the store to
	// allocate one.
	ID        int64     `json:"lot_id" validate:"gte=0"`
	Code      string    `json:"code,omitempty" validate:"max=64"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required,gtefield=StartDate"`
}

// Normalize returns a copy with dates truncated to UTC calendar days and the
// code trimmed and NFC normalized, so equal codes compare equal regardless of
// how they were typed.
func (l Lot) Normalize() Lot {
	l.Code = NormalizeText(l.Code)
	l.StartDate = Day(l.StartDate)
	l.EndDate = Day(l.EndDate)
	return l
}

// Validate checks the lot invariants, including end_date >= start_date.
func (l Lot) Validate() error {
	return validateStruct("lot", l)
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want %s", s, DateLayout)
	}
	return t, nil
}

// FormatDate renders a date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// NormalizeText trims surrounding space and applies Unicode NFC.
func NormalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
