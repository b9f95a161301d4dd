// Package calendar implements the time calendar (spec C2): conversion
// between a store's wall-clock epoch and the integer hour-index axis.
//
// Open question (spec §9, "time-zone portability"): resolved here per the
// spec's option (a) — every datetime this package parses is interpreted as
// UTC wall-clock, never the process-local zone. Both the façade and the
// ingestion pipeline's bulk-mode producers route through this package, so
// the hour arithmetic is computed in exactly one place (spec §9's "porters
// should consolidate to a single implementation").
package calendar

import (
	"errors"
	"fmt"
	"time"
)

// Layout is the fixed datetime format the store accepts (spec §3).
const Layout = "2006-01-02 15:04:05"

// ErrBeforeEpoch is returned when a datetime resolves to a negative hour-index.
var ErrBeforeEpoch = errors.New("calendar: datetime precedes store epoch")

// Calendar converts between datetime strings and hour-indices for one
// store's epoch attribute.
type Calendar struct {
	epochStr string
	epoch    time.Time
}

// New parses epochStr (format Layout) as UTC wall-clock and returns a
// Calendar anchored to it.
func New(epochStr string) (*Calendar, error) {
	t, err := time.ParseInLocation(Layout, epochStr, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("calendar: invalid epoch %q: %w", epochStr, err)
	}
	return &Calendar{epochStr: epochStr, epoch: t}, nil
}

// Epoch returns the store's epoch attribute string, unchanged since
// creation (spec I4).
func (c *Calendar) Epoch() string {
	return c.epochStr
}

// ToIndex parses s (format Layout) and returns its hour-index relative to
// the epoch. Per spec §4.2: seconds-difference is computed then divided by
// 3600 with floating-point division, truncated toward zero.
func (c *Calendar) ToIndex(s string) (int64, error) {
	t, err := time.ParseInLocation(Layout, s, time.UTC)
	if err != nil {
		return 0, fmt.Errorf("calendar: invalid datetime %q: %w", s, err)
	}
	return c.indexForTime(t)
}

func (c *Calendar) indexForTime(t time.Time) (int64, error) {
	diffSeconds := t.Sub(c.epoch).Seconds()
	idx := int64(diffSeconds / 3600.0)
	if idx < 0 {
		return 0, fmt.Errorf("%w: %s", ErrBeforeEpoch, t.Format(Layout))
	}
	return idx, nil
}

// FromIndex formats the datetime idx hours after the epoch.
func (c *Calendar) FromIndex(idx int64) string {
	t := c.epoch.Add(time.Duration(idx) * time.Hour)
	return t.Format(Layout)
}

// ParseFields parses a CSV record's (date, time) pair — "YYYYMMDD" and
// "HHMM" (spec §3/§6) — into a UTC time.Time. Both streaming-mode
// (ToIndexFields) and bulk-mode (RowInYear) ingestion go through this one
// parser, so there is exactly one place that understands the field
// encoding (spec §9: bulk mode must not duplicate this arithmetic).
func ParseFields(date, clock string) (time.Time, error) {
	if len(date) != 8 || len(clock) != 4 {
		return time.Time{}, fmt.Errorf("calendar: malformed date/time fields %q %q", date, clock)
	}
	combined := fmt.Sprintf("%s-%s-%s %s:%s:00", date[0:4], date[4:6], date[6:8], clock[0:2], clock[2:4])
	t, err := time.ParseInLocation(Layout, combined, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("calendar: invalid date/time fields %q %q: %w", date, clock, err)
	}
	return t, nil
}

// ToIndexFields converts a CSV record's (date, time) fields directly to an
// hour-index, for streaming-mode ingestion.
func (c *Calendar) ToIndexFields(date, clock string) (int64, error) {
	t, err := ParseFields(date, clock)
	if err != nil {
		return 0, err
	}
	return c.indexForTime(t)
}

// RowInYear returns the calendar year and the zero-based row within that
// year (day-of-year*24 + hour-of-day) for a CSV record's (date, time)
// fields, for bulk-year ingestion mode (spec §4.6). HoursInYear reports
// whether that year is a leap year in hours (8784) or not (8760).
func RowInYear(date, clock string) (year int, row int, err error) {
	t, err := ParseFields(date, clock)
	if err != nil {
		return 0, 0, err
	}
	return t.Year(), (t.YearDay()-1)*24 + t.Hour(), nil
}

// HoursInYear returns 8784 for a leap year, 8760 otherwise.
func HoursInYear(year int) int {
	if isLeap(year) {
		return 8784
	}
	return 8760
}

func isLeap(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}
