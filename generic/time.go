/*
Package generic provides the domain-free building blocks of the allowance engine.

KEY CONCEPTS IN THIS FILE (time.go):
  - Date:  A calendar day with no time component (always UTC midnight)
  - Month: A (year, month) pair, the unit every calculation runs over

All comparisons are made at day granularity. Nothing in this package
reads the wall clock except Today(), which only callers choosing a
month to display should use.

SEE ALSO:
  - period.go: Inclusive date ranges
  - errors.go: Sentinel and structured errors
  - cache.go:  Expiring key-value cache used by the service boundary
*/
package generic

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of a Date.
const DateLayout = "2006-01-02"

// MonthLayout is the wire format of a Month.
const MonthLayout = "2006-01"

// =============================================================================
// DATE - Day granularity calendar date
// =============================================================================

// Date is a calendar day. The zero value means "unset".
type Date struct {
	t time.Time
}

// NewDate returns the date for year/month/day. Out of range values are
// normalized the same way time.Date does (Jan 32 -> Feb 1).
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses "YYYY-MM-DD". A full RFC3339 timestamp is accepted too,
// since some stores hand dates back with a time component.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return DateOf(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q (use YYYY-MM-DD)", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// MustParseDate is ParseDate for literals in tests and presets.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Today returns the current date in local time.
func Today() Date {
	return DateOf(time.Now())
}

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Properties
func (d Date) Year() int              { return d.t.Year() }
func (d Date) Month() time.Month      { return d.t.Month() }
func (d Date) Day() int               { return d.t.Day() }
func (d Date) Weekday() time.Weekday  { return d.t.Weekday() }
func (d Date) IsZero() bool           { return d.t.IsZero() }
func (d Date) Time() time.Time        { return d.t }
func (d Date) MonthOf() Month         { return Month{Year: d.Year(), Month: d.Month()} }
func (d Date) IsSunday() bool         { return d.Weekday() == time.Sunday }
func (d Date) IsSaturday() bool       { return d.Weekday() == time.Saturday }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

// MarshalJSON encodes the date as "YYYY-MM-DD", or null when unset.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts "YYYY-MM-DD", "" and null.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil || *s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(*s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// MONTH - The calculation unit
// =============================================================================

// Month identifies a calendar month. Month is 1-indexed (time.January == 1).
type Month struct {
	Year  int
	Month time.Month
}

// NewMonth builds a Month and validates it.
func NewMonth(year int, month time.Month) (Month, error) {
	m := Month{Year: year, Month: month}
	return m, m.Validate()
}

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(MonthLayout, strings.TrimSpace(s))
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q (use YYYY-MM)", ErrInvalidMonth, s)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// CurrentMonth returns the month containing today.
func CurrentMonth() Month {
	return Today().MonthOf()
}

// Validate rejects months outside 1..12 and years outside 1..9999.
func (m Month) Validate() error {
	if m.Month < time.January || m.Month > time.December {
		return fmt.Errorf("%w: month %d", ErrInvalidMonth, m.Month)
	}
	if m.Year < 1 || m.Year > 9999 {
		return fmt.Errorf("%w: year %d", ErrInvalidMonth, m.Year)
	}
	return nil
}

// FirstDay returns day 1 of the month.
func (m Month) FirstDay() Date { return NewDate(m.Year, m.Month, 1) }

// LastDay returns the last day of the month, leap years included.
func (m Month) LastDay() Date { return NewDate(m.Year, m.Month+1, 0) }

// Days returns the number of days in the month.
func (m Month) Days() int { return m.LastDay().Day() }

// Period returns [FirstDay, LastDay].
func (m Month) Period() Period { return Period{Start: m.FirstDay(), End: m.LastDay()} }

// Contains reports whether d falls inside the month.
func (m Month) Contains(d Date) bool { return d.Year() == m.Year && d.Month() == m.Month }

// Next and Prev step one month forward or back.
func (m Month) Next() Month { return NewDate(m.Year, m.Month+1, 1).MonthOf() }
func (m Month) Prev() Month { return NewDate(m.Year, m.Month-1, 1).MonthOf() }

func (m Month) String() string { return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month)) }

// MarshalJSON encodes the month as "YYYY-MM".
func (m Month) MarshalJSON() ([]byte, error) { return json.Marshal(m.String()) }

// UnmarshalJSON decodes "YYYY-MM".
func (m *Month) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseMonth(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

// DaysInMonth returns the day count of year/month.
func DaysInMonth(year int, month time.Month) int {
	return Month{Year: year, Month: month}.Days()
}

// CountWeekday counts occurrences of wd in the inclusive range [from, to].
func CountWeekday(from, to Date, wd time.Weekday) int {
	n := 0
	for d := from; d.BeforeOrEqual(to); d = d.AddDays(1) {
		if d.Weekday() == wd {
			n++
		}
	}
	return n
}
