/*
date.go - Calendar dates and the date normalizer

PURPOSE:
  Leave requests arrive with dates typed by people and exported by other
  tools: "2025-03-10", "10/03/2025", "16-Oct-2025", "16th Oct 2025". Every
  other part of the engine works on a canonical calendar date, so this file
  is the single place where strings become dates.

KEY CONCEPTS:
  - Date: a (year, month, day) triple with no time-of-day and no zone
  - InvalidDate: the zero Date, returned whenever a string cannot be read
  - NormalizeDate: never panics, never returns an error, only InvalidDate

RECOGNIZED FORMATS (first match wins):
  1. YYYY-MM-DD, YYYY/MM/DD            (a trailing time part is ignored)
  2. DD-MM-YYYY, DD/MM/YYYY
  3. DD-MMM-YYYY, DD MMM YYYY          (month compared on its first 3 letters)
  4. 16th Oct 2025, 1st of October, 2025
  5. A short list of generic layouts (RFC3339, "January 2, 2006", ...)

  Two-digit years are never accepted.

SEE ALSO:
  - workdays.go: counts working days between two normalized dates
  - period.go: maps a normalized date to its accounting bucket
*/
package quota

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// DATE - Calendar day, no time-of-day
// =============================================================================

// Date is a calendar day. The zero value is InvalidDate.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// InvalidDate is the sentinel for strings that could not be normalized.
var InvalidDate = Date{}

// NewDate returns the date for year/month/day, or InvalidDate when the triple
// does not name a real calendar day (2025-02-30, month 13, ...).
func NewDate(year int, month time.Month, day int) Date {
	if year < 1 || month < time.January || month > time.December || day < 1 {
		return InvalidDate
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return InvalidDate
	}
	return Date{Year: year, Month: month, Day: day}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return InvalidDate
	}
	return NewDate(t.Year(), t.Month(), t.Day())
}

// IsValid reports whether d names a real calendar day.
func (d Date) IsValid() bool {
	return d != InvalidDate && NewDate(d.Year, d.Month, d.Day) == d
}

// Time returns midnight UTC on d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) Weekday() time.Weekday { return d.Time().Weekday() }
func (d Date) AddDays(n int) Date    { return DateOf(d.Time().AddDate(0, 0, n)) }
func (d Date) Before(o Date) bool    { return d.Time().Before(o.Time()) }
func (d Date) After(o Date) bool     { return d.Time().After(o.Time()) }

// String formats d as YYYY-MM-DD, or "Invalid Date".
func (d Date) String() string {
	if !d.IsValid() {
		return "Invalid Date"
	}
	return d.Time().Format("2006-01-02")
}

// =============================================================================
// NORMALIZER
// =============================================================================

var (
	isoPattern     = regexp.MustCompile(`^(\d{4})[-/](\d{1,2})[-/](\d{1,2})(?:[T\s].*)?$`)
	dmyPattern     = regexp.MustCompile(`^(\d{1,2})[-/](\d{1,2})[-/](\d{4})$`)
	namedPattern   = regexp.MustCompile(`^(\d{1,2})[-\s]+([A-Za-z]{3,})\.?[-\s,]+(\d{4})$`)
	ordinalPattern = regexp.MustCompile(`(?i)^(\d{1,2})(?:st|nd|rd|th)\s+(?:of\s+)?([a-z]{3,})\.?[\s,]+(\d{4})$`)
)

// fallbackLayouts are tried in order once the explicit patterns fail.
// Every layout carries a four-digit year.
var fallbackLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"Jan 2 2006",
	"Mon Jan 2 2006",
	"Monday, January 2, 2006",
	"2 January 2006",
	"2006.01.02",
	time.RFC1123,
	time.RFC1123Z,
}

var monthsByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// NormalizeDate reads s in any of the supported formats.
// It returns InvalidDate for empty or unreadable input.
func NormalizeDate(s string) Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return InvalidDate
	}

	if m := isoPattern.FindStringSubmatch(s); m != nil {
		return fromParts(m[1], m[2], m[3])
	}
	if m := dmyPattern.FindStringSubmatch(s); m != nil {
		return fromParts(m[3], m[2], m[1])
	}
	if m := namedPattern.FindStringSubmatch(s); m != nil {
		if d := fromNamedMonth(m[3], m[2], m[1]); d.IsValid() {
			return d
		}
	}
	if m := ordinalPattern.FindStringSubmatch(s); m != nil {
		if d := fromNamedMonth(m[3], m[2], m[1]); d.IsValid() {
			return d
		}
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t)
		}
	}
	return InvalidDate
}

// ParseDate is NormalizeDate with a comma-ok result.
func ParseDate(s string) (Date, bool) {
	d := NormalizeDate(s)
	return d, d.IsValid()
}

// MonthFromName resolves a month name by its first three letters.
func MonthFromName(name string) (time.Month, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if len(name) < 3 {
		return 0, false
	}
	m, ok := monthsByPrefix[name[:3]]
	return m, ok
}

func fromParts(year, month, day string) Date {
	y, err1 := strconv.Atoi(year)
	m, err2 := strconv.Atoi(month)
	d, err3 := strconv.Atoi(day)
	if err1 != nil || err2 != nil || err3 != nil {
		return InvalidDate
	}
	return NewDate(y, time.Month(m), d)
}

func fromNamedMonth(year, monthName, day string) Date {
	m, ok := MonthFromName(monthName)
	if !ok {
		return InvalidDate
	}
	return fromParts(year, strconv.Itoa(int(m)), day)
}
