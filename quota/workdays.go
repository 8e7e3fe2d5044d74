package quota

import "time"

// =============================================================================
// WORKING-DAY CALCULATOR
// =============================================================================

// AllWeekdays is the fallback working-day set: every day counts.
var AllWeekdays = []time.Weekday{
	time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
	time.Thursday, time.Friday, time.Saturday,
}

// weekdayMask is a 7-bit set indexed by time.Weekday.
type weekdayMask uint8

// maskOf builds the set, ignoring indices outside Sunday..Saturday.
// An empty result falls back to every day.
func maskOf(days []time.Weekday) weekdayMask {
	var m weekdayMask
	for _, d := range days {
		if d >= time.Sunday && d <= time.Saturday {
			m |= 1 << uint(d)
		}
	}
	if m == 0 {
		return 0x7f
	}
	return m
}

func (m weekdayMask) has(d time.Weekday) bool { return m&(1<<uint(d)) != 0 }

// CountWorkingDays counts the days in [start, end] whose weekday is in
// workingDays. Unreadable endpoints or end before start give 0.
func CountWorkingDays(start, end string, workingDays []time.Weekday) int {
	return CountWorkingDaysBetween(NormalizeDate(start), NormalizeDate(end), workingDays)
}

// CountWorkingDaysBetween is CountWorkingDays for already-normalized dates.
func CountWorkingDaysBetween(start, end Date, workingDays []time.Weekday) int {
	if !start.IsValid() || !end.IsValid() || end.Before(start) {
		return 0
	}
	mask := maskOf(workingDays)

	// Whole weeks contribute a fixed count; only the tail is walked.
	total := int((end.Time().Unix()-start.Time().Unix())/secondsPerDay) + 1
	perWeek := 0
	for d := time.Sunday; d <= time.Saturday; d++ {
		if mask.has(d) {
			perWeek++
		}
	}
	count := (total / 7) * perWeek

	wd := start.Weekday()
	for i := 0; i < total%7; i++ {
		if mask.has(wd) {
			count++
		}
		wd = (wd + 1) % 7
	}
	return count
}

const secondsPerDay = 24 * 60 * 60

// IsWorkingDay reports whether d falls on a working weekday.
func IsWorkingDay(d Date, workingDays []time.Weekday) bool {
	return d.IsValid() && maskOf(workingDays).has(d.Weekday())
}
