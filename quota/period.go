package quota

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// QUOTA TYPE - Accounting cadence
// =============================================================================

// QuotaType is the cadence at which allocations reset.
type QuotaType string

const (
	QuotaMonthly   QuotaType = "Monthly Quota"
	QuotaQuarterly QuotaType = "Quarterly Quota"
	QuotaYearly    QuotaType = "Yearly Quota"
)

// ParseQuotaType reads the editor's cadence label ("Monthly Quota",
// "quarterly", "YEARLY"). Anything unrecognized is treated as yearly.
func ParseQuotaType(label string) QuotaType {
	l := strings.ToLower(strings.TrimSpace(label))
	switch {
	case strings.Contains(l, "month"):
		return QuotaMonthly
	case strings.Contains(l, "quarter"):
		return QuotaQuarterly
	default:
		return QuotaYearly
	}
}

// =============================================================================
// PERIOD KEY RESOLVER
// =============================================================================

// InvalidPeriodKey is the key produced for dates that failed to normalize.
// Callers skip accumulation for such dates instead of bucketing them here.
const InvalidPeriodKey = "Invalid Date"

// PeriodKey normalizes date and returns its bucket key under quotaType.
func PeriodKey(date string, quotaType QuotaType) string {
	return PeriodKeyFor(NormalizeDate(date), quotaType)
}

// PeriodKeyFor returns "2025-03", "2025-Q1" or "2025" depending on cadence.
func PeriodKeyFor(d Date, quotaType QuotaType) string {
	if !d.IsValid() {
		return InvalidPeriodKey
	}
	switch ParseQuotaType(string(quotaType)) {
	case QuotaMonthly:
		return fmt.Sprintf("%d-%02d", d.Year, int(d.Month))
	case QuotaQuarterly:
		quarter := (int(d.Month)-1)/3 + 1
		return fmt.Sprintf("%d-Q%d", d.Year, quarter)
	default:
		return fmt.Sprintf("%d", d.Year)
	}
}

// PeriodBounds returns the first and last day of the bucket containing d.
func PeriodBounds(d Date, quotaType QuotaType) (Date, Date) {
	if !d.IsValid() {
		return InvalidDate, InvalidDate
	}
	switch ParseQuotaType(string(quotaType)) {
	case QuotaMonthly:
		start := NewDate(d.Year, d.Month, 1)
		return start, DateOf(start.Time().AddDate(0, 1, -1))
	case QuotaQuarterly:
		first := ((int(d.Month)-1)/3)*3 + 1
		start := NewDate(d.Year, time.Month(first), 1)
		return start, DateOf(start.Time().AddDate(0, 3, -1))
	default:
		return NewDate(d.Year, time.January, 1), NewDate(d.Year, time.December, 31)
	}
}
