package quota

// =============================================================================
// USAGE AGGREGATOR
// =============================================================================

// UsageRecord is the slice of a leave request the aggregator needs.
type UsageRecord struct {
	InstructorID string
	StartDate    string
	EndDate      string
	Approved     bool
}

// UsageTable maps instructor id -> period key -> working days used.
// It is rebuilt from scratch for every computation.
type UsageTable map[string]map[string]int

// Used returns the days recorded for instructorID in period, or 0.
func (t UsageTable) Used(instructorID, period string) int {
	return t[instructorID][period]
}

func (t UsageTable) add(instructorID, period string, days int) {
	byPeriod, ok := t[instructorID]
	if !ok {
		byPeriod = make(map[string]int)
		t[instructorID] = byPeriod
	}
	byPeriod[period] += days
}

// AggregateUsage sums working days of approved requests per instructor and
// period. The whole request is attributed to the period of its start date,
// even when it runs into the next period.
//
// Records that are not approved, or whose dates are missing or unreadable,
// contribute nothing.
func AggregateUsage(records []UsageRecord, policy Policy) UsageTable {
	table := make(UsageTable)
	for _, r := range records {
		if !r.Approved || r.StartDate == "" || r.EndDate == "" {
			continue
		}
		start, end := NormalizeDate(r.StartDate), NormalizeDate(r.EndDate)
		if !start.IsValid() || !end.IsValid() {
			continue
		}
		period := PeriodKeyFor(start, policy.QuotaType)
		table.add(r.InstructorID, period, CountWorkingDaysBetween(start, end, policy.WorkingDays))
	}
	return table
}
