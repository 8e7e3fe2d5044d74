package quota

import "strconv"

// =============================================================================
// BALANCE CALCULATOR
// =============================================================================

// Candidate is a leave request being evaluated, approved or not.
type Candidate struct {
	InstructorID  string
	JobLevel      string
	ReferenceDate string // selects the period; usually the request's start date
	Days          int    // the candidate's own working-day count
}

// Balance is the projection of approving a candidate.
//
// Remaining is 0 and LimitReached false when the limit is unknown: an
// unknown cap never blocks anything.
type Balance struct {
	Period       string
	Used         int // approved usage already recorded in Period
	Limit        int
	LimitKnown   bool
	Remaining    int
	LimitReached bool
}

// Evaluate computes the remaining balance if c were approved. It reads the
// usage table and never writes to it.
func Evaluate(c Candidate, policy Policy, usage UsageTable) Balance {
	period := PeriodKey(c.ReferenceDate, policy.QuotaType)
	b := Balance{
		Period: period,
		Used:   usage.Used(c.InstructorID, period),
	}

	limit, known := LimitFor(c.JobLevel, policy.Allocations)
	if !known {
		return b
	}
	b.Limit, b.LimitKnown = limit, true
	b.Remaining = max(0, limit-b.Used-c.Days)
	b.LimitReached = b.Remaining == 0
	return b
}

// UsageCell renders "used/limit", or "used/?" when the limit is unknown.
func UsageCell(used, limit int, known bool) string {
	if !known {
		return strconv.Itoa(used) + "/?"
	}
	return strconv.Itoa(used) + "/" + strconv.Itoa(limit)
}

// Cell renders b's usage the way exports and tables show it.
func (b Balance) Cell() string {
	return UsageCell(b.Used, b.Limit, b.LimitKnown)
}

// LimitLabel renders the limit, or "?" when unknown.
func (b Balance) LimitLabel() string {
	if !b.LimitKnown {
		return "?"
	}
	return strconv.Itoa(b.Limit)
}
