/*
Package quota computes leave usage and remaining balances.

PURPOSE:
  Every screen that shows leave numbers (submission form, request table,
  grid, calendar, detail dialog, CSV export) must agree on them. This
  package is the one place those numbers are computed. It is a set of pure
  functions over in-memory inputs: no I/O, no clock, no shared state.

PIPELINE:
  requests + policy
      -> NormalizeDate            (date.go)
      -> CountWorkingDays         (workdays.go)
      -> PeriodKey                (period.go)
      -> AggregateUsage           (usage.go)     UsageTable
  label + policy
      -> LimitFor                 (allocation.go)
  candidate + policy + UsageTable
      -> Evaluate                 (balance.go)   Balance

FAILURE MODEL:
  Nothing here returns an error. Unreadable dates and inverted ranges count
  as zero working days; an unknown allocation is reported as unknown
  (LimitKnown == false), never as zero.

USAGE:
  table := quota.AggregateUsage(records, policy)
  bal := quota.Evaluate(quota.Candidate{
      InstructorID:  "ins-7",
      JobLevel:      "Senior Staff",
      ReferenceDate: "2025-03-10",
      Days:          3,
  }, policy, table)
*/
package quota

import (
	"sort"
	"time"
)

// =============================================================================
// POLICY - Supplied fresh on every computation
// =============================================================================

// Policy is the academy-wide leave configuration. The engine only reads it.
type Policy struct {
	QuotaType   QuotaType
	Allocations map[string]int // free-form role label -> days per period
	WorkingDays []time.Weekday // empty means every day counts
}

// Standard keyword allocation keys used by the fallback in LimitFor.
const (
	AllocationJunior   = "junior"
	AllocationSenior   = "senior"
	AllocationManagers = "managers"
)

// DefaultPolicy is a yearly cadence, Monday to Friday, with the three
// keyword allocations filled in.
func DefaultPolicy() Policy {
	return Policy{
		QuotaType: QuotaYearly,
		Allocations: map[string]int{
			AllocationJunior:   12,
			AllocationSenior:   16,
			AllocationManagers: 20,
		},
		WorkingDays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
	}
}

// Clone returns a deep copy, so editors can mutate without touching a
// policy that a computation is still reading.
func (p Policy) Clone() Policy {
	c := Policy{QuotaType: p.QuotaType}
	if p.Allocations != nil {
		c.Allocations = make(map[string]int, len(p.Allocations))
		for k, v := range p.Allocations {
			c.Allocations[k] = v
		}
	}
	if p.WorkingDays != nil {
		c.WorkingDays = append([]time.Weekday(nil), p.WorkingDays...)
	}
	return c
}

// EffectiveWorkingDays returns the sorted, de-duplicated working-day set
// after the empty-means-every-day fallback.
func (p Policy) EffectiveWorkingDays() []time.Weekday {
	mask := maskOf(p.WorkingDays)
	out := make([]time.Weekday, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if mask.has(d) {
			out = append(out, d)
		}
	}
	return out
}

// AllocationLabels returns the allocation keys in lexicographic order.
func (p Policy) AllocationLabels() []string {
	labels := make([]string, 0, len(p.Allocations))
	for k := range p.Allocations {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	return labels
}
