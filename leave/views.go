package leave

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/academy-leave/quota"
)

// =============================================================================
// TABLE / GRID / DETAIL ROWS
// =============================================================================

// Row is a request as the table, grid, detail dialog and CSV export show it.
//
// Balance is evaluated against the request's own start-date period. An
// approved request is already part of Used, so it is projected with zero
// candidate days; any other request is projected with its own days.
type Row struct {
	Request        Request
	InstructorName string
	JobLevel       string
	Start          quota.Date
	End            quota.Date
	Days           int
	Balance        quota.Balance
	Utilization    *decimal.Decimal // Used/Limit in percent; nil when unknown
}

// UsageCell is the "used/limit" text shown in tables and exports.
func (r Row) UsageCell() string { return r.Balance.Cell() }

// Filter narrows Rows. Zero fields match everything.
type Filter struct {
	InstructorID string
	Status       Status
	From         string // rows ending before From are dropped
	To           string // rows starting after To are dropped
}

// Rows aggregates usage once and evaluates every matching request.
// Rows are ordered by start date, then id; unreadable dates sort last.
func (s *Service) Rows(ctx context.Context, f Filter) ([]Row, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	from, to := quota.NormalizeDate(f.From), quota.NormalizeDate(f.To)

	rows := make([]Row, 0, len(snap.requests))
	for _, r := range snap.requests {
		if f.InstructorID != "" && r.InstructorID != f.InstructorID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		row := snap.row(r)
		if from.IsValid() && (!row.End.IsValid() || row.End.Before(from)) {
			continue
		}
		if to.IsValid() && (!row.Start.IsValid() || row.Start.After(to)) {
			continue
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Start.IsValid() != b.Start.IsValid() {
			return a.Start.IsValid()
		}
		if a.Start != b.Start {
			return a.Start.Before(b.Start)
		}
		return a.Request.ID < b.Request.ID
	})
	return rows, nil
}

// Detail is Rows scoped to a single request.
func (s *Service) Detail(ctx context.Context, id string) (Row, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return Row{}, err
	}
	for _, r := range snap.requests {
		if r.ID == id {
			return snap.row(r), nil
		}
	}
	return Row{}, fmt.Errorf("request %s: %w", id, ErrNotFound)
}

func (snap *snapshot) row(r Request) Row {
	start, end := quota.NormalizeDate(r.StartDate), quota.NormalizeDate(r.EndDate)
	days := quota.CountWorkingDaysBetween(start, end, snap.policy.WorkingDays)
	candidate := days
	if r.Status == StatusApproved {
		candidate = 0
	}
	jobLevel := jobLevelFor(r, snap.roster)
	bal := quota.Evaluate(quota.Candidate{
		InstructorID:  r.InstructorID,
		JobLevel:      jobLevel,
		ReferenceDate: r.StartDate,
		Days:          candidate,
	}, snap.policy, snap.usage)

	return Row{
		Request:        r,
		InstructorName: snap.roster[r.InstructorID].Name,
		JobLevel:       jobLevel,
		Start:          start,
		End:            end,
		Days:           days,
		Balance:        bal,
		Utilization:    utilization(bal),
	}
}

var hundred = decimal.NewFromInt(100)

// utilization is Used/Limit as a percentage rounded to 2 places.
func utilization(b quota.Balance) *decimal.Decimal {
	if !b.LimitKnown || b.Limit <= 0 {
		return nil
	}
	u := decimal.NewFromInt(int64(b.Used)).Mul(hundred).Div(decimal.NewFromInt(int64(b.Limit))).Round(2)
	return &u
}

// =============================================================================
// CALENDAR
// =============================================================================

// CalendarEntry is one request covering a calendar day.
type CalendarEntry struct {
	RequestID      string
	InstructorID   string
	InstructorName string
	LeaveType      string
	Status         Status
}

// CalendarDay is one cell of the month view.
type CalendarDay struct {
	Date    quota.Date
	Working bool
	Entries []CalendarEntry
}

// Calendar lays out every day of the month with the approved and still-open
// requests covering it. Rejected and cancelled requests are not shown.
func (s *Service) Calendar(ctx context.Context, year int, month time.Month) ([]CalendarDay, error) {
	first := quota.NewDate(year, month, 1)
	if !first.IsValid() {
		return nil, &ValidationError{Fields: map[string]string{"month": "invalid year or month"}}
	}
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	_, last := quota.PeriodBounds(first, quota.QuotaMonthly)
	days := make([]CalendarDay, 0, last.Day)
	for d := first; !d.After(last); d = d.AddDays(1) {
		days = append(days, CalendarDay{Date: d, Working: quota.IsWorkingDay(d, snap.policy.WorkingDays)})
	}

	for _, r := range snap.requests {
		if r.Status != StatusApproved && !r.Status.IsOpen() {
			continue
		}
		start, end := quota.NormalizeDate(r.StartDate), quota.NormalizeDate(r.EndDate)
		if !start.IsValid() || !end.IsValid() || end.Before(start) || end.Before(first) || start.After(last) {
			continue
		}
		entry := CalendarEntry{
			RequestID:      r.ID,
			InstructorID:   r.InstructorID,
			InstructorName: snap.roster[r.InstructorID].Name,
			LeaveType:      r.LeaveType,
			Status:         r.Status,
		}
		for i := range days {
			if !days[i].Date.Before(start) && !days[i].Date.After(end) {
				days[i].Entries = append(days[i].Entries, entry)
			}
		}
	}

	for i := range days {
		sort.Slice(days[i].Entries, func(a, b int) bool {
			return days[i].Entries[a].RequestID < days[i].Entries[b].RequestID
		})
	}
	return days, nil
}

// =============================================================================
// SUMMARIES (dashboard and PDF report)
// =============================================================================

// Summary is one instructor's standing in a period.
type Summary struct {
	Instructor  Instructor
	Balance     quota.Balance
	Utilization *decimal.Decimal
}

// Summaries evaluates every rostered instructor for the period containing
// referenceDate (today when empty), ordered by name then id.
func (s *Service) Summaries(ctx context.Context, referenceDate string) ([]Summary, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(referenceDate) == "" {
		referenceDate = quota.DateOf(s.now()).String()
	}

	out := make([]Summary, 0, len(snap.roster))
	for _, ins := range snap.roster {
		bal := quota.Evaluate(quota.Candidate{
			InstructorID:  ins.ID,
			JobLevel:      ins.JobLevel,
			ReferenceDate: referenceDate,
		}, snap.policy, snap.usage)
		out = append(out, Summary{Instructor: ins, Balance: bal, Utilization: utilization(bal)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Instructor.Name != out[j].Instructor.Name {
			return out[i].Instructor.Name < out[j].Instructor.Name
		}
		return out[i].Instructor.ID < out[j].Instructor.ID
	})
	return out, nil
}
