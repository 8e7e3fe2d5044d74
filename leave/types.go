// Package leave holds the academy's leave requests and roster, and the
// Service that every screen calls for leave numbers.
// The arithmetic itself lives in package quota.
package leave

import (
	"strings"
	"time"

	"github.com/warp/academy-leave/quota"
)

// =============================================================================
// REQUEST STATUS
// =============================================================================

// Status is a leave request's lifecycle state. Only StatusApproved counts
// toward usage.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

var allStatuses = []Status{StatusDraft, StatusPending, StatusApproved, StatusRejected, StatusCancelled}

// ParseStatus reads a status case-insensitively. "CANCELED" is accepted.
func ParseStatus(s string) (Status, bool) {
	up := Status(strings.ToUpper(strings.TrimSpace(s)))
	if up == "CANCELED" {
		return StatusCancelled, true
	}
	for _, st := range allStatuses {
		if st == up {
			return st, true
		}
	}
	return "", false
}

// IsOpen reports whether the request is still awaiting a decision.
func (s Status) IsOpen() bool { return s == StatusDraft || s == StatusPending }

// =============================================================================
// LEAVE REQUEST
// =============================================================================

// Request is one submitted leave. Dates are kept exactly as entered; the
// engine normalizes them on every computation.
type Request struct {
	ID           string
	InstructorID string
	LeaveType    string
	StartDate    string
	EndDate      string
	Status       Status
	JobLevel     string // optional override of the roster job level
	Reason       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UsageRecord projects r for the usage aggregator.
func (r Request) UsageRecord() quota.UsageRecord {
	return quota.UsageRecord{
		InstructorID: r.InstructorID,
		StartDate:    r.StartDate,
		EndDate:      r.EndDate,
		Approved:     r.Status == StatusApproved,
	}
}

func usageRecords(reqs []Request) []quota.UsageRecord {
	out := make([]quota.UsageRecord, len(reqs))
	for i, r := range reqs {
		out[i] = r.UsageRecord()
	}
	return out
}

// =============================================================================
// INSTRUCTOR (roster entry)
// =============================================================================

// Instructor is a staff member on the roster.
type Instructor struct {
	ID             string
	Name           string
	Email          string
	JobLevel       string
	ContractType   string
	EmploymentType string
	CreatedAt      time.Time
}

// jobLevelFor picks the request's own label, falling back to the roster.
func jobLevelFor(r Request, roster map[string]Instructor) string {
	if strings.TrimSpace(r.JobLevel) != "" {
		return r.JobLevel
	}
	return roster[r.InstructorID].JobLevel
}
