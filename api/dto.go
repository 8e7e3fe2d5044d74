/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain types from
  package leave and quota never leave the process as-is; every response
  goes through one of these.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Roster:     InstructorDTO, SaveInstructorRequest
  Balance:    BalanceDTO
  Requests:   DraftRequest, PreviewDTO, SubmissionDTO, RequestRowDTO
  Calendar:   CalendarDayDTO, CalendarEntryDTO
  Reports:    SummaryDTO
  Scenarios:  ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Request types carry go-playground/validator tags for shape checks
  (required, lengths, enums). Date parsing and roster lookups are the
  service's job and come back as leave.ValidationError.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/policy.go: PolicyJSON is the policy wire format
*/
package api

import (
	"strings"
	"time"

	"github.com/warp/academy-leave/leave"
	"github.com/warp/academy-leave/quota"
)

// =============================================================================
// ROSTER
// =============================================================================

// InstructorDTO represents a roster entry in API responses.
type InstructorDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	JobLevel       string `json:"job_level"`
	ContractType   string `json:"contract_type,omitempty"`
	EmploymentType string `json:"employment_type,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// SaveInstructorRequest creates or replaces a roster entry.
type SaveInstructorRequest struct {
	ID             string `json:"id" validate:"required,max=64"`
	Name           string `json:"name" validate:"required,max=200"`
	Email          string `json:"email" validate:"omitempty,email"`
	JobLevel       string `json:"job_level" validate:"max=100"`
	ContractType   string `json:"contract_type" validate:"max=100"`
	EmploymentType string `json:"employment_type" validate:"max=100"`
}

func toInstructorDTO(i leave.Instructor) InstructorDTO {
	dto := InstructorDTO{
		ID:             i.ID,
		Name:           i.Name,
		Email:          i.Email,
		JobLevel:       i.JobLevel,
		ContractType:   i.ContractType,
		EmploymentType: i.EmploymentType,
	}
	if !i.CreatedAt.IsZero() {
		dto.CreatedAt = i.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// BALANCE
// =============================================================================

// BalanceDTO is one balance as every view shows it. Limit is null when no
// allocation matches the job level.
type BalanceDTO struct {
	Period       string `json:"period"`
	Used         int    `json:"used"`
	Limit        *int   `json:"limit"`
	Remaining    int    `json:"remaining"`
	LimitReached bool   `json:"limit_reached"`
	Usage        string `json:"usage"`
}

func toBalanceDTO(b quota.Balance) BalanceDTO {
	dto := BalanceDTO{
		Period:       b.Period,
		Used:         b.Used,
		Remaining:    b.Remaining,
		LimitReached: b.LimitReached,
		Usage:        b.Cell(),
	}
	if b.LimitKnown {
		limit := b.Limit
		dto.Limit = &limit
	}
	return dto
}

// =============================================================================
// REQUESTS
// =============================================================================

// DraftRequest is the submission form body.
type DraftRequest struct {
	InstructorID string `json:"instructor_id" validate:"required,max=64"`
	LeaveType    string `json:"leave_type" validate:"max=100"`
	StartDate    string `json:"start_date" validate:"required,max=64"`
	EndDate      string `json:"end_date" validate:"required,max=64"`
	JobLevel     string `json:"job_level" validate:"max=100"`
	Reason       string `json:"reason" validate:"max=2000"`
	Status       string `json:"status" validate:"max=32"`
}

// toDraft reads status in any letter case. Unknown values are passed on
// upper-cased so the service rejects them with a field error.
func (d DraftRequest) toDraft() leave.Draft {
	status, ok := leave.ParseStatus(d.Status)
	if !ok {
		status = leave.Status(strings.ToUpper(strings.TrimSpace(d.Status)))
	}
	return leave.Draft{
		InstructorID: d.InstructorID,
		LeaveType:    d.LeaveType,
		StartDate:    d.StartDate,
		EndDate:      d.EndDate,
		JobLevel:     d.JobLevel,
		Reason:       d.Reason,
		Status:       status,
	}
}

// PreviewDTO is the submission form's live summary.
type PreviewDTO struct {
	StartDate   string     `json:"start_date"`
	EndDate     string     `json:"end_date"`
	WorkingDays int        `json:"working_days"`
	JobLevel    string     `json:"job_level"`
	Balance     BalanceDTO `json:"balance"`
}

func toPreviewDTO(p leave.Preview) PreviewDTO {
	return PreviewDTO{
		StartDate:   p.Start.String(),
		EndDate:     p.End.String(),
		WorkingDays: p.Days,
		JobLevel:    p.JobLevel,
		Balance:     toBalanceDTO(p.Balance),
	}
}

// SubmissionDTO is returned by a successful submit.
type SubmissionDTO struct {
	Request RequestDTO `json:"request"`
	Preview PreviewDTO `json:"preview"`
}

// RequestDTO is a stored request without computed fields.
type RequestDTO struct {
	ID           string `json:"id"`
	InstructorID string `json:"instructor_id"`
	LeaveType    string `json:"leave_type"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	Status       string `json:"status"`
	JobLevel     string `json:"job_level,omitempty"`
	Reason       string `json:"reason,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

func toRequestDTO(r leave.Request) RequestDTO {
	return RequestDTO{
		ID:           r.ID,
		InstructorID: r.InstructorID,
		LeaveType:    r.LeaveType,
		StartDate:    r.StartDate,
		EndDate:      r.EndDate,
		Status:       string(r.Status),
		JobLevel:     r.JobLevel,
		Reason:       r.Reason,
		CreatedAt:    r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    r.UpdatedAt.Format(time.RFC3339),
	}
}

// RequestRowDTO is one line of the request table/grid and the detail dialog.
// StartDate/EndDate are normalized (empty when unreadable); the raw input is
// in Request.
type RequestRowDTO struct {
	Request        RequestDTO `json:"request"`
	InstructorName string     `json:"instructor_name"`
	JobLevel       string     `json:"job_level"`
	StartDate      string     `json:"start_date"`
	EndDate        string     `json:"end_date"`
	WorkingDays    int        `json:"working_days"`
	Balance        BalanceDTO `json:"balance"`
	Utilization    *string    `json:"utilization_pct"`
}

func toRowDTO(r leave.Row) RequestRowDTO {
	dto := RequestRowDTO{
		Request:        toRequestDTO(r.Request),
		InstructorName: r.InstructorName,
		JobLevel:       r.JobLevel,
		StartDate:      dateString(r.Start),
		EndDate:        dateString(r.End),
		WorkingDays:    r.Days,
		Balance:        toBalanceDTO(r.Balance),
	}
	if r.Utilization != nil {
		s := r.Utilization.StringFixed(2)
		dto.Utilization = &s
	}
	return dto
}

func dateString(d quota.Date) string {
	if !d.IsValid() {
		return ""
	}
	return d.String()
}

// =============================================================================
// CALENDAR
// =============================================================================

// CalendarEntryDTO is one leave covering a calendar day.
type CalendarEntryDTO struct {
	RequestID      string `json:"request_id"`
	InstructorID   string `json:"instructor_id"`
	InstructorName string `json:"instructor_name"`
	LeaveType      string `json:"leave_type"`
	Status         string `json:"status"`
}

// CalendarDayDTO is one cell of the month view.
type CalendarDayDTO struct {
	Date    string             `json:"date"`
	Weekday string             `json:"weekday"`
	Working bool               `json:"working"`
	Entries []CalendarEntryDTO `json:"entries"`
}

func toCalendarDTO(days []leave.CalendarDay) []CalendarDayDTO {
	out := make([]CalendarDayDTO, len(days))
	for i, d := range days {
		entries := make([]CalendarEntryDTO, len(d.Entries))
		for j, e := range d.Entries {
			entries[j] = CalendarEntryDTO{
				RequestID:      e.RequestID,
				InstructorID:   e.InstructorID,
				InstructorName: e.InstructorName,
				LeaveType:      e.LeaveType,
				Status:         string(e.Status),
			}
		}
		out[i] = CalendarDayDTO{
			Date:    d.Date.String(),
			Weekday: d.Date.Weekday().String(),
			Working: d.Working,
			Entries: entries,
		}
	}
	return out
}

// =============================================================================
// REPORTS
// =============================================================================

// SummaryDTO is one instructor's standing in the reference period.
type SummaryDTO struct {
	Instructor  InstructorDTO `json:"instructor"`
	Balance     BalanceDTO    `json:"balance"`
	Utilization *string       `json:"utilization_pct"`
}

func toSummaryDTO(s leave.Summary) SummaryDTO {
	dto := SummaryDTO{
		Instructor: toInstructorDTO(s.Instructor),
		Balance:    toBalanceDTO(s.Balance),
	}
	if s.Utilization != nil {
		u := s.Utilization.StringFixed(2)
		dto.Utilization = &u
	}
	return dto
}

// =============================================================================
// SCENARIOS & ERRORS
// =============================================================================

// ScenarioDTO describes a demo data set.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request to load a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}
