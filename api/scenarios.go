/*
scenarios.go - Demo data sets for the leave dashboard

PURPOSE:

	Provides pre-built academies that populate the store with a roster, a
	policy and a spread of leave requests, so every view (table, calendar,
	summary, exports) has something to show.

AVAILABLE SCENARIOS:

	academy-term:       Yearly quota, default allocations, mixed statuses
	quarterly-crunch:   Quarterly quota with small allocations; limits reached
	sunday-week:        Monthly quota, Sunday-Thursday week, custom job titles
	legacy-import:      Requests imported with messy and unreadable dates

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Save the policy (YAML document via the policy factory)
 3. Save the roster
 4. Submit requests through the service, then approve/reject/cancel some
 5. legacy-import writes some rows straight to the store, bypassing
    submission checks, the way an old spreadsheet import would

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "quarterly-crunch"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/academy-leave/leave"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	load func(ctx context.Context, h *Handler) error
}

// scenarioRequest is a request to submit, plus the decision applied after.
type scenarioRequest struct {
	draft    leave.Draft
	decision leave.Status
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "academy-term",
			Name:        "Academy Term",
			Description: "Yearly quota with the default junior/senior/managers allocations and requests in every status",
		},
		load: loadAcademyTerm,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "quarterly-crunch",
			Name:        "Quarterly Crunch",
			Description: "Quarterly quota with small allocations; several instructors reach their limit",
		},
		load: loadQuarterlyCrunch,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "sunday-week",
			Name:        "Sunday-Thursday Week",
			Description: "Monthly quota on a Sunday-Thursday week with exact job-title allocations",
		},
		load: loadSundayWeek,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "legacy-import",
			Name:        "Legacy Import",
			Description: "Requests imported from a spreadsheet with mixed date formats, some unreadable",
		},
		load: loadLegacyImport,
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s.ScenarioDTO)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads the requested scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.loadScenario(r.Context(), req.ScenarioID); err != nil {
		h.writeServiceError(w, r, "Failed to load scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"scenario": req.ScenarioID,
	})
}

// ResetStore clears all data.
func (h *Handler) ResetStore(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		h.writeServiceError(w, r, "Failed to reset store", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) loadScenario(ctx context.Context, id string) error {
	var found *scenario
	for i := range scenarios {
		if scenarios[i].ID == id {
			found = &scenarios[i]
		}
	}
	if found == nil {
		return fmt.Errorf("scenario %q: %w", id, leave.ErrNotFound)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.reset(ctx); err != nil {
		return err
	}
	if err := found.load(ctx, h); err != nil {
		return fmt.Errorf("load scenario %s: %w", id, err)
	}
	h.currentScenario = id
	h.logger.Info("scenario loaded", "scenario", id)
	return nil
}

func (h *Handler) reset(ctx context.Context) error {
	rs, ok := h.Store.(leave.Resetter)
	if !ok {
		return fmt.Errorf("store %T cannot be reset", h.Store)
	}
	return rs.Reset(ctx)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadAcademyTerm(ctx context.Context, h *Handler) error {
	policy := `
quota_type: Yearly Quota
allocations:
  junior: 12
  senior: 16
  managers: 20
working_days: [mon, tue, wed, thu, fri]
`
	roster := []leave.Instructor{
		{ID: "ins-001", Name: "Amara Okafor", Email: "amara@academy.test", JobLevel: "Junior Instructor", ContractType: "Fixed-term", EmploymentType: "Full-time"},
		{ID: "ins-002", Name: "Bruno Silva", Email: "bruno@academy.test", JobLevel: "Senior Trainer", ContractType: "Permanent", EmploymentType: "Full-time"},
		{ID: "ins-003", Name: "Chen Wei", Email: "chen@academy.test", JobLevel: "Operations Manager", ContractType: "Permanent", EmploymentType: "Full-time"},
		{ID: "ins-004", Name: "Dana Novak", Email: "dana@academy.test", JobLevel: "Coordinator", ContractType: "Contractor", EmploymentType: "Part-time"},
	}
	requests := []scenarioRequest{
		{draft: leave.Draft{InstructorID: "ins-001", LeaveType: "Annual", StartDate: "2025-01-13", EndDate: "2025-01-17"}, decision: leave.StatusApproved},
		{draft: leave.Draft{InstructorID: "ins-001", LeaveType: "Sick", StartDate: "2025-03-03", EndDate: "2025-03-04"}, decision: leave.StatusApproved},
		{draft: leave.Draft{InstructorID: "ins-001", LeaveType: "Annual", StartDate: "2025-06-02", EndDate: "2025-06-06", Status: leave.StatusPending}},
		{draft: leave.Draft{InstructorID: "ins-002", LeaveType: "Annual", StartDate: "2025-02-10", EndDate: "2025-02-21"}, decision: leave.StatusApproved},
		{draft: leave.Draft{InstructorID: "ins-002", LeaveType: "Training", StartDate: "2025-04-07", EndDate: "2025-04-08"}, decision: leave.StatusRejected},
		{draft: leave.Draft{InstructorID: "ins-003", LeaveType: "Annual", StartDate: "2025-05-05", EndDate: "2025-05-09"}, decision: leave.StatusApproved},
		{draft: leave.Draft{InstructorID: "ins-003", LeaveType: "Annual", StartDate: "2025-07-14", EndDate: "2025-07-18"}, decision: leave.StatusCancelled},
		{draft: leave.Draft{InstructorID: "ins-004", LeaveType: "Personal", StartDate: "2025-03-10", EndDate: "2025-03-11", Status: leave.StatusPending}},
	}
	return h.seed(ctx, policy, roster, requests)
}

func loadQuarterlyCrunch(ctx context.Context, h *Handler) error {
	policy := `
quota_type: Quarterly Quota
allocations:
  junior: 3
  senior: 4
  managers: 5
working_days: [1, 2, 3, 4, 5]
`
	roster := []leave.Instructor{
		{ID: "ins-101", Name: "Elif Demir", JobLevel: "junior"},
		{ID: "ins-102", Name: "Farid Haddad", JobLevel: "Senior Instructor"},
		{ID: "ins-103", Name: "Grace Lin", JobLevel: "Program Manager"},
	}
	requests := []scenarioRequest{
		// Q1: Elif uses all 3 days, then a pending request past the limit
		{draft: leave.Draft{InstructorID: "ins-101", LeaveType: "Annual", StartDate: "2025-01-06", EndDate: "2025-01-08"}, decision: leave.StatusApproved},
		{draft: leave.Draft{InstructorID: "ins-101", LeaveType: "Annual", StartDate: "2025-02-03", EndDate: "2025-02-04", Status: leave.StatusPending}},
		// a new quarter starts from zero
		{draft: leave.Draft{InstructorID: "ins-101", LeaveType: "Annual", StartDate: "2025-04-01", EndDate: "2025-04-01"}, decision: leave.StatusApproved},
		// spans Q1/Q2, counted entirely in Q1
		{draft: leave.Draft{InstructorID: "ins-102", LeaveType: "Annual", StartDate: "2025-03-27", EndDate: "2025-04-02"}, decision: leave.StatusApproved},
		{draft: leave.Draft{InstructorID: "ins-103", LeaveType: "Conference", StartDate: "2025-02-17", EndDate: "2025-02-19"}, decision: leave.StatusApproved},
		{draft: leave.Draft{InstructorID: "ins-103", LeaveType: "Annual", StartDate: "2025-03-20", EndDate: "2025-03-21", Status: leave.StatusDraft}},
	}
	return h.seed(ctx, policy, roster, requests)
}

func loadSundayWeek(ctx context.Context, h *Handler) error {
	policy := `
quota_type: Monthly Quota
allocations:
  Head of Studies: 4
  Lab Technician: 2
  junior: 1
  senior: 2
working_days: [sun, mon, tue, wed, thu]
`
	roster := []leave.Instructor{
		{ID: "ins-201", Name: "Hana Yusuf", JobLevel: "Head of Studies"},
		{ID: "ins-202", Name: "Idris Rahman", JobLevel: "lab technician "},
		{ID: "ins-203", Name: "Jana Kovac", JobLevel: "Junior Tutor"},
	}
	requests := []scenarioRequest{
		// Thu 2025-03-06 .. Sun 2025-03-09: Thu + Sun are working days
		{draft: leave.Draft{InstructorID: "ins-201", LeaveType: "Annual", StartDate: "2025-03-06", EndDate: "2025-03-09"}, decision: leave.StatusApproved},
		{draft: leave.Draft{InstructorID: "ins-202", LeaveType: "Annual", StartDate: "2025-03-16", EndDate: "2025-03-17"}, decision: leave.StatusApproved},
		{draft: leave.Draft{InstructorID: "ins-203", LeaveType: "Sick", StartDate: "2025-03-11", EndDate: "2025-03-11"}, decision: leave.StatusApproved},
		{draft: leave.Draft{InstructorID: "ins-203", LeaveType: "Annual", StartDate: "2025-03-24", EndDate: "2025-03-24", Status: leave.StatusPending}},
	}
	return h.seed(ctx, policy, roster, requests)
}

func loadLegacyImport(ctx context.Context, h *Handler) error {
	policy := `
quota_type: Yearly Quota
allocations:
  junior: 12
  senior: 16
  managers: 20
working_days: [mon, tue, wed, thu, fri]
`
	roster := []leave.Instructor{
		{ID: "ins-301", Name: "Kofi Mensah", JobLevel: "Senior Trainer"},
		{ID: "ins-302", Name: "Lucia Romero", JobLevel: "Junior Instructor"},
	}
	if err := h.seed(ctx, policy, roster, nil); err != nil {
		return err
	}

	imported := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
	rows := []leave.Request{
		{ID: "legacy-1", InstructorID: "ins-301", LeaveType: "Annual", StartDate: "3rd March 2025", EndDate: "7th March 2025", Status: leave.StatusApproved},
		{ID: "legacy-2", InstructorID: "ins-301", LeaveType: "Annual", StartDate: "14/04/2025", EndDate: "15/04/2025", Status: leave.StatusApproved},
		{ID: "legacy-3", InstructorID: "ins-302", LeaveType: "Annual", StartDate: "02-Jun-2025", EndDate: "04-Jun-2025", Status: leave.StatusApproved},
		{ID: "legacy-4", InstructorID: "ins-302", LeaveType: "Sick", StartDate: "sometime in May", EndDate: "2025-05-09", Status: leave.StatusApproved},
		{ID: "legacy-5", InstructorID: "ins-302", LeaveType: "Annual", StartDate: "2025-02-30", EndDate: "2025-03-02", Status: leave.StatusPending},
		{ID: "legacy-6", InstructorID: "ins-301", LeaveType: "Annual", StartDate: "25/12/25", EndDate: "26/12/25", Status: leave.StatusApproved},
	}
	for i, r := range rows {
		r.CreatedAt = imported.Add(time.Duration(i) * time.Minute)
		r.UpdatedAt = r.CreatedAt
		if err := h.Store.SaveRequest(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// seed saves policy, roster and requests through the service.
func (h *Handler) seed(ctx context.Context, policyYAML string, roster []leave.Instructor, requests []scenarioRequest) error {
	p, err := h.PolicyFactory.ParsePolicyYAML([]byte(policyYAML))
	if err != nil {
		return err
	}
	if _, err := h.Service.UpdatePolicy(ctx, p); err != nil {
		return err
	}
	for _, ins := range roster {
		if _, err := h.Service.SaveInstructor(ctx, ins); err != nil {
			return err
		}
	}
	for _, sr := range requests {
		sub, err := h.Service.Submit(ctx, sr.draft)
		if err != nil {
			return fmt.Errorf("submit %s %s: %w", sr.draft.InstructorID, sr.draft.StartDate, err)
		}
		if err := h.decide(ctx, sub.Request.ID, sr.decision); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) decide(ctx context.Context, id string, decision leave.Status) error {
	var err error
	switch decision {
	case leave.StatusApproved:
		_, err = h.Service.Approve(ctx, id)
	case leave.StatusRejected:
		_, err = h.Service.Reject(ctx, id)
	case leave.StatusCancelled:
		if _, err = h.Service.Approve(ctx, id); err == nil {
			_, err = h.Service.Cancel(ctx, id)
		}
	}
	return err
}
