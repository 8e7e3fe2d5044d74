/*
handlers.go - HTTP API handlers for the academy leave dashboard

PURPOSE:
  Exposes leave.Service via REST API. Handles HTTP request/response, JSON
  serialization and input shape validation, and delegates every number to
  the service. No handler computes usage or balance itself.

ENDPOINTS:
  Health:
    GET    /api/health                     Store connection check

  Roster:
    GET    /api/instructors                List instructors
    POST   /api/instructors                Create/replace instructor
    GET    /api/instructors/{id}/balance   Balance for ?date= and ?days=

  Policy:
    GET    /api/policy                     Current policy
    PUT    /api/policy                     Replace policy

  Requests:
    POST   /api/requests/preview           Submission form preview
    POST   /api/requests                   Submit
    GET    /api/requests                   Table/grid rows
    GET    /api/requests/{id}              Detail dialog
    POST   /api/requests/{id}/approve      Approve
    POST   /api/requests/{id}/reject       Reject
    POST   /api/requests/{id}/cancel       Cancel

  Views & exports:
    GET    /api/calendar/{year}/{month}    Month calendar
    GET    /api/reports/summary            Per-instructor summaries
    GET    /api/export/requests.csv        CSV export
    GET    /api/export/summary.pdf         PDF report

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed body, failed validation, invalid policy
  - 404: Request or instructor not found
  - 409: Status transition not allowed
  - 422: Date range has no working days
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/warp/academy-leave/export"
	"github.com/warp/academy-leave/factory"
	"github.com/warp/academy-leave/leave"
	"github.com/warp/academy-leave/quota"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service       *leave.Service
	Store         leave.Store
	PolicyFactory *factory.PolicyFactory

	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time

	mu              sync.Mutex
	currentScenario string
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the logger used for internal errors.
func WithHandlerLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

// WithHandlerClock overrides time.Now for default reference dates.
func WithHandlerClock(now func() time.Time) HandlerOption {
	return func(h *Handler) { h.now = now }
}

// NewHandler creates a handler over svc and the store it reads from. The
// store is needed directly only for scenario loading.
func NewHandler(svc *leave.Service, store leave.Store, opts ...HandlerOption) *Handler {
	h := &Handler{
		Service:       svc,
		Store:         store,
		PolicyFactory: factory.NewPolicyFactory(),
		validate:      newValidator(),
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// pinger is implemented by stores backed by a database connection.
type pinger interface {
	Ping(ctx context.Context) error
}

// Health reports 503 when the store's connection check fails. Stores without
// a connection are always healthy.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			h.logger.Error("store ping failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// ROSTER HANDLERS
// =============================================================================

// ListInstructors returns the roster.
func (h *Handler) ListInstructors(w http.ResponseWriter, r *http.Request) {
	instructors, err := h.Service.Instructors(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "Failed to list instructors", err)
		return
	}
	dtos := make([]InstructorDTO, len(instructors))
	for i, ins := range instructors {
		dtos[i] = toInstructorDTO(ins)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveInstructor creates or replaces a roster entry.
func (h *Handler) SaveInstructor(w http.ResponseWriter, r *http.Request) {
	var req SaveInstructorRequest
	if !h.decode(w, r, &req) {
		return
	}
	saved, err := h.Service.SaveInstructor(r.Context(), leave.Instructor{
		ID:             req.ID,
		Name:           req.Name,
		Email:          req.Email,
		JobLevel:       req.JobLevel,
		ContractType:   req.ContractType,
		EmploymentType: req.EmploymentType,
	})
	if err != nil {
		h.writeServiceError(w, r, "Failed to save instructor", err)
		return
	}
	writeJSON(w, http.StatusCreated, toInstructorDTO(saved))
}

// GetBalance evaluates an instructor for ?date= (today by default) as if
// ?days= more working days were approved.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	date := r.URL.Query().Get("date")
	if _, ok := quota.ParseDate(date); date != "" && !ok {
		writeError(w, http.StatusBadRequest, "Invalid date", fmt.Errorf("unrecognized date %q", date))
		return
	}
	days := 0
	if s := r.URL.Query().Get("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid days", fmt.Errorf("days must be a non-negative integer"))
			return
		}
		days = n
	}

	bal, err := h.Service.Balance(r.Context(), id, date, days)
	if err != nil {
		h.writeServiceError(w, r, "Failed to compute balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(bal))
}

// =============================================================================
// POLICY HANDLERS
// =============================================================================

// GetPolicy returns the policy in effect.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	p, err := h.Service.Policy(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "Failed to load policy", err)
		return
	}
	writeJSON(w, http.StatusOK, h.PolicyFactory.ToJSON(p))
}

// UpdatePolicy replaces the policy with the body (factory.PolicyJSON).
func (h *Handler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	var doc factory.PolicyJSON
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid policy document", err)
		return
	}
	p, err := h.PolicyFactory.FromJSON(doc)
	if err != nil {
		h.writeServiceError(w, r, "Invalid policy", err)
		return
	}
	saved, err := h.Service.UpdatePolicy(r.Context(), p)
	if err != nil {
		h.writeServiceError(w, r, "Failed to save policy", err)
		return
	}
	writeJSON(w, http.StatusOK, h.PolicyFactory.ToJSON(saved))
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// PreviewRequest computes the submission form summary without storing.
func (h *Handler) PreviewRequest(w http.ResponseWriter, r *http.Request) {
	var req DraftRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.Service.Preview(r.Context(), req.toDraft())
	if err != nil {
		h.writeServiceError(w, r, "Failed to preview request", err)
		return
	}
	writeJSON(w, http.StatusOK, toPreviewDTO(p))
}

// SubmitRequest stores a new request. Reaching the limit does not block it;
// the returned balance carries the flag.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req DraftRequest
	if !h.decode(w, r, &req) {
		return
	}
	sub, err := h.Service.Submit(r.Context(), req.toDraft())
	if err != nil {
		h.writeServiceError(w, r, "Failed to submit request", err)
		return
	}
	writeJSON(w, http.StatusCreated, SubmissionDTO{
		Request: toRequestDTO(sub.Request),
		Preview: toPreviewDTO(sub.Preview),
	})
}

// ListRequests returns table rows filtered by ?instructor=&status=&from=&to=.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}
	rows, err := h.Service.Rows(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, r, "Failed to list requests", err)
		return
	}
	dtos := make([]RequestRowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toRowDTO(row)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRequest returns the detail dialog for one request.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	row, err := h.Service.Detail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, "Failed to load request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRowDTO(row))
}

// ApproveRequest approves an open request.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.Approve)
}

// RejectRequest rejects an open request.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.Reject)
}

// CancelRequest cancels an open or approved request.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.Cancel)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) (*leave.Request, error)) {
	req, err := fn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, "Failed to update request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

func parseFilter(r *http.Request) (leave.Filter, error) {
	q := r.URL.Query()
	f := leave.Filter{
		InstructorID: q.Get("instructor"),
		From:         q.Get("from"),
		To:           q.Get("to"),
	}
	if s := q.Get("status"); s != "" {
		st, ok := leave.ParseStatus(s)
		if !ok {
			return f, fmt.Errorf("unknown status %q", s)
		}
		f.Status = st
	}
	for name, v := range map[string]string{"from": f.From, "to": f.To} {
		if _, ok := quota.ParseDate(v); v != "" && !ok {
			return f, fmt.Errorf("%s: unrecognized date %q", name, v)
		}
	}
	return f, nil
}

// =============================================================================
// VIEWS & EXPORTS
// =============================================================================

// GetCalendar lays out /api/calendar/{year}/{month}.
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "Invalid month", fmt.Errorf("month must be 1-12"))
		return
	}
	days, err := h.Service.Calendar(r.Context(), year, time.Month(month))
	if err != nil {
		h.writeServiceError(w, r, "Failed to build calendar", err)
		return
	}
	writeJSON(w, http.StatusOK, toCalendarDTO(days))
}

// GetSummary returns every instructor's standing for ?date= (today by default).
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	date, ok := h.referenceDate(w, r)
	if !ok {
		return
	}
	summaries, err := h.Service.Summaries(r.Context(), date)
	if err != nil {
		h.writeServiceError(w, r, "Failed to build summary", err)
		return
	}
	dtos := make([]SummaryDTO, len(summaries))
	for i, s := range summaries {
		dtos[i] = toSummaryDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ExportRequestsCSV streams the table rows as CSV, honoring the same filters
// as ListRequests.
func (h *Handler) ExportRequestsCSV(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}
	rows, err := h.Service.Rows(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, r, "Failed to export requests", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=leave-requests.csv")
	if err := export.WriteRequestsCSV(w, rows); err != nil {
		h.logger.Error("csv export failed", "error", err)
	}
}

// ExportSummaryPDF renders the summary report for ?date=.
func (h *Handler) ExportSummaryPDF(w http.ResponseWriter, r *http.Request) {
	date, ok := h.referenceDate(w, r)
	if !ok {
		return
	}
	summaries, err := h.Service.Summaries(r.Context(), date)
	if err != nil {
		h.writeServiceError(w, r, "Failed to build summary", err)
		return
	}
	policy, err := h.Service.Policy(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "Failed to load policy", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=leave-summary.pdf")
	err = export.WritePDF(w, export.Report{
		ReferenceDate: date,
		Policy:        policy,
		Summaries:     summaries,
		GeneratedAt:   h.now(),
	})
	if err != nil {
		h.logger.Error("pdf export failed", "error", err)
	}
}

// referenceDate reads ?date=, defaulting to today.
func (h *Handler) referenceDate(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		return quota.DateOf(h.now()).String(), true
	}
	d, ok := quota.ParseDate(date)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid date", fmt.Errorf("unrecognized date %q", date))
		return "", false
	}
	return d.String(), true
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads a JSON body into dst and runs struct validation. It writes
// the 400 response itself and returns false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Details: fields})
			return false
		}
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	var verr *leave.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Details: verr.Fields})
	case leave.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, leave.ErrInvalidTransition):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, leave.ErrNoWorkingDays):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	case leave.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.logger.ErrorContext(r.Context(), message, "error", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
