/*
service.go - The leave service every screen calls through

PURPOSE:
  The submission form, request table, grid, calendar, detail dialog and
  exports all need the same numbers: working days, usage, limit, remaining.
  Service loads a fresh snapshot from the Store for each call, runs the
  quota engine once over it, and hands each view its projection. No view
  does its own arithmetic.

FLOW:
  1. load():     requests + roster + policy from the Store
  2. aggregate:  quota.AggregateUsage over all requests (approved only count)
  3. project:    quota.Evaluate per candidate/row

SUBMISSION RULES:
  - A range with zero working days is rejected (ErrNoWorkingDays).
  - Reaching the limit is NOT a rejection; the flag is returned and the
    request is stored anyway.

SEE ALSO:
  - views.go: table rows, detail, calendar, summaries
  - quota/: the engine
*/
package leave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/academy-leave/quota"
)

// Service computes and records leave for the academy.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides request id generation, for tests.
func WithIDGenerator(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

// NewService creates a service over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// snapshot is one consistent read of everything a computation needs.
type snapshot struct {
	requests []Request
	roster   map[string]Instructor
	policy   quota.Policy
	usage    quota.UsageTable
}

func (s *Service) load(ctx context.Context) (*snapshot, error) {
	policy, err := s.Policy(ctx)
	if err != nil {
		return nil, err
	}
	requests, err := s.store.ListRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	instructors, err := s.store.ListInstructors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list instructors: %w", err)
	}

	roster := make(map[string]Instructor, len(instructors))
	for _, i := range instructors {
		roster[i.ID] = i
	}
	for _, r := range requests {
		if r.Status == StatusApproved && (!quota.NormalizeDate(r.StartDate).IsValid() || !quota.NormalizeDate(r.EndDate).IsValid()) {
			s.logger.Debug("approved request has unreadable dates, contributes no usage",
				"request_id", r.ID, "start_date", r.StartDate, "end_date", r.EndDate)
		}
	}

	return &snapshot{
		requests: requests,
		roster:   roster,
		policy:   policy,
		usage:    quota.AggregateUsage(usageRecords(requests), policy),
	}, nil
}

// =============================================================================
// POLICY EDITOR
// =============================================================================

// Policy returns the stored policy, or quota.DefaultPolicy() if none is saved.
func (s *Service) Policy(ctx context.Context) (quota.Policy, error) {
	p, err := s.store.GetPolicy(ctx)
	if errors.Is(err, ErrNotFound) {
		return quota.DefaultPolicy(), nil
	}
	if err != nil {
		return quota.Policy{}, fmt.Errorf("get policy: %w", err)
	}
	return p.Clone(), nil
}

// UpdatePolicy validates and stores p. Labels are trimmed; the cadence label
// is canonicalized.
func (s *Service) UpdatePolicy(ctx context.Context, p quota.Policy) (quota.Policy, error) {
	clean, err := ValidatePolicy(p)
	if err != nil {
		return quota.Policy{}, err
	}
	if err := s.store.SavePolicy(ctx, clean); err != nil {
		return quota.Policy{}, fmt.Errorf("save policy: %w", err)
	}
	s.logger.Info("leave policy updated",
		"quota_type", clean.QuotaType, "allocations", len(clean.Allocations), "working_days", len(clean.WorkingDays))
	return clean, nil
}

// ValidatePolicy checks p and returns a cleaned copy.
func ValidatePolicy(p quota.Policy) (quota.Policy, error) {
	clean := quota.Policy{
		QuotaType:   quota.ParseQuotaType(string(p.QuotaType)),
		Allocations: make(map[string]int, len(p.Allocations)),
	}
	for label, days := range p.Allocations {
		label = strings.TrimSpace(label)
		if label == "" {
			return quota.Policy{}, fmt.Errorf("%w: empty allocation label", ErrInvalidPolicy)
		}
		if days < 0 {
			return quota.Policy{}, fmt.Errorf("%w: allocation %q is negative", ErrInvalidPolicy, label)
		}
		if _, dup := clean.Allocations[label]; dup {
			return quota.Policy{}, fmt.Errorf("%w: duplicate allocation label %q", ErrInvalidPolicy, label)
		}
		clean.Allocations[label] = days
	}
	seen := make(map[time.Weekday]bool)
	for _, d := range p.WorkingDays {
		if d < time.Sunday || d > time.Saturday {
			return quota.Policy{}, fmt.Errorf("%w: weekday index %d out of range", ErrInvalidPolicy, d)
		}
		if !seen[d] {
			seen[d] = true
			clean.WorkingDays = append(clean.WorkingDays, d)
		}
	}
	return clean, nil
}

// =============================================================================
// SUBMISSION FLOW
// =============================================================================

// Draft is the submission form's input.
type Draft struct {
	InstructorID string
	LeaveType    string
	StartDate    string
	EndDate      string
	JobLevel     string
	Reason       string
	Status       Status // DRAFT, PENDING or APPROVED; empty means DRAFT
}

// Preview is what the form shows before the user confirms.
type Preview struct {
	Start    quota.Date
	End      quota.Date
	Days     int
	JobLevel string
	Balance  quota.Balance
}

// Submission is the result of a successful Submit.
type Submission struct {
	Request Request
	Preview Preview
}

// Preview computes the candidate's working days and balance against its
// start-date period without storing anything.
func (s *Service) Preview(ctx context.Context, d Draft) (Preview, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return Preview{}, err
	}
	return s.preview(snap, d)
}

func (s *Service) preview(snap *snapshot, d Draft) (Preview, error) {
	fields := make(map[string]string)
	if strings.TrimSpace(d.InstructorID) == "" {
		fields["instructor_id"] = "required"
	} else if _, ok := snap.roster[d.InstructorID]; !ok {
		fields["instructor_id"] = "unknown instructor"
	}
	start, end := quota.NormalizeDate(d.StartDate), quota.NormalizeDate(d.EndDate)
	if !start.IsValid() {
		fields["start_date"] = "unrecognized date"
	}
	if !end.IsValid() {
		fields["end_date"] = "unrecognized date"
	}
	if start.IsValid() && end.IsValid() && end.Before(start) {
		fields["end_date"] = "before start date"
	}
	if len(fields) > 0 {
		return Preview{}, &ValidationError{Fields: fields}
	}

	jobLevel := jobLevelFor(Request{InstructorID: d.InstructorID, JobLevel: d.JobLevel}, snap.roster)
	days := quota.CountWorkingDaysBetween(start, end, snap.policy.WorkingDays)
	return Preview{
		Start:    start,
		End:      end,
		Days:     days,
		JobLevel: jobLevel,
		Balance: quota.Evaluate(quota.Candidate{
			InstructorID:  d.InstructorID,
			JobLevel:      jobLevel,
			ReferenceDate: d.StartDate,
			Days:          days,
		}, snap.policy, snap.usage),
	}, nil
}

// Submit validates and stores a new request. It refuses ranges without a
// working day, and accepts requests that reach or exceed the limit.
func (s *Service) Submit(ctx context.Context, d Draft) (Submission, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return Submission{}, err
	}
	status := d.Status
	if status == "" {
		status = StatusDraft
	}
	if status != StatusDraft && status != StatusPending && status != StatusApproved {
		return Submission{}, &ValidationError{Fields: map[string]string{"status": "must be DRAFT, PENDING or APPROVED"}}
	}

	p, err := s.preview(snap, d)
	if err != nil {
		return Submission{}, err
	}
	if p.Days == 0 {
		return Submission{}, ErrNoWorkingDays
	}

	now := s.now().UTC()
	req := Request{
		ID:           s.newID(),
		InstructorID: d.InstructorID,
		LeaveType:    strings.TrimSpace(d.LeaveType),
		StartDate:    strings.TrimSpace(d.StartDate),
		EndDate:      strings.TrimSpace(d.EndDate),
		Status:       status,
		JobLevel:     strings.TrimSpace(d.JobLevel),
		Reason:       d.Reason,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.SaveRequest(ctx, req); err != nil {
		return Submission{}, fmt.Errorf("save request: %w", err)
	}

	s.logger.Info("leave request submitted",
		"request_id", req.ID, "instructor_id", req.InstructorID, "status", req.Status,
		"days", p.Days, "period", p.Balance.Period, "limit_reached", p.Balance.LimitReached)
	return Submission{Request: req, Preview: p}, nil
}

// =============================================================================
// STATUS LIFECYCLE
// =============================================================================

// Approve moves an open request to APPROVED. Its days count toward usage
// from the next computation on.
func (s *Service) Approve(ctx context.Context, id string) (*Request, error) {
	return s.transition(ctx, id, StatusApproved)
}

// Reject moves an open request to REJECTED.
func (s *Service) Reject(ctx context.Context, id string) (*Request, error) {
	return s.transition(ctx, id, StatusRejected)
}

// Cancel withdraws an open or approved request.
func (s *Service) Cancel(ctx context.Context, id string) (*Request, error) {
	return s.transition(ctx, id, StatusCancelled)
}

func canTransition(from, to Status) bool {
	switch to {
	case StatusApproved, StatusRejected:
		return from.IsOpen()
	case StatusCancelled:
		return from.IsOpen() || from == StatusApproved
	default:
		return false
	}
}

func (s *Service) transition(ctx context.Context, id string, to Status) (*Request, error) {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canTransition(req.Status, to) {
		return nil, &TransitionError{RequestID: id, From: req.Status, To: to}
	}
	if err := s.store.UpdateRequestStatus(ctx, id, req.Status, to); err != nil {
		return nil, fmt.Errorf("update request %s: %w", id, err)
	}
	s.logger.Info("leave request status changed", "request_id", id, "from", req.Status, "to", to)
	req.Status = to
	req.UpdatedAt = s.now().UTC()
	return req, nil
}

// =============================================================================
// ROSTER
// =============================================================================

// Instructors returns the roster.
func (s *Service) Instructors(ctx context.Context) ([]Instructor, error) {
	return s.store.ListInstructors(ctx)
}

// SaveInstructor creates or replaces a roster entry.
func (s *Service) SaveInstructor(ctx context.Context, i Instructor) (Instructor, error) {
	i.ID = strings.TrimSpace(i.ID)
	i.Name = strings.TrimSpace(i.Name)
	fields := make(map[string]string)
	if i.ID == "" {
		fields["id"] = "required"
	}
	if i.Name == "" {
		fields["name"] = "required"
	}
	if len(fields) > 0 {
		return Instructor{}, &ValidationError{Fields: fields}
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = s.now().UTC()
	}
	if err := s.store.SaveInstructor(ctx, i); err != nil {
		return Instructor{}, fmt.Errorf("save instructor: %w", err)
	}
	return i, nil
}

// Balance evaluates an instructor's standing in the period containing
// referenceDate, as if a request of days working days were approved.
func (s *Service) Balance(ctx context.Context, instructorID, referenceDate string, days int) (quota.Balance, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return quota.Balance{}, err
	}
	ins, ok := snap.roster[instructorID]
	if !ok {
		return quota.Balance{}, fmt.Errorf("instructor %s: %w", instructorID, ErrNotFound)
	}
	if referenceDate == "" {
		referenceDate = quota.DateOf(s.now()).String()
	}
	return quota.Evaluate(quota.Candidate{
		InstructorID:  instructorID,
		JobLevel:      ins.JobLevel,
		ReferenceDate: referenceDate,
		Days:          max(0, days),
	}, snap.policy, snap.usage), nil
}
