package leave_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/academy-leave/leave"
	"github.com/warp/academy-leave/quota"
	"github.com/warp/academy-leave/store/memory"
)

func newService(t *testing.T) *leave.Service {
	t.Helper()
	seq := 0
	clock := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	svc := leave.NewService(memory.New(),
		leave.WithClock(func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		}),
		leave.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("r%d", seq)
		}),
	)
	ctx := context.Background()
	for _, i := range []leave.Instructor{
		{ID: "ana", Name: "Ana", JobLevel: "Junior Instructor"},
		{ID: "ben", Name: "Ben", JobLevel: "Senior Trainer"},
		{ID: "cy", Name: "Cy", JobLevel: "Coordinator"},
	} {
		_, err := svc.SaveInstructor(ctx, i)
		require.NoError(t, err)
	}
	return svc
}

func submit(t *testing.T, svc *leave.Service, d leave.Draft) leave.Submission {
	t.Helper()
	sub, err := svc.Submit(context.Background(), d)
	require.NoError(t, err)
	return sub
}

// =============================================================================
// SUBMISSION
// =============================================================================

func TestSubmit_DefaultsToDraftAndKeepsRawDates(t *testing.T) {
	svc := newService(t)
	sub := submit(t, svc, leave.Draft{InstructorID: "ana", LeaveType: " Annual ", StartDate: " 3rd March 2025", EndDate: "07/03/2025"})

	assert.Equal(t, "r1", sub.Request.ID)
	assert.Equal(t, leave.StatusDraft, sub.Request.Status)
	assert.Equal(t, "Annual", sub.Request.LeaveType)
	assert.Equal(t, "3rd March 2025", sub.Request.StartDate)
	assert.Equal(t, "07/03/2025", sub.Request.EndDate)
	assert.Equal(t, 5, sub.Preview.Days)
	assert.Equal(t, "Junior Instructor", sub.Preview.JobLevel)
	assert.Equal(t, "2025", sub.Preview.Balance.Period)
	assert.Equal(t, 7, sub.Preview.Balance.Remaining)
}

func TestSubmit_LimitReachedIsNotBlocking(t *testing.T) {
	svc := newService(t)
	submit(t, svc, leave.Draft{InstructorID: "ana", StartDate: "2025-01-06", EndDate: "2025-01-17", Status: leave.StatusApproved})

	sub := submit(t, svc, leave.Draft{InstructorID: "ana", StartDate: "2025-03-03", EndDate: "2025-03-07", Status: leave.StatusPending})
	assert.Equal(t, 10, sub.Preview.Balance.Used)
	assert.Equal(t, 0, sub.Preview.Balance.Remaining)
	assert.True(t, sub.Preview.Balance.LimitReached)

	rows, err := svc.Rows(context.Background(), leave.Filter{})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestSubmit_Rejections(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, leave.Draft{InstructorID: "ana", StartDate: "2025-03-08", EndDate: "2025-03-09"})
	assert.ErrorIs(t, err, leave.ErrNoWorkingDays)
	assert.True(t, leave.IsClientError(err))

	_, err = svc.Submit(ctx, leave.Draft{InstructorID: "ana", StartDate: "2025-03-03", EndDate: "2025-03-04", Status: leave.StatusRejected})
	var verr *leave.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "status")

	_, err = svc.Submit(ctx, leave.Draft{StartDate: "someday", EndDate: "2025-02-30"})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, map[string]string{
		"instructor_id": "required",
		"start_date":    "unrecognized date",
		"end_date":      "unrecognized date",
	}, verr.Fields)
	assert.ErrorIs(t, err, leave.ErrInvalidRequest)

	rows, err := svc.Rows(ctx, leave.Filter{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestPreview_JobLevelOverride(t *testing.T) {
	svc := newService(t)
	p, err := svc.Preview(context.Background(), leave.Draft{InstructorID: "cy", JobLevel: "Program Manager", StartDate: "2025-03-03", EndDate: "2025-03-03"})
	require.NoError(t, err)
	assert.Equal(t, "Program Manager", p.JobLevel)
	assert.Equal(t, 20, p.Balance.Limit)
	assert.Equal(t, 19, p.Balance.Remaining)
}

// =============================================================================
// STATUS LIFECYCLE
// =============================================================================

func TestTransitions(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	id := submit(t, svc, leave.Draft{InstructorID: "ben", StartDate: "2025-03-03", EndDate: "2025-03-05", Status: leave.StatusPending}).Request.ID

	bal, err := svc.Balance(ctx, "ben", "2025-03-10", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, bal.Used)

	req, err := svc.Approve(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, req.Status)

	bal, err = svc.Balance(ctx, "ben", "2025-03-10", 0)
	require.NoError(t, err)
	assert.Equal(t, "3/16", bal.Cell())

	_, err = svc.Reject(ctx, id)
	var terr *leave.TransitionError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, leave.StatusApproved, terr.From)
	assert.Equal(t, leave.StatusRejected, terr.To)

	_, err = svc.Cancel(ctx, id)
	require.NoError(t, err)
	bal, err = svc.Balance(ctx, "ben", "2025-03-10", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, bal.Used)

	_, err = svc.Approve(ctx, id)
	assert.ErrorIs(t, err, leave.ErrInvalidTransition)

	_, err = svc.Approve(ctx, "missing")
	assert.True(t, leave.IsNotFound(err))
}

func TestBalance_UnknownInstructor(t *testing.T) {
	svc := newService(t)
	_, err := svc.Balance(context.Background(), "zed", "", 0)
	assert.True(t, leave.IsNotFound(err))
}

// =============================================================================
// POLICY
// =============================================================================

func TestPolicy_DefaultThenUpdated(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	p, err := svc.Policy(ctx)
	require.NoError(t, err)
	assert.Equal(t, quota.DefaultPolicy(), p)

	saved, err := svc.UpdatePolicy(ctx, quota.Policy{
		QuotaType:   "quarterly",
		Allocations: map[string]int{" junior ": 2},
		WorkingDays: []time.Weekday{time.Monday, time.Monday, time.Tuesday},
	})
	require.NoError(t, err)
	assert.Equal(t, quota.QuotaQuarterly, saved.QuotaType)
	assert.Equal(t, map[string]int{"junior": 2}, saved.Allocations)
	assert.Equal(t, []time.Weekday{time.Monday, time.Tuesday}, saved.WorkingDays)

	// the next computation sees the new policy
	submit(t, svc, leave.Draft{InstructorID: "ana", StartDate: "2025-03-03", EndDate: "2025-03-09", Status: leave.StatusApproved})
	bal, err := svc.Balance(ctx, "ana", "2025-02-01", 0)
	require.NoError(t, err)
	assert.Equal(t, "2025-Q1", bal.Period)
	assert.Equal(t, "2/2", bal.Cell())
	assert.True(t, bal.LimitReached)
}

func TestValidatePolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy quota.Policy
	}{
		{"negative allocation", quota.Policy{Allocations: map[string]int{"junior": -1}}},
		{"blank label", quota.Policy{Allocations: map[string]int{"  ": 3}}},
		{"duplicate after trim", quota.Policy{Allocations: map[string]int{"lead": 1, "lead ": 2}}},
		{"weekday out of range", quota.Policy{WorkingDays: []time.Weekday{7}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := leave.ValidatePolicy(tt.policy)
			assert.ErrorIs(t, err, leave.ErrInvalidPolicy)
		})
	}

	clean, err := leave.ValidatePolicy(quota.Policy{QuotaType: "something else"})
	require.NoError(t, err)
	assert.Equal(t, quota.QuotaYearly, clean.QuotaType)
	assert.Empty(t, clean.WorkingDays)
}

// =============================================================================
// VIEWS
// =============================================================================

func TestRows_ApprovedRowsAreNotCountedTwice(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	submit(t, svc, leave.Draft{InstructorID: "ana", StartDate: "2025-03-03", EndDate: "2025-03-07", Status: leave.StatusApproved})
	submit(t, svc, leave.Draft{InstructorID: "ana", StartDate: "2025-04-07", EndDate: "2025-04-08", Status: leave.StatusPending})

	rows, err := svc.Rows(ctx, leave.Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	approved, pending := rows[0], rows[1]
	assert.Equal(t, "Ana", approved.InstructorName)
	assert.Equal(t, 5, approved.Days)
	assert.Equal(t, "5/12", approved.UsageCell())
	assert.Equal(t, 7, approved.Balance.Remaining)
	assert.Equal(t, "41.67", approved.Utilization.StringFixed(2))

	assert.Equal(t, 2, pending.Days)
	assert.Equal(t, 5, pending.Balance.Remaining)
}

func TestRows_FiltersAndUnknownLimit(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	submit(t, svc, leave.Draft{InstructorID: "cy", StartDate: "2025-03-03", EndDate: "2025-03-03", Status: leave.StatusApproved})
	submit(t, svc, leave.Draft{InstructorID: "ben", StartDate: "2025-01-02", EndDate: "2025-01-03"})

	rows, err := svc.Rows(ctx, leave.Filter{InstructorID: "cy"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1/?", rows[0].UsageCell())
	assert.False(t, rows[0].Balance.LimitReached)
	assert.Nil(t, rows[0].Utilization)

	rows, err = svc.Rows(ctx, leave.Filter{Status: leave.StatusDraft})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ben", rows[0].Request.InstructorID)

	rows, err = svc.Rows(ctx, leave.Filter{From: "2025-02-01"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "cy", rows[0].Request.InstructorID)
}

func TestDetail(t *testing.T) {
	svc := newService(t)
	id := submit(t, svc, leave.Draft{InstructorID: "ben", StartDate: "2025-03-03", EndDate: "2025-03-04"}).Request.ID

	row, err := svc.Detail(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Senior Trainer", row.JobLevel)
	assert.Equal(t, 2, row.Days)
	assert.Equal(t, 14, row.Balance.Remaining)

	_, err = svc.Detail(context.Background(), "nope")
	assert.True(t, leave.IsNotFound(err))
}

func TestCalendar(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	a := submit(t, svc, leave.Draft{InstructorID: "ana", LeaveType: "Annual", StartDate: "2025-01-30", EndDate: "2025-02-03", Status: leave.StatusApproved})
	b := submit(t, svc, leave.Draft{InstructorID: "ben", LeaveType: "Sick", StartDate: "2025-02-03", EndDate: "2025-02-03", Status: leave.StatusPending})
	c := submit(t, svc, leave.Draft{InstructorID: "cy", StartDate: "2025-02-03", EndDate: "2025-02-04"})
	_, err := svc.Reject(ctx, c.Request.ID)
	require.NoError(t, err)

	days, err := svc.Calendar(ctx, 2025, time.February)
	require.NoError(t, err)
	require.Len(t, days, 28)

	assert.Equal(t, quota.NewDate(2025, time.February, 1), days[0].Date)
	assert.False(t, days[0].Working)
	require.Len(t, days[0].Entries, 1)
	assert.Equal(t, a.Request.ID, days[0].Entries[0].RequestID)

	// Feb 3: Ana (approved) and Ben (pending); Cy was rejected
	feb3 := days[2]
	assert.True(t, feb3.Working)
	require.Len(t, feb3.Entries, 2)
	assert.Equal(t, []string{a.Request.ID, b.Request.ID}, []string{feb3.Entries[0].RequestID, feb3.Entries[1].RequestID})
	assert.Equal(t, "Sick", feb3.Entries[1].LeaveType)
	assert.Empty(t, days[3].Entries)

	_, err = svc.Calendar(ctx, 2025, 13)
	assert.ErrorIs(t, err, leave.ErrInvalidRequest)
}

func TestSummaries(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	submit(t, svc, leave.Draft{InstructorID: "ben", StartDate: "2025-03-03", EndDate: "2025-03-14", Status: leave.StatusApproved})

	sums, err := svc.Summaries(ctx, "2025-12-31")
	require.NoError(t, err)
	require.Len(t, sums, 3)
	assert.Equal(t, []string{"Ana", "Ben", "Cy"}, []string{sums[0].Instructor.Name, sums[1].Instructor.Name, sums[2].Instructor.Name})
	assert.Equal(t, "10/16", sums[1].Balance.Cell())
	assert.Equal(t, "62.5", sums[1].Utilization.String())
	assert.Equal(t, "0/?", sums[2].Balance.Cell())

	// empty reference date uses the clock (2025)
	sums, err = svc.Summaries(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "2025", sums[1].Balance.Period)
}

func TestSaveInstructor_Validation(t *testing.T) {
	svc := newService(t)
	_, err := svc.SaveInstructor(context.Background(), leave.Instructor{ID: "  "})
	var verr *leave.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, map[string]string{"id": "required", "name": "required"}, verr.Fields)
}

// raceStore lets another decision land between the status read and the write.
type raceStore struct {
	*memory.Memory
	interleave func()
}

func (s *raceStore) GetRequest(ctx context.Context, id string) (*leave.Request, error) {
	r, err := s.Memory.GetRequest(ctx, id)
	if s.interleave != nil {
		s.interleave()
		s.interleave = nil
	}
	return r, err
}

func TestTransition_StatusChangedAfterRead(t *testing.T) {
	ctx := context.Background()
	store := &raceStore{Memory: memory.New()}
	svc := leave.NewService(store, leave.WithIDGenerator(func() string { return "r1" }))
	_, err := svc.SaveInstructor(ctx, leave.Instructor{ID: "ana", Name: "Ana", JobLevel: "junior"})
	require.NoError(t, err)
	submit(t, svc, leave.Draft{InstructorID: "ana", StartDate: "2025-03-03", EndDate: "2025-03-04"})

	store.interleave = func() {
		require.NoError(t, store.Memory.UpdateRequestStatus(ctx, "r1", leave.StatusDraft, leave.StatusRejected))
	}
	_, err = svc.Approve(ctx, "r1")

	var terr *leave.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, leave.StatusRejected, terr.From)
	got, err := store.GetRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusRejected, got.Status)
}
