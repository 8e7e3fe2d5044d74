/*
handlers_test.go - HTTP tests for the leave API

Tests for:
- Roster and balance endpoints
- Submission: preview, limits, validation, zero working days
- Status transitions and their error codes
- Policy editor
- Calendar, summary and export endpoints
*/
package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/academy-leave/export"
	"github.com/warp/academy-leave/leave"
	"github.com/warp/academy-leave/store/memory"
)

var testNow = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

type testServer struct {
	t       *testing.T
	handler *Handler
	router  http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	seq := 0
	svc := leave.NewService(store,
		leave.WithLogger(logger),
		leave.WithClock(func() time.Time { return testNow }),
		leave.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("req-%03d", seq)
		}),
	)
	h := NewHandler(svc, store, WithHandlerLogger(logger), WithHandlerClock(func() time.Time { return testNow }))
	return &testServer{t: t, handler: h, router: NewRouter(h, logger, []string{"*"})}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(s.t, err)
			reader = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) addInstructor(id, name, jobLevel string) {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/instructors", SaveInstructorRequest{ID: id, Name: name, JobLevel: jobLevel})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (s *testServer) submit(d DraftRequest) SubmissionDTO {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/requests", d)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[SubmissionDTO](s.t, rec)
}

// =============================================================================
// ROSTER & BALANCE
// =============================================================================

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"status": "ok"}, decodeBody[map[string]string](t, rec))
}

// pingStore is a memory store with a connection check.
type pingStore struct {
	*memory.Memory
	err error
}

func (p *pingStore) Ping(context.Context) error { return p.err }

func TestHealth_StorePing(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := &pingStore{Memory: memory.New()}
	h := NewHandler(leave.NewService(store), store, WithHandlerLogger(logger))
	router := NewRouter(h, logger, []string{"*"})

	get := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		return rec
	}

	assert.Equal(t, http.StatusOK, get().Code)

	store.err = fmt.Errorf("connection refused")
	rec := get()
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestInstructors_SaveAndList(t *testing.T) {
	s := newTestServer(t)
	s.addInstructor("i1", "Ana", "Junior Instructor")
	s.addInstructor("i2", "Ben", "Senior Trainer")

	rec := s.do(http.MethodGet, "/api/instructors", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]InstructorDTO](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "Ana", list[0].Name)
	assert.Equal(t, "Senior Trainer", list[1].JobLevel)
}

func TestInstructors_ValidationUsesJSONNames(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/api/instructors", map[string]string{"id": "i1", "email": "not-an-email"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeBody[struct {
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}](t, rec)
	assert.Equal(t, "Validation failed", resp.Error)
	assert.Equal(t, "required", resp.Details["name"])
	assert.Equal(t, "email", resp.Details["email"])
}

func TestGetBalance(t *testing.T) {
	// GIVEN: a junior with 5 approved days in 2025
	s := newTestServer(t)
	s.addInstructor("i1", "Ana", "Junior Instructor")
	s.submit(DraftRequest{InstructorID: "i1", StartDate: "2025-03-03", EndDate: "2025-03-07", Status: "APPROVED"})

	// WHEN: asking for the balance with 3 more days
	rec := s.do(http.MethodGet, "/api/instructors/i1/balance?date=2025-06-01&days=3", nil)

	// THEN: the yearly bucket shows 5/12 with 4 remaining
	require.Equal(t, http.StatusOK, rec.Code)
	bal := decodeBody[BalanceDTO](t, rec)
	assert.Equal(t, "2025", bal.Period)
	assert.Equal(t, 5, bal.Used)
	require.NotNil(t, bal.Limit)
	assert.Equal(t, 12, *bal.Limit)
	assert.Equal(t, 4, bal.Remaining)
	assert.Equal(t, "5/12", bal.Usage)
}

func TestGetBalance_Errors(t *testing.T) {
	s := newTestServer(t)
	s.addInstructor("i1", "Ana", "Junior Instructor")

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/instructors/nobody/balance", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/instructors/i1/balance?date=soon", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/instructors/i1/balance?days=-1", nil).Code)
}

// =============================================================================
// SUBMISSION
// =============================================================================

func TestPreviewRequest_StoresNothing(t *testing.T) {
	s := newTestServer(t)
	s.addInstructor("i1", "Ana", "Junior Instructor")

	rec := s.do(http.MethodPost, "/api/requests/preview", DraftRequest{InstructorID: "i1", StartDate: "10/03/2025", EndDate: "14-Mar-2025"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p := decodeBody[PreviewDTO](t, rec)
	assert.Equal(t, "2025-03-10", p.StartDate)
	assert.Equal(t, "2025-03-14", p.EndDate)
	assert.Equal(t, 5, p.WorkingDays)
	assert.Equal(t, 7, p.Balance.Remaining)

	rows := decodeBody[[]RequestRowDTO](t, s.do(http.MethodGet, "/api/requests", nil))
	assert.Empty(t, rows)
}

func TestSubmitRequest_OverLimitIsAccepted(t *testing.T) {
	// GIVEN: a junior (12 days) who already used 10
	s := newTestServer(t)
	s.addInstructor("i1", "Ana", "Junior Instructor")
	s.submit(DraftRequest{InstructorID: "i1", StartDate: "2025-02-03", EndDate: "2025-02-14", Status: "APPROVED"})

	// WHEN: submitting 5 more days
	sub := s.submit(DraftRequest{InstructorID: "i1", LeaveType: "Annual", StartDate: "2025-03-03", EndDate: "2025-03-07"})

	// THEN: the request is stored as DRAFT with the limit flag raised
	assert.Equal(t, "DRAFT", sub.Request.Status)
	assert.Equal(t, "req-002", sub.Request.ID)
	assert.Equal(t, 10, sub.Preview.Balance.Used)
	assert.Equal(t, 0, sub.Preview.Balance.Remaining)
	assert.True(t, sub.Preview.Balance.LimitReached)
}

func TestSubmitRequest_StatusAnyCase(t *testing.T) {
	s := newTestServer(t)
	s.addInstructor("i1", "Ana", "Junior Instructor")

	for in, want := range map[string]string{"Approved": "APPROVED", " pending ": "PENDING", "dRaFt": "DRAFT"} {
		sub := s.submit(DraftRequest{InstructorID: "i1", StartDate: "2025-03-03", EndDate: "2025-03-04", Status: in})
		assert.Equal(t, want, sub.Request.Status, in)
	}
}

func TestSubmitRequest_NoWorkingDays(t *testing.T) {
	s := newTestServer(t)
	s.addInstructor("i1", "Ana", "Junior Instructor")

	rec := s.do(http.MethodPost, "/api/requests", DraftRequest{InstructorID: "i1", StartDate: "2025-03-08", EndDate: "2025-03-09"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSubmitRequest_Validation(t *testing.T) {
	s := newTestServer(t)
	s.addInstructor("i1", "Ana", "Junior Instructor")

	tests := []struct {
		name  string
		body  any
		field string
	}{
		{"missing start", DraftRequest{InstructorID: "i1", EndDate: "2025-03-07"}, "start_date"},
		{"unknown status", DraftRequest{InstructorID: "i1", StartDate: "2025-03-03", EndDate: "2025-03-07", Status: "REJECTED"}, "status"},
		{"unrecognized status", DraftRequest{InstructorID: "i1", StartDate: "2025-03-03", EndDate: "2025-03-07", Status: "bogus"}, "status"},
		{"unknown instructor", DraftRequest{InstructorID: "ghost", StartDate: "2025-03-03", EndDate: "2025-03-07"}, "instructor_id"},
		{"unreadable date", DraftRequest{InstructorID: "i1", StartDate: "next week", EndDate: "2025-03-07"}, "start_date"},
		{"inverted range", DraftRequest{InstructorID: "i1", StartDate: "2025-03-07", EndDate: "2025-03-03"}, "end_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/requests", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			resp := decodeBody[struct {
				Details map[string]string `json:"details"`
			}](t, rec)
			assert.Contains(t, resp.Details, tt.field)
		})
	}

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/requests", "{not json").Code)
}

// =============================================================================
// TRANSITIONS
// =============================================================================

func TestTransitions(t *testing.T) {
	s := newTestServer(t)
	s.addInstructor("i1", "Ana", "Junior Instructor")
	sub := s.submit(DraftRequest{InstructorID: "i1", StartDate: "2025-03-03", EndDate: "2025-03-07", Status: "PENDING"})
	id := sub.Request.ID

	rec := s.do(http.MethodPost, "/api/requests/"+id+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "APPROVED", decodeBody[RequestDTO](t, rec).Status)

	// approved days now count
	row := decodeBody[RequestRowDTO](t, s.do(http.MethodGet, "/api/requests/"+id, nil))
	assert.Equal(t, 5, row.Balance.Used)
	require.NotNil(t, row.Utilization)
	assert.Equal(t, "41.67", *row.Utilization)

	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, "/api/requests/"+id+"/reject", nil).Code)

	rec = s.do(http.MethodPost, "/api/requests/"+id+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CANCELLED", decodeBody[RequestDTO](t, rec).Status)

	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, "/api/requests/"+id+"/approve", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/api/requests/missing/approve", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/requests/missing", nil).Code)
}

func TestListRequests_Filters(t *testing.T) {
	s := newTestServer(t)
	s.addInstructor("i1", "Ana", "Junior Instructor")
	s.addInstructor("i2", "Ben", "Senior Trainer")
	s.submit(DraftRequest{InstructorID: "i1", StartDate: "2025-03-03", EndDate: "2025-03-04", Status: "APPROVED"})
	s.submit(DraftRequest{InstructorID: "i2", StartDate: "2025-01-06", EndDate: "2025-01-07", Status: "PENDING"})
	s.submit(DraftRequest{InstructorID: "i2", StartDate: "2025-05-05", EndDate: "2025-05-06"})

	rows := decodeBody[[]RequestRowDTO](t, s.do(http.MethodGet, "/api/requests", nil))
	require.Len(t, rows, 3)
	// ordered by start date
	assert.Equal(t, "2025-01-06", rows[0].StartDate)
	assert.Equal(t, "Ben", rows[0].InstructorName)

	rows = decodeBody[[]RequestRowDTO](t, s.do(http.MethodGet, "/api/requests?instructor=i2&status=pending", nil))
	require.Len(t, rows, 1)
	assert.Equal(t, "2025-01-06", rows[0].StartDate)

	rows = decodeBody[[]RequestRowDTO](t, s.do(http.MethodGet, "/api/requests?from=2025-02-01&to=2025-04-30", nil))
	require.Len(t, rows, 1)
	assert.Equal(t, "i1", rows[0].Request.InstructorID)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/requests?status=lost", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/requests?from=whenever", nil).Code)
}

// =============================================================================
// POLICY
// =============================================================================

func TestPolicy_DefaultAndUpdate(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/policy", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"quota_type":"Yearly Quota","allocations":{"junior":12,"senior":16,"managers":20},"working_days":[1,2,3,4,5]}`, rec.Body.String())

	rec = s.do(http.MethodPut, "/api/policy", `{"quota_type":"Monthly Quota","allocations":{" lead ":3},"working_days":["sun","mon","tue","wed","thu"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"quota_type":"Monthly Quota","allocations":{"lead":3},"working_days":[0,1,2,3,4]}`, rec.Body.String())

	// the new week applies to previews: Fri 2025-03-07 .. Sun 2025-03-09 is one working day
	s.addInstructor("i1", "Lee", "Lead")
	p := decodeBody[PreviewDTO](t, s.do(http.MethodPost, "/api/requests/preview", DraftRequest{InstructorID: "i1", StartDate: "2025-03-07", EndDate: "2025-03-09"}))
	assert.Equal(t, 1, p.WorkingDays)
	assert.Equal(t, "2025-03", p.Balance.Period)
	assert.Equal(t, "0/3", p.Balance.Usage)
}

func TestPolicy_Rejects(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, "/api/policy", `{"allocations":{"junior":-1}}`).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, "/api/policy", `{"working_days":["funday"]}`).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, "/api/policy", `{"working_days":[9]}`).Code)
}

// =============================================================================
// VIEWS & EXPORTS
// =============================================================================

func TestGetCalendar(t *testing.T) {
	s := newTestServer(t)
	s.addInstructor("i1", "Ana", "Junior Instructor")
	s.submit(DraftRequest{InstructorID: "i1", LeaveType: "Annual", StartDate: "2025-02-27", EndDate: "2025-03-04", Status: "APPROVED"})
	rejected := s.submit(DraftRequest{InstructorID: "i1", StartDate: "2025-03-10", EndDate: "2025-03-10"})
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/requests/"+rejected.Request.ID+"/reject", nil).Code)

	rec := s.do(http.MethodGet, "/api/calendar/2025/3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	days := decodeBody[[]CalendarDayDTO](t, rec)
	require.Len(t, days, 31)

	assert.Equal(t, "2025-03-01", days[0].Date)
	assert.Equal(t, "Saturday", days[0].Weekday)
	assert.False(t, days[0].Working)
	require.Len(t, days[0].Entries, 1)
	assert.Equal(t, "Ana", days[0].Entries[0].InstructorName)
	assert.Len(t, days[3].Entries, 1)
	assert.Empty(t, days[4].Entries)
	assert.Empty(t, days[9].Entries)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/calendar/2025/13", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/calendar/year/3", nil).Code)
}

func TestGetSummary(t *testing.T) {
	s := newTestServer(t)
	s.addInstructor("i2", "Ben", "Coordinator")
	s.addInstructor("i1", "Ana", "Junior Instructor")
	s.submit(DraftRequest{InstructorID: "i1", StartDate: "2025-03-03", EndDate: "2025-03-07", Status: "APPROVED"})

	rec := s.do(http.MethodGet, "/api/reports/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sums := decodeBody[[]SummaryDTO](t, rec)
	require.Len(t, sums, 2)
	assert.Equal(t, "Ana", sums[0].Instructor.Name)
	assert.Equal(t, "5/12", sums[0].Balance.Usage)
	assert.Equal(t, "0/?", sums[1].Balance.Usage)
	assert.Nil(t, sums[1].Balance.Limit)
	assert.Nil(t, sums[1].Utilization)

	// a reference date in another year starts from zero
	sums = decodeBody[[]SummaryDTO](t, s.do(http.MethodGet, "/api/reports/summary?date=2026-01-05", nil))
	assert.Equal(t, "0/12", sums[0].Balance.Usage)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/reports/summary?date=25/12/25", nil).Code)
}

func TestExportRequestsCSV(t *testing.T) {
	s := newTestServer(t)
	s.addInstructor("i1", "Ana", "Junior Instructor")
	s.submit(DraftRequest{InstructorID: "i1", StartDate: "2025-03-03", EndDate: "2025-03-07", Status: "APPROVED"})

	rec := s.do(http.MethodGet, "/api/export/requests.csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, export.RequestsHeader, records[0])
	assert.Equal(t, `="5/12"`, records[1][10])
}

func TestExportSummaryPDF(t *testing.T) {
	s := newTestServer(t)
	s.addInstructor("i1", "Ana", "Junior Instructor")

	rec := s.do(http.MethodGet, "/api/export/summary.pdf?date=2025-03-15", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF-"))
}

func TestWriteServiceError_Internal(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/anything", nil).WithContext(context.Background())
	rec := httptest.NewRecorder()
	s.handler.writeServiceError(rec, req, "Boom", fmt.Errorf("disk on fire"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Boom", decodeBody[ErrorResponse](t, rec).Error)
}
