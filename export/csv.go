// Package export renders leave rows and balance summaries as files: a CSV
// of requests and a PDF balance report. Every number comes from
// leave.Service; nothing here recomputes usage.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/warp/academy-leave/leave"
	"github.com/warp/academy-leave/quota"
)

// RequestsHeader is the CSV header row.
var RequestsHeader = []string{
	"request_id", "instructor_id", "instructor", "job_level", "leave_type",
	"start_date", "end_date", "working_days", "status", "period",
	"usage", "remaining", "limit_reached", "utilization_pct",
}

// FormulaText wraps s as a spreadsheet text formula (="s") so "5/12" is not
// read back as a date or a fraction.
func FormulaText(s string) string {
	return `="` + s + `"`
}

// plainText keeps a user-entered cell from being evaluated as a formula by
// prefixing a single quote when it starts with a formula trigger.
func plainText(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}

// WriteRequestsCSV writes one line per row in the given order.
func WriteRequestsCSV(w io.Writer, rows []leave.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RequestsHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(requestRecord(r)); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.Request.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func requestRecord(r leave.Row) []string {
	util := ""
	if r.Utilization != nil {
		util = r.Utilization.StringFixed(2)
	}
	return []string{
		plainText(r.Request.ID),
		plainText(r.Request.InstructorID),
		plainText(r.InstructorName),
		plainText(r.JobLevel),
		plainText(r.Request.LeaveType),
		plainText(dateOrRaw(r.Start, r.Request.StartDate)),
		plainText(dateOrRaw(r.End, r.Request.EndDate)),
		strconv.Itoa(r.Days),
		string(r.Request.Status),
		r.Balance.Period,
		FormulaText(r.UsageCell()),
		strconv.Itoa(r.Balance.Remaining),
		strconv.FormatBool(r.Balance.LimitReached),
		util,
	}
}

// dateOrRaw prints a readable date as YYYY-MM-DD and keeps anything else as
// it was entered.
func dateOrRaw(d quota.Date, raw string) string {
	if d.IsValid() {
		return d.String()
	}
	return raw
}
