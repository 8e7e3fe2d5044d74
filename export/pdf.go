package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/warp/academy-leave/leave"
	"github.com/warp/academy-leave/quota"
)

// Report is the input of the PDF balance report.
type Report struct {
	Title         string
	ReferenceDate string
	Policy        quota.Policy
	Summaries     []leave.Summary
	GeneratedAt   time.Time
}

var summaryColumns = []struct {
	title string
	width float64
}{
	{"Instructor", 52},
	{"Job level", 42},
	{"Period", 20},
	{"Used", 16},
	{"Limit", 16},
	{"Remaining", 20},
	{"Util. %", 20},
}

// WritePDF renders r as an A4 table, one line per instructor.
func WritePDF(w io.Writer, r Report) error {
	title := r.Title
	if title == "" {
		title = "Leave balance report"
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("academy-leave", true)
	if !r.GeneratedAt.IsZero() {
		pdf.SetCreationDate(r.GeneratedAt)
	}
	pdf.AddPage()
	// core fonts are cp1252; translate so accented names print correctly
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, tr(title))
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Reference date: %s", r.ReferenceDate))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Cadence: %s", quota.ParseQuotaType(string(r.Policy.QuotaType))))
	pdf.Ln(6)
	pdf.MultiCell(0, 6, tr("Allocations: "+allocationsLine(r.Policy)), "", "L", false)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for _, c := range summaryColumns {
		pdf.CellFormat(c.width, 8, c.title, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, s := range r.Summaries {
		util := "-"
		if s.Utilization != nil {
			util = s.Utilization.StringFixed(2)
		}
		if s.Balance.LimitReached {
			pdf.SetTextColor(180, 0, 0)
		}
		cells := []string{
			s.Instructor.Name,
			s.Instructor.JobLevel,
			s.Balance.Period,
			strconv.Itoa(s.Balance.Used),
			s.Balance.LimitLabel(),
			strconv.Itoa(s.Balance.Remaining),
			util,
		}
		for i, c := range summaryColumns {
			pdf.CellFormat(c.width, 7, tr(cells[i]), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetTextColor(0, 0, 0)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

// allocationsLine lists "label days" pairs in label order.
func allocationsLine(p quota.Policy) string {
	labels := p.AllocationLabels()
	if len(labels) == 0 {
		return "none"
	}
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = l + " " + strconv.Itoa(p.Allocations[l])
	}
	return strings.Join(parts, ", ")
}
