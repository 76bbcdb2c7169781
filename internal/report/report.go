// Package report accumulates per-record outcomes and materializes the audit
// workbook operators keep for manual follow-up. The reporter is
// thread-unsafe by design: the batch is strictly single-threaded.
package report

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/xuri/excelize/v2"

	"github.com/erptools/nsauto/internal/models"
)

const (
	summarySheet  = "Summary"
	outcomesSheet = "Outcomes"

	timeLayout = time.RFC3339
)

var outcomeHeader = []string{"Record ID", "Row", "Status", "Kind", "Reason", "Attempts", "Timestamp"}

// Reporter owns the RunSummary for one run. Finalize must be called exactly
// once, on every exit path, so operators always get an audit file even on a
// fatal abort.
type Reporter struct {
	summary   *models.RunSummary
	finalized bool
}

// New starts a summary for one run.
func New(workflow string) *Reporter {
	return &Reporter{
		summary: &models.RunSummary{
			RunID:     ulid.Make().String(),
			Workflow:  workflow,
			StartedAt: time.Now(),
		},
	}
}

// Record appends one outcome. Outcomes arrive in input order and are never
// mutated afterwards.
func (r *Reporter) Record(o models.Outcome) {
	r.summary.Append(o)
}

// Abort flags the run as fatally aborted; recorded outcomes are kept.
func (r *Reporter) Abort(cause string) {
	r.summary.Aborted = true
	r.summary.AbortCause = cause
}

// Summary exposes the accumulated run summary.
func (r *Reporter) Summary() *models.RunSummary {
	return r.summary
}

// Finalize stamps the finish time and writes the audit workbook: a summary
// sheet with the aggregate counts and one outcome row per input record.
func (r *Reporter) Finalize(path string) error {
	if r.finalized {
		return errors.New("run summary already finalized")
	}
	r.finalized = true
	r.summary.FinishedAt = time.Now()

	return Write(path, r.summary)
}

// Write materializes a summary as an .xlsx workbook.
func Write(path string, s *models.RunSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(outcomesSheet); err != nil {
		return fmt.Errorf("create outcomes sheet: %w", err)
	}

	header := [][]any{
		{"Run ID", s.RunID},
		{"Workflow", s.Workflow},
		{"Started", s.StartedAt.Format(timeLayout)},
		{"Finished", s.FinishedAt.Format(timeLayout)},
		{"Aborted", strconv.FormatBool(s.Aborted)},
		{"Abort Cause", s.AbortCause},
		{"Total", s.Total()},
		{"Succeeded", s.Succeeded()},
		{"Failed", s.Failed()},
		{"Skipped", s.Skipped()},
	}
	for i, row := range header {
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(summarySheet, cell, v); err != nil {
				return fmt.Errorf("write summary: %w", err)
			}
		}
	}

	for j, h := range outcomeHeader {
		cell, _ := excelize.CoordinatesToCellName(j+1, 1)
		if err := f.SetCellValue(outcomesSheet, cell, h); err != nil {
			return fmt.Errorf("write outcome header: %w", err)
		}
	}
	for i, o := range s.Outcomes {
		row := []any{
			o.RecordID,
			o.Row,
			string(o.Status),
			string(o.Kind),
			o.Reason,
			o.Attempts,
			o.At.Format(timeLayout),
		}
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(outcomesSheet, cell, v); err != nil {
				return fmt.Errorf("write outcome row %d: %w", i+1, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save audit workbook %s: %w", path, err)
	}
	return nil
}

// Load reads a previously written audit workbook back into a RunSummary.
// Counts are re-derived from the outcome rows, so a round trip can be
// checked against the aggregate header.
func Load(path string) (*models.RunSummary, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open audit workbook %s: %w", path, err)
	}
	defer f.Close()

	s := &models.RunSummary{}

	head, err := f.GetRows(summarySheet)
	if err != nil {
		return nil, fmt.Errorf("read summary sheet: %w", err)
	}
	for _, row := range head {
		if len(row) < 2 {
			continue
		}
		switch row[0] {
		case "Run ID":
			s.RunID = row[1]
		case "Workflow":
			s.Workflow = row[1]
		case "Started":
			s.StartedAt, _ = time.Parse(timeLayout, row[1])
		case "Finished":
			s.FinishedAt, _ = time.Parse(timeLayout, row[1])
		case "Aborted":
			s.Aborted = row[1] == "true"
		case "Abort Cause":
			s.AbortCause = row[1]
		}
	}

	rows, err := f.GetRows(outcomesSheet)
	if err != nil {
		return nil, fmt.Errorf("read outcomes sheet: %w", err)
	}
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		o := models.Outcome{}
		if len(row) > 0 {
			o.RecordID = row[0]
		}
		if len(row) > 1 {
			o.Row, _ = strconv.Atoi(row[1])
		}
		if len(row) > 2 {
			o.Status = models.OutcomeStatus(row[2])
		}
		if len(row) > 3 {
			o.Kind = models.FailureKind(row[3])
		}
		if len(row) > 4 {
			o.Reason = row[4]
		}
		if len(row) > 5 {
			o.Attempts, _ = strconv.Atoi(row[5])
		}
		if len(row) > 6 {
			o.At, _ = time.Parse(timeLayout, row[6])
		}
		s.Append(o)
	}

	return s, nil
}

// HeaderCounts are the aggregate numbers as written in the summary sheet,
// read back without re-deriving them from outcome rows.
type HeaderCounts struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
}

// LoadHeaderCounts reads only the aggregate header of an audit workbook.
func LoadHeaderCounts(path string) (HeaderCounts, error) {
	var hc HeaderCounts

	f, err := excelize.OpenFile(path)
	if err != nil {
		return hc, fmt.Errorf("open audit workbook %s: %w", path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(summarySheet)
	if err != nil {
		return hc, fmt.Errorf("read summary sheet: %w", err)
	}
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		n, _ := strconv.Atoi(row[1])
		switch row[0] {
		case "Total":
			hc.Total = n
		case "Succeeded":
			hc.Succeeded = n
		case "Failed":
			hc.Failed = n
		case "Skipped":
			hc.Skipped = n
		}
	}
	return hc, nil
}
