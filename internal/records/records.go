// Package records loads the ordered sequence of input records from an .xlsx
// workbook. Rows that fail validation never reach the navigation layer; they
// are returned as pre-emptive Skipped outcomes so every spreadsheet row still
// maps to exactly one outcome.
package records

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/erptools/nsauto/internal/models"
)

// ColumnKind selects the coercion applied to a cell.
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindDate            // normalized to yyyy/mm/dd, the format the ERP accepts
	KindAmount
)

// Column describes one expected spreadsheet column.
type Column struct {
	Name     string // canonical field name used by flows
	Header   string // header text in the sheet
	Required bool   // non-empty in every row
	Kind     ColumnKind
}

// Schema is the per-workflow column contract. IDColumn names the canonical
// column carrying the unique record identifier.
type Schema struct {
	IDColumn string
	Columns  []Column
}

func (s Schema) column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Accepted cell layouts for date columns. Excel renders dates differently
// depending on the cell style, so several layouts are tolerated; the first
// match wins.
var dateLayouts = []string{
	"2006/01/02",
	"2006-01-02",
	"01-02-06",
	"1/2/06",
	"01/02/2006",
	"2006/1/2",
	"2006年1月2日",
}

// Load parses the workbook's first sheet against the schema. It returns the
// valid records in sheet order plus one Skipped outcome per invalid row.
// A missing required column is a file-level error (MalformedInputError).
func Load(path string, schema Schema) ([]models.InputRecord, []models.Outcome, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil, &models.MalformedInputError{Row: 1, Msg: "workbook has no header row"}
	}

	// Resolve header -> column index.
	index := map[string]int{}
	for i, h := range rows[0] {
		index[strings.TrimSpace(h)] = i
	}
	colIdx := map[string]int{}
	for _, c := range schema.Columns {
		i, ok := index[c.Header]
		if !ok {
			if c.Required {
				return nil, nil, &models.MalformedInputError{
					Row: 1, Column: c.Header, Msg: "required column missing",
				}
			}
			colIdx[c.Name] = -1
			continue
		}
		colIdx[c.Name] = i
	}

	var (
		recs    []models.InputRecord
		skipped []models.Outcome
		seen    = map[string]bool{}
	)

	for r := 1; r < len(rows); r++ {
		rowNum := r + 1 // 1-based including header
		cells := rows[r]

		if blankRow(cells) {
			continue
		}

		fields := map[string]string{}
		var bad *models.MalformedInputError

		for _, c := range schema.Columns {
			raw := cellAt(cells, colIdx[c.Name])
			val, cerr := coerce(c, raw)
			if cerr != nil {
				bad = &models.MalformedInputError{Row: rowNum, Column: c.Header, Msg: cerr.Error()}
				break
			}
			fields[c.Name] = val
		}

		id := fields[schema.IDColumn]
		if bad == nil && id == "" {
			idCol, _ := schema.column(schema.IDColumn)
			bad = &models.MalformedInputError{Row: rowNum, Column: idCol.Header, Msg: "missing record identifier"}
		}
		if bad == nil && seen[id] {
			idCol, _ := schema.column(schema.IDColumn)
			bad = &models.MalformedInputError{Row: rowNum, Column: idCol.Header, Msg: "duplicate record identifier"}
		}

		if bad != nil {
			skipped = append(skipped, models.Outcome{
				RecordID: id,
				Row:      rowNum,
				Status:   models.StatusSkipped,
				Kind:     models.KindMalformedInput,
				Reason:   bad.Error(),
				At:       time.Now(),
			})
			continue
		}

		seen[id] = true
		recs = append(recs, models.InputRecord{ID: id, Row: rowNum, Fields: fields})
	}

	return recs, skipped, nil
}

func cellAt(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func coerce(c Column, raw string) (string, error) {
	if raw == "" {
		if c.Required {
			return "", fmt.Errorf("missing %s", strings.ToLower(c.Header))
		}
		if c.Kind == KindAmount {
			return "0", nil
		}
		return "", nil
	}

	switch c.Kind {
	case KindDate:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.Format("2006/01/02"), nil
			}
		}
		return "", fmt.Errorf("unparseable date %q", raw)
	case KindAmount:
		cleaned := strings.ReplaceAll(strings.ReplaceAll(raw, ",", ""), "¥", "")
		v, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return "", fmt.Errorf("unparseable amount %q", raw)
		}
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return raw, nil
	}
}
