package models

// InputRecord is one unit of work sourced from a spreadsheet row.
// Immutable once loaded; the batch runner attaches exactly one Outcome to it.
type InputRecord struct {
	ID     string            // unique record identifier (NetSuite internal ID, slip number, ...)
	Row    int               // 1-based spreadsheet row for traceability
	Fields map[string]string // normalized column values keyed by canonical column name
}

// Field returns the normalized value for a column, or "" if absent.
func (r InputRecord) Field(name string) string {
	return r.Fields[name]
}
