package domain

import "strings"

// Row is one spreadsheet line: an ordered mapping from column header to
// cell text. A column absent from the row is distinct from one that is
// present but empty.
type Row struct {
	columns []string
	values  map[string]string
}

// NewRow creates an empty row.
func NewRow() *Row {
	return &Row{values: make(map[string]string)}
}

// RowFromCells builds a row from a header line and the cells under it.
// Cells beyond the header are dropped; missing trailing cells are treated
// as present but empty.
func RowFromCells(header, cells []string) *Row {
	r := NewRow()
	for i, col := range header {
		if col == "" {
			continue
		}
		value := ""
		if i < len(cells) {
			value = cells[i]
		}
		r.Set(col, value)
	}
	return r
}

// Get returns the cell value and whether the column is present.
func (r *Row) Get(column string) (string, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Value returns the trimmed cell value, or "" when absent.
func (r *Row) Value(column string) string {
	return strings.TrimSpace(r.values[column])
}

// Set stores a value, appending the column if it is new.
func (r *Row) Set(column, value string) {
	if _, ok := r.values[column]; !ok {
		r.columns = append(r.columns, column)
	}
	r.values[column] = value
}

// Columns returns the column headers in insertion order.
func (r *Row) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

// Cells returns the values for the given header, "" for absent columns.
func (r *Row) Cells(header []string) []string {
	out := make([]string, len(header))
	for i, col := range header {
		out[i] = r.values[col]
	}
	return out
}

// Clone returns an independent copy of the row.
func (r *Row) Clone() *Row {
	c := NewRow()
	for _, col := range r.columns {
		c.Set(col, r.values[col])
	}
	return c
}

// Sheet is a spreadsheet: the header line followed by data rows.
type Sheet struct {
	Header []string
	Rows   []*Row
}

// HasColumn reports whether the header contains column.
func (s *Sheet) HasColumn(column string) bool {
	for _, h := range s.Header {
		if h == column {
			return true
		}
	}
	return false
}
