package loader

import "riskdash/internal/resolve"

// Table is a fully loaded file. Every cell is kept as text; rows are padded to
// the header width.
type Table struct {
	Columns []string
	Rows    [][]string
}

// RowCount returns the number of data rows.
func (t *Table) RowCount() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of a column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns every value of the named column.
func (t *Table) Column(name string) ([]string, bool) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	values := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values, true
}

// Project builds a new table whose columns are the canonical fields of
// mappings, filled from the mapped source columns. Mappings whose source
// column is absent are skipped.
func (t *Table) Project(mappings []resolve.ColumnMapping) *Table {
	var (
		columns []string
		indexes []int
	)
	for _, m := range mappings {
		if idx := t.ColumnIndex(m.Column); idx >= 0 {
			columns = append(columns, m.Field)
			indexes = append(indexes, idx)
		}
	}

	out := &Table{Columns: columns, Rows: make([][]string, len(t.Rows))}
	for r, row := range t.Rows {
		projected := make([]string, len(indexes))
		for c, idx := range indexes {
			projected[c] = row[idx]
		}
		out.Rows[r] = projected
	}
	return out
}
