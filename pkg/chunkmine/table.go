package chunkmine

import (
	"github.com/chunkmine/chunkmine-go/pkg/chunkmine/pattern"
)

// Record is one mined record.
type Record = pattern.Record

// Column names of the record line bounds. They always come first in a
// Table. A record field with the same name overwrites the bound.
const (
	ColumnStart = "start"
	ColumnEnd   = "end"
)

// Table is the tabular form of a bucket: one row per record, one column
// per field name seen in any record.
type Table struct {
	Index   string
	Columns []string
	Rows    [][]any
}

// NewTable converts records into a table. Columns are ColumnStart,
// ColumnEnd, then the union of field names in first-seen order. A record
// without a field leaves its cell nil.
func NewTable(index string, records []*pattern.Record) *Table {
	t := &Table{Index: index, Columns: []string{ColumnStart, ColumnEnd}}
	pos := map[string]int{ColumnStart: 0, ColumnEnd: 1}
	for _, r := range records {
		for _, name := range r.Names() {
			if _, ok := pos[name]; !ok {
				pos[name] = len(t.Columns)
				t.Columns = append(t.Columns, name)
			}
		}
	}

	t.Rows = make([][]any, 0, len(records))
	for _, r := range records {
		row := make([]any, len(t.Columns))
		row[0], row[1] = r.Start, r.End
		for _, name := range r.Names() {
			row[pos[name]], _ = r.Get(name)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Column returns the position of a column, or -1.
func (t *Table) Column(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Maps returns each row as a column → value map. Nil cells are omitted.
func (t *Table) Maps() []map[string]any {
	out := make([]map[string]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		m := make(map[string]any, len(row))
		for i, v := range row {
			if v != nil {
				m[t.Columns[i]] = v
			}
		}
		out = append(out, m)
	}
	return out
}
