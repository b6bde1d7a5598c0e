package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "marginreco/internal/errors"
)

// Table is an in-memory, column-addressed ledger. Column order is preserved
// and every row has exactly one cell per column.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]Value
}

// NewTable creates an empty table with the given header.
// Duplicate or blank column names are rejected.
func NewTable(columns []string) (*Table, error) {
	t := &Table{
		columns: make([]string, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for _, c := range columns {
		if strings.TrimSpace(c) == "" {
			return nil, apperrors.NewSchemaError("blank column name in header")
		}
		if _, dup := t.index[c]; dup {
			return nil, apperrors.NewSchemaError(fmt.Sprintf("duplicate column %q in header", c))
		}
		t.index[c] = len(t.columns)
		t.columns = append(t.columns, c)
	}
	return t, nil
}

// MustTable is NewTable for fixtures; it panics on an invalid header.
func MustTable(columns []string, rows ...[]Value) *Table {
	t, err := NewTable(columns)
	if err != nil {
		panic(err)
	}
	for _, r := range rows {
		if err := t.AppendRow(r); err != nil {
			panic(err)
		}
	}
	return t
}

// Columns returns a copy of the header
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Has reports whether the column exists
func (t *Table) Has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// AppendRow adds a row; it must carry one value per column.
func (t *Table) AppendRow(values []Value) error {
	if len(values) != len(t.columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(values), len(t.columns))
	}
	row := make([]Value, len(values))
	copy(row, values)
	t.rows = append(t.rows, row)
	return nil
}

// AppendRecord adds a row from a column→value map; missing columns are absent.
func (t *Table) AppendRecord(record map[string]Value) {
	row := make([]Value, len(t.columns))
	for col, v := range record {
		if i, ok := t.index[col]; ok {
			row[i] = v
		}
	}
	t.rows = append(t.rows, row)
}

// Row returns a copy of row i
func (t *Table) Row(i int) []Value {
	out := make([]Value, len(t.columns))
	copy(out, t.rows[i])
	return out
}

// Cell returns the value at row i, column col. Unknown columns read as absent.
func (t *Table) Cell(i int, col string) Value {
	j, ok := t.index[col]
	if !ok {
		return Empty()
	}
	return t.rows[i][j]
}

// Number returns the numeric value at row i, column col (absent reads as zero).
func (t *Table) Number(i int, col string) decimal.Decimal {
	return t.Cell(i, col).Decimal()
}

// Column returns a copy of the column's cells
func (t *Table) Column(col string) []Value {
	j, ok := t.index[col]
	if !ok {
		return nil
	}
	out := make([]Value, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[j]
	}
	return out
}

// SetColumn overwrites an existing column in place or appends a new one.
func (t *Table) SetColumn(col string, values []Value) error {
	if len(values) != len(t.rows) {
		return fmt.Errorf("column %q has %d values, table has %d rows", col, len(values), len(t.rows))
	}
	j, ok := t.index[col]
	if !ok {
		j = len(t.columns)
		t.index[col] = j
		t.columns = append(t.columns, col)
		for i := range t.rows {
			t.rows[i] = append(t.rows[i], Empty())
		}
	}
	for i, v := range values {
		t.rows[i][j] = v
	}
	return nil
}

// InsertColumn adds a new column right after the anchor column. An empty or
// unknown anchor appends it; an existing column is overwritten in place.
func (t *Table) InsertColumn(after, col string, values []Value) error {
	if _, ok := t.index[col]; ok {
		return t.SetColumn(col, values)
	}
	if len(values) != len(t.rows) {
		return fmt.Errorf("column %q has %d values, table has %d rows", col, len(values), len(t.rows))
	}
	j := len(t.columns)
	if a, ok := t.index[after]; ok {
		j = a + 1
	}

	t.columns = append(t.columns, "")
	copy(t.columns[j+1:], t.columns[j:])
	t.columns[j] = col
	for n := j; n < len(t.columns); n++ {
		t.index[t.columns[n]] = n
	}
	for i, r := range t.rows {
		r = append(r, Value{})
		copy(r[j+1:], r[j:])
		r[j] = values[i]
		t.rows[i] = r
	}
	return nil
}

// ColumnIndex returns the position of a column, or -1 when it is missing
func (t *Table) ColumnIndex(col string) int {
	if j, ok := t.index[col]; ok {
		return j
	}
	return -1
}

// Drop removes the named columns; unknown names are ignored.
func (t *Table) Drop(cols ...string) {
	remove := make(map[int]bool, len(cols))
	for _, c := range cols {
		if j, ok := t.index[c]; ok {
			remove[j] = true
		}
	}
	if len(remove) == 0 {
		return
	}

	keep := make([]int, 0, len(t.columns)-len(remove))
	for j := range t.columns {
		if !remove[j] {
			keep = append(keep, j)
		}
	}

	columns := make([]string, len(keep))
	index := make(map[string]int, len(keep))
	for n, j := range keep {
		columns[n] = t.columns[j]
		index[t.columns[j]] = n
	}
	for i, r := range t.rows {
		row := make([]Value, len(keep))
		for n, j := range keep {
			row[n] = r[j]
		}
		t.rows[i] = row
	}
	t.columns = columns
	t.index = index
}

// Rename changes a column name in place.
func (t *Table) Rename(from, to string) error {
	j, ok := t.index[from]
	if !ok {
		return apperrors.NewSchemaError(fmt.Sprintf("cannot rename missing column %q", from))
	}
	if from == to {
		return nil
	}
	if _, clash := t.index[to]; clash {
		return apperrors.NewSchemaError(fmt.Sprintf("cannot rename %q: column %q already exists", from, to))
	}
	delete(t.index, from)
	t.index[to] = j
	t.columns[j] = to
	return nil
}

// Clone returns a deep copy
func (t *Table) Clone() *Table {
	c := &Table{
		columns: t.Columns(),
		index:   make(map[string]int, len(t.index)),
		rows:    make([][]Value, len(t.rows)),
	}
	for k, v := range t.index {
		c.index[k] = v
	}
	for i, r := range t.rows {
		c.rows[i] = make([]Value, len(r))
		copy(c.rows[i], r)
	}
	return c
}

// IsNumeric reports whether every present cell of the column is a number.
// A column without any present cell is numeric.
func (t *Table) IsNumeric(col string) bool {
	j, ok := t.index[col]
	if !ok {
		return false
	}
	for _, r := range t.rows {
		if r[j].Kind() == Text {
			return false
		}
	}
	return true
}

// Require fails with a SchemaError naming every missing column.
func (t *Table) Require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return apperrors.NewSchemaError(fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", "))).
			WithContext("missing_columns", missing)
	}
	return nil
}

// RequireNumeric is Require plus a check that the columns hold no text.
func (t *Table) RequireNumeric(cols ...string) error {
	if err := t.Require(cols...); err != nil {
		return err
	}
	for _, c := range cols {
		if !t.IsNumeric(c) {
			for i := range t.rows {
				if v := t.Cell(i, c); v.Kind() == Text {
					return apperrors.NewSchemaError(fmt.Sprintf("column %q holds non-numeric value %q at record %d", c, v.String(), i+1)).
						WithContext("column", c)
				}
			}
		}
	}
	return nil
}
