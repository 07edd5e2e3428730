// Package table assembles ordered fetch results into a columnar table whose
// schema is derived from the query's field selections. Columns hold decoded
// JSON values; dataset kinds sharing a column name share the column.
package table

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Column is one named value vector. Values are decoded JSON values
// (string, float64, bool, []any, map[string]any) or nil where a row's
// dataset kind does not select the field.
type Column struct {
	Name   string
	Values []any
}

// Table is a fixed-schema columnar result. All columns have equal length.
type Table struct {
	columns []Column
	index   map[string]int
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	if len(t.columns) == 0 {
		return 0
	}
	return len(t.columns[0].Values)
}

// NumCols returns the number of columns.
func (t *Table) NumCols() int {
	return len(t.columns)
}

// ColumnNames returns the column names in schema order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column, or false when the schema lacks it.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return &t.columns[i], true
}

// Row materializes row i as a name-to-value map, including nil entries.
func (t *Table) Row(i int) map[string]any {
	row := make(map[string]any, len(t.columns))
	for _, c := range t.columns {
		row[c.Name] = c.Values[i]
	}
	return row
}

// WriteCSV writes the table with a header row. Nested values are encoded
// as JSON, nil as an empty cell.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.ColumnNames()); err != nil {
		return err
	}

	record := make([]string, len(t.columns))
	for i := 0; i < t.NumRows(); i++ {
		for j, c := range t.columns {
			cell, err := formatCell(c.Values[i])
			if err != nil {
				return fmt.Errorf("row %d column %q: %w", i, c.Name, err)
			}
			record[j] = cell
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteJSONL writes one JSON object per row.
func (t *Table) WriteJSONL(w io.Writer) error {
	enc := json.NewEncoder(w)
	for i := 0; i < t.NumRows(); i++ {
		if err := enc.Encode(t.Row(i)); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}

func formatCell(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	}
}
