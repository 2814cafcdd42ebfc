// Package models defines the core data structures shared across the BMRS
// client: the tabular result assembled from report windows.
package models

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrColumnMismatch is returned when rows or tables with a different column
// set are appended to a table.
var ErrColumnMismatch = errors.New("column mismatch")

// Table is an ordered set of rows sharing one column list.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// NewTable creates an empty table with the given columns.
func NewTable(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Column returns the index of the named column, or -1.
func (t *Table) Column(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumns reports whether every name is a column of t.
func (t *Table) HasColumns(names ...string) bool {
	for _, n := range names {
		if t.Column(n) < 0 {
			return false
		}
	}
	return true
}

// SameColumns reports whether columns equals t's column list, in order.
func (t *Table) SameColumns(columns []string) bool {
	if len(columns) != len(t.Columns) {
		return false
	}
	for i := range columns {
		if columns[i] != t.Columns[i] {
			return false
		}
	}
	return true
}

// Append adds one row. The row must have exactly one value per column.
func (t *Table) Append(row []string) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("%w: row has %d fields, table has %d columns", ErrColumnMismatch, len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// AppendTable appends all rows of other. A table with no columns yet adopts
// other's columns; an empty other is a no-op.
func (t *Table) AppendTable(other *Table) error {
	if other == nil || (len(other.Columns) == 0 && len(other.Rows) == 0) {
		return nil
	}
	if len(t.Columns) == 0 && len(t.Rows) == 0 {
		t.Columns = append([]string(nil), other.Columns...)
	}
	if !t.SameColumns(other.Columns) {
		return fmt.Errorf("%w: got [%s], want [%s]", ErrColumnMismatch,
			strings.Join(other.Columns, ","), strings.Join(t.Columns, ","))
	}
	t.Rows = append(t.Rows, other.Rows...)
	return nil
}

// Get returns the value of column name in row i, or "" if either is absent.
func (t *Table) Get(i int, name string) string {
	c := t.Column(name)
	if c < 0 || i < 0 || i >= len(t.Rows) {
		return ""
	}
	return t.Rows[i][c]
}

// Records returns the rows as column-name → value maps.
func (t *Table) Records() []map[string]string {
	out := make([]map[string]string, len(t.Rows))
	for i, row := range t.Rows {
		rec := make(map[string]string, len(t.Columns))
		for j, c := range t.Columns {
			rec[c] = row[j]
		}
		out[i] = rec
	}
	return out
}

// Decimal parses the value of column name in row i as a decimal.
func (t *Table) Decimal(i int, name string) (decimal.Decimal, error) {
	c := t.Column(name)
	if c < 0 {
		return decimal.Zero, fmt.Errorf("no column %q", name)
	}
	if i < 0 || i >= len(t.Rows) {
		return decimal.Zero, fmt.Errorf("row %d out of range", i)
	}
	return decimal.NewFromString(strings.TrimSpace(t.Rows[i][c]))
}

// Sum adds up column name across all rows, skipping blank cells.
func (t *Table) Sum(name string) (decimal.Decimal, error) {
	c := t.Column(name)
	if c < 0 {
		return decimal.Zero, fmt.Errorf("no column %q", name)
	}
	total := decimal.Zero
	for i, row := range t.Rows {
		v := strings.TrimSpace(row[c])
		if v == "" {
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("row %d: %w", i, err)
		}
		total = total.Add(d)
	}
	return total, nil
}

// NumericColumns returns the columns whose non-blank values all parse as
// decimals. Columns with no values at all are not numeric.
func (t *Table) NumericColumns() []string {
	var out []string
	for j, c := range t.Columns {
		seen := false
		numeric := true
		for _, row := range t.Rows {
			v := strings.TrimSpace(row[j])
			if v == "" {
				continue
			}
			seen = true
			if _, err := decimal.NewFromString(v); err != nil {
				numeric = false
				break
			}
		}
		if seen && numeric {
			out = append(out, c)
		}
	}
	return out
}

// WriteCSV writes the header row followed by every row. A table without
// columns writes nothing.
func (t *Table) WriteCSV(w io.Writer) error {
	if len(t.Columns) == 0 {
		return nil
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// ReadCSV reads a table written by WriteCSV: the first record is the header.
// Empty input yields an empty table.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	t := NewTable(header...)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	t.Rows = rows
	return t, nil
}
