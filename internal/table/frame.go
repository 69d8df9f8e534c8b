// Package table provides the in-memory tabular artifact passed between
// pipeline stages. A Frame is append-only while its producing stage owns it
// and must be treated as read-only once handed to the run's artifact map.
package table

import (
	"fmt"
	"time"
)

// Kind identifies the value type of a column.
type Kind int

const (
	Float Kind = iota
	Bool
	String
	Time
)

// String returns the catalog-facing name of the kind.
func (k Kind) String() string {
	switch k {
	case Float:
		return "double"
	case Bool:
		return "boolean"
	case String:
		return "string"
	case Time:
		return "timestamp"
	default:
		return "unknown"
	}
}

// Column describes one named, typed column of a Frame.
type Column struct {
	Name string
	Kind Kind
}

// Frame is a tabular value: an ordered set of typed columns plus rows.
type Frame struct {
	cols  []Column
	index map[string]int
	rows  [][]any
}

// NewFrame creates an empty frame with the given column layout.
// Column names must be unique and non-empty.
func NewFrame(cols ...Column) (*Frame, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("frame requires at least one column")
	}

	index := make(map[string]int, len(cols))
	for i, c := range cols {
		if c.Name == "" {
			return nil, fmt.Errorf("column %d has empty name", i)
		}
		if _, exists := index[c.Name]; exists {
			return nil, fmt.Errorf("duplicate column name: %s", c.Name)
		}
		index[c.Name] = i
	}

	return &Frame{
		cols:  append([]Column(nil), cols...),
		index: index,
	}, nil
}

// AppendRow appends one row. Values must match the column layout in arity
// and kind; there is no silent coercion.
func (f *Frame) AppendRow(vals ...any) error {
	if len(vals) != len(f.cols) {
		return fmt.Errorf("row has %d values, frame has %d columns", len(vals), len(f.cols))
	}

	for i, v := range vals {
		if err := checkKind(f.cols[i].Kind, v); err != nil {
			return fmt.Errorf("column %s: %w", f.cols[i].Name, err)
		}
	}

	f.rows = append(f.rows, append([]any(nil), vals...))
	return nil
}

func checkKind(k Kind, v any) error {
	switch k {
	case Float:
		if _, ok := v.(float64); !ok {
			return fmt.Errorf("expected float64, got %T", v)
		}
	case Bool:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("expected bool, got %T", v)
		}
	case String:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
	case Time:
		if _, ok := v.(time.Time); !ok {
			return fmt.Errorf("expected time.Time, got %T", v)
		}
	}
	return nil
}

// NumRows returns the number of rows.
func (f *Frame) NumRows() int {
	return len(f.rows)
}

// Columns returns a copy of the column layout.
func (f *Frame) Columns() []Column {
	return append([]Column(nil), f.cols...)
}

// Row returns row i as a column-name keyed map.
func (f *Frame) Row(i int) (map[string]any, error) {
	if i < 0 || i >= len(f.rows) {
		return nil, fmt.Errorf("row index %d out of range (%d rows)", i, len(f.rows))
	}
	out := make(map[string]any, len(f.cols))
	for j, c := range f.cols {
		out[c.Name] = f.rows[i][j]
	}
	return out, nil
}

// Latest returns the last row. Errors if the frame is empty.
func (f *Frame) Latest() (map[string]any, error) {
	if len(f.rows) == 0 {
		return nil, fmt.Errorf("frame is empty")
	}
	return f.Row(len(f.rows) - 1)
}

// Float returns the float64 value at (row, column name).
func (f *Frame) Float(row int, col string) (float64, error) {
	idx, ok := f.index[col]
	if !ok {
		return 0, fmt.Errorf("unknown column: %s", col)
	}
	if row < 0 || row >= len(f.rows) {
		return 0, fmt.Errorf("row index %d out of range (%d rows)", row, len(f.rows))
	}
	v, ok := f.rows[row][idx].(float64)
	if !ok {
		return 0, fmt.Errorf("column %s is not a float column", col)
	}
	return v, nil
}

// Floats returns the full column as a float64 slice.
func (f *Frame) Floats(col string) ([]float64, error) {
	idx, ok := f.index[col]
	if !ok {
		return nil, fmt.Errorf("unknown column: %s", col)
	}
	if f.cols[idx].Kind != Float {
		return nil, fmt.Errorf("column %s is not a float column", col)
	}
	out := make([]float64, len(f.rows))
	for i, row := range f.rows {
		out[i] = row[idx].(float64)
	}
	return out, nil
}
