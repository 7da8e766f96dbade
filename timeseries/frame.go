package timeseries

import (
	"fmt"
	"math"
	"time"
)

// Frame is a set of named columns sharing one time index. Column order is
// preserved from insertion.
type Frame struct {
	index   []time.Time
	names   []string
	columns map[string][]float64
}

// NewFrame creates an empty Frame on the given index.
func NewFrame(index []time.Time) *Frame {
	return &Frame{
		index:   append([]time.Time(nil), index...),
		columns: make(map[string][]float64),
	}
}

// Index returns a copy of the shared time index.
func (f *Frame) Index() []time.Time {
	return append([]time.Time(nil), f.index...)
}

// Columns returns the column names in insertion order.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.names...)
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.index)
}

// SetColumn adds or replaces a column. The values slice must match the index
// length.
func (f *Frame) SetColumn(name string, values []float64) error {
	if len(values) != len(f.index) {
		return fmt.Errorf("timeseries: column %q has %d values, index has %d", name, len(values), len(f.index))
	}
	if _, exists := f.columns[name]; !exists {
		f.names = append(f.names, name)
	}
	f.columns[name] = append([]float64(nil), values...)
	return nil
}

// SetSeries adds a column from a Series, reindexed on the frame's index.
func (f *Frame) SetSeries(name string, s *Series) {
	_ = f.SetColumn(name, s.Reindex(f.index).Values())
}

// Column returns the named column as a Series. The second return value is
// false for unknown columns.
func (f *Frame) Column(name string) (*Series, bool) {
	vals, ok := f.columns[name]
	if !ok {
		return nil, false
	}
	s, _ := New(f.Index(), append([]float64(nil), vals...))
	return s, true
}

// HasColumn reports whether the named column exists.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.columns[name]
	return ok
}

// Value returns the value of column name at row i.
func (f *Frame) Value(name string, i int) (float64, bool) {
	vals, ok := f.columns[name]
	if !ok || i < 0 || i >= len(vals) {
		return 0, false
	}
	return vals[i], true
}

// Slice returns the frame rows within the half-open interval [start, end).
func (f *Frame) Slice(start, end time.Time) *Frame {
	var keep []int
	for i, t := range f.index {
		if !t.Before(start) && t.Before(end) {
			keep = append(keep, i)
		}
	}
	index := make([]time.Time, len(keep))
	for j, i := range keep {
		index[j] = f.index[i]
	}
	out := NewFrame(index)
	for _, name := range f.names {
		vals := make([]float64, len(keep))
		for j, i := range keep {
			vals[j] = f.columns[name][i]
		}
		_ = out.SetColumn(name, vals)
	}
	return out
}

// MissingReport returns the number of NaN cells per column, skipping columns
// with no gaps.
func (f *Frame) MissingReport() map[string]int {
	report := make(map[string]int)
	for _, name := range f.names {
		n := 0
		for _, v := range f.columns[name] {
			if math.IsNaN(v) {
				n++
			}
		}
		if n > 0 {
			report[name] = n
		}
	}
	return report
}
