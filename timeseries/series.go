// Package timeseries provides the tabular time-series types shared by the
// data clients and the model builders: a Series is a sorted timestamped
// sequence of float values, a Frame is a set of named Series on a common
// index. Missing observations are carried as NaN and never invented.
package timeseries

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Series is an immutable-length, time-sorted sequence of float64 values.
// Missing values are NaN.
type Series struct {
	times  []time.Time
	values []float64
}

// New creates a Series from parallel timestamp and value slices. The input is
// copied and sorted by timestamp.
func New(times []time.Time, values []float64) (*Series, error) {
	if len(times) != len(values) {
		return nil, fmt.Errorf("timeseries: %d timestamps but %d values", len(times), len(values))
	}

	type pair struct {
		t time.Time
		v float64
	}
	pairs := make([]pair, len(times))
	for i := range times {
		pairs[i] = pair{times[i], values[i]}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].t.Before(pairs[j].t) })

	s := &Series{
		times:  make([]time.Time, len(pairs)),
		values: make([]float64, len(pairs)),
	}
	for i, p := range pairs {
		s.times[i] = p.t
		s.values[i] = p.v
	}
	return s, nil
}

// Empty returns a Series with no observations.
func Empty() *Series {
	return &Series{}
}

// Len returns the number of observations.
func (s *Series) Len() int {
	return len(s.times)
}

// Time returns the timestamp at index i.
func (s *Series) Time(i int) time.Time {
	return s.times[i]
}

// Value returns the value at index i.
func (s *Series) Value(i int) float64 {
	return s.values[i]
}

// Times returns a copy of the index.
func (s *Series) Times() []time.Time {
	out := make([]time.Time, len(s.times))
	copy(out, s.times)
	return out
}

// Values returns a copy of the values.
func (s *Series) Values() []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

// At returns the value observed exactly at t. The second return value is
// false when t is not part of the index.
func (s *Series) At(t time.Time) (float64, bool) {
	i := sort.Search(len(s.times), func(i int) bool { return !s.times[i].Before(t) })
	if i < len(s.times) && s.times[i].Equal(t) {
		return s.values[i], true
	}
	return 0, false
}

// Slice returns the observations in the half-open interval [start, end).
func (s *Series) Slice(start, end time.Time) *Series {
	var ts []time.Time
	var vs []float64
	for i, t := range s.times {
		if t.Before(start) || !t.Before(end) {
			continue
		}
		ts = append(ts, t)
		vs = append(vs, s.values[i])
	}
	out, _ := New(ts, vs)
	return out
}

// Hourly reduces the series to hour boundaries. Sub-hourly observations are
// averaged over the hour they fall in; NaN observations are skipped. Hours
// with no valid observation are omitted.
func (s *Series) Hourly() *Series {
	sums := make(map[time.Time]float64)
	counts := make(map[time.Time]int)
	var order []time.Time
	for i, t := range s.times {
		v := s.values[i]
		if math.IsNaN(v) {
			continue
		}
		h := t.Truncate(time.Hour)
		if counts[h] == 0 {
			order = append(order, h)
		}
		sums[h] += v
		counts[h]++
	}

	ts := make([]time.Time, 0, len(order))
	vs := make([]float64, 0, len(order))
	for _, h := range order {
		ts = append(ts, h)
		vs = append(vs, sums[h]/float64(counts[h]))
	}
	out, _ := New(ts, vs)
	return out
}

// ForwardFill replaces NaN values with the previous valid observation.
// Leading NaNs are left in place.
func (s *Series) ForwardFill() *Series {
	vs := make([]float64, len(s.values))
	copy(vs, s.values)
	last := math.NaN()
	for i, v := range vs {
		if math.IsNaN(v) {
			vs[i] = last
		} else {
			last = v
		}
	}
	out, _ := New(s.Times(), vs)
	return out
}

// Scale returns a new Series with every value multiplied by f.
func (s *Series) Scale(f float64) *Series {
	vs := make([]float64, len(s.values))
	for i, v := range s.values {
		vs[i] = v * f
	}
	out, _ := New(s.Times(), vs)
	return out
}

// Shift returns a new Series with c added to every value.
func (s *Series) Shift(c float64) *Series {
	vs := make([]float64, len(s.values))
	for i, v := range s.values {
		vs[i] = v + c
	}
	out, _ := New(s.Times(), vs)
	return out
}

// Map returns a new Series with fn applied to every value.
func (s *Series) Map(fn func(float64) float64) *Series {
	vs := make([]float64, len(s.values))
	for i, v := range s.values {
		vs[i] = fn(v)
	}
	out, _ := New(s.Times(), vs)
	return out
}

// Diff returns the series of first differences v[i] - v[i-1]. The result has
// one observation fewer than the input and is indexed on the later timestamp.
func (s *Series) Diff() *Series {
	if len(s.values) < 2 {
		return Empty()
	}
	ts := make([]time.Time, len(s.times)-1)
	vs := make([]float64, len(s.values)-1)
	for i := 1; i < len(s.values); i++ {
		ts[i-1] = s.times[i]
		vs[i-1] = s.values[i] - s.values[i-1]
	}
	out, _ := New(ts, vs)
	return out
}

// Min returns the smallest non-NaN value, or NaN for an all-missing series.
func (s *Series) Min() float64 {
	min := math.NaN()
	for _, v := range s.values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(min) || v < min {
			min = v
		}
	}
	return min
}

// Sum returns the sum of all non-NaN values.
func (s *Series) Sum() float64 {
	var sum float64
	for _, v := range s.values {
		if !math.IsNaN(v) {
			sum += v
		}
	}
	return sum
}

// MissingCount returns the number of NaN observations.
func (s *Series) MissingCount() int {
	n := 0
	for _, v := range s.values {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}

// Quantile returns the q-th quantile (0..1) of the non-NaN values using
// linear interpolation between order statistics.
func (s *Series) Quantile(q float64) (float64, error) {
	if q < 0 || q > 1 {
		return 0, fmt.Errorf("timeseries: quantile %f outside [0, 1]", q)
	}
	var vals []float64
	for _, v := range s.values {
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return 0, fmt.Errorf("timeseries: quantile of empty series")
	}
	sort.Float64s(vals)
	if len(vals) == 1 {
		return vals[0], nil
	}
	pos := q * float64(len(vals)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return vals[lo], nil
	}
	frac := pos - float64(lo)
	return vals[lo]*(1-frac) + vals[hi]*frac, nil
}

// ResampleWeekly sums observations into calendar weeks starting on Monday
// 00:00 UTC. The result is indexed on the week start.
func (s *Series) ResampleWeekly() *Series {
	sums := make(map[time.Time]float64)
	var order []time.Time
	for i, t := range s.times {
		v := s.values[i]
		if math.IsNaN(v) {
			continue
		}
		w := weekStart(t)
		if _, seen := sums[w]; !seen {
			order = append(order, w)
		}
		sums[w] += v
	}
	ts := make([]time.Time, 0, len(order))
	vs := make([]float64, 0, len(order))
	for _, w := range order {
		ts = append(ts, w)
		vs = append(vs, sums[w])
	}
	out, _ := New(ts, vs)
	return out
}

func weekStart(t time.Time) time.Time {
	t = t.UTC()
	day := t.Truncate(24 * time.Hour)
	// time.Weekday starts on Sunday, ISO weeks start on Monday
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// Align restricts both series to the timestamps they share, preserving order.
func Align(a, b *Series) (*Series, *Series) {
	var ts []time.Time
	var va, vb []float64
	for i, t := range a.times {
		if v, ok := b.At(t); ok {
			ts = append(ts, t)
			va = append(va, a.values[i])
			vb = append(vb, v)
		}
	}
	outA, _ := New(ts, va)
	outB, _ := New(append([]time.Time(nil), ts...), vb)
	return outA, outB
}

// HourlyRange returns every hour in the half-open interval [start, end).
func HourlyRange(start, end time.Time) []time.Time {
	var out []time.Time
	for t := start; t.Before(end); t = t.Add(time.Hour) {
		out = append(out, t)
	}
	return out
}

// Reindex returns a Series on the given index; timestamps absent from s
// become NaN.
func (s *Series) Reindex(index []time.Time) *Series {
	vs := make([]float64, len(index))
	for i, t := range index {
		if v, ok := s.At(t); ok {
			vs[i] = v
		} else {
			vs[i] = math.NaN()
		}
	}
	out, _ := New(append([]time.Time(nil), index...), vs)
	return out
}
