package timeseries

import (
	"math"
	"testing"
	"time"
)

func hours(start time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return out
}

func TestNew_SortsByTime(t *testing.T) {
	base := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	s, err := New(
		[]time.Time{base.Add(2 * time.Hour), base, base.Add(time.Hour)},
		[]float64{3, 1, 2},
	)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if s.Value(i) != float64(i+1) {
			t.Errorf("Position %d: expected %d, got %f", i, i+1, s.Value(i))
		}
	}
}

func TestNew_LengthMismatch(t *testing.T) {
	base := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := New([]time.Time{base}, []float64{1, 2}); err == nil {
		t.Error("Expected error for mismatched lengths")
	}
}

func TestHourly_AveragesSubHourly(t *testing.T) {
	base := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	s, _ := New(
		[]time.Time{
			base, base.Add(15 * time.Minute), base.Add(30 * time.Minute), base.Add(45 * time.Minute),
			base.Add(time.Hour),
		},
		[]float64{100, 110, 120, 130, 200},
	)

	hourly := s.Hourly()
	if hourly.Len() != 2 {
		t.Fatalf("Expected 2 hourly values, got %d", hourly.Len())
	}
	if hourly.Value(0) != 115 {
		t.Errorf("Expected hour 0 mean 115, got %f", hourly.Value(0))
	}
	if hourly.Value(1) != 200 {
		t.Errorf("Expected hour 1 value 200, got %f", hourly.Value(1))
	}
}

func TestForwardFill(t *testing.T) {
	base := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	s, _ := New(hours(base, 4), []float64{math.NaN(), 5, math.NaN(), 7})

	filled := s.ForwardFill()
	if !math.IsNaN(filled.Value(0)) {
		t.Errorf("Leading NaN should stay, got %f", filled.Value(0))
	}
	if filled.Value(2) != 5 {
		t.Errorf("Expected forward-filled 5, got %f", filled.Value(2))
	}
	if filled.Value(3) != 7 {
		t.Errorf("Expected 7, got %f", filled.Value(3))
	}
}

func TestQuantile(t *testing.T) {
	base := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	s, _ := New(hours(base, 5), []float64{10, 20, 30, 40, 50})

	tests := []struct {
		q    float64
		want float64
	}{
		{0, 10},
		{0.5, 30},
		{1, 50},
		{0.25, 20},
	}
	for _, tt := range tests {
		got, err := s.Quantile(tt.q)
		if err != nil {
			t.Fatalf("Quantile(%f) failed: %v", tt.q, err)
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Quantile(%f): expected %f, got %f", tt.q, tt.want, got)
		}
	}

	if _, err := s.Quantile(1.5); err == nil {
		t.Error("Expected error for quantile outside [0,1]")
	}
	if _, err := Empty().Quantile(0.5); err == nil {
		t.Error("Expected error for empty series")
	}
}

func TestQuantile_IgnoresNaN(t *testing.T) {
	base := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	s, _ := New(hours(base, 3), []float64{10, math.NaN(), 30})

	got, err := s.Quantile(0.5)
	if err != nil {
		t.Fatalf("Quantile() failed: %v", err)
	}
	if got != 20 {
		t.Errorf("Expected median 20, got %f", got)
	}
}

func TestDiff(t *testing.T) {
	base := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	s, _ := New(hours(base, 3), []float64{100, 150, 120})

	d := s.Diff()
	if d.Len() != 2 {
		t.Fatalf("Expected 2 differences, got %d", d.Len())
	}
	if d.Value(0) != 50 {
		t.Errorf("Expected diff 50, got %f", d.Value(0))
	}
	if d.Value(1) != -30 {
		t.Errorf("Expected diff -30, got %f", d.Value(1))
	}
	if !d.Time(0).Equal(base.Add(time.Hour)) {
		t.Errorf("Diff should be indexed on the later timestamp")
	}
}

func TestResampleWeekly(t *testing.T) {
	// Monday 2018-01-01 through Tuesday of the following week
	base := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	times := hours(base, 8*24)
	values := make([]float64, len(times))
	for i := range values {
		values[i] = 1
	}
	s, _ := New(times, values)

	weekly := s.ResampleWeekly()
	if weekly.Len() != 2 {
		t.Fatalf("Expected 2 weeks, got %d", weekly.Len())
	}
	if !weekly.Time(0).Equal(base) {
		t.Errorf("Expected first week start %v, got %v", base, weekly.Time(0))
	}
	if weekly.Value(0) != 7*24 {
		t.Errorf("Expected first week sum %d, got %f", 7*24, weekly.Value(0))
	}
	if weekly.Value(1) != 24 {
		t.Errorf("Expected second week sum 24, got %f", weekly.Value(1))
	}
}

func TestAlign(t *testing.T) {
	base := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	a, _ := New(hours(base, 4), []float64{1, 2, 3, 4})
	b, _ := New(hours(base.Add(time.Hour), 4), []float64{20, 30, 40, 50})

	alignedA, alignedB := Align(a, b)
	if alignedA.Len() != 3 || alignedB.Len() != 3 {
		t.Fatalf("Expected 3 shared timestamps, got %d/%d", alignedA.Len(), alignedB.Len())
	}
	if alignedA.Value(0) != 2 || alignedB.Value(0) != 20 {
		t.Errorf("First aligned pair: expected (2, 20), got (%f, %f)", alignedA.Value(0), alignedB.Value(0))
	}
}

func TestReindex(t *testing.T) {
	base := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	s, _ := New(hours(base, 2), []float64{1, 2})

	re := s.Reindex(hours(base, 3))
	if re.Len() != 3 {
		t.Fatalf("Expected 3 values, got %d", re.Len())
	}
	if !math.IsNaN(re.Value(2)) {
		t.Errorf("Expected NaN for missing timestamp, got %f", re.Value(2))
	}
}

func TestSliceAndSum(t *testing.T) {
	base := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	s, _ := New(hours(base, 5), []float64{1, 2, 3, 4, 5})

	sub := s.Slice(base.Add(time.Hour), base.Add(3*time.Hour))
	if sub.Len() != 2 {
		t.Fatalf("Expected 2 values in slice, got %d", sub.Len())
	}
	if sub.Sum() != 5 {
		t.Errorf("Expected slice sum 5, got %f", sub.Sum())
	}
}

func TestFrame(t *testing.T) {
	base := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFrame(hours(base, 3))

	if err := f.SetColumn("DE", []float64{1, 2, 3}); err != nil {
		t.Fatalf("SetColumn() failed: %v", err)
	}
	if err := f.SetColumn("FR", []float64{4, math.NaN(), 6}); err != nil {
		t.Fatalf("SetColumn() failed: %v", err)
	}
	if err := f.SetColumn("bad", []float64{1}); err == nil {
		t.Error("Expected error for wrong column length")
	}

	de, ok := f.Column("DE")
	if !ok {
		t.Fatal("Expected DE column")
	}
	if de.Value(1) != 2 {
		t.Errorf("Expected DE value 2, got %f", de.Value(1))
	}

	report := f.MissingReport()
	if report["FR"] != 1 {
		t.Errorf("Expected 1 missing value in FR, got %d", report["FR"])
	}
	if _, flagged := report["DE"]; flagged {
		t.Error("DE has no gaps and should not be reported")
	}

	cols := f.Columns()
	if len(cols) != 2 || cols[0] != "DE" || cols[1] != "FR" {
		t.Errorf("Expected column order [DE FR], got %v", cols)
	}
}
