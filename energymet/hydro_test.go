package energymet

import (
	"math"
	"testing"
	"time"

	"github.com/matteodefelice/pypsa-entsoe/timeseries"
)

func TestReservoirInflow(t *testing.T) {
	week0 := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	week1 := week0.AddDate(0, 0, 7)
	week2 := week0.AddDate(0, 0, 14)

	storage, err := timeseries.New(
		[]time.Time{week0, week1, week2},
		[]float64{10000, 9000, 9500},
	)
	if err != nil {
		t.Fatal(err)
	}

	// constant 100 MW reservoir generation over two weeks
	genValues := make([]float64, 2*168)
	for i := range genValues {
		genValues[i] = 100
	}
	gen := hourlySeries(t, week0, genValues)

	inflow, err := ReservoirInflow(gen, storage)
	if err != nil {
		t.Fatalf("ReservoirInflow() failed: %v", err)
	}

	if inflow.Len() != 3 {
		t.Fatalf("Expected 3 weeks, got %d", inflow.Len())
	}
	// week 0: 168h * 100 MW generated while the reservoir drained 1000 MWh
	if got := inflow.Value(0); got != 16800-1000 {
		t.Errorf("Week 0 inflow = %g, want %g", got, 16800-1000.0)
	}
	// week 1: generation plus a 500 MWh refill
	if got := inflow.Value(1); got != 16800+500 {
		t.Errorf("Week 1 inflow = %g, want %g", got, 16800+500.0)
	}
	if !math.IsNaN(inflow.Value(2)) {
		t.Errorf("Expected NaN for the last week, got %g", inflow.Value(2))
	}
}

func TestReservoirInflow_TooFewPoints(t *testing.T) {
	week0 := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	storage, err := timeseries.New([]time.Time{week0}, []float64{10000})
	if err != nil {
		t.Fatal(err)
	}
	gen := hourlySeries(t, week0, []float64{100})

	if _, err := ReservoirInflow(gen, storage); err == nil {
		t.Fatal("Expected error for a single storage point")
	}
}

func TestSpreadWeeklyToHourly(t *testing.T) {
	week0 := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	week1 := week0.AddDate(0, 0, 7)
	week2 := week0.AddDate(0, 0, 14)

	weekly, err := timeseries.New(
		[]time.Time{week0, week1, week2},
		[]float64{1680, 3360, math.NaN()},
	)
	if err != nil {
		t.Fatal(err)
	}

	index := make([]time.Time, 2*168)
	for i := range index {
		index[i] = week0.Add(time.Duration(i) * time.Hour)
	}

	hourly, err := SpreadWeeklyToHourly(weekly, index)
	if err != nil {
		t.Fatalf("SpreadWeeklyToHourly() failed: %v", err)
	}

	if got := hourly.Value(0); got != 10 {
		t.Errorf("Week 0 hourly inflow = %g, want 10", got)
	}
	if got := hourly.Value(167); got != 10 {
		t.Errorf("Last hour of week 0 = %g, want 10", got)
	}
	if got := hourly.Value(168); got != 20 {
		t.Errorf("Week 1 hourly inflow = %g, want 20", got)
	}
}
