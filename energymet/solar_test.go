package energymet

import (
	"math"
	"testing"
	"time"

	"github.com/matteodefelice/pypsa-entsoe/timeseries"
)

func hourlySeries(t *testing.T, start time.Time, values []float64) *timeseries.Series {
	t.Helper()
	times := make([]time.Time, len(values))
	for i := range values {
		times[i] = start.Add(time.Duration(i) * time.Hour)
	}
	s, err := timeseries.New(times, values)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSolarCapacityFactor(t *testing.T) {
	start := time.Date(2018, 7, 1, 10, 0, 0, 0, time.UTC)
	tmp := hourlySeries(t, start, []float64{25, 35, 25, math.NaN()})
	ssr := hourlySeries(t, start, []float64{1000, 500, 0, 800})

	cf, err := SolarCapacityFactor(tmp, ssr, SolarOptions{})
	if err != nil {
		t.Fatalf("SolarCapacityFactor() failed: %v", err)
	}

	// at reference conditions CF equals the reference efficiency
	if got := cf.Value(0); math.Abs(got-0.9) > 1e-9 {
		t.Errorf("Expected 0.9 at reference conditions, got %g", got)
	}
	// hotter panel is less efficient
	want := 0.9 * (1 - 0.0042*10) * 0.5
	if got := cf.Value(1); math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected %g at 35C, got %g", want, got)
	}
	if cf.Value(2) != 0 {
		t.Errorf("Expected 0 without irradiance, got %g", cf.Value(2))
	}
	// NaN temperature maps to zero, not NaN
	if cf.Value(3) != 0 {
		t.Errorf("Expected 0 for NaN input, got %g", cf.Value(3))
	}
}

func TestSolarCapacityFactor_KelvinConversion(t *testing.T) {
	start := time.Date(2018, 7, 1, 12, 0, 0, 0, time.UTC)
	kelvin := hourlySeries(t, start, []float64{298.15})
	ssr := hourlySeries(t, start, []float64{1000})

	cf, err := SolarCapacityFactor(kelvin, ssr, SolarOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got := cf.Value(0); math.Abs(got-0.9) > 1e-9 {
		t.Errorf("Expected 0.9 after Kelvin conversion, got %g", got)
	}
}

func TestSolarCapacityFactor_NightClamp(t *testing.T) {
	// local midnight in central Europe
	midnight := time.Date(2018, 1, 15, 0, 0, 0, 0, time.UTC)
	tmp := hourlySeries(t, midnight, []float64{5})
	ssr := hourlySeries(t, midnight, []float64{50})

	opts := SolarOptions{ClampNight: true, Latitude: 50.1, Longitude: 8.7}
	cf, err := SolarCapacityFactor(tmp, ssr, opts)
	if err != nil {
		t.Fatal(err)
	}
	if cf.Value(0) != 0 {
		t.Errorf("Expected 0 at night, got %g", cf.Value(0))
	}

	// same inputs without the clamp keep the raw value
	cf, err = SolarCapacityFactor(tmp, ssr, SolarOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if cf.Value(0) <= 0 {
		t.Errorf("Expected positive value without clamp, got %g", cf.Value(0))
	}
}

func TestSolarCapacityFactor_LengthMismatch(t *testing.T) {
	start := time.Date(2018, 7, 1, 0, 0, 0, 0, time.UTC)
	tmp := hourlySeries(t, start, []float64{25, 25})
	ssr := hourlySeries(t, start, []float64{1000})

	if _, err := SolarCapacityFactor(tmp, ssr, SolarOptions{}); err == nil {
		t.Fatal("Expected error for mismatched lengths")
	}
}
