package energymet

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/matteodefelice/pypsa-entsoe/timeseries"
)

func TestDefaultPowerCurve(t *testing.T) {
	curve := DefaultPowerCurve()

	tests := []struct {
		name  string
		speed float64
		want  float64
		tol   float64
	}{
		{"calm", 0, 0, 0},
		{"below cut-in", 2.0, 0, 0},
		{"rated", 15.0, 1.0, 1e-9},
		{"above cut-out", 25.0, 0, 0},
		{"extreme", 60.0, 0, 0},
		{"nan", math.NaN(), 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := curve.Factor(tt.speed)
			if math.Abs(got-tt.want) > tt.tol {
				t.Errorf("Factor(%g) = %g, want %g", tt.speed, got, tt.want)
			}
		})
	}

	// mid-curve values stay inside the curve envelope
	if cf := curve.Factor(7.0); cf < 0.4 || cf > 0.6 {
		t.Errorf("Factor(7.0) = %g, expected around 0.51", cf)
	}
	if a, b := curve.Factor(5.0), curve.Factor(9.0); a >= b {
		t.Errorf("Expected increasing curve between 5 and 9 m/s: %g >= %g", a, b)
	}
}

func TestParsePowerCurve(t *testing.T) {
	data := `# comment
0.0  0     0.0
5.0  1000  0.5
10.0 2000  1.0
15.0 0     0.0
`
	curve, err := ParsePowerCurve(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ParsePowerCurve() failed: %v", err)
	}
	if got := curve.Factor(7.5); math.Abs(got-0.75) > 0.01 {
		t.Errorf("Factor(7.5) = %g, want 0.75", got)
	}
}

func TestParsePowerCurve_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"wrong columns", "1.0 0.5\n2.0 0.6\n"},
		{"not a number", "1.0 x 0.5\n2.0 0 0.6\n"},
		{"not increasing", "2.0 0 0.5\n1.0 0 0.6\n"},
		{"single point", "1.0 0 0.5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePowerCurve(strings.NewReader(tt.data)); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestWindCapacityFactor(t *testing.T) {
	start := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	times := []time.Time{start, start.Add(time.Hour), start.Add(2 * time.Hour)}
	ws, err := timeseries.New(times, []float64{0, 12, 30})
	if err != nil {
		t.Fatal(err)
	}

	cf := DefaultPowerCurve().WindCapacityFactor(ws)
	if cf.Value(0) != 0 {
		t.Errorf("Expected 0 at calm, got %g", cf.Value(0))
	}
	if got := cf.Value(1); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("Expected 1.0 at rated speed, got %g", got)
	}
	if cf.Value(2) != 0 {
		t.Errorf("Expected 0 above cut-out, got %g", cf.Value(2))
	}
}
