package energymet

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/matteodefelice/pypsa-entsoe/timeseries"
)

//go:embed curves/vestas_v110_2000.txt
var vestasV110Curve string

const (
	curveBinWidth = 0.1
	curveMaxSpeed = 50.0
)

// PowerCurve maps wind speed at hub height to a turbine capacity factor.
// Internally the curve is refined to a regular 0.1 m/s grid between 0 and
// 50 m/s by linear interpolation of the given points.
type PowerCurve struct {
	speeds  []float64
	factors []float64
}

// DefaultPowerCurve returns the built-in Vestas V110 2.0 MW curve.
func DefaultPowerCurve() *PowerCurve {
	curve, err := ParsePowerCurve(strings.NewReader(vestasV110Curve))
	if err != nil {
		panic(fmt.Sprintf("energymet: embedded power curve invalid: %v", err))
	}
	return curve
}

// ParsePowerCurve reads a whitespace-delimited power curve file with three
// columns: wind speed (m/s), power (kW) and capacity factor. Lines starting
// with "#" and blank lines are skipped. The middle column is informational
// and ignored.
func ParsePowerCurve(r io.Reader) (*PowerCurve, error) {
	var ws, cf []float64

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("energymet: power curve line %q: expected 3 columns, got %d", line, len(fields))
		}
		var speed, power, factor float64
		if _, err := fmt.Sscanf(fields[0], "%f", &speed); err != nil {
			return nil, fmt.Errorf("energymet: power curve wind speed %q: %w", fields[0], err)
		}
		if _, err := fmt.Sscanf(fields[1], "%f", &power); err != nil {
			return nil, fmt.Errorf("energymet: power curve power %q: %w", fields[1], err)
		}
		if _, err := fmt.Sscanf(fields[2], "%f", &factor); err != nil {
			return nil, fmt.Errorf("energymet: power curve capacity factor %q: %w", fields[2], err)
		}
		if len(ws) > 0 && speed <= ws[len(ws)-1] {
			return nil, fmt.Errorf("energymet: power curve wind speeds must be strictly increasing at %g", speed)
		}
		ws = append(ws, speed)
		cf = append(cf, factor)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("energymet: read power curve: %w", err)
	}
	if len(ws) < 2 {
		return nil, fmt.Errorf("energymet: power curve needs at least 2 points, got %d", len(ws))
	}

	return refineCurve(ws, cf), nil
}

// refineCurve interpolates the curve points onto a regular grid. Values
// outside the given speed range keep the nearest endpoint value.
func refineCurve(ws, cf []float64) *PowerCurve {
	n := int(curveMaxSpeed/curveBinWidth) + 1
	speeds := make([]float64, n)
	factors := make([]float64, n)
	for i := range speeds {
		speeds[i] = float64(i) * curveBinWidth
		factors[i] = interp(speeds[i], ws, cf)
	}
	return &PowerCurve{speeds: speeds, factors: factors}
}

func interp(x float64, xs, ys []float64) float64 {
	if x <= xs[0] {
		return ys[0]
	}
	if x >= xs[len(xs)-1] {
		return ys[len(ys)-1]
	}
	for i := 1; i < len(xs); i++ {
		if x <= xs[i] {
			frac := (x - xs[i-1]) / (xs[i] - xs[i-1])
			return ys[i-1] + frac*(ys[i]-ys[i-1])
		}
	}
	return ys[len(ys)-1]
}

// Factor returns the capacity factor for a wind speed. The value is the mean
// of the two grid bins enclosing the speed, matching the binned conversion of
// the C3S energy reanalysis tooling.
func (c *PowerCurve) Factor(speed float64) float64 {
	if speed != speed { // NaN
		return 0
	}
	// index of the first grid point strictly above the speed
	idx := sort.Search(len(c.speeds), func(i int) bool { return c.speeds[i] > speed })
	if idx == 0 {
		idx = 1
	}
	if idx >= len(c.speeds) {
		idx = len(c.speeds) - 1
	}
	return 0.5 * (c.factors[idx-1] + c.factors[idx])
}

// WindCapacityFactor converts a wind speed series (m/s) into a capacity
// factor series using the curve.
func (c *PowerCurve) WindCapacityFactor(ws *timeseries.Series) *timeseries.Series {
	return ws.Map(c.Factor)
}
