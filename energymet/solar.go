package energymet

import (
	"fmt"
	"math"

	"github.com/sixdouglas/suncalc"

	"github.com/matteodefelice/pypsa-entsoe/timeseries"
)

// Reference values from Evans and Florschuetz (1977); the reference
// efficiency is adapted following Bett and Thornton (2016).
const (
	pvRefTemperature = 25.0
	pvRefEfficiency  = 0.9
	pvBeta           = 0.0042
	pvRefIrradiance  = 1000.0
)

// SolarOptions tunes the PV conversion. The zero value disables the night
// clamp.
type SolarOptions struct {
	// ClampNight zeroes the capacity factor whenever the sun is below the
	// horizon at Latitude/Longitude. Useful when the irradiance series is
	// noisy around dawn and dusk.
	ClampNight bool
	Latitude   float64
	Longitude  float64
}

// SolarCapacityFactor converts 2m air temperature and surface downwelling
// shortwave radiation (W/m2) into a PV capacity factor series following
// Bloomfield et al. (2020). Temperature given in Kelvin is detected and
// converted. NaN inputs produce a zero capacity factor.
func SolarCapacityFactor(tmp, ssr *timeseries.Series, opts SolarOptions) (*timeseries.Series, error) {
	if tmp.Len() != ssr.Len() {
		return nil, fmt.Errorf("energymet: temperature and irradiance lengths differ: %d vs %d", tmp.Len(), ssr.Len())
	}

	tmp = toCelsius(tmp)

	times := tmp.Times()
	values := make([]float64, tmp.Len())
	for i := range values {
		t := tmp.Value(i)
		g := ssr.Value(i)
		eff := pvRefEfficiency * (1 - pvBeta*(t-pvRefTemperature))
		cf := eff * g / pvRefIrradiance
		if math.IsNaN(cf) {
			cf = 0
		}
		if opts.ClampNight && cf > 0 {
			pos := suncalc.GetPosition(times[i], opts.Latitude, opts.Longitude)
			if pos.Altitude <= 0 {
				cf = 0
			}
		}
		values[i] = cf
	}

	return timeseries.New(times, values)
}

// toCelsius converts a temperature series from Kelvin when its minimum
// exceeds 200, the same heuristic the C3S tooling applies.
func toCelsius(tmp *timeseries.Series) *timeseries.Series {
	if min := tmp.Min(); min > 200 {
		return tmp.Map(func(v float64) float64 { return v - 273.15 })
	}
	return tmp
}
