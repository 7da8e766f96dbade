package energymet

import (
	"fmt"
	"math"
	"time"

	"github.com/matteodefelice/pypsa-entsoe/timeseries"
)

// Degree thresholds for the cooling and heating predictors (degrees C).
const (
	coolingThreshold = 24.0
	heatingThreshold = 15.0
)

// DemandOptions configures the demand regression.
type DemandOptions struct {
	// MinLoad and MaxLoad scale the normalised regression output back to MW.
	MinLoad float64
	MaxLoad float64
	// IsHoliday marks public holidays for the holTRUE predictor. Nil means
	// no holidays.
	IsHoliday func(time.Time) bool
}

// EstimateDemand builds an hourly electricity demand series from temperature
// and irradiance through a pre-fitted regression model. The coefficient map
// uses the predictor names of the original model: "cool", "heat", "ssrd",
// "hour01".."hour23", "wday01".."wday07" (Monday is wday01), "holTRUE" and an
// optional "intercept". The normalised prediction is scaled to
// [MinLoad, MaxLoad].
func EstimateDemand(tmp, ssr *timeseries.Series, coefs map[string]float64, opts DemandOptions) (*timeseries.Series, error) {
	if tmp.Len() != ssr.Len() {
		return nil, fmt.Errorf("energymet: temperature and irradiance lengths differ: %d vs %d", tmp.Len(), ssr.Len())
	}
	if opts.MaxLoad < opts.MinLoad {
		return nil, fmt.Errorf("energymet: max load %g below min load %g", opts.MaxLoad, opts.MinLoad)
	}
	if len(coefs) == 0 {
		return nil, fmt.Errorf("energymet: no regression coefficients")
	}

	tmp = toCelsius(tmp)

	times := tmp.Times()
	values := make([]float64, tmp.Len())
	for i := range values {
		t := tmp.Value(i)
		if math.IsNaN(t) {
			values[i] = math.NaN()
			continue
		}
		norm := coefs["intercept"]
		if t > coolingThreshold {
			norm += coefs["cool"] * (t - coolingThreshold)
		}
		if t < heatingThreshold {
			norm += coefs["heat"] * (heatingThreshold - t)
		}
		if g := ssr.Value(i); !math.IsNaN(g) {
			norm += coefs["ssrd"] * g
		}
		ts := times[i]
		if h := ts.Hour(); h > 0 {
			norm += coefs[fmt.Sprintf("hour%02d", h)]
		}
		norm += coefs[fmt.Sprintf("wday%02d", isoWeekday(ts))]
		if opts.IsHoliday != nil && opts.IsHoliday(ts) {
			norm += coefs["holTRUE"]
		}
		values[i] = norm*(opts.MaxLoad-opts.MinLoad) + opts.MinLoad
	}

	return timeseries.New(times, values)
}

// isoWeekday maps a time to 1 (Monday) .. 7 (Sunday).
func isoWeekday(t time.Time) int {
	return (int(t.Weekday())+6)%7 + 1
}
