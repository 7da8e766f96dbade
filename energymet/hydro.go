package energymet

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/matteodefelice/pypsa-entsoe/timeseries"
)

// ReservoirInflow estimates weekly hydropower inflow from ENTSO-E data: the
// hourly reservoir generation series and the weekly filling rate of the
// reservoirs (stored energy, MWh). The inflow for week w is
//
//	inflow(w) = generation(w) + storage(w+1) - storage(w)
//
// indexed on the start of week w. The last storage point has no successor,
// so the final week's inflow is NaN.
func ReservoirInflow(gen, storage *timeseries.Series) (*timeseries.Series, error) {
	if storage.Len() < 2 {
		return nil, fmt.Errorf("energymet: need at least 2 storage points, got %d", storage.Len())
	}

	times := storage.Times()
	values := make([]float64, storage.Len())
	for i := range values {
		if i == storage.Len()-1 {
			values[i] = math.NaN()
			break
		}
		week := gen.Slice(times[i], times[i+1])
		values[i] = week.Sum() + storage.Value(i+1) - storage.Value(i)
	}

	return timeseries.New(times, values)
}

// SpreadWeeklyToHourly distributes a weekly energy series evenly over the
// hours of an hourly index. Hours before the first or after the last week
// get zero.
func SpreadWeeklyToHourly(weekly *timeseries.Series, index []time.Time) (*timeseries.Series, error) {
	if weekly.Len() == 0 {
		return nil, fmt.Errorf("energymet: empty weekly series")
	}

	values := make([]float64, len(index))
	times := weekly.Times()
	for i, t := range index {
		// last week start at or before t
		j := sort.Search(weekly.Len(), func(k int) bool { return times[k].After(t) }) - 1
		if j < 0 || j == weekly.Len()-1 {
			continue
		}
		hours := times[j+1].Sub(times[j]).Hours()
		if hours <= 0 {
			continue
		}
		if v := weekly.Value(j); !math.IsNaN(v) {
			values[i] = v / hours
		}
	}

	return timeseries.New(index, values)
}
