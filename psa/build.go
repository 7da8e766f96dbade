package psa

import (
	"fmt"
	"math"
	"sort"

	"github.com/matteodefelice/pypsa-entsoe/timeseries"
)

// Quantiles used to estimate committable minimums and ramp limits from
// observed generation.
const (
	pMinQuantile = 0.001
	rampQuantile = 0.999
)

// GeneratorOptions tunes how the generator table is derived from observed
// data.
type GeneratorOptions struct {
	// Generation holds observed hourly generation per production type name.
	// When set it refines p_min_pu (from the 0.1% quantile of output) and
	// the ramp limits (from the 99.9% quantile of hourly output changes).
	Generation    map[string]*timeseries.Series
	EstimatePMin  bool
	EstimateRamps bool
}

// GeneratorsFromCapacity aggregates installed capacity (MW per production
// type name) into one generator per carrier on the bus, merged with the
// per-carrier template. Carriers with zero capacity are skipped.
func GeneratorsFromCapacity(bus string, capacity map[string]float64, mapping CarrierMapping, templates map[string]GeneratorTemplate, opts GeneratorOptions) ([]Generator, error) {
	if len(capacity) == 0 {
		return nil, fmt.Errorf("psa: no installed capacity for bus %s", bus)
	}

	byCarrier := aggregateCapacity(capacity, mapping)
	// storage carriers become StorageUnits, not generators
	delete(byCarrier, "hydro")
	delete(byCarrier, "PHS")

	var genByCarrier map[string]*timeseries.Series
	if opts.Generation != nil && (opts.EstimatePMin || opts.EstimateRamps) {
		genByCarrier = aggregateSeries(opts.Generation, mapping)
	}

	carriers := make([]string, 0, len(byCarrier))
	for c := range byCarrier {
		carriers = append(carriers, c)
	}
	sort.Strings(carriers)

	gens := make([]Generator, 0, len(carriers))
	for _, carrier := range carriers {
		pNom := byCarrier[carrier]
		if pNom <= 0 {
			continue
		}
		tpl, ok := templates[carrier]
		if !ok {
			return nil, fmt.Errorf("psa: no template for carrier %s", carrier)
		}

		g := Generator{
			Name:         fmt.Sprintf("%s %s", bus, carrier),
			Bus:          bus,
			Carrier:      carrier,
			PNom:         pNom,
			MarginalCost: tpl.MarginalCost,
			Efficiency:   tpl.Efficiency,
			PMinPU:       tpl.PMinPU,
		}

		if obs := genByCarrier[carrier]; obs != nil {
			if opts.EstimatePMin {
				if q, err := obs.Quantile(pMinQuantile); err == nil {
					g.PMinPU = clampUnit(q / pNom)
				}
			}
			if opts.EstimateRamps {
				up, down := rampLimits(obs, pNom)
				g.RampLimitUp = up
				g.RampLimitDown = down
			}
		}
		gens = append(gens, g)
	}
	return gens, nil
}

// StoragesFromCapacity builds the hydro reservoir and pumped-hydro storage
// units of the bus from installed capacity.
func StoragesFromCapacity(bus string, capacity map[string]float64, mapping CarrierMapping, templates map[string]StoreTemplate) ([]StorageUnit, error) {
	if len(capacity) == 0 {
		return nil, fmt.Errorf("psa: no installed capacity for bus %s", bus)
	}

	byCarrier := aggregateCapacity(capacity, mapping)

	var units []StorageUnit
	for _, carrier := range []string{"hydro", "PHS"} {
		pNom := byCarrier[carrier]
		if pNom <= 0 {
			continue
		}
		tpl, ok := templates[carrier]
		if !ok {
			return nil, fmt.Errorf("psa: no store template for carrier %s", carrier)
		}
		units = append(units, StorageUnit{
			Name:         fmt.Sprintf("%s %s", bus, carrier),
			Bus:          bus,
			Carrier:      carrier,
			PNom:         pNom,
			MaxHours:     tpl.MaxHours,
			MarginalCost: tpl.MarginalCost,
			EffStore:     tpl.EffStore,
			EffDispatch:  tpl.EffDispatch,
			CyclicSOC:    true,
		})
	}
	return units, nil
}

// aggregateCapacity sums installed capacity per carrier, skipping NaN
// entries.
func aggregateCapacity(capacity map[string]float64, mapping CarrierMapping) map[string]float64 {
	out := make(map[string]float64)
	for productionType, mw := range capacity {
		if math.IsNaN(mw) {
			continue
		}
		out[mapping.Carrier(productionType)] += mw
	}
	return out
}

// aggregateSeries sums observed generation per carrier over the common
// timestamps of the contributing series.
func aggregateSeries(generation map[string]*timeseries.Series, mapping CarrierMapping) map[string]*timeseries.Series {
	grouped := make(map[string][]*timeseries.Series)
	for productionType, s := range generation {
		if s == nil || s.Len() == 0 {
			continue
		}
		carrier := mapping.Carrier(productionType)
		grouped[carrier] = append(grouped[carrier], s)
	}

	out := make(map[string]*timeseries.Series, len(grouped))
	for carrier, parts := range grouped {
		sum := parts[0]
		for _, p := range parts[1:] {
			a, b := timeseries.Align(sum, p)
			sum = addSeries(a, b)
		}
		out[carrier] = sum
	}
	return out
}

func addSeries(a, b *timeseries.Series) *timeseries.Series {
	values := make([]float64, a.Len())
	for i := range values {
		values[i] = a.Value(i) + b.Value(i)
	}
	s, _ := timeseries.New(a.Times(), values)
	return s
}

// rampLimits estimates per-unit hourly ramp limits from the extreme
// quantiles of the observed output changes.
func rampLimits(obs *timeseries.Series, pNom float64) (up, down float64) {
	d := obs.Diff()
	if q, err := d.Quantile(rampQuantile); err == nil && q > 0 {
		up = clampUnit(q / pNom)
	}
	if q, err := d.Quantile(1 - rampQuantile); err == nil && q < 0 {
		down = clampUnit(-q / pNom)
	}
	return up, down
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
