package dispatch

import (
	"github.com/matteodefelice/pypsa-entsoe/timeseries"
)

// Result is the solved dispatch mapped back onto network components. All
// series share the network snapshots as index.
type Result struct {
	Objective float64

	// Generation is the hourly output per generator name, MW.
	Generation map[string]*timeseries.Series
	// StorageDispatch and StorageCharge are per storage unit name, MW.
	StorageDispatch map[string]*timeseries.Series
	StorageCharge   map[string]*timeseries.Series
	// StateOfCharge is the stored energy per storage unit name, MWh.
	StateOfCharge map[string]*timeseries.Series
	// Spill is the spilled inflow per storage unit name, MW; only units
	// with an inflow series appear.
	Spill map[string]*timeseries.Series
	// Flow is the net link flow per link name, MW, positive from Bus0 to
	// Bus1.
	Flow map[string]*timeseries.Series
	// Shedding is the unserved load per bus, MW.
	Shedding map[string]*timeseries.Series
}

// ShedEnergy returns the total unserved energy in MWh.
func (r *Result) ShedEnergy() float64 {
	total := 0.0
	for _, s := range r.Shedding {
		total += s.Sum()
	}
	return total
}

// result maps a primal solution onto the network components.
func (m *model) result(sol *solution) *Result {
	n := m.network
	res := &Result{
		Objective:       sol.objective,
		Generation:      make(map[string]*timeseries.Series, len(n.Generators)),
		StorageDispatch: make(map[string]*timeseries.Series, len(n.StorageUnits)),
		StorageCharge:   make(map[string]*timeseries.Series, len(n.StorageUnits)),
		StateOfCharge:   make(map[string]*timeseries.Series, len(n.StorageUnits)),
		Spill:           make(map[string]*timeseries.Series),
		Flow:            make(map[string]*timeseries.Series, len(n.Links)),
		Shedding:        make(map[string]*timeseries.Series, len(n.Buses)),
	}

	for i, g := range n.Generators {
		res.Generation[g.Name] = m.colsSeries(sol, m.genCols[i])
	}
	for i, s := range n.StorageUnits {
		res.StorageDispatch[s.Name] = m.colsSeries(sol, m.disCols[i])
		res.StorageCharge[s.Name] = m.colsSeries(sol, m.chCols[i])
		res.StateOfCharge[s.Name] = m.colsSeries(sol, m.socCols[i])
		if m.spillCols[i] != nil {
			res.Spill[s.Name] = m.colsSeries(sol, m.spillCols[i])
		}
	}
	for i, l := range n.Links {
		values := make([]float64, len(n.Snapshots))
		for t := range values {
			fwd := sol.values[m.prob.vars[m.fwdCols[i][t]].name]
			rev := sol.values[m.prob.vars[m.revCols[i][t]].name]
			values[t] = fwd - rev
		}
		flow, _ := timeseries.New(n.Snapshots, values)
		res.Flow[l.Name] = flow
	}
	for b, bus := range n.Buses {
		res.Shedding[bus] = m.colsSeries(sol, m.shedCols[b])
	}
	return res
}

// colsSeries extracts one column group as a series over the snapshots.
// Columns absent from the solution read as zero, which is how solvers
// report nonbasic variables at their lower bound.
func (m *model) colsSeries(sol *solution, cols []int) *timeseries.Series {
	values := make([]float64, len(cols))
	for t, col := range cols {
		values[t] = sol.values[m.prob.vars[col].name]
	}
	s, _ := timeseries.New(m.network.Snapshots, values)
	return s
}
