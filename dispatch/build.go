package dispatch

import (
	"fmt"
	"math"

	"github.com/matteodefelice/pypsa-entsoe/psa"
)

// SheddingCost is the objective penalty per MWh of unserved load, high
// enough to keep shedding a last resort.
const SheddingCost = 3000.0

// model ties the LP columns back to the network components.
type model struct {
	prob    *problem
	network *psa.Network

	genCols   [][]int // [generator][snapshot]
	disCols   [][]int // storage dispatch
	chCols    [][]int // storage charge
	socCols   [][]int // storage state of charge
	spillCols [][]int // storage spill, nil when the unit has no inflow
	fwdCols   [][]int // link flow bus0 -> bus1
	revCols   [][]int // link flow bus1 -> bus0
	shedCols  [][]int // [bus][snapshot]
}

// buildProblem translates the network into the dispatch LP.
func buildProblem(n *psa.Network) (*model, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}

	T := len(n.Snapshots)
	m := &model{
		prob:    &problem{name: "dispatch"},
		network: n,
	}

	// generator output columns
	m.genCols = make([][]int, len(n.Generators))
	for i, g := range n.Generators {
		cols := make([]int, T)
		for t := 0; t < T; t++ {
			avail := 1.0
			if g.PMaxPU != nil {
				avail = g.PMaxPU.Value(t)
				if math.IsNaN(avail) || avail < 0 {
					avail = 0
				}
			}
			upper := avail * g.PNom
			lower := g.PMinPU * g.PNom
			cols[t] = m.prob.addVar(fmt.Sprintf("g%d_%d", i, t), lower, upper, g.MarginalCost)
		}
		m.genCols[i] = cols
	}

	// storage columns
	m.disCols = make([][]int, len(n.StorageUnits))
	m.chCols = make([][]int, len(n.StorageUnits))
	m.socCols = make([][]int, len(n.StorageUnits))
	m.spillCols = make([][]int, len(n.StorageUnits))
	for i, s := range n.StorageUnits {
		dis := make([]int, T)
		ch := make([]int, T)
		soc := make([]int, T)
		var spill []int
		if s.Inflow != nil {
			spill = make([]int, T)
		}
		chMax := s.PNom
		if s.EffStore == 0 {
			chMax = 0 // no pumping
		}
		for t := 0; t < T; t++ {
			dis[t] = m.prob.addVar(fmt.Sprintf("sd%d_%d", i, t), 0, s.PNom, s.MarginalCost)
			ch[t] = m.prob.addVar(fmt.Sprintf("sc%d_%d", i, t), 0, chMax, 0)
			soc[t] = m.prob.addVar(fmt.Sprintf("se%d_%d", i, t), 0, s.MaxHours*s.PNom, 0)
			if spill != nil {
				spill[t] = m.prob.addVar(fmt.Sprintf("sp%d_%d", i, t), 0, math.Inf(1), 0)
			}
		}
		m.disCols[i], m.chCols[i], m.socCols[i], m.spillCols[i] = dis, ch, soc, spill
	}

	// link flow columns, one per direction
	m.fwdCols = make([][]int, len(n.Links))
	m.revCols = make([][]int, len(n.Links))
	for i, l := range n.Links {
		fwd := make([]int, T)
		rev := make([]int, T)
		for t := 0; t < T; t++ {
			fwd[t] = m.prob.addVar(fmt.Sprintf("f%d_%d", i, t), 0, l.PNom, 0)
			rev[t] = m.prob.addVar(fmt.Sprintf("r%d_%d", i, t), 0, l.PNomReverse, 0)
		}
		m.fwdCols[i], m.revCols[i] = fwd, rev
	}

	// load shedding columns
	m.shedCols = make([][]int, len(n.Buses))
	for b := range n.Buses {
		cols := make([]int, T)
		for t := 0; t < T; t++ {
			cols[t] = m.prob.addVar(fmt.Sprintf("u%d_%d", b, t), 0, math.Inf(1), SheddingCost)
		}
		m.shedCols[b] = cols
	}

	if err := m.addBalanceConstraints(); err != nil {
		return nil, err
	}
	if err := m.addRampConstraints(); err != nil {
		return nil, err
	}
	if err := m.addStorageConstraints(); err != nil {
		return nil, err
	}
	return m, nil
}

// addBalanceConstraints adds the nodal energy balance per bus and hour.
func (m *model) addBalanceConstraints() error {
	n := m.network
	for b, bus := range n.Buses {
		for t := range n.Snapshots {
			var terms []term
			for i, g := range n.Generators {
				if g.Bus == bus {
					terms = append(terms, term{m.genCols[i][t], 1})
				}
			}
			for i, s := range n.StorageUnits {
				if s.Bus == bus {
					terms = append(terms, term{m.disCols[i][t], 1}, term{m.chCols[i][t], -1})
				}
			}
			for i, l := range n.Links {
				eff := l.Efficiency
				if eff == 0 {
					eff = 1
				}
				if l.Bus0 == bus {
					terms = append(terms, term{m.fwdCols[i][t], -1}, term{m.revCols[i][t], eff})
				}
				if l.Bus1 == bus {
					terms = append(terms, term{m.fwdCols[i][t], eff}, term{m.revCols[i][t], -1})
				}
			}
			terms = append(terms, term{m.shedCols[b][t], 1})

			demand := 0.0
			for _, l := range n.Loads {
				if l.Bus != bus {
					continue
				}
				v := l.Series.Value(t)
				if math.IsNaN(v) {
					return fmt.Errorf("dispatch: load %s has missing demand at %s", l.Name, n.Snapshots[t])
				}
				demand += v
			}

			name := fmt.Sprintf("bal_%s_%d", bus, t)
			if err := m.prob.addConstraint(name, terms, senseEQ, demand); err != nil {
				return err
			}
		}
	}
	return nil
}

// addRampConstraints bounds the hour-to-hour output change of generators
// that carry ramp limits.
func (m *model) addRampConstraints() error {
	n := m.network
	for i, g := range n.Generators {
		if g.RampLimitUp <= 0 && g.RampLimitDown <= 0 {
			continue
		}
		for t := 1; t < len(n.Snapshots); t++ {
			delta := []term{{m.genCols[i][t], 1}, {m.genCols[i][t-1], -1}}
			if g.RampLimitUp > 0 {
				name := fmt.Sprintf("rup%d_%d", i, t)
				if err := m.prob.addConstraint(name, delta, senseLE, g.RampLimitUp*g.PNom); err != nil {
					return err
				}
			}
			if g.RampLimitDown > 0 {
				name := fmt.Sprintf("rdn%d_%d", i, t)
				if err := m.prob.addConstraint(name, delta, senseGE, -g.RampLimitDown*g.PNom); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// addStorageConstraints adds the energy balance of each storage unit:
//
//	soc(t) = soc(t-1) + effStore*charge(t) - dispatch(t)/effDispatch
//	         + inflow(t) - spill(t)
//
// Cyclic units wrap soc(-1) to the final state of charge.
func (m *model) addStorageConstraints() error {
	n := m.network
	T := len(n.Snapshots)
	for i, s := range n.StorageUnits {
		effDis := s.EffDispatch
		if effDis == 0 {
			effDis = 1
		}
		for t := 0; t < T; t++ {
			terms := []term{
				{m.socCols[i][t], 1},
				{m.disCols[i][t], 1 / effDis},
			}
			if s.EffStore > 0 {
				terms = append(terms, term{m.chCols[i][t], -s.EffStore})
			}
			prev := t - 1
			if t == 0 {
				if !s.CyclicSOC {
					prev = -1
				} else {
					prev = T - 1
				}
			}
			if prev >= 0 {
				terms = append(terms, term{m.socCols[i][prev], -1})
			}
			rhs := 0.0
			if s.Inflow != nil {
				v := s.Inflow.Value(t)
				if !math.IsNaN(v) {
					rhs = v
				}
				terms = append(terms, term{m.spillCols[i][t], 1})
			}
			name := fmt.Sprintf("soc%d_%d", i, t)
			if err := m.prob.addConstraint(name, terms, senseEQ, rhs); err != nil {
				return err
			}
		}
	}
	return nil
}
