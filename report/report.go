// Package report shapes solved dispatch results into tables and files:
// per-snapshot production rows, plot-group aggregation and CSV/JSON output.
package report

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/matteodefelice/pypsa-entsoe/dispatch"
	"github.com/matteodefelice/pypsa-entsoe/psa"
)

// Row is one production record of the dispatch table.
type Row struct {
	Snapshot   time.Time `json:"snapshot"`
	Bus        string    `json:"bus"`
	Type       string    `json:"type"`
	Production float64   `json:"prod"` // MW, negative when consuming
}

// plotGroups collapses carriers into the plotting groups of the original
// dispatch figures.
var plotGroups = map[string]string{
	"biomass":              "Other",
	"coal":                 "coal/lignite",
	"lignite":              "coal/lignite",
	"Derived gasses fleet": "Other",
	"oil":                  "Other",
	"onwind":               "RES",
	"offwind":              "RES",
	"ror":                  "RES",
	"solar":                "RES",
	"CCGT":                 "gas",
	"OCGT":                 "gas",
	"PHS":                  "hydro",
}

// minGroupEnergy drops plot groups whose total absolute production over the
// horizon stays below this many MWh.
const minGroupEnergy = 1.0

// DispatchTable flattens a solved network into production rows: generators
// typed by carrier, storage units by carrier (dispatch minus charge), and
// link flows attributed to the receiving bus.
func DispatchTable(n *psa.Network, res *dispatch.Result) []Row {
	var rows []Row

	for _, g := range n.Generators {
		s := res.Generation[g.Name]
		if s == nil {
			continue
		}
		for t, snapshot := range n.Snapshots {
			rows = append(rows, Row{Snapshot: snapshot, Bus: g.Bus, Type: g.Carrier, Production: s.Value(t)})
		}
	}
	for _, u := range n.StorageUnits {
		dis := res.StorageDispatch[u.Name]
		ch := res.StorageCharge[u.Name]
		if dis == nil {
			continue
		}
		for t, snapshot := range n.Snapshots {
			p := dis.Value(t)
			if ch != nil {
				p -= ch.Value(t)
			}
			rows = append(rows, Row{Snapshot: snapshot, Bus: u.Bus, Type: u.Carrier, Production: p})
		}
	}
	for _, l := range n.Links {
		flow := res.Flow[l.Name]
		if flow == nil {
			continue
		}
		for t, snapshot := range n.Snapshots {
			// positive flow is power received at Bus1
			rows = append(rows, Row{Snapshot: snapshot, Bus: l.Bus1, Type: l.Name, Production: flow.Value(t)})
		}
	}
	for bus, shed := range res.Shedding {
		for t, snapshot := range n.Snapshots {
			if v := shed.Value(t); v > 0 {
				rows = append(rows, Row{Snapshot: snapshot, Bus: bus, Type: "shed", Production: v})
			}
		}
	}
	return rows
}

// Collapse merges rows into plot groups, sums production per group, bus and
// snapshot, and drops groups whose net production over the whole table is
// negligible. The total is signed, so a group that nets to zero is dropped
// even when its hourly values are large.
func Collapse(rows []Row) []Row {
	type key struct {
		t        string
		bus      string
		snapshot time.Time
	}

	grouped := make(map[key]float64)
	totals := make(map[string]float64)
	for _, r := range rows {
		group := r.Type
		if g, ok := plotGroups[group]; ok {
			group = g
		}
		grouped[key{group, r.Bus, r.Snapshot}] += r.Production
		totals[group] += r.Production
	}

	out := make([]Row, 0, len(grouped))
	for k, p := range grouped {
		if math.Abs(totals[k.t]) < minGroupEnergy {
			continue
		}
		out = append(out, Row{Snapshot: k.snapshot, Bus: k.bus, Type: k.t, Production: p})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Snapshot.Equal(out[j].Snapshot) {
			return out[i].Snapshot.Before(out[j].Snapshot)
		}
		if out[i].Bus != out[j].Bus {
			return out[i].Bus < out[j].Bus
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// Summary condenses a run result for logging and the status API.
type Summary struct {
	Objective   float64            `json:"objective"`
	TotalByType map[string]float64 `json:"total_by_type"` // MWh
	ShedEnergy  float64            `json:"shed_energy"`
	Snapshots   int                `json:"snapshots"`
	Buses       []string           `json:"buses"`
}

// Summarize aggregates total production per plot group.
func Summarize(n *psa.Network, res *dispatch.Result, rows []Row) Summary {
	totals := make(map[string]float64)
	for _, r := range rows {
		totals[r.Type] += r.Production
	}
	return Summary{
		Objective:   res.Objective,
		TotalByType: totals,
		ShedEnergy:  res.ShedEnergy(),
		Snapshots:   len(n.Snapshots),
		Buses:       n.Buses,
	}
}

// String renders a short human-readable summary line.
func (s Summary) String() string {
	return fmt.Sprintf("objective %.2f, %d snapshots, %d buses, shed %.1f MWh",
		s.Objective, s.Snapshots, len(s.Buses), s.ShedEnergy)
}
