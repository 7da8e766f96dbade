package psa

import (
	"fmt"
	"time"

	"github.com/matteodefelice/pypsa-entsoe/timeseries"
)

// Generator is an aggregated per-carrier generation fleet on a bus.
type Generator struct {
	Name         string
	Bus          string
	Carrier      string
	PNom         float64 // MW
	MarginalCost float64 // EUR/MWh
	Efficiency   float64
	PMinPU       float64
	// RampLimitUp and RampLimitDown are per-unit limits on the hourly
	// output change. Zero means unlimited.
	RampLimitUp   float64
	RampLimitDown float64
	// PMaxPU is the hourly availability of the fleet; nil means fully
	// available.
	PMaxPU *timeseries.Series
}

// StorageUnit is an aggregated hydro reservoir or pumped-hydro fleet.
type StorageUnit struct {
	Name         string
	Bus          string
	Carrier      string
	PNom         float64 // MW
	MaxHours     float64 // energy capacity as hours at PNom
	MarginalCost float64
	EffStore     float64
	EffDispatch  float64
	CyclicSOC    bool
	// Inflow is the hourly natural inflow in MW; nil means none.
	Inflow *timeseries.Series
}

// Load is the hourly electricity demand on a bus.
type Load struct {
	Name   string
	Bus    string
	Series *timeseries.Series
}

// Link is a cross-border interconnector with per-direction transfer
// capacity.
type Link struct {
	Name        string
	Bus0        string
	Bus1        string
	PNom        float64 // MW, bus0 -> bus1
	PNomReverse float64 // MW, bus1 -> bus0
	Efficiency  float64
}

// Network is the complete model input: snapshots plus the component tables.
type Network struct {
	Snapshots    []time.Time
	Buses        []string
	Generators   []Generator
	StorageUnits []StorageUnit
	Loads        []Load
	Links        []Link
}

// AddBus appends a bus unless it is already present.
func (n *Network) AddBus(name string) {
	for _, b := range n.Buses {
		if b == name {
			return
		}
	}
	n.Buses = append(n.Buses, name)
}

// HasBus reports whether the bus exists.
func (n *Network) HasBus(name string) bool {
	for _, b := range n.Buses {
		if b == name {
			return true
		}
	}
	return false
}

// Validate checks referential integrity and series alignment before the
// network is handed to the solver.
func (n *Network) Validate() error {
	if len(n.Snapshots) == 0 {
		return fmt.Errorf("psa: network has no snapshots")
	}
	if len(n.Buses) == 0 {
		return fmt.Errorf("psa: network has no buses")
	}
	for i := 1; i < len(n.Snapshots); i++ {
		if !n.Snapshots[i].After(n.Snapshots[i-1]) {
			return fmt.Errorf("psa: snapshots not strictly increasing at %s", n.Snapshots[i])
		}
	}

	for _, g := range n.Generators {
		if !n.HasBus(g.Bus) {
			return fmt.Errorf("psa: generator %s references unknown bus %s", g.Name, g.Bus)
		}
		if g.PNom < 0 {
			return fmt.Errorf("psa: generator %s has negative p_nom %g", g.Name, g.PNom)
		}
		if g.PMinPU < 0 || g.PMinPU > 1 {
			return fmt.Errorf("psa: generator %s p_min_pu %g outside [0,1]", g.Name, g.PMinPU)
		}
		if g.PMaxPU != nil && g.PMaxPU.Len() != len(n.Snapshots) {
			return fmt.Errorf("psa: generator %s availability has %d values, expected %d",
				g.Name, g.PMaxPU.Len(), len(n.Snapshots))
		}
	}
	for _, s := range n.StorageUnits {
		if !n.HasBus(s.Bus) {
			return fmt.Errorf("psa: storage %s references unknown bus %s", s.Name, s.Bus)
		}
		if s.PNom < 0 {
			return fmt.Errorf("psa: storage %s has negative p_nom %g", s.Name, s.PNom)
		}
		if s.MaxHours <= 0 {
			return fmt.Errorf("psa: storage %s needs positive max_hours, got %g", s.Name, s.MaxHours)
		}
		if s.Inflow != nil && s.Inflow.Len() != len(n.Snapshots) {
			return fmt.Errorf("psa: storage %s inflow has %d values, expected %d",
				s.Name, s.Inflow.Len(), len(n.Snapshots))
		}
	}
	for _, l := range n.Loads {
		if !n.HasBus(l.Bus) {
			return fmt.Errorf("psa: load %s references unknown bus %s", l.Name, l.Bus)
		}
		if l.Series == nil || l.Series.Len() != len(n.Snapshots) {
			return fmt.Errorf("psa: load %s series does not match the snapshots", l.Name)
		}
	}
	for _, l := range n.Links {
		if !n.HasBus(l.Bus0) || !n.HasBus(l.Bus1) {
			return fmt.Errorf("psa: link %s references unknown bus", l.Name)
		}
		if l.PNom < 0 || l.PNomReverse < 0 {
			return fmt.Errorf("psa: link %s has negative transfer capacity", l.Name)
		}
	}
	return nil
}
