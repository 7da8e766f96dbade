// Package energymet converts meteorological time series into power-system
// quantities: wind and solar capacity factors, regression-based electricity
// demand and weekly hydropower reservoir inflow.
//
// The conversion formulas follow Bloomfield et al. (2020),
// https://doi.org/10.1002/met.1858, and the ENTSO-E weekly reservoir
// accounting described in the package functions.
package energymet
