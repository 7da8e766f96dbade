// Package dispatch translates a psa.Network into a linear program for
// hourly economic dispatch and solves it with an external solver binary
// (HiGHS or CBC). The LP is written in CPLEX LP file format; the solver is
// treated as opaque and only its exit status, objective and primal values
// are consumed.
package dispatch
