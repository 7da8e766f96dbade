package dispatch

import (
	"errors"
	"fmt"
)

// ErrInfeasible is returned when the solver proves the dispatch problem has
// no feasible solution.
var ErrInfeasible = errors.New("dispatch: problem is infeasible")

// SolverError wraps a failed solver invocation with its captured output.
type SolverError struct {
	Binary string
	Err    error
	Output string
}

func (e *SolverError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("dispatch: solver %s failed: %v: %s", e.Binary, e.Err, e.Output)
	}
	return fmt.Sprintf("dispatch: solver %s failed: %v", e.Binary, e.Err)
}

func (e *SolverError) Unwrap() error { return e.Err }
