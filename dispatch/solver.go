package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/matteodefelice/pypsa-entsoe/psa"
)

// Solver kinds.
const (
	KindHiGHS = "highs"
	KindCBC   = "cbc"
)

// Solver runs an external LP solver binary on dispatch problems.
type Solver struct {
	// Binary is the solver executable, looked up on PATH when not
	// absolute. Defaults to "highs".
	Binary string
	// Kind selects the invocation and solution format, KindHiGHS or
	// KindCBC. Defaults to KindHiGHS.
	Kind string
	// Timeout bounds a single solver run. Zero means no extra limit
	// beyond the caller's context.
	Timeout time.Duration
	// WorkDir keeps the LP and solution files for inspection when set;
	// otherwise a temporary directory is used and removed afterwards.
	WorkDir string
}

// Solve builds the dispatch LP for the network, runs the solver and maps
// the primal solution back onto the network components.
func (s *Solver) Solve(ctx context.Context, n *psa.Network) (*Result, error) {
	m, err := buildProblem(n)
	if err != nil {
		return nil, err
	}

	dir := s.WorkDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "dispatch-*")
		if err != nil {
			return nil, fmt.Errorf("dispatch: create work dir: %w", err)
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("dispatch: create work dir: %w", err)
	}

	lpPath := filepath.Join(dir, "dispatch.lp")
	solPath := filepath.Join(dir, "dispatch.sol")

	f, err := os.Create(lpPath)
	if err != nil {
		return nil, fmt.Errorf("dispatch: create LP file: %w", err)
	}
	if err := m.prob.writeLP(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("dispatch: write LP file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("dispatch: close LP file: %w", err)
	}

	sol, err := s.run(ctx, lpPath, solPath)
	if err != nil {
		return nil, err
	}
	return m.result(sol), nil
}

// run invokes the solver binary and parses its solution file.
func (s *Solver) run(ctx context.Context, lpPath, solPath string) (*solution, error) {
	binary := s.Binary
	kind := s.Kind
	if kind == "" {
		kind = KindHiGHS
	}
	if binary == "" {
		binary = kind
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	var cmd *exec.Cmd
	switch kind {
	case KindHiGHS:
		cmd = exec.CommandContext(ctx, binary, lpPath, "--solution_file", solPath)
	case KindCBC:
		cmd = exec.CommandContext(ctx, binary, lpPath, "solve", "solu", solPath)
	default:
		return nil, fmt.Errorf("dispatch: unknown solver kind %q", kind)
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &SolverError{Binary: binary, Err: context.DeadlineExceeded}
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return nil, &SolverError{Binary: binary, Err: fmt.Errorf("not found: %w", err)}
		}
		return nil, &SolverError{Binary: binary, Err: err, Output: tail(output, 512)}
	}

	f, err := os.Open(solPath)
	if err != nil {
		return nil, &SolverError{Binary: binary, Err: fmt.Errorf("no solution file: %w", err), Output: tail(output, 512)}
	}
	defer f.Close()

	switch kind {
	case KindCBC:
		return parseCBCSolution(f)
	default:
		return parseHiGHSSolution(f)
	}
}

func tail(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[len(b)-n:])
}
