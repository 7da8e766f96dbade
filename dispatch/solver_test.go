package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// fakeSolver writes a shell script that emits a prepared solution file,
// standing in for the HiGHS binary.
func fakeSolver(t *testing.T, solution string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake solver script requires a POSIX shell")
	}
	dir := t.TempDir()
	solSrc := filepath.Join(dir, "prepared.sol")
	if err := os.WriteFile(solSrc, []byte(solution), 0o644); err != nil {
		t.Fatal(err)
	}
	script := filepath.Join(dir, "highs")
	body := fmt.Sprintf("#!/bin/sh\n# $1 = LP file, $2 = --solution_file, $3 = output\ncp %q \"$3\"\n", solSrc)
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return script
}

func TestSolverSolve(t *testing.T) {
	n := twoBusNetwork(t)
	m, err := buildProblem(n)
	if err != nil {
		t.Fatal(err)
	}

	// feasible assignment: coal covers DE, nuclear plus hydro cover FR
	sol := "Model status\nOptimal\nObjective 250000\n# Columns " +
		fmt.Sprint(len(m.prob.vars)) + "\n"
	for _, v := range m.prob.vars {
		value := 0.0
		switch v.name[0] {
		case 'g':
			value = 1000
		case 'f':
			value = 250
		}
		sol += fmt.Sprintf("%s %g\n", v.name, value)
	}

	solver := &Solver{Binary: fakeSolver(t, sol), Kind: KindHiGHS}
	res, err := solver.Solve(context.Background(), n)
	if err != nil {
		t.Fatalf("Solve() failed: %v", err)
	}

	if res.Objective != 250000 {
		t.Errorf("Expected objective 250000, got %g", res.Objective)
	}
	coal, ok := res.Generation["DE coal"]
	if !ok {
		t.Fatal("Expected coal generation series")
	}
	if coal.Len() != len(n.Snapshots) || coal.Value(0) != 1000 {
		t.Errorf("Unexpected coal series: len %d first %g", coal.Len(), coal.Value(0))
	}
	flow, ok := res.Flow["DE-FR"]
	if !ok {
		t.Fatal("Expected link flow series")
	}
	// net flow = forward 250 minus reverse 0
	if math.Abs(flow.Value(0)-250) > 1e-9 {
		t.Errorf("Expected net flow 250, got %g", flow.Value(0))
	}
	if res.ShedEnergy() != 0 {
		t.Errorf("Expected no shedding, got %g", res.ShedEnergy())
	}
}

func TestSolverSolve_Infeasible(t *testing.T) {
	solver := &Solver{Binary: fakeSolver(t, "Model status\nInfeasible\n")}
	_, err := solver.Solve(context.Background(), twoBusNetwork(t))
	if !errors.Is(err, ErrInfeasible) {
		t.Fatalf("Expected ErrInfeasible, got %v", err)
	}
}

func TestSolverSolve_BinaryNotFound(t *testing.T) {
	solver := &Solver{Binary: filepath.Join(t.TempDir(), "missing-solver")}
	_, err := solver.Solve(context.Background(), twoBusNetwork(t))
	var solverErr *SolverError
	if !errors.As(err, &solverErr) {
		t.Fatalf("Expected SolverError, got %T: %v", err, err)
	}
}

func TestSolverSolve_UnknownKind(t *testing.T) {
	solver := &Solver{Kind: "gurobi"}
	if _, err := solver.Solve(context.Background(), twoBusNetwork(t)); err == nil {
		t.Fatal("Expected error for unknown solver kind")
	}
}

func TestSolverSolve_KeepsWorkDir(t *testing.T) {
	n := twoBusNetwork(t)
	m, err := buildProblem(n)
	if err != nil {
		t.Fatal(err)
	}
	sol := "Model status\nOptimal\nObjective 1\n# Columns 1\n" + m.prob.vars[0].name + " 0\n"

	workDir := filepath.Join(t.TempDir(), "lp")
	solver := &Solver{Binary: fakeSolver(t, sol), WorkDir: workDir, Timeout: time.Minute}
	if _, err := solver.Solve(context.Background(), n); err != nil {
		t.Fatalf("Solve() failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(workDir, "dispatch.lp")); err != nil {
		t.Errorf("Expected LP file kept in work dir: %v", err)
	}
}
