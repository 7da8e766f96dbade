package dispatch

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// solution holds the primal values of a solved LP by column name.
type solution struct {
	objective float64
	values    map[string]float64
}

// parseHiGHSSolution reads the raw solution file HiGHS writes with
// --solution_file. The layout is a "Model status" line, an "Objective"
// line, then "# Columns <n>" followed by name/value pairs.
func parseHiGHSSolution(r io.Reader) (*solution, error) {
	sol := &solution{values: make(map[string]float64)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	inColumns := false
	expectStatus := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "Model status":
			expectStatus = true
			continue
		case expectStatus:
			expectStatus = false
			if !strings.EqualFold(line, "Optimal") {
				if strings.Contains(strings.ToLower(line), "infeasible") {
					return nil, ErrInfeasible
				}
				return nil, fmt.Errorf("dispatch: solver finished with status %q", line)
			}
		case strings.HasPrefix(line, "Objective"):
			fields := strings.Fields(line)
			v, err := strconv.ParseFloat(fields[len(fields)-1], 64)
			if err != nil {
				return nil, fmt.Errorf("dispatch: parse objective %q: %w", line, err)
			}
			sol.objective = v
		case strings.HasPrefix(line, "# Columns"):
			inColumns = true
		case strings.HasPrefix(line, "# Rows"), strings.HasPrefix(line, "# Basis"), strings.HasPrefix(line, "# Dual"):
			inColumns = false
		case inColumns:
			fields := strings.Fields(line)
			if len(fields) != 2 {
				continue
			}
			v, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, fmt.Errorf("dispatch: parse column %q: %w", line, err)
			}
			sol.values[fields[0]] = v
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("dispatch: read solution: %w", err)
	}
	if len(sol.values) == 0 {
		return nil, fmt.Errorf("dispatch: solution file contains no column values")
	}
	return sol, nil
}

// parseCBCSolution reads the file CBC writes for "solve solu <file>": a
// status line with the objective, then one row per nonbasic/basic column
// with index, name, value and reduced cost.
func parseCBCSolution(r io.Reader) (*solution, error) {
	sol := &solution{values: make(map[string]float64)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if first {
			first = false
			lower := strings.ToLower(line)
			if strings.Contains(lower, "infeasible") {
				return nil, ErrInfeasible
			}
			if !strings.Contains(lower, "optimal") {
				return nil, fmt.Errorf("dispatch: solver finished with status %q", line)
			}
			if idx := strings.Index(lower, "objective value"); idx >= 0 {
				fields := strings.Fields(line[idx+len("objective value"):])
				if len(fields) > 0 {
					v, err := strconv.ParseFloat(fields[0], 64)
					if err != nil {
						return nil, fmt.Errorf("dispatch: parse objective %q: %w", line, err)
					}
					sol.objective = v
				}
			}
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		// leading "**" marks variables at infeasible bounds
		if fields[0] == "**" {
			fields = fields[1:]
		}
		if len(fields) < 3 {
			continue
		}
		v, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("dispatch: parse column %q: %w", line, err)
		}
		sol.values[fields[1]] = v
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("dispatch: read solution: %w", err)
	}
	if first {
		return nil, fmt.Errorf("dispatch: empty solution file")
	}
	return sol, nil
}
