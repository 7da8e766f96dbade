package dispatch

import (
	"fmt"
	"math"
)

// Senses of a linear constraint row.
const (
	senseLE = "<="
	senseGE = ">="
	senseEQ = "="
)

// variable is one LP column with box bounds and an objective coefficient.
type variable struct {
	name  string
	lower float64
	upper float64 // +Inf allowed
	cost  float64
}

// term is one non-zero coefficient in a constraint row.
type term struct {
	col  int
	coef float64
}

// constraint is one LP row: sum(terms) sense rhs.
type constraint struct {
	name  string
	terms []term
	sense string
	rhs   float64
}

// problem is a minimization LP under construction.
type problem struct {
	name        string
	vars        []variable
	constraints []constraint
}

// addVar registers a column and returns its index.
func (p *problem) addVar(name string, lower, upper, cost float64) int {
	if lower > upper {
		lower = upper
	}
	p.vars = append(p.vars, variable{name: name, lower: lower, upper: upper, cost: cost})
	return len(p.vars) - 1
}

// addConstraint registers a row. Zero coefficients are kept out by the
// callers; empty rows are rejected.
func (p *problem) addConstraint(name string, terms []term, sense string, rhs float64) error {
	if len(terms) == 0 {
		return fmt.Errorf("dispatch: constraint %s has no terms", name)
	}
	for _, t := range terms {
		if t.col < 0 || t.col >= len(p.vars) {
			return fmt.Errorf("dispatch: constraint %s references unknown column %d", name, t.col)
		}
		if math.IsNaN(t.coef) {
			return fmt.Errorf("dispatch: constraint %s has NaN coefficient on %s", name, p.vars[t.col].name)
		}
	}
	if math.IsNaN(rhs) {
		return fmt.Errorf("dispatch: constraint %s has NaN right-hand side", name)
	}
	p.constraints = append(p.constraints, constraint{name: name, terms: terms, sense: sense, rhs: rhs})
	return nil
}
