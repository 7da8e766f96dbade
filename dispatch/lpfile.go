package dispatch

import (
	"bufio"
	"fmt"
	"io"
	"math"
)

// writeLP renders the problem in CPLEX LP file format, the common input
// format of both HiGHS and CBC.
func (p *problem) writeLP(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "\\ %s\n", p.name)
	fmt.Fprintln(bw, "Minimize")
	fmt.Fprint(bw, " obj:")
	wrote := false
	line := 5
	for _, v := range p.vars {
		if v.cost == 0 {
			continue
		}
		line = writeTerm(bw, line, v.cost, v.name, !wrote)
		wrote = true
	}
	if !wrote {
		// degenerate objective, keep the file well-formed
		fmt.Fprintf(bw, " 0 %s", p.vars[0].name)
	}
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, "Subject To")
	for _, c := range p.constraints {
		fmt.Fprintf(bw, " %s:", c.name)
		line = len(c.name) + 2
		for i, t := range c.terms {
			line = writeTerm(bw, line, t.coef, p.vars[t.col].name, i == 0)
		}
		fmt.Fprintf(bw, " %s %s\n", c.sense, formatNum(c.rhs))
	}

	fmt.Fprintln(bw, "Bounds")
	for _, v := range p.vars {
		switch {
		case v.lower == v.upper:
			fmt.Fprintf(bw, " %s = %s\n", v.name, formatNum(v.lower))
		case v.lower == 0 && math.IsInf(v.upper, 1):
			// default bounds
		case math.IsInf(v.upper, 1):
			fmt.Fprintf(bw, " %s >= %s\n", v.name, formatNum(v.lower))
		default:
			fmt.Fprintf(bw, " %s <= %s <= %s\n", formatNum(v.lower), v.name, formatNum(v.upper))
		}
	}

	fmt.Fprintln(bw, "End")
	return bw.Flush()
}

// writeTerm appends one signed coefficient, wrapping long lines.
func writeTerm(w *bufio.Writer, line int, coef float64, name string, first bool) int {
	sign := "+"
	if coef < 0 {
		sign = "-"
		coef = -coef
	}
	var s string
	if first && sign == "+" {
		s = fmt.Sprintf(" %s %s", formatNum(coef), name)
	} else {
		s = fmt.Sprintf(" %s %s %s", sign, formatNum(coef), name)
	}
	if line+len(s) > 230 {
		fmt.Fprint(w, "\n ")
		line = 1
	}
	fmt.Fprint(w, s)
	return line + len(s)
}

// formatNum renders a float without exponent notation surprises.
func formatNum(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.6f", v)
}
