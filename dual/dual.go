// Package dual formulates and solves the linearized entropy bound as a
// conic program over the dual variables: one multiplier per
// probability-table cell (nu) and one per Alice tomography constraint
// (kappa). The program is the Frank-Wolfe dual perturbation step: it
// maximizes the linear functional given by the simulated statistics,
// robustified by an epsilon-weighted L1 penalty against the measured
// numerical error, subject to the gradient staying dominated in the PSD
// order by the chosen linear combination of constraint operators.
package dual

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"cvqkd-geat/conic"
	"cvqkd-geat/protocol"
	"cvqkd-geat/qmath"
)

// RegWeight is the fixed ridge coefficient the variant-A solve uses to bias
// the solver toward small dual variables. It cannot improve the true
// objective; it shrinks the nu spread that the finite-size variance term
// pays for. Empirically tuned.
const RegWeight = 1e-5

// regPasses is the number of proximal linearization rounds realizing the
// ridge term on top of the LP-based solver.
const regPasses = 3

// feasTol is the acceptable violation of the returned PSD constraint.
const feasTol = 5e-7

// varBound is the solver box; dual vectors anywhere near it are far beyond
// the finite-size sanity thresholds and would be discarded downstream.
const varBound = 1e3

// Params collects the inputs of one dual solve.
type Params struct {
	Gradient *qmath.CMat
	Cons     *protocol.Constraints
	// Table is the simulated probability table, one entry per cell.
	Table []float64
	// Eps is the numerical-error bound the L1 penalty is weighted by.
	Eps float64
	// DeltaEC is the error-correction cost subtracted from the objective.
	DeltaEC float64
	// Regularize enables the variant-A ridge bias on nu.
	Regularize bool
}

// Solution is the dual optimizer's output.
type Solution struct {
	Nu     []float64
	Kappa  []float64
	MaxMin float64
	// Objective is recomputed from the returned variables with the
	// epsilon L1 penalty but never the ridge term.
	Objective float64
	// Rate is Objective minus the error-correction cost.
	Rate    float64
	DeltaEC float64
	MinEig  float64
	Cuts    int
}

// Solve runs the dual program on the given solver.
func Solve(ctx context.Context, solver conic.Solver, p Params) (*Solution, error) {
	cells := p.Cons.Cells()
	if len(p.Table) != cells {
		return nil, fmt.Errorf("dual: table has %d cells, constraints expect %d", len(p.Table), cells)
	}
	if p.Eps < 0 {
		return nil, fmt.Errorf("dual: negative numerical-error bound %g", p.Eps)
	}
	nvar := cells + protocol.TomographyCount

	c := make([]float64, nvar)
	copy(c, p.Table)
	copy(c[cells:], p.Cons.ThetaVal)
	epsl1 := make([]float64, nvar)
	for i := range epsl1 {
		epsl1[i] = p.Eps
	}
	ops := make([]*qmath.CMat, 0, nvar)
	ops = append(ops, p.Cons.PE...)
	ops = append(ops, p.Cons.Theta...)

	prob := conic.Problem{
		C:     c,
		EpsL1: epsl1,
		Base:  p.Gradient,
		Ops:   ops,
		Bound: varBound,
	}

	passes := 1
	if p.Regularize {
		passes = regPasses
	}
	var sol conic.Solution
	var err error
	for pass := 0; pass < passes; pass++ {
		sol, err = solver.Solve(ctx, prob)
		if err != nil {
			return nil, fmt.Errorf("dual: %w", err)
		}
		if pass == passes-1 {
			break
		}
		// Proximal linearization of the ridge: shift the objective by the
		// gradient of RegWeight*||nu||^2 at the current iterate.
		next := make([]float64, nvar)
		copy(next, c)
		for i := 0; i < cells; i++ {
			next[i] -= 2 * RegWeight * sol.X[i]
		}
		prob.C = next
	}

	scale := p.Gradient.MaxAbs()
	if scale < 1 {
		scale = 1
	}
	if sol.MinEig < -feasTol*scale {
		return nil, fmt.Errorf("dual: %w: returned point violates the cone by %.3e", conic.ErrInfeasible, -sol.MinEig)
	}

	out := &Solution{
		Nu:      append([]float64(nil), sol.X[:cells]...),
		Kappa:   append([]float64(nil), sol.X[cells:]...),
		DeltaEC: p.DeltaEC,
		MinEig:  sol.MinEig,
		Cuts:    sol.Cuts,
	}
	out.MaxMin = floats.Max(out.Nu) - floats.Min(out.Nu)
	out.Objective = objective(c, epsl1, sol.X)
	out.Rate = out.Objective - p.DeltaEC
	return out, nil
}

// objective recomputes the epsilon-penalized (never ridge-penalized)
// objective from the solved variable values.
func objective(c, epsl1, x []float64) float64 {
	var obj float64
	for i, xi := range x {
		obj += c[i]*xi - epsl1[i]*math.Abs(xi)
	}
	return obj
}
