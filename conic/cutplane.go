package conic

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"cvqkd-geat/qmath"
)

// CutPlaneSolver solves Problem by outer separation over the PSD cone:
// each round solves a linear program over the accumulated cuts, then asks
// the eigensolver for the most violated direction of the matrix constraint
// and adds the cut v^dagger (Base - sum x Ops) v >= 0. The L1 penalty is
// exact in the LP through the usual positive/negative split.
type CutPlaneSolver struct {
	// MaxCuts caps the number of separation rounds (default 400).
	MaxCuts int
	// Tol is the eigenvalue tolerance below which the constraint matrix is
	// accepted as PSD (default 1e-8, relative to the base scale).
	Tol float64
	// LPTol is handed to the simplex routine (default 1e-10).
	LPTol float64
}

const (
	defaultMaxCuts = 400
	defaultTol     = 1e-8
	defaultLPTol   = 1e-10
)

type cut struct {
	coef []float64
	rhs  float64
}

// Solve implements Solver.
func (s *CutPlaneSolver) Solve(ctx context.Context, p Problem) (Solution, error) {
	if err := p.validate(); err != nil {
		return Solution{}, err
	}
	maxCuts := s.MaxCuts
	if maxCuts == 0 {
		maxCuts = defaultMaxCuts
	}
	tol := s.Tol
	if tol == 0 {
		tol = defaultTol
	}
	scale := p.Base.MaxAbs()
	if scale < 1 {
		scale = 1
	}
	eigTol := tol * scale

	n := len(p.C)
	var cuts []cut
	var sol Solution

	for round := 0; round <= maxCuts; round++ {
		if err := ctx.Err(); err != nil {
			return Solution{}, fmt.Errorf("conic: cancelled after %d cuts: %w", round, err)
		}
		x, err := s.solveLP(p, cuts)
		if err != nil {
			return Solution{}, fmt.Errorf("%w: inner LP after %d cuts: %v", ErrInfeasible, round, err)
		}

		m := p.Base.Copy()
		for i, op := range p.Ops {
			if x[i] != 0 {
				m.AddScaledInPlace(complex(-x[i], 0), op)
			}
		}
		lo, vec, err := qmath.MinEig(m)
		if err != nil {
			return Solution{}, fmt.Errorf("conic: separation eigensolve: %w", err)
		}
		if lo >= -eigTol {
			sol.X = x
			sol.MinEig = lo
			sol.Cuts = round
			sol.Objective = penalized(p, x)
			return sol, nil
		}
		coef := make([]float64, n)
		for i, op := range p.Ops {
			coef[i] = QuadForm(op, vec)
		}
		cuts = append(cuts, cut{coef: coef, rhs: QuadForm(p.Base, vec)})
	}
	return Solution{}, fmt.Errorf("%w: PSD constraint still violated after %d cuts", ErrInfeasible, maxCuts)
}

// solveLP solves the current relaxation. Variables are z = [u v t], with
// x = u - v, u,v >= 0, plus one slack per inequality row. Rows: box bounds
// u_i + s = Bound, v_i + s = Bound, and per cut sum_i (u_i - v_i) coef_i + s = rhs.
func (s *CutPlaneSolver) solveLP(p Problem, cuts []cut) ([]float64, error) {
	lpTol := s.LPTol
	if lpTol == 0 {
		lpTol = defaultLPTol
	}
	n := len(p.C)
	rows := 2*n + len(cuts)
	cols := 2*n + rows

	c := make([]float64, cols)
	for i := 0; i < n; i++ {
		// minimize -(C.x) + eps*(u+v)
		c[i] = -p.C[i] + p.EpsL1[i]
		c[n+i] = p.C[i] + p.EpsL1[i]
	}

	a := mat.NewDense(rows, cols, nil)
	b := make([]float64, rows)
	row := 0
	for i := 0; i < n; i++ {
		a.Set(row, i, 1)
		a.Set(row, 2*n+row, 1)
		b[row] = p.Bound
		row++
	}
	for i := 0; i < n; i++ {
		a.Set(row, n+i, 1)
		a.Set(row, 2*n+row, 1)
		b[row] = p.Bound
		row++
	}
	for _, ct := range cuts {
		for i := 0; i < n; i++ {
			a.Set(row, i, ct.coef[i])
			a.Set(row, n+i, -ct.coef[i])
		}
		a.Set(row, 2*n+row, 1)
		b[row] = ct.rhs
		row++
	}

	_, z, err := lp.Simplex(c, a, b, lpTol, nil)
	if err != nil {
		return nil, err
	}
	x := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = z[i] - z[n+i]
	}
	return x, nil
}

func penalized(p Problem, x []float64) float64 {
	var obj float64
	for i, xi := range x {
		obj += p.C[i] * xi
		if xi >= 0 {
			obj -= p.EpsL1[i] * xi
		} else {
			obj += p.EpsL1[i] * xi
		}
	}
	return obj
}
