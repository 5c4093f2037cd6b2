// Package conic exposes the solver capability the dual optimizer needs:
// maximize a linear objective with an exact L1 penalty subject to a
// Hermitian positive-semidefinite cone constraint. The capability is an
// interface so the dual program can be unit-tested against small hand-built
// instances; the production realization is a cutting-plane loop whose inner
// problems are linear programs.
package conic

import (
	"context"
	"errors"

	"cvqkd-geat/qmath"
)

// Problem is one conic instance:
//
//	maximize   C.x - sum_i EpsL1[i]*|x_i|
//	subject to Base - sum_i x_i*Ops[i]  PSD,  |x_i| <= Bound.
//
// The box bound is a solver safety net, not part of the model; it must be
// chosen large enough that the optimum is interior.
type Problem struct {
	C     []float64
	EpsL1 []float64
	Base  *qmath.CMat
	Ops   []*qmath.CMat
	Bound float64
}

// Solution is the solver's output. Objective is the penalized objective
// value as the solver saw it; callers recompute their own unperturbed
// objective from X. MinEig is the final minimum eigenvalue of the matrix
// constraint, reported so callers can verify feasibility to tolerance.
type Solution struct {
	X         []float64
	Objective float64
	MinEig    float64
	Cuts      int
}

// Solver is the conic solve capability.
type Solver interface {
	Solve(ctx context.Context, p Problem) (Solution, error)
}

// ErrInfeasible reports that the solver could not produce a feasible point:
// the instance is infeasible, unbounded, or the iteration budget ran out.
// Callers must treat this as fatal for the current input row, never as a
// zero rate.
var ErrInfeasible = errors.New("conic: infeasible or not converged")

func (p Problem) validate() error {
	n := len(p.C)
	if n == 0 || len(p.Ops) != n || len(p.EpsL1) != n {
		return errors.New("conic: objective, penalty and operator counts disagree")
	}
	if p.Base == nil {
		return errors.New("conic: missing base matrix")
	}
	for _, op := range p.Ops {
		if op.N != p.Base.N {
			return errors.New("conic: operator dimension mismatch")
		}
	}
	if p.Bound <= 0 {
		return errors.New("conic: box bound must be positive")
	}
	return nil
}

// QuadForm returns Re v^dagger M v for a unit vector v.
func QuadForm(m *qmath.CMat, v []complex128) float64 {
	n := m.N
	var acc complex128
	for i := 0; i < n; i++ {
		var row complex128
		for j := 0; j < n; j++ {
			row += m.Data[i*n+j] * v[j]
		}
		acc += complex(real(v[i]), -imag(v[i])) * row
	}
	return real(acc)
}
