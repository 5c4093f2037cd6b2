package qmath

import (
	"fmt"
)

// RepairResult reports what RepairPSD did to a state.
type RepairResult struct {
	Iterations int
	// Shrink is the total weight moved onto the maximally mixed state.
	Shrink float64
	MinEig float64
}

const repairMaxIter = 200

// RepairPSD enforces positive semidefiniteness of a Hermitian matrix by an
// iterative convex shrink toward I/N: while the minimum eigenvalue is
// negative, rho <- (1-t)*rho + t*I/N with t chosen so the shifted minimum
// eigenvalue lands at zero. The map is applied in place of a rejection: a
// slightly unphysical input state is repaired, not refused. Applying it to
// an already-PSD matrix returns the input unchanged.
func RepairPSD(m *CMat) (*CMat, RepairResult, error) {
	n := m.N
	cur := m.Hermitize()
	res := RepairResult{}
	for it := 0; it < repairMaxIter; it++ {
		lo, _, err := MinEig(cur)
		if err != nil {
			return nil, res, err
		}
		res.MinEig = lo
		if lo >= 0 {
			res.Iterations = it
			return cur, res, nil
		}
		// (1-t)*lo + t/n = 0  =>  t = lo / (lo - 1/n); lo < 0 keeps t in (0,1).
		t := lo / (lo - 1/float64(n))
		next := cur.Scale(complex(1-t, 0))
		for i := 0; i < n; i++ {
			next.Data[i*n+i] += complex(t/float64(n), 0)
		}
		cur = next
		res.Shrink += t
	}
	return nil, res, fmt.Errorf("qmath: PSD repair did not converge after %d iterations (min eig %.3e)", repairMaxIter, res.MinEig)
}
