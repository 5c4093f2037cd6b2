// Package finitesize turns the asymptotic dual solution into a maximized
// finite-size key rate: it sweeps a GEAT Renyi-type scaling exponent,
// root-finds the testing trade-off per candidate, assembles the correction
// terms and tracks the peak of the resulting rate curve.
package finitesize

import (
	"fmt"
	"math"
)

// EpsilonBudget carries the four security parameters of a run. They are
// plain configuration, passed explicitly everywhere they matter.
type EpsilonBudget struct {
	Sound float64 // overall soundness
	PE    float64 // parameter estimation
	PA    float64 // privacy amplification
	EC    float64 // error-correction verification
}

// DefaultEpsilons returns the production values.
func DefaultEpsilons() EpsilonBudget {
	return EpsilonBudget{Sound: 1e-10, PE: 1e-10, PA: 1e-10, EC: 1e-10}
}

// Validate checks every epsilon lies in (0,1).
func (e EpsilonBudget) Validate() error {
	for _, v := range []float64{e.Sound, e.PE, e.PA, e.EC} {
		if !(v > 0 && v < 1) {
			return fmt.Errorf("finitesize: epsilon %g outside (0,1)", v)
		}
	}
	return nil
}

// xiSwitch is the point below which 1-sqrt(1-eps^2) catastrophically
// cancels in float64 and the linearized branch takes over.
const xiSwitch = 0x1p-52

// Xi evaluates the smoothing overhead term -log2(1 - sqrt(1 - eps^2)).
// For eps^2 at or below the working epsilon the exact form loses all
// significant digits, so the first-order expansion -log2(eps^2/2) is used;
// the two branches agree to high relative precision at the switchover.
func Xi(eps float64) float64 {
	e2 := eps * eps
	if e2 <= xiSwitch {
		return -math.Log2(e2 / 2)
	}
	return -math.Log2(1 - math.Sqrt(1-e2))
}
