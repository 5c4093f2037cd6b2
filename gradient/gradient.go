// Package gradient computes the relative-entropy gradient operator of the
// key-rate objective at a given state. The objective is
// D(G(rho) || Z(G(rho))) in bits; its gradient, pulled back to the state
// space, is G^dagger (log2 tau - log2 Z(tau)) G with tau = G rho G^dagger.
//
// The two log-matrices are large and nearly equal, so the pinched branch is
// eigendecomposed and logarithmed at an escalated big.Float precision and
// only the final subtraction happens in working precision. Callers must
// repair the state to positive semidefiniteness first; the eigendecomposition
// of an indefinite "density matrix" is not meaningful here.
package gradient

import (
	"fmt"

	"cvqkd-geat/protocol"
	"cvqkd-geat/qmath"
)

// DefaultPrec is the big.Float precision (bits) of the pinched-state path.
const DefaultPrec = 160

// Compute returns the Hermitian gradient operator at rho. prec selects the
// escalated precision; prec = 0 uses DefaultPrec.
func Compute(rho *qmath.CMat, km *protocol.KeyMap, prec uint) (*qmath.CMat, error) {
	if rho.N != km.Dim {
		return nil, fmt.Errorf("gradient: state dimension %d does not match key map dimension %d", rho.N, km.Dim)
	}
	if prec == 0 {
		prec = DefaultPrec
	}

	tau := km.Apply(rho).Hermitize()
	logTau, err := qmath.Log2M(tau)
	if err != nil {
		return nil, fmt.Errorf("gradient: log of key-mapped state: %w", err)
	}

	pinched := km.Pinch(tau)
	logPinched, err := qmath.Log2MBig(qmath.LiftCMat(pinched, prec))
	if err != nil {
		return nil, fmt.Errorf("gradient: log of pinched state: %w", err)
	}

	grad := km.PullBack(logTau.Sub(logPinched)).Hermitize()
	if !grad.IsFinite() {
		return nil, fmt.Errorf("gradient: non-finite gradient entries")
	}
	return grad, nil
}
