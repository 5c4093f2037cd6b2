package protocol

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mathext"

	"cvqkd-geat/qmath"
)

// Phase-space region operators on Bob's truncated Fock space.
//
// For a region A of the complex plane, R = (1/pi) Int_A |gamma><gamma| d^2gamma
// has the exact matrix elements
//
//	<m|R|n> = (1/pi) * I_ang(m-n) * I_rad(m+n) / sqrt(m! n!)
//
// where I_ang is the angular phase integral over the sector and I_rad the
// radial integral, an incomplete-gamma expression. The coherent-state
// resolution of identity holds entrywise on the truncated space, so any
// partition of the plane sums exactly to the identity.

// sectorOp builds the operator of the sector phi in [phi1, phi2], r >= r0.
func sectorOp(dim int, phi1, phi2, r0 float64) *qmath.CMat {
	out := qmath.NewCMat(dim)
	for m := 0; m < dim; m++ {
		for n := 0; n < dim; n++ {
			ang := angularIntegral(m-n, phi1, phi2)
			rad := radialUpper(m+n, r0)
			val := ang * complex(rad/(math.Pi*math.Sqrt(factorial(m)*factorial(n))), 0)
			out.Set(m, n, val)
		}
	}
	return out
}

// diskOp builds the operator of the central disk r < r0 (full angle).
func diskOp(dim int, r0 float64) *qmath.CMat {
	out := qmath.NewCMat(dim)
	for m := 0; m < dim; m++ {
		// Angular integral over 2*pi kills all off-diagonal elements.
		rad := radialLower(2*m, r0)
		out.Set(m, m, complex(2*rad/factorial(m), 0))
	}
	return out
}

// angularIntegral evaluates Int_{phi1}^{phi2} e^{i k phi} dphi.
func angularIntegral(k int, phi1, phi2 float64) complex128 {
	if k == 0 {
		return complex(phi2-phi1, 0)
	}
	ik := complex(0, float64(k))
	return (cmplx.Exp(ik*complex(phi2, 0)) - cmplx.Exp(ik*complex(phi1, 0))) / ik
}

// radialUpper evaluates Int_{r0}^{inf} e^{-r^2} r^{s+1} dr = Gamma(s/2+1, r0^2)/2.
func radialUpper(s int, r0 float64) float64 {
	a := float64(s)/2 + 1
	return 0.5 * math.Gamma(a) * mathext.GammaIncRegComp(a, r0*r0)
}

// radialLower evaluates Int_0^{r0} e^{-r^2} r^{s+1} dr, the lower branch.
func radialLower(s int, r0 float64) float64 {
	a := float64(s)/2 + 1
	return 0.5 * math.Gamma(a) * mathext.GammaIncReg(a, r0*r0)
}

func factorial(n int) float64 { return math.Gamma(float64(n) + 1) }

// KeyRegions returns the five key-map region operators on Bob's space:
// the four QPSK quadrants [x*pi/2, (x+1)*pi/2] outside the post-selection
// radius, followed by the discard region (the central disk).
func (c Config) KeyRegions() []*qmath.CMat {
	dim := c.BobDim()
	r0 := c.Radius()
	out := make([]*qmath.CMat, 0, KeyOutcomes)
	for x := 0; x < Settings; x++ {
		phi1 := float64(x) * math.Pi / 2
		out = append(out, sectorOp(dim, phi1, phi1+math.Pi/2, r0))
	}
	out = append(out, diskOp(dim, r0))
	return out
}

// PERegions returns the Bins+1 parameter-estimation bin operators: Bins
// equal angular sectors outside the post-selection radius plus the central
// disk as remainder. Together they partition phase space.
func (c Config) PERegions() []*qmath.CMat {
	dim := c.BobDim()
	r0 := c.Radius()
	width := 2 * math.Pi / float64(c.Bins)
	out := make([]*qmath.CMat, 0, c.Bins+1)
	for k := 0; k < c.Bins; k++ {
		phi1 := float64(k) * width
		out = append(out, sectorOp(dim, phi1, phi1+width, r0))
	}
	out = append(out, diskOp(dim, r0))
	return out
}
