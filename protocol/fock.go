// Package protocol builds the operator model of the discrete-modulated
// (QPSK) CV-QKD protocol on a photon-number-truncated Fock space: the
// key-map Kraus operators, the parameter-estimation region operators, the
// Alice-side tomography constraints and the probability tables the dual
// program consumes. Everything here is a pure function of the protocol
// configuration; operators are computed once per run and never mutated.
package protocol

import (
	"fmt"
	"math"
	"math/cmplx"

	"cvqkd-geat/qmath"
)

// Settings is the number of Alice preparation settings (QPSK).
const Settings = 4

// KeyOutcomes is the size of the key-map output alphabet: four key symbols
// plus the discard symbol.
const KeyOutcomes = 5

// Config fixes the protocol instance. PostSel is the radial post-selection
// parameter delta (acceptance radius r0 = delta/2); Bins is the number of
// angular parameter-estimation sectors (the table gains one remainder bin).
type Config struct {
	Cutoff  int
	Amp     float64
	PostSel float64
	Bins    int
}

// Validate checks the configuration ranges.
func (c Config) Validate() error {
	if c.Cutoff < 1 {
		return fmt.Errorf("protocol: cutoff must be >= 1, got %d", c.Cutoff)
	}
	if c.Amp <= 0 {
		return fmt.Errorf("protocol: amplitude must be positive, got %g", c.Amp)
	}
	if c.PostSel < 0 {
		return fmt.Errorf("protocol: post-selection parameter must be >= 0, got %g", c.PostSel)
	}
	if c.Bins < 2 {
		return fmt.Errorf("protocol: need at least 2 PE sectors, got %d", c.Bins)
	}
	return nil
}

// BobDim returns the truncated Fock dimension Nc+1.
func (c Config) BobDim() int { return c.Cutoff + 1 }

// Dim returns the joint dimension 4*(Nc+1).
func (c Config) Dim() int { return Settings * c.BobDim() }

// Cells returns the number of probability-table cells, Settings*(Bins+1).
func (c Config) Cells() int { return Settings * (c.Bins + 1) }

// Radius returns the post-selection radius r0.
func (c Config) Radius() float64 { return c.PostSel / 2 }

// CoherentPhase returns Alice's x-th QPSK phase (2x+1)*pi/4.
func CoherentPhase(x int) float64 { return math.Pi * float64(2*x+1) / 4 }

// CoherentAmplitude returns the complex amplitude of setting x.
func (c Config) CoherentAmplitude(x int) complex128 {
	return cmplx.Rect(c.Amp, CoherentPhase(x))
}

// CoherentVec returns the truncated Fock expansion of |alpha>, with the
// untruncated normalization e^{-|a|^2/2} a^n / sqrt(n!). The truncation
// deficit is deliberate: the cutoff channel is part of the model.
func CoherentVec(alpha complex128, dim int) []complex128 {
	out := make([]complex128, dim)
	norm := math.Exp(-real(alpha*cmplx.Conj(alpha)) / 2)
	term := complex(norm, 0)
	for n := 0; n < dim; n++ {
		out[n] = term
		term *= alpha / complex(math.Sqrt(float64(n+1)), 0)
	}
	return out
}

// AliceGram returns the theoretical reduced state of Alice's preparation
// register under source replacement: rhoA[x][y] = <alpha_y|alpha_x>/4,
// using exact (untruncated) coherent-state overlaps.
func (c Config) AliceGram() *qmath.CMat {
	g := qmath.NewCMat(Settings)
	for x := 0; x < Settings; x++ {
		ax := c.CoherentAmplitude(x)
		for y := 0; y < Settings; y++ {
			ay := c.CoherentAmplitude(y)
			ov := cmplx.Exp(-(ax*cmplx.Conj(ax)+ay*cmplx.Conj(ay))/2 + cmplx.Conj(ay)*ax)
			g.Set(x, y, ov/4)
		}
	}
	return g
}
