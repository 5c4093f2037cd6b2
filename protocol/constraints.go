package protocol

import (
	"math"

	"cvqkd-geat/qmath"
)

// TomographyCount is the number of Alice-side tomography constraints: the
// real and imaginary parts of the six off-diagonal entries of the 4x4
// preparation-register state.
const TomographyCount = 12

// Constraints carries the parameter-estimation effects, the Alice-side
// tomography operators and the matching target values for one protocol
// configuration. Immutable once computed.
type Constraints struct {
	Cfg Config
	// PE holds Settings*(Bins+1) effects in row-major (setting, bin) order,
	// PE[x*(Bins+1)+k] = |x><x|_A (x) R_k.
	PE []*qmath.CMat
	// Theta holds the TomographyCount Hermitian tomography operators.
	Theta []*qmath.CMat
	// ThetaVal holds the target expectation of each Theta under the
	// theoretical Alice marginal.
	ThetaVal []float64
}

// NewConstraints builds all constraint operators for the configuration.
func NewConstraints(c Config) (*Constraints, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	dimB := c.BobDim()
	bins := c.PERegions()
	idB := qmath.Identity(dimB)

	cons := &Constraints{Cfg: c}
	for x := 0; x < Settings; x++ {
		proj := qmath.NewCMat(Settings)
		proj.Set(x, x, 1)
		for _, r := range bins {
			cons.PE = append(cons.PE, qmath.Kron(proj, r))
		}
	}

	for a := 0; a < Settings; a++ {
		for b := a + 1; b < Settings; b++ {
			sym, anti := tomographyPair(a, b)
			cons.Theta = append(cons.Theta, qmath.Kron(sym, idB))
			cons.Theta = append(cons.Theta, qmath.Kron(anti, idB))
		}
	}
	cons.ThetaVal = thetaTargets(c)
	return cons, nil
}

// ForAmp retargets the constraints at another preparation amplitude. The
// effect and tomography operators do not depend on the amplitude and are
// shared with the receiver; only the tomography targets and the reference
// marginal change.
func (cs *Constraints) ForAmp(amp float64) (*Constraints, error) {
	if amp == cs.Cfg.Amp {
		return cs, nil
	}
	c := cs.Cfg
	c.Amp = amp
	if err := c.Validate(); err != nil {
		return nil, err
	}
	out := *cs
	out.Cfg = c
	out.ThetaVal = thetaTargets(c)
	return &out, nil
}

// tomographyPair returns the real and imaginary probe operators for the
// (a, b) off-diagonal entry of the preparation-register state.
func tomographyPair(a, b int) (sym, anti *qmath.CMat) {
	sym = qmath.NewCMat(Settings)
	sym.Set(a, b, 1)
	sym.Set(b, a, 1)
	anti = qmath.NewCMat(Settings)
	anti.Set(a, b, complex(0, -1))
	anti.Set(b, a, complex(0, 1))
	return sym, anti
}

// thetaTargets evaluates the tomography probes on the theoretical Alice
// marginal for the configured amplitude, in Theta order.
func thetaTargets(c Config) []float64 {
	gram := c.AliceGram()
	vals := make([]float64, 0, TomographyCount)
	for a := 0; a < Settings; a++ {
		for b := a + 1; b < Settings; b++ {
			sym, anti := tomographyPair(a, b)
			vals = append(vals, qmath.RealInner(gram, sym), qmath.RealInner(gram, anti))
		}
	}
	return vals
}

// Cells returns the number of probability-table cells.
func (cs *Constraints) Cells() int { return len(cs.PE) }

// Table computes the simulated probability table of the state rho:
// p[x*(Bins+1)+k] = Tr(rho PE[x][k]). Rows sum to the setting probability
// 1/4 when the state's Alice marginal is properly normalized.
func (cs *Constraints) Table(rho *qmath.CMat) []float64 {
	out := make([]float64, len(cs.PE))
	for i, op := range cs.PE {
		p := qmath.RealInner(rho, op)
		if p < 0 && p > -1e-15 {
			p = 0
		}
		out[i] = p
	}
	return out
}

// MarginalGap returns the largest entrywise deviation between the reduced
// Alice state of rho and the theoretical Gram marginal. A gap above the
// physicality tolerance means the upstream asymptotic stage and this run
// disagree about (amp, cutoff); the gap is also the numerical-error bound
// fed to the dual program.
func (cs *Constraints) MarginalGap(rho *qmath.CMat) (float64, error) {
	redA, err := qmath.PartialTraceB(rho, Settings, cs.Cfg.BobDim())
	if err != nil {
		return 0, err
	}
	return qmath.MaxAbsDiff(redA, cs.Cfg.AliceGram()), nil
}

// ECCost returns the error-correction cost per round: eff * pPass * H(Z|X)
// over the accepted (non-discard) part of the key-map outcome distribution.
// eff = f, with f = 0 meaning the Shannon limit (eff = 1).
func (cs *Constraints) ECCost(rho *qmath.CMat, f float64) float64 {
	eff := f
	if eff == 0 {
		eff = 1
	}
	regions := cs.Cfg.KeyRegions()

	// Joint distribution over (setting, key outcome) excluding discard.
	var pPass float64
	joint := make([][]float64, Settings)
	for x := 0; x < Settings; x++ {
		proj := qmath.NewCMat(Settings)
		proj.Set(x, x, 1)
		joint[x] = make([]float64, Settings)
		for z := 0; z < Settings; z++ {
			p := qmath.RealInner(rho, qmath.Kron(proj, regions[z]))
			if p < 0 {
				p = 0
			}
			joint[x][z] = p
			pPass += p
		}
	}
	if pPass <= 0 {
		return 0
	}
	var hz float64
	for x := 0; x < Settings; x++ {
		var px float64
		for z := 0; z < Settings; z++ {
			px += joint[x][z]
		}
		if px <= 0 {
			continue
		}
		for z := 0; z < Settings; z++ {
			pc := joint[x][z] / px
			if pc > 0 {
				hz -= (px / pPass) * pc * math.Log2(pc)
			}
		}
	}
	return eff * pPass * hz
}
