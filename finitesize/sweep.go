package finitesize

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"

	"cvqkd-geat/dual"
	"cvqkd-geat/protocol"
)

// Variant selects the finite-size correction flavour.
type Variant int

const (
	// VariantA root-finds the key-generation probability p per sweep
	// candidate and uses the protocol-respecting dual spread.
	VariantA Variant = iota
	// VariantB root-finds a testing-fraction scaling exponent b with the
	// testing fraction N^(-b) and uses the raw MaxMin spread.
	VariantB
)

const (
	spreadLimitA = 400
	spreadLimitB = 200

	defaultStallLimit = 10
	defaultMaxIter    = 500

	// aCeil keeps the sweep strictly inside the domain of A(a) and Ka(a).
	aCeil = 1.95

	pFloor = 0.1
	bCeil  = 0.5
)

// Status classifies a finite-size outcome. A zero rate is only a failure
// when the status says so.
type Status int

const (
	StatusOK Status = iota
	// StatusZeroRate: the asymptotic bound cannot support a positive
	// finite-size rate. Expected, recoverable.
	StatusZeroRate
	// StatusSpreadTooLarge: the dual spread exceeds the sanity threshold;
	// the bound is unusable at finite size.
	StatusSpreadTooLarge
	// StatusExhausted: the sweep hit its iteration cap without committing
	// to a peak. A solver failure, reported with the PKey sentinel.
	StatusExhausted
)

// ErrSearchExhausted distinguishes a failed sweep from a legitimate zero.
var ErrSearchExhausted = errors.New("finitesize: sweep hit iteration cap without locating a peak")

// Config fixes one finite-size computation.
type Config struct {
	N          float64
	Eps        EpsilonBudget
	Variant    Variant
	StallLimit int // 0 means defaultStallLimit
	MaxIter    int // 0 means defaultMaxIter
}

// Result is the finite-size outcome for one input row. PKey is the solved
// key-generation fraction at the best candidate (variant B: 1 - N^(-b));
// it is -1 when the search was exhausted.
type Result struct {
	Rate   float64
	PKey   float64
	A      float64
	Status Status
}

var log2dO = math.Log2(float64(protocol.KeyOutcomes))

// Maximize runs the sweep over the scaling exponent and returns the
// maximized finite key rate.
func Maximize(cfg Config, sol *dual.Solution, table []float64) (Result, error) {
	if sol == nil {
		return Result{}, errors.New("finitesize: nil dual solution")
	}
	if cfg.N <= 1 {
		return Result{}, fmt.Errorf("finitesize: round count %g must exceed 1", cfg.N)
	}
	if err := cfg.Eps.Validate(); err != nil {
		return Result{}, err
	}
	if cfg.Variant == VariantA && len(table) != len(sol.Nu) {
		return Result{}, fmt.Errorf("finitesize: table has %d cells, dual vector %d", len(table), len(sol.Nu))
	}

	limit := float64(spreadLimitA)
	if cfg.Variant == VariantB {
		limit = spreadLimitB
	}
	if sol.MaxMin > limit {
		return Result{Status: StatusSpreadTooLarge}, nil
	}
	if sol.Rate <= 0 {
		return Result{Status: StatusZeroRate}, nil
	}

	g := sol.MaxMin
	if cfg.Variant == VariantA {
		g = SpreadF(sol.Nu)
	}

	stall := cfg.StallLimit
	if stall == 0 {
		stall = defaultStallLimit
	}
	maxIter := cfg.MaxIter
	if maxIter == 0 {
		maxIter = defaultMaxIter
	}

	aMax := sweepStart(cfg.N, sol.Rate, cfg.Eps)
	tracker := newPeakTracker(stall)
	bestP := -1.0

	a := aMax
	h := (aMax - 1) / 10
	capped := true
	for iter := 0; iter < maxIter; iter++ {
		fk, coord := cfg.evaluate(a, g, sol, table)
		improved := !tracker.seen || fk > tracker.best
		done := tracker.observe(a, fk)
		if improved {
			bestP = coord
		}
		if done {
			capped = false
			break
		}
		for a-h <= 1 && h >= 1e-12 {
			h /= 10
		}
		if h < 1e-12 {
			capped = false
			break
		}
		a -= h
	}

	arg, best, seen := tracker.bestPoint()
	if capped && !tracker.done() {
		return Result{Rate: 0, PKey: -1, Status: StatusExhausted}, ErrSearchExhausted
	}
	if !seen || best <= 0 {
		return Result{Status: StatusZeroRate}, nil
	}
	return Result{Rate: best, PKey: bestP, A: arg, Status: StatusOK}, nil
}

// sweepStart derives the upper end of the exponent interval from the
// expected block entropy and the epsilon terms.
func sweepStart(n, rate float64, eps EpsilonBudget) float64 {
	width := math.Sqrt((Xi(eps.PA) + 2*math.Log2(n/eps.PE)) / (n * rate))
	if width > 0.95 {
		width = 0.95
	}
	if width < 1e-9 {
		width = 1e-9
	}
	a := 1 + width
	if a > aCeil {
		a = aCeil
	}
	return a
}

// evaluate computes the finite key rate for one candidate exponent,
// root-finding the testing trade-off inside. It returns the rate and the
// solved key-generation fraction.
func (cfg Config) evaluate(a, g float64, sol *dual.Solution, table []float64) (float64, float64) {
	aCoef := math.Ln2 * (a - 1) / (4 - 2*a)
	v0 := math.Log2(2*float64(protocol.KeyOutcomes*protocol.KeyOutcomes) + 1)

	// zeroOne is the p-dependent part of the correction: rate loss on
	// testing rounds plus PE margin plus the GEAT variance term.
	var zeroOne func(p float64) float64
	var lo, hi float64
	if cfg.Variant == VariantA {
		zeroOne = func(p float64) float64 {
			t := PEMargin(cfg.N, p, table, sol.Nu, cfg.Eps.PE)
			one := aCoef * sq(v0+math.Sqrt(2+g*g/(4*(1-p))))
			return (1-p)*log2dO + t + one
		}
		lo, hi = pFloor, 1-1e-9
	} else {
		zeroOne = func(b float64) float64 {
			pt := math.Pow(cfg.N, -b)
			t := peMarginSpread(cfg.N, pt, g, cfg.Eps.PE)
			one := aCoef * sq(v0+math.Sqrt(2+g*g/(4*pt)))
			return pt*log2dO + t + one
		}
		lo, hi = 1e-6, bCeil-1e-9
	}

	balance := func(x float64) float64 {
		return fd.Derivative(zeroOne, x, &fd.Settings{Formula: fd.Central, Step: 1e-6})
	}
	x, err := findRoot(balance, lo, hi)
	if err != nil {
		x = argminScan(zeroOne, lo, hi)
	}

	zo := zeroOne(x)
	two := ka(a, g)
	three := (Xi(cfg.Eps.PA) + a/(a-1)*math.Log2(1/cfg.Eps.PE)) / cfg.N
	fk := sol.Rate - zo - two - three

	pKey := x
	if cfg.Variant == VariantB {
		pKey = 1 - math.Pow(cfg.N, -x)
	}
	return fk, pKey
}

// ka bounds the higher GEAT cumulants.
func ka(a, g float64) float64 {
	m := 2*log2dO + g
	num := (a - 1) * (a - 1) / (6 * math.Ln2 * math.Pow(2-a, 3))
	pw := math.Exp2((a - 1) * m / (2 - a))
	lg := math.Log(math.Exp2(m) + math.E*math.E)
	return num * pw * lg * lg * lg
}

// SpreadF computes the protocol-respecting dual spread: max(nu) minus the
// minimum of nu . p' over distributions p' with each preparation row's
// mass fixed at 1/4. The minimization is separable per row: all of a row's
// mass sits on its smallest coefficient.
func SpreadF(nu []float64) float64 {
	cols := len(nu) / protocol.Settings
	var minTerm float64
	for x := 0; x < protocol.Settings; x++ {
		row := nu[x*cols : (x+1)*cols]
		minTerm += floats.Min(row) / 4
	}
	return floats.Max(nu) - minTerm
}

func sq(x float64) float64 { return x * x }

func argminScan(f func(float64) float64, lo, hi float64) float64 {
	best := (lo + hi) / 2
	bestVal := math.Inf(1)
	for i := 0; i <= rootScanPoints; i++ {
		x := lo + (hi-lo)*float64(i)/rootScanPoints
		v := f(x)
		if !math.IsNaN(v) && v < bestVal {
			bestVal = v
			best = x
		}
	}
	return best
}
