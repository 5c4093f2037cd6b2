package finitesize

import (
	"errors"
	"math"
	"testing"

	"cvqkd-geat/dual"
)

func testSolution(rate, maxMin float64) (*dual.Solution, []float64) {
	cells := 24
	nu := make([]float64, cells)
	table := make([]float64, cells)
	for i := range nu {
		nu[i] = maxMin * float64(i) / float64(cells-1)
		table[i] = 1.0 / float64(cells)
	}
	return &dual.Solution{Nu: nu, MaxMin: maxMin, Rate: rate}, table
}

func TestXiContinuousAtSwitchover(t *testing.T) {
	eps := math.Sqrt(xiSwitch)
	below := Xi(eps * (1 - 1e-10))
	above := Xi(eps * (1 + 1e-10))
	if relDiff := math.Abs(below-above) / above; relDiff > 1e-9 {
		t.Fatalf("Xi jumps at switchover: %.15g vs %.15g (rel %g)", below, above, relDiff)
	}
}

func TestXiDecreasesWithEps(t *testing.T) {
	prev := math.Inf(1)
	for _, eps := range []float64{1e-30, 1e-12, 1e-10, 1e-6, 1e-2, 0.5} {
		v := Xi(eps)
		if !(v < prev) {
			t.Fatalf("Xi(%g)=%g not below Xi at smaller eps %g", eps, v, prev)
		}
		if v <= 0 {
			t.Fatalf("Xi(%g)=%g not positive", eps, v)
		}
		prev = v
	}
}

func TestPEMarginShrinksWithN(t *testing.T) {
	_, table := testSolution(0.1, 5)
	nu := make([]float64, len(table))
	for i := range nu {
		nu[i] = float64(i % 7)
	}
	prev := math.Inf(1)
	for _, n := range []float64{1e6, 1e8, 1e10, 1e12} {
		m := PEMargin(n, 0.9, table, nu, 1e-10)
		if !(m > 0) {
			t.Fatalf("margin %g at N=%g not positive", m, n)
		}
		if !(m < prev) {
			t.Fatalf("margin %g at N=%g did not shrink from %g", m, n, prev)
		}
		prev = m
	}
}

func TestPEMarginZeroForConstantScores(t *testing.T) {
	_, table := testSolution(0.1, 5)
	nu := make([]float64, len(table))
	for i := range nu {
		nu[i] = 3.25
	}
	// Constant nu means the spread and every conditional deviation vanish
	// against the zero-score remainder only when p=0; with p>0 the
	// remainder bin contributes through the recentered scores.
	m := PEMargin(1e9, 0, table, nu, 1e-10)
	if m != 0 {
		t.Fatalf("margin %g for constant scores with no key rounds, want 0", m)
	}
}

func TestPEMarginRejectsBadInput(t *testing.T) {
	_, table := testSolution(0.1, 5)
	nu := make([]float64, len(table))
	if m := PEMargin(1e9, 1.0, table, nu, 1e-10); !math.IsInf(m, 1) {
		t.Fatalf("p=1 gave %g, want +Inf", m)
	}
	if m := PEMargin(0.5, 0.9, table, nu, 1e-10); !math.IsInf(m, 1) {
		t.Fatalf("N<=1 gave %g, want +Inf", m)
	}
	if m := PEMargin(1e9, 0.9, table, nu[:3], 1e-10); !math.IsInf(m, 1) {
		t.Fatalf("length mismatch gave %g, want +Inf", m)
	}
}

// The spread surrogate must dominate the exact recursive bound for every
// table it stands in for. The hardest case concentrates the whole testing
// mass on the cell with the extreme score.
func TestSpreadMarginDominatesConcentratedTable(t *testing.T) {
	const (
		n      = 1e10
		pt     = 0.01
		spread = 100.0
		epsPE  = 1e-10
	)
	table := make([]float64, 24)
	nu := make([]float64, 24)
	table[7] = 1
	nu[7] = spread
	exact := PEMargin(n, 1-pt, table, nu, epsPE)
	if sur := peMarginSpread(n, pt, spread, epsPE); sur < exact {
		t.Fatalf("surrogate %g below exact margin %g", sur, exact)
	}
	// Spreading the testing mass evenly only loosens the exact bound's gap.
	for i := range table {
		table[i] = 1.0 / 24
		nu[i] = spread * float64(i) / 23
	}
	exact = PEMargin(n, 1-pt, table, nu, epsPE)
	if sur := peMarginSpread(n, pt, spread, epsPE); sur < exact {
		t.Fatalf("surrogate %g below exact margin %g on the even table", sur, exact)
	}
}

func TestPeakTrackerTerminatesPastPeak(t *testing.T) {
	tr := newPeakTracker(3)
	curve := func(a float64) float64 { return 1 - (a-1.2)*(a-1.2) }
	a := 1.5
	steps := 0
	for ; steps < 100; steps++ {
		if tr.observe(a, curve(a)) {
			break
		}
		a -= 0.02
	}
	if !tr.done() {
		t.Fatal("tracker never committed to a peak")
	}
	arg, val, ok := tr.bestPoint()
	if !ok || val <= 0 {
		t.Fatalf("best point missing: val=%g ok=%v", val, ok)
	}
	if math.Abs(arg-1.2) > 0.03 {
		t.Fatalf("peak located at %g, want near 1.2", arg)
	}
}

func TestPeakTrackerIgnoresNegativePlateau(t *testing.T) {
	tr := newPeakTracker(3)
	// A long run of non-improving negative values must not trigger the
	// stall exit: there is no positive peak to have passed.
	tr.observe(1.9, -1)
	for i := 0; i < 50; i++ {
		if tr.observe(1.9-float64(i)*0.01, -2) {
			t.Fatal("tracker stopped on a negative plateau")
		}
	}
	if tr.done() {
		t.Fatal("tracker committed without a positive maximum")
	}
}

func TestMaximizeShortCircuitSpread(t *testing.T) {
	sol, table := testSolution(0.05, 401)
	res, err := Maximize(Config{N: 1e10, Eps: DefaultEpsilons()}, sol, table)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusSpreadTooLarge || res.Rate != 0 {
		t.Fatalf("spread 401 gave status %v rate %g", res.Status, res.Rate)
	}

	// Variant B trips at the lower threshold.
	sol.MaxMin = 201
	res, err = Maximize(Config{N: 1e10, Eps: DefaultEpsilons(), Variant: VariantB}, sol, table)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusSpreadTooLarge {
		t.Fatalf("variant B spread 201 gave status %v", res.Status)
	}
	res, err = Maximize(Config{N: 1e10, Eps: DefaultEpsilons()}, sol, table)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status == StatusSpreadTooLarge {
		t.Fatal("variant A tripped below its own threshold")
	}
}

func TestMaximizeShortCircuitZeroRate(t *testing.T) {
	sol, table := testSolution(-0.01, 5)
	res, err := Maximize(Config{N: 1e10, Eps: DefaultEpsilons()}, sol, table)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusZeroRate || res.Rate != 0 {
		t.Fatalf("negative asymptotic rate gave status %v rate %g", res.Status, res.Rate)
	}
}

func TestMaximizeRateIncreasesWithN(t *testing.T) {
	sol, table := testSolution(0.2, 2)
	eps := DefaultEpsilons()
	prev := -math.Inf(1)
	for _, n := range []float64{1e9, 1e10, 1e11, 1e12} {
		res, err := Maximize(Config{N: n, Eps: eps}, sol, table)
		if err != nil {
			t.Fatalf("N=%g: %v", n, err)
		}
		if res.Status == StatusOK {
			if !(res.Rate > prev) {
				t.Fatalf("rate %g at N=%g below rate at smaller N %g", res.Rate, n, prev)
			}
			if res.Rate >= sol.Rate {
				t.Fatalf("finite rate %g at N=%g exceeds asymptotic %g", res.Rate, n, sol.Rate)
			}
			if !(res.PKey > 0 && res.PKey < 1) {
				t.Fatalf("key fraction %g at N=%g outside (0,1)", res.PKey, n)
			}
			if !(res.A > 1 && res.A < 2) {
				t.Fatalf("exponent %g at N=%g outside (1,2)", res.A, n)
			}
			prev = res.Rate
		}
	}
	if math.IsInf(prev, -1) {
		t.Fatal("no N produced a positive finite-size rate")
	}
}

func TestMaximizeVariantB(t *testing.T) {
	sol, table := testSolution(0.2, 2)
	res, err := Maximize(Config{N: 1e12, Eps: DefaultEpsilons(), Variant: VariantB}, sol, table)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusOK {
		t.Fatalf("variant B at N=1e12 gave status %v", res.Status)
	}
	if !(res.Rate > 0 && res.Rate < sol.Rate) {
		t.Fatalf("variant B rate %g outside (0, %g)", res.Rate, sol.Rate)
	}
}

func TestMaximizeExhaustionSentinel(t *testing.T) {
	sol, table := testSolution(0.2, 2)
	cfg := Config{N: 1e12, Eps: DefaultEpsilons(), MaxIter: 2, StallLimit: 50}
	res, err := Maximize(cfg, sol, table)
	if !errors.Is(err, ErrSearchExhausted) {
		t.Fatalf("iteration cap 2 gave err %v, want ErrSearchExhausted", err)
	}
	if res.Status != StatusExhausted || res.PKey != -1 {
		t.Fatalf("exhausted sweep gave status %v PKey %g", res.Status, res.PKey)
	}
}

func TestSpreadFBelowMaxMin(t *testing.T) {
	nu := make([]float64, 24)
	for i := range nu {
		nu[i] = float64(i)
	}
	maxMin := nu[23] - nu[0]
	s := SpreadF(nu)
	if !(s >= 0) {
		t.Fatalf("spread %g negative", s)
	}
	if s > maxMin {
		t.Fatalf("protocol-respecting spread %g exceeds raw spread %g", s, maxMin)
	}
}

func TestEpsilonValidate(t *testing.T) {
	if err := DefaultEpsilons().Validate(); err != nil {
		t.Fatal(err)
	}
	bad := DefaultEpsilons()
	bad.PE = 0
	if err := bad.Validate(); err == nil {
		t.Fatal("epsilon 0 accepted")
	}
	bad.PE = 1
	if err := bad.Validate(); err == nil {
		t.Fatal("epsilon 1 accepted")
	}
}
