package finitesize

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// PEMargin computes the one-sided statistical tolerance margin of the
// parameter-estimation step: a Clopper-Pearson-Efron-Stein style recursive
// variance bound over the augmented outcome distribution.
//
// The augmented distribution pi holds the simulated cell probabilities
// scaled by the testing fraction (1-p) plus a remainder bin of mass p for
// the key-generation rounds; the score vector h is the dual vector
// re-centered at its minimum, zero on the remainder bin. The recursive sum
// accumulates g_i * c_i^2 over the sequential conditioning order, where c_i
// is the deviation of bin i's score from the conditional mean of the
// remaining mass and g_i = pi_i * R_i / (pi_i + R_i) with R_i the remaining
// mass. Pure function; the sweep also probes it by finite differences.
func PEMargin(n, p float64, table, nu []float64, epsPE float64) float64 {
	if n <= 1 || epsPE <= 0 || p < 0 || p >= 1 || len(table) == 0 || len(nu) != len(table) {
		return math.Inf(1)
	}
	total := floats.Sum(table)
	if total <= 0 {
		return math.Inf(1)
	}
	cells := len(table)
	pi := make([]float64, cells+1)
	h := make([]float64, cells+1)
	nuMin := floats.Min(nu)
	for i, t := range table {
		pi[i] = (1 - p) * t / total
		h[i] = nu[i] - nuMin
	}
	pi[cells] = p
	h[cells] = 0
	spread := floats.Max(h)

	var sum float64
	for i := 0; i < len(pi); i++ {
		var rem, remScore float64
		for j := i + 1; j < len(pi); j++ {
			rem += pi[j]
			remScore += pi[j] * h[j]
		}
		if pi[i]+rem <= 0 {
			continue
		}
		condMean := h[i]
		if rem > 0 {
			condMean = remScore / rem
		}
		c := h[i] - condMean
		g := pi[i] * rem / (pi[i] + rem)
		sum += g * c * c
	}

	l := math.Log2(n / epsPE)
	return 2*math.Sqrt(l*sum/n) + 3*spread*l/n
}

// peMarginSpread is the variant-B surrogate: with only the dual spread
// available, the recursive variance sum is bounded by pt*spread^2 with pt
// the testing fraction. Each term g_i*c_i^2 is at most pi_i*spread^2 and
// the testing cells carry total mass pt, so the bound holds for every
// table; the worst case puts the whole testing mass on the extreme-score
// cell.
func peMarginSpread(n, pt, spread, epsPE float64) float64 {
	if n <= 1 || epsPE <= 0 || pt < 0 || pt > 1 {
		return math.Inf(1)
	}
	l := math.Log2(n / epsPE)
	sum := pt * spread * spread
	return 2*math.Sqrt(l*sum/n) + 3*spread*l/n
}
