package finitesize

import (
	"errors"
	"math"
)

var errNoBracket = errors.New("finitesize: no sign change on interval")

const (
	rootScanPoints = 64
	rootBisectIter = 80
)

// findRoot locates a zero of f on (lo, hi): a coarse scan brackets the
// first sign change, bisection tightens it. Non-finite samples are skipped
// during the scan.
func findRoot(f func(float64) float64, lo, hi float64) (float64, error) {
	step := (hi - lo) / rootScanPoints
	xPrev := lo
	fPrev := f(xPrev)
	for i := 1; i <= rootScanPoints; i++ {
		x := lo + float64(i)*step
		fx := f(x)
		if math.IsNaN(fx) || math.IsInf(fx, 0) {
			xPrev, fPrev = x, fx
			continue
		}
		if !math.IsNaN(fPrev) && !math.IsInf(fPrev, 0) && fPrev*fx <= 0 {
			return bisect(f, xPrev, x, fPrev), nil
		}
		xPrev, fPrev = x, fx
	}
	return 0, errNoBracket
}

func bisect(f func(float64) float64, a, b, fa float64) float64 {
	for i := 0; i < rootBisectIter; i++ {
		mid := (a + b) / 2
		fm := f(mid)
		if fm == 0 {
			return mid
		}
		if fa*fm < 0 {
			b = mid
		} else {
			a = mid
			fa = fm
		}
	}
	return (a + b) / 2
}
