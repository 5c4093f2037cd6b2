package qmath

import (
	"fmt"
	"math"
	"math/big"
)

const bigJacobiMaxSweeps = 96

// EigHBig computes the eigendecomposition of a Hermitian BigCMat by cyclic
// Jacobi rotations carried out entirely in big.Float arithmetic. It returns
// the (unsorted) eigenvalues and the unitary whose columns are the matching
// eigenvectors. Sorting is left to the caller; the escalated-precision
// callers only need the spectral reassembly.
func EigHBig(m *BigCMat) ([]*big.Float, *BigCMat, error) {
	n := m.N
	prec := m.Prec
	a := m.Copy()
	v := NewBigCMat(n, prec)
	for i := 0; i < n; i++ {
		v.Set(i, i, NewBigComplex(1, 0, prec))
	}

	scale := new(big.Float).SetPrec(prec)
	for _, z := range a.Data {
		if ab := z.Abs(); ab.Cmp(scale) > 0 {
			scale = ab
		}
	}
	if scale.Sign() == 0 {
		vals := make([]*big.Float, n)
		for i := range vals {
			vals[i] = new(big.Float).SetPrec(prec)
		}
		return vals, v, nil
	}
	// Stop once the largest off-diagonal magnitude falls below
	// scale * 2^-(prec-8).
	tol := new(big.Float).SetPrec(prec).SetMantExp(big.NewFloat(1).SetPrec(prec), -int(prec)+8)
	tol.Mul(tol, scale)

	for sweep := 0; sweep < bigJacobiMaxSweeps; sweep++ {
		if bigOffDiag(a).Cmp(tol) <= 0 {
			break
		}
		for p := 0; p < n-1; p++ {
			for q := p + 1; q < n; q++ {
				bigRotate(a, v, p, q)
			}
		}
		if sweep == bigJacobiMaxSweeps-1 && bigOffDiag(a).Cmp(tol) > 0 {
			return nil, nil, fmt.Errorf("qmath: big Jacobi did not converge in %d sweeps", bigJacobiMaxSweeps)
		}
	}

	vals := make([]*big.Float, n)
	for i := 0; i < n; i++ {
		vals[i] = new(big.Float).Copy(a.At(i, i).Real)
	}
	return vals, v, nil
}

// Log2MBig returns, in working precision, the base-2 logarithm of a
// Hermitian PSD matrix whose eigendecomposition is performed at the
// matrix's big precision. Eigenvalues are floored at EigFloor before the
// logarithm; the spectral reassembly stays in big precision and only the
// final result is rounded. This is the cancellation-controlled path used
// for the pinched state inside the gradient computer.
func Log2MBig(m *BigCMat) (*CMat, error) {
	vals, vecs, err := EigHBig(m)
	if err != nil {
		return nil, err
	}
	n := m.N
	prec := m.Prec
	floor := new(big.Float).SetPrec(prec).SetFloat64(EigFloor)
	logs := make([]*big.Float, n)
	for i, lam := range vals {
		if lam.Cmp(floor) < 0 {
			lam = floor
		}
		logs[i] = new(big.Float).SetPrec(prec).SetFloat64(Log2Big(lam))
	}
	out := NewBigCMat(n, prec)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			acc := NewBigComplexZero(prec)
			for k := 0; k < n; k++ {
				term := vecs.At(i, k).Mul(vecs.At(j, k).Conj()).MulReal(logs[k])
				acc = acc.Add(term)
			}
			out.Set(i, j, acc)
		}
	}
	return out.Round(), nil
}

// Log2Big computes log2 of a positive big.Float. The exponent is exact;
// only the mantissa logarithm is evaluated in float64, where the argument
// is confined to [0.5, 1) and the evaluation is well conditioned.
func Log2Big(x *big.Float) float64 {
	if x.Sign() <= 0 {
		return math.Inf(-1)
	}
	mant := new(big.Float)
	exp := x.MantExp(mant)
	m64, _ := mant.Float64()
	return float64(exp) + math.Log2(m64)
}

func bigOffDiag(a *BigCMat) *big.Float {
	n := a.N
	best := new(big.Float).SetPrec(a.Prec)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if ab := a.At(i, j).Abs(); ab.Cmp(best) > 0 {
				best = ab
			}
		}
	}
	return best
}

func bigRotate(a, v *BigCMat, p, q int) {
	n := a.N
	prec := a.Prec
	b := a.At(p, q)
	ab := b.Abs()
	if ab.Sign() == 0 {
		return
	}
	app := a.At(p, p).Real
	aqq := a.At(q, q).Real

	two := new(big.Float).SetPrec(prec).SetFloat64(2)
	one := new(big.Float).SetPrec(prec).SetFloat64(1)
	// tau = (aqq - app) / (2|b|)
	tau := new(big.Float).SetPrec(prec).Sub(aqq, app)
	tau.Quo(tau, new(big.Float).Mul(two, ab))

	t := new(big.Float).SetPrec(prec)
	if tau.Sign() == 0 {
		t.SetFloat64(1)
	} else {
		absTau := new(big.Float).SetPrec(prec).Abs(tau)
		root := new(big.Float).SetPrec(prec).Mul(tau, tau)
		root.Add(root, one)
		root.Sqrt(root)
		t.Add(absTau, root)
		t.Quo(one, t)
		if tau.Sign() > 0 {
			t.Neg(t)
		}
	}
	// c = 1/sqrt(1+t^2), s = t*c
	c := new(big.Float).SetPrec(prec).Mul(t, t)
	c.Add(c, one)
	c.Sqrt(c)
	c.Quo(one, c)
	s := new(big.Float).SetPrec(prec).Mul(t, c)

	// sigma = s * conj(b)/|b|
	phase := b.DivBy(ab)
	sigma := phase.Conj().MulReal(s)
	sigmaConj := sigma.Conj()
	cC := &BigComplex{Real: new(big.Float).Copy(c), Imag: new(big.Float).SetPrec(prec)}

	for k := 0; k < n; k++ {
		akp := a.At(k, p)
		akq := a.At(k, q)
		a.Set(k, p, akp.Mul(cC).Add(akq.Mul(sigma)))
		a.Set(k, q, akq.Mul(cC).Sub(akp.Mul(sigmaConj)))
	}
	for k := 0; k < n; k++ {
		apk := a.At(p, k)
		aqk := a.At(q, k)
		a.Set(p, k, apk.Mul(cC).Add(aqk.Mul(sigmaConj)))
		a.Set(q, k, aqk.Mul(cC).Sub(apk.Mul(sigma)))
	}
	zero := NewBigComplexZero(prec)
	a.Set(p, q, zero.Copy())
	a.Set(q, p, zero.Copy())
	a.At(p, p).Imag.SetFloat64(0)
	a.At(q, q).Imag.SetFloat64(0)

	for k := 0; k < n; k++ {
		vkp := v.At(k, p)
		vkq := v.At(k, q)
		v.Set(k, p, vkp.Mul(cC).Add(vkq.Mul(sigma)))
		v.Set(k, q, vkq.Mul(cC).Sub(vkp.Mul(sigmaConj)))
	}
}
