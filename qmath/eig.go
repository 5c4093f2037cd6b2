package qmath

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"
)

const (
	jacobiMaxSweeps = 64
	jacobiTol       = 1e-14
)

// EigH computes the eigendecomposition of a Hermitian matrix by cyclic
// complex Jacobi rotations. It returns the eigenvalues in ascending order
// and the matrix whose columns are the matching orthonormal eigenvectors.
// The input is Hermitized first; a strongly non-Hermitian input is an error.
func EigH(m *CMat) ([]float64, *CMat, error) {
	if dev := m.HermitianDeviation(); dev > 1e-8*(1+m.MaxAbs()) {
		return nil, nil, fmt.Errorf("qmath: EigH input deviates from Hermitian by %.3e", dev)
	}
	n := m.N
	a := m.Hermitize()
	v := Identity(n)

	scale := a.MaxAbs()
	if scale == 0 {
		vals := make([]float64, n)
		return vals, v, nil
	}

	for sweep := 0; sweep < jacobiMaxSweeps; sweep++ {
		off := offDiagNorm(a)
		if off <= jacobiTol*scale {
			break
		}
		for p := 0; p < n-1; p++ {
			for q := p + 1; q < n; q++ {
				rotate(a, v, p, q)
			}
		}
	}

	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		vals[i] = real(a.Data[i*n+i])
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(x, y int) bool { return vals[idx[x]] < vals[idx[y]] })

	sortedVals := make([]float64, n)
	sortedVecs := NewCMat(n)
	for col, src := range idx {
		sortedVals[col] = vals[src]
		for row := 0; row < n; row++ {
			sortedVecs.Data[row*n+col] = v.Data[row*n+src]
		}
	}
	return sortedVals, sortedVecs, nil
}

// MinEig returns the smallest eigenvalue of a Hermitian matrix together
// with its unit eigenvector.
func MinEig(m *CMat) (float64, []complex128, error) {
	vals, vecs, err := EigH(m)
	if err != nil {
		return 0, nil, err
	}
	n := m.N
	vec := make([]complex128, n)
	for i := 0; i < n; i++ {
		vec[i] = vecs.Data[i*n+0]
	}
	return vals[0], vec, nil
}

func offDiagNorm(a *CMat) float64 {
	n := a.N
	s := 0.0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := cmplx.Abs(a.Data[i*n+j])
			if v > s {
				s = v
			}
		}
	}
	return s
}

// rotate annihilates a[p][q] with a unitary Jacobi rotation, updating a in
// place and accumulating the rotation into v.
func rotate(a, v *CMat, p, q int) {
	n := a.N
	b := a.Data[p*n+q]
	ab := cmplx.Abs(b)
	if ab == 0 {
		return
	}
	app := real(a.Data[p*n+p])
	aqq := real(a.Data[q*n+q])

	tau := (aqq - app) / (2 * ab)
	var t float64
	if tau == 0 {
		t = 1
	} else {
		t = -sign(tau) / (math.Abs(tau) + math.Sqrt(1+tau*tau))
	}
	c := 1 / math.Sqrt(1+t*t)
	phase := b / complex(ab, 0)
	sigma := complex(t*c, 0) * cmplx.Conj(phase)

	// Right multiplication by U (columns p, q).
	for k := 0; k < n; k++ {
		akp := a.Data[k*n+p]
		akq := a.Data[k*n+q]
		a.Data[k*n+p] = akp*complex(c, 0) + akq*sigma
		a.Data[k*n+q] = -akp*cmplx.Conj(sigma) + akq*complex(c, 0)
	}
	// Left multiplication by U^dagger (rows p, q).
	for k := 0; k < n; k++ {
		apk := a.Data[p*n+k]
		aqk := a.Data[q*n+k]
		a.Data[p*n+k] = complex(c, 0)*apk + cmplx.Conj(sigma)*aqk
		a.Data[q*n+k] = -sigma*apk + complex(c, 0)*aqk
	}
	// Clean the annihilated pair against rounding drift.
	a.Data[p*n+q] = 0
	a.Data[q*n+p] = 0
	a.Data[p*n+p] = complex(real(a.Data[p*n+p]), 0)
	a.Data[q*n+q] = complex(real(a.Data[q*n+q]), 0)

	for k := 0; k < n; k++ {
		vkp := v.Data[k*n+p]
		vkq := v.Data[k*n+q]
		v.Data[k*n+p] = vkp*complex(c, 0) + vkq*sigma
		v.Data[k*n+q] = -vkp*cmplx.Conj(sigma) + vkq*complex(c, 0)
	}
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}
