package qmath

import (
	"math"
)

// SqrtM returns the principal square root of a Hermitian PSD matrix.
// Slightly negative eigenvalues from rounding are clipped to zero.
func SqrtM(m *CMat) (*CMat, error) {
	vals, vecs, err := EigH(m)
	if err != nil {
		return nil, err
	}
	n := m.N
	roots := make([]float64, n)
	for i, v := range vals {
		if v < 0 {
			v = 0
		}
		roots[i] = math.Sqrt(v)
	}
	out := NewCMat(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var s complex128
			for k := 0; k < n; k++ {
				s += vecs.Data[i*n+k] * complex(roots[k], 0) * conj(vecs.Data[j*n+k])
			}
			out.Data[i*n+j] = s
		}
	}
	return out, nil
}
