package qmath

import (
	"math"
)

// EigFloor is the floor applied to eigenvalues before taking logarithms.
// Pinching maps are rank deficient by construction, so exact zeros are
// expected and must not produce -Inf entries.
const EigFloor = 1e-20

// Log2M returns the base-2 matrix logarithm of a Hermitian PSD matrix,
// flooring eigenvalues at EigFloor.
func Log2M(m *CMat) (*CMat, error) {
	vals, vecs, err := EigH(m)
	if err != nil {
		return nil, err
	}
	n := m.N
	out := NewCMat(n)
	logs := make([]float64, n)
	for i, v := range vals {
		if v < EigFloor {
			v = EigFloor
		}
		logs[i] = math.Log2(v)
	}
	// out = V diag(logs) V^dagger
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var s complex128
			for k := 0; k < n; k++ {
				s += vecs.Data[i*n+k] * complex(logs[k], 0) * conj(vecs.Data[j*n+k])
			}
			out.Data[i*n+j] = s
		}
	}
	return out, nil
}

func conj(z complex128) complex128 { return complex(real(z), -imag(z)) }
