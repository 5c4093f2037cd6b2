// Package qmath provides the dense complex-matrix kernel shared by the
// protocol model, the entropy gradient and the conic solver: Hermitian
// eigendecomposition, spectral logarithms, Kronecker products, partial
// traces and positive-semidefinite repair, in working (float64) precision
// plus an arbitrary-precision path used where cancellation matters.
package qmath

import (
	"fmt"
	"math"
	"math/cmplx"
)

// CMat is a dense square complex matrix in row-major layout.
type CMat struct {
	N    int
	Data []complex128
}

// NewCMat allocates an N x N zero matrix.
func NewCMat(n int) *CMat {
	return &CMat{N: n, Data: make([]complex128, n*n)}
}

// Identity returns the N x N identity.
func Identity(n int) *CMat {
	m := NewCMat(n)
	for i := 0; i < n; i++ {
		m.Data[i*n+i] = 1
	}
	return m
}

// At returns element (i,j).
func (m *CMat) At(i, j int) complex128 { return m.Data[i*m.N+j] }

// Set assigns element (i,j) = v.
func (m *CMat) Set(i, j int, v complex128) { m.Data[i*m.N+j] = v }

// Copy returns a deep copy.
func (m *CMat) Copy() *CMat {
	out := NewCMat(m.N)
	copy(out.Data, m.Data)
	return out
}

// Add returns m + w.
func (m *CMat) Add(w *CMat) *CMat {
	if m.N != w.N {
		panic("qmath: Add dimension mismatch")
	}
	out := NewCMat(m.N)
	for i := range m.Data {
		out.Data[i] = m.Data[i] + w.Data[i]
	}
	return out
}

// Sub returns m - w.
func (m *CMat) Sub(w *CMat) *CMat {
	if m.N != w.N {
		panic("qmath: Sub dimension mismatch")
	}
	out := NewCMat(m.N)
	for i := range m.Data {
		out.Data[i] = m.Data[i] - w.Data[i]
	}
	return out
}

// Scale returns s * m.
func (m *CMat) Scale(s complex128) *CMat {
	out := NewCMat(m.N)
	for i := range m.Data {
		out.Data[i] = s * m.Data[i]
	}
	return out
}

// AddScaledInPlace accumulates m += s*w.
func (m *CMat) AddScaledInPlace(s complex128, w *CMat) {
	if m.N != w.N {
		panic("qmath: AddScaledInPlace dimension mismatch")
	}
	for i := range m.Data {
		m.Data[i] += s * w.Data[i]
	}
}

// Mul returns the matrix product m * w.
func (m *CMat) Mul(w *CMat) *CMat {
	if m.N != w.N {
		panic("qmath: Mul dimension mismatch")
	}
	n := m.N
	out := NewCMat(n)
	for i := 0; i < n; i++ {
		for k := 0; k < n; k++ {
			a := m.Data[i*n+k]
			if a == 0 {
				continue
			}
			for j := 0; j < n; j++ {
				out.Data[i*n+j] += a * w.Data[k*n+j]
			}
		}
	}
	return out
}

// Dagger returns the conjugate transpose.
func (m *CMat) Dagger() *CMat {
	n := m.N
	out := NewCMat(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out.Data[j*n+i] = cmplx.Conj(m.Data[i*n+j])
		}
	}
	return out
}

// Trace returns the trace of m.
func (m *CMat) Trace() complex128 {
	var t complex128
	for i := 0; i < m.N; i++ {
		t += m.Data[i*m.N+i]
	}
	return t
}

// RealInner returns Re Tr(m w), the Hilbert-Schmidt pairing used for
// expectation values of Hermitian observables.
func RealInner(m, w *CMat) float64 {
	if m.N != w.N {
		panic("qmath: RealInner dimension mismatch")
	}
	n := m.N
	var t complex128
	for i := 0; i < n; i++ {
		for k := 0; k < n; k++ {
			t += m.Data[i*n+k] * w.Data[k*n+i]
		}
	}
	return real(t)
}

// Kron returns the Kronecker product m (x) w.
func Kron(m, w *CMat) *CMat {
	n := m.N * w.N
	out := NewCMat(n)
	for i := 0; i < m.N; i++ {
		for j := 0; j < m.N; j++ {
			a := m.Data[i*m.N+j]
			if a == 0 {
				continue
			}
			for k := 0; k < w.N; k++ {
				for l := 0; l < w.N; l++ {
					out.Data[(i*w.N+k)*n+(j*w.N+l)] = a * w.Data[k*w.N+l]
				}
			}
		}
	}
	return out
}

// PartialTraceB traces out the second factor of a dimA (x) dimB bipartite
// matrix, returning the dimA x dimA reduced matrix.
func PartialTraceB(m *CMat, dimA, dimB int) (*CMat, error) {
	if m.N != dimA*dimB {
		return nil, fmt.Errorf("qmath: partial trace dimensions %dx%d incompatible with matrix size %d", dimA, dimB, m.N)
	}
	out := NewCMat(dimA)
	for i := 0; i < dimA; i++ {
		for j := 0; j < dimA; j++ {
			var s complex128
			for b := 0; b < dimB; b++ {
				s += m.Data[(i*dimB+b)*m.N+(j*dimB+b)]
			}
			out.Data[i*dimA+j] = s
		}
	}
	return out, nil
}

// ApplyRect computes K * m * K^dagger where K is a rows x cols rectangular
// operator given in row-major layout and m is cols x cols.
func ApplyRect(k []complex128, rows, cols int, m *CMat) *CMat {
	if m.N != cols {
		panic("qmath: ApplyRect dimension mismatch")
	}
	// tmp = K * m  (rows x cols)
	tmp := make([]complex128, rows*cols)
	for i := 0; i < rows; i++ {
		for l := 0; l < cols; l++ {
			a := k[i*cols+l]
			if a == 0 {
				continue
			}
			for j := 0; j < cols; j++ {
				tmp[i*cols+j] += a * m.Data[l*cols+j]
			}
		}
	}
	out := NewCMat(rows)
	for i := 0; i < rows; i++ {
		for j := 0; j < rows; j++ {
			var s complex128
			for l := 0; l < cols; l++ {
				s += tmp[i*cols+l] * cmplx.Conj(k[j*cols+l])
			}
			out.Data[i*rows+j] = s
		}
	}
	return out
}

// Hermitize returns (m + m^dagger)/2.
func (m *CMat) Hermitize() *CMat {
	n := m.N
	out := NewCMat(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out.Data[i*n+j] = (m.Data[i*n+j] + cmplx.Conj(m.Data[j*n+i])) / 2
		}
	}
	return out
}

// HermitianDeviation returns the largest entrywise deviation |m - m^dagger|.
func (m *CMat) HermitianDeviation() float64 {
	n := m.N
	dev := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d := cmplx.Abs(m.Data[i*n+j] - cmplx.Conj(m.Data[j*n+i]))
			if d > dev {
				dev = d
			}
		}
	}
	return dev
}

// MaxAbsDiff returns the largest entrywise |m - w|.
func MaxAbsDiff(m, w *CMat) float64 {
	if m.N != w.N {
		panic("qmath: MaxAbsDiff dimension mismatch")
	}
	d := 0.0
	for i := range m.Data {
		v := cmplx.Abs(m.Data[i] - w.Data[i])
		if v > d {
			d = v
		}
	}
	return d
}

// MaxAbs returns the largest entrywise magnitude of m.
func (m *CMat) MaxAbs() float64 {
	d := 0.0
	for _, v := range m.Data {
		a := cmplx.Abs(v)
		if a > d {
			d = a
		}
	}
	return d
}

// IsFinite reports whether every entry of m is finite.
func (m *CMat) IsFinite() bool {
	for _, v := range m.Data {
		if math.IsNaN(real(v)) || math.IsInf(real(v), 0) ||
			math.IsNaN(imag(v)) || math.IsInf(imag(v), 0) {
			return false
		}
	}
	return true
}
