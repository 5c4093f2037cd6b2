package qmath

import (
	"math/big"
)

// BigComplex represents a complex number with arbitrary-precision parts.
type BigComplex struct {
	Real *big.Float
	Imag *big.Float
}

// NewBigComplex creates a BigComplex with given real, imag and precision.
func NewBigComplex(real, imag float64, prec uint) *BigComplex {
	return &BigComplex{
		Real: new(big.Float).SetPrec(prec).SetFloat64(real),
		Imag: new(big.Float).SetPrec(prec).SetFloat64(imag),
	}
}

// NewBigComplexZero returns zero BigComplex at precision.
func NewBigComplexZero(prec uint) *BigComplex {
	return NewBigComplex(0, 0, prec)
}

// Add returns z + w.
func (z *BigComplex) Add(w *BigComplex) *BigComplex {
	return &BigComplex{
		Real: new(big.Float).Add(z.Real, w.Real),
		Imag: new(big.Float).Add(z.Imag, w.Imag),
	}
}

// Sub returns z - w.
func (z *BigComplex) Sub(w *BigComplex) *BigComplex {
	return &BigComplex{
		Real: new(big.Float).Sub(z.Real, w.Real),
		Imag: new(big.Float).Sub(z.Imag, w.Imag),
	}
}

// Mul returns z * w.
func (z *BigComplex) Mul(w *BigComplex) *BigComplex {
	ac := new(big.Float).Mul(z.Real, w.Real)
	bd := new(big.Float).Mul(z.Imag, w.Imag)
	ad := new(big.Float).Mul(z.Real, w.Imag)
	bc := new(big.Float).Mul(z.Imag, w.Real)
	return &BigComplex{
		Real: new(big.Float).Sub(ac, bd),
		Imag: new(big.Float).Add(ad, bc),
	}
}

// Conj returns the complex conjugate.
func (z *BigComplex) Conj() *BigComplex {
	return &BigComplex{
		Real: new(big.Float).Copy(z.Real),
		Imag: new(big.Float).Neg(z.Imag),
	}
}

// AbsSquared returns |z|^2.
func (z *BigComplex) AbsSquared() *big.Float {
	r2 := new(big.Float).Mul(z.Real, z.Real)
	i2 := new(big.Float).Mul(z.Imag, z.Imag)
	return new(big.Float).Add(r2, i2)
}

// Abs returns |z|.
func (z *BigComplex) Abs() *big.Float {
	return new(big.Float).Sqrt(z.AbsSquared())
}

// DivBy divides z by a real scalar.
func (z *BigComplex) DivBy(scalar *big.Float) *BigComplex {
	return &BigComplex{
		Real: new(big.Float).Quo(z.Real, scalar),
		Imag: new(big.Float).Quo(z.Imag, scalar),
	}
}

// MulReal multiplies z by a real scalar.
func (z *BigComplex) MulReal(scalar *big.Float) *BigComplex {
	return &BigComplex{
		Real: new(big.Float).Mul(z.Real, scalar),
		Imag: new(big.Float).Mul(z.Imag, scalar),
	}
}

// Copy returns a deep copy.
func (z *BigComplex) Copy() *BigComplex {
	return &BigComplex{
		Real: new(big.Float).Copy(z.Real),
		Imag: new(big.Float).Copy(z.Imag),
	}
}

// ToComplex converts BigComplex to complex128 (losing precision).
func (z *BigComplex) ToComplex() complex128 {
	r, _ := z.Real.Float64()
	i, _ := z.Imag.Float64()
	return complex(r, i)
}

// BigCMat is a dense square matrix of BigComplex entries at a common
// precision, used on the escalated-precision path of the gradient computer.
type BigCMat struct {
	N    int
	Prec uint
	Data []*BigComplex
}

// NewBigCMat allocates an N x N zero matrix at the given precision.
func NewBigCMat(n int, prec uint) *BigCMat {
	data := make([]*BigComplex, n*n)
	for i := range data {
		data[i] = NewBigComplexZero(prec)
	}
	return &BigCMat{N: n, Prec: prec, Data: data}
}

// LiftCMat promotes a working-precision matrix to precision prec.
func LiftCMat(m *CMat, prec uint) *BigCMat {
	out := NewBigCMat(m.N, prec)
	for i, v := range m.Data {
		out.Data[i] = NewBigComplex(real(v), imag(v), prec)
	}
	return out
}

// Round lowers the matrix back to working precision.
func (m *BigCMat) Round() *CMat {
	out := NewCMat(m.N)
	for i, v := range m.Data {
		out.Data[i] = v.ToComplex()
	}
	return out
}

// At returns element (i,j).
func (m *BigCMat) At(i, j int) *BigComplex { return m.Data[i*m.N+j] }

// Set assigns element (i,j) = v.
func (m *BigCMat) Set(i, j int, v *BigComplex) { m.Data[i*m.N+j] = v }

// Copy returns a deep copy.
func (m *BigCMat) Copy() *BigCMat {
	out := &BigCMat{N: m.N, Prec: m.Prec, Data: make([]*BigComplex, len(m.Data))}
	for i, v := range m.Data {
		out.Data[i] = v.Copy()
	}
	return out
}
