package protocol

import (
	"fmt"

	"cvqkd-geat/qmath"
)

// KeyMap carries the key-map Kraus operators. G is the isometry from the
// joint Alice-Bob space (dim D) into key register (x) Alice (x) Bob
// (dim KeyOutcomes*D), built from the square roots of the key region
// operators; the pinching Kraus Z_z project onto key-register values. Both
// are functions of the configuration only and immutable once built.
type KeyMap struct {
	Dim    int // input dimension D
	OutDim int // KeyOutcomes * D
	// G in row-major OutDim x Dim layout.
	G []complex128
	// SqrtRegions are the Bob-space square roots sqrt(R_z), z = 0..4.
	SqrtRegions []*qmath.CMat
}

// NewKeyMap builds G and the pinching data for the configuration.
func NewKeyMap(c Config) (*KeyMap, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	dimB := c.BobDim()
	dim := c.Dim()
	regions := c.KeyRegions()
	km := &KeyMap{
		Dim:         dim,
		OutDim:      KeyOutcomes * dim,
		G:           make([]complex128, KeyOutcomes*dim*dim),
		SqrtRegions: make([]*qmath.CMat, KeyOutcomes),
	}
	for z, r := range regions {
		s, err := qmath.SqrtM(r)
		if err != nil {
			return nil, fmt.Errorf("protocol: sqrt of key region %d: %w", z, err)
		}
		km.SqrtRegions[z] = s
		// Block z of G is I_A (x) sqrt(R_z).
		for a := 0; a < Settings; a++ {
			for i := 0; i < dimB; i++ {
				row := z*dim + a*dimB + i
				for j := 0; j < dimB; j++ {
					col := a*dimB + j
					km.G[row*dim+col] = s.At(i, j)
				}
			}
		}
	}
	return km, nil
}

// Apply returns tau = G rho G^dagger.
func (km *KeyMap) Apply(rho *qmath.CMat) *qmath.CMat {
	return qmath.ApplyRect(km.G, km.OutDim, km.Dim, rho)
}

// Pinch applies the key-register pinching Z(tau) = sum_z Z_z tau Z_z,
// which zeroes every block coupling different key-register values.
func (km *KeyMap) Pinch(tau *qmath.CMat) *qmath.CMat {
	if tau.N != km.OutDim {
		panic("protocol: Pinch dimension mismatch")
	}
	d := km.Dim
	out := qmath.NewCMat(km.OutDim)
	for z := 0; z < KeyOutcomes; z++ {
		for i := 0; i < d; i++ {
			for j := 0; j < d; j++ {
				out.Data[(z*d+i)*km.OutDim+(z*d+j)] = tau.Data[(z*d+i)*km.OutDim+(z*d+j)]
			}
		}
	}
	return out
}

// PullBack computes G^dagger M G for an OutDim x OutDim operator M,
// returning the Dim x Dim pull-back. Used to bring the gradient of the
// lifted objective back onto the state space.
func (km *KeyMap) PullBack(m *qmath.CMat) *qmath.CMat {
	if m.N != km.OutDim {
		panic("protocol: PullBack dimension mismatch")
	}
	d := km.Dim
	od := km.OutDim
	// tmp = M * G (od x d)
	tmp := make([]complex128, od*d)
	for i := 0; i < od; i++ {
		for k := 0; k < od; k++ {
			a := m.Data[i*od+k]
			if a == 0 {
				continue
			}
			for j := 0; j < d; j++ {
				tmp[i*d+j] += a * km.G[k*d+j]
			}
		}
	}
	out := qmath.NewCMat(d)
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			var s complex128
			for k := 0; k < od; k++ {
				s += conjc(km.G[k*d+i]) * tmp[k*d+j]
			}
			out.Data[i*d+j] = s
		}
	}
	return out
}

// GramG returns G^dagger G, identity when the key regions partition
// phase space (trace preservation of the key map).
func (km *KeyMap) GramG() *qmath.CMat {
	d := km.Dim
	od := km.OutDim
	out := qmath.NewCMat(d)
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			var s complex128
			for k := 0; k < od; k++ {
				s += conjc(km.G[k*d+i]) * km.G[k*d+j]
			}
			out.Data[i*d+j] = s
		}
	}
	return out
}

func conjc(z complex128) complex128 { return complex(real(z), -imag(z)) }
