// Package sampler draws deterministic synthetic density matrices so the
// pipeline can be exercised and benchmarked without the asymptotic-rate
// generator. The PRNG key is derived from the row labels, so a given
// (distance, amplitude) pair always yields the same state.
package sampler

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/tuneinsight/lattigo/v4/utils"
	"golang.org/x/crypto/sha3"

	"cvqkd-geat/qmath"
)

const seedDomain = "cvqkd-geat/synth-state/v1"

// Seed derives a 32-byte PRNG key from the row labels via SHAKE-128.
func Seed(distance int, amp float64) []byte {
	h := sha3.NewShake128()
	h.Write([]byte(seedDomain))
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(int64(distance)))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(amp))
	h.Write(buf[:])
	key := make([]byte, 32)
	h.Read(key)
	return key
}

// Sampler is a deterministic Gaussian source keyed to one input row.
type Sampler struct {
	prng     *utils.KeyedPRNG
	spare    float64
	hasSpare bool
}

// New builds the sampler for one (distance, amplitude) row.
func New(distance int, amp float64) (*Sampler, error) {
	prng, err := utils.NewKeyedPRNG(Seed(distance, amp))
	if err != nil {
		return nil, fmt.Errorf("sampler: keyed prng: %w", err)
	}
	return &Sampler{prng: prng}, nil
}

// uniform draws from [0,1) with 53 random mantissa bits.
func (s *Sampler) uniform() float64 {
	var b [8]byte
	s.prng.Read(b[:])
	u := binary.LittleEndian.Uint64(b[:]) >> 11
	return float64(u) / (1 << 53)
}

// Normal draws a standard Gaussian (Box-Muller, spare cached).
func (s *Sampler) Normal() float64 {
	if s.hasSpare {
		s.hasSpare = false
		return s.spare
	}
	var u float64
	for u == 0 {
		u = s.uniform()
	}
	v := s.uniform()
	r := math.Sqrt(-2 * math.Log(u))
	s.spare = r * math.Sin(2*math.Pi*v)
	s.hasSpare = true
	return r * math.Cos(2*math.Pi*v)
}

// State draws a random dim-dimensional density matrix: rho = AA†/Tr(AA†)
// with i.i.d. complex Gaussian entries in A. The construction is Hermitian
// and PSD up to rounding, with full rank almost surely.
func (s *Sampler) State(dim int) *qmath.CMat {
	a := qmath.NewCMat(dim)
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			a.Set(i, j, complex(s.Normal(), s.Normal()))
		}
	}
	rho := a.Mul(a.Dagger()).Hermitize()
	tr := real(rho.Trace())
	return rho.Scale(complex(1/tr, 0))
}
