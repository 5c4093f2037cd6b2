package qmath

import (
	"math"
	"testing"
)

// herm2 is a 2x2 Hermitian matrix with exact eigenvalues 1 and 4.
func herm2() *CMat {
	m := NewCMat(2)
	m.Set(0, 0, 2)
	m.Set(0, 1, 1-1i)
	m.Set(1, 0, 1+1i)
	m.Set(1, 1, 3)
	return m
}

func reconstruct(vals []float64, vecs *CMat) *CMat {
	n := vecs.N
	m := NewCMat(n)
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				vi := vecs.At(i, k)
				vj := vecs.At(j, k)
				m.Set(i, j, m.At(i, j)+complex(vals[k], 0)*vi*complex(real(vj), -imag(vj)))
			}
		}
	}
	return m
}

func TestEigHKnownSpectrum(t *testing.T) {
	vals, vecs, err := EigH(herm2())
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(vals[0]-1) > 1e-12 || math.Abs(vals[1]-4) > 1e-12 {
		t.Fatalf("eigenvalues %v, want [1 4]", vals)
	}
	if d := MaxAbsDiff(herm2(), reconstruct(vals, vecs)); d > 1e-12 {
		t.Fatalf("spectral reconstruction deviates by %g", d)
	}
}

func TestEigHAscendingOrder(t *testing.T) {
	m := NewCMat(4)
	diag := []float64{3, -1, 2, 0.5}
	for i, v := range diag {
		m.Set(i, i, complex(v, 0))
	}
	m.Set(0, 2, 0.3+0.1i)
	m.Set(2, 0, 0.3-0.1i)
	vals, _, err := EigH(m)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(vals); i++ {
		if vals[i] < vals[i-1] {
			t.Fatalf("eigenvalues not ascending: %v", vals)
		}
	}
}

func TestEigHRejectsNonHermitian(t *testing.T) {
	m := NewCMat(2)
	m.Set(0, 1, 1)
	m.Set(1, 0, 2)
	if _, _, err := EigH(m); err == nil {
		t.Fatal("non-Hermitian input accepted")
	}
}

func TestLog2MDiagonal(t *testing.T) {
	m := NewCMat(3)
	for i, v := range []float64{1, 2, 4} {
		m.Set(i, i, complex(v, 0))
	}
	lg, err := Log2M(m)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []float64{0, 1, 2} {
		if got := lg.At(i, i); math.Abs(real(got)-want) > 1e-12 || math.Abs(imag(got)) > 1e-14 {
			t.Fatalf("log2 diagonal %d = %v, want %g", i, got, want)
		}
	}
}

func TestLog2MFloorsZeroEigenvalues(t *testing.T) {
	m := NewCMat(2)
	m.Set(0, 0, 1)
	// rank deficient: second eigenvalue exactly 0
	lg, err := Log2M(m)
	if err != nil {
		t.Fatal(err)
	}
	if !lg.IsFinite() {
		t.Fatal("floored log produced non-finite entries")
	}
	if got := real(lg.At(1, 1)); got > math.Log2(EigFloor)+1 {
		t.Fatalf("zero eigenvalue logged to %g, want near %g", got, math.Log2(EigFloor))
	}
}

func TestRepairPSDIdempotentOnPSD(t *testing.T) {
	m := NewCMat(2)
	m.Set(0, 0, 0.25)
	m.Set(1, 1, 0.75)
	out, res, err := RepairPSD(m)
	if err != nil {
		t.Fatal(err)
	}
	if res.Iterations != 0 || res.Shrink != 0 {
		t.Fatalf("PSD input repaired: %+v", res)
	}
	if d := MaxAbsDiff(m, out); d != 0 {
		t.Fatalf("PSD input changed by %g", d)
	}
}

func TestRepairPSDConverges(t *testing.T) {
	m := NewCMat(3)
	for i, v := range []float64{-0.2, 0.5, 0.7} {
		m.Set(i, i, complex(v, 0))
	}
	out, res, err := RepairPSD(m)
	if err != nil {
		t.Fatal(err)
	}
	lo, _, err := MinEig(out)
	if err != nil {
		t.Fatal(err)
	}
	if lo < -1e-14 {
		t.Fatalf("repaired matrix still indefinite: min eig %g after %d iterations", lo, res.Iterations)
	}
	if res.Shrink <= 0 {
		t.Fatalf("indefinite input reported zero shrink: %+v", res)
	}
	// The shrink is trace preserving for trace-1 inputs.
	if tr := real(out.Trace()); math.Abs(tr-1) > 1e-12 {
		t.Fatalf("repair moved the trace to %g", tr)
	}
}

func TestKronPartialTraceRoundtrip(t *testing.T) {
	a := herm2()
	b := NewCMat(3)
	for i, v := range []float64{0.2, 0.3, 0.5} {
		b.Set(i, i, complex(v, 0))
	}
	red, err := PartialTraceB(Kron(a, b), 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	// Tr(b) = 1, so tracing out the second factor returns a.
	if d := MaxAbsDiff(a, red); d > 1e-14 {
		t.Fatalf("partial trace deviates by %g", d)
	}
}

func TestSqrtMSquaresBack(t *testing.T) {
	m := herm2()
	root, err := SqrtM(m)
	if err != nil {
		t.Fatal(err)
	}
	if d := MaxAbsDiff(m, root.Mul(root)); d > 1e-12 {
		t.Fatalf("sqrt squared deviates by %g", d)
	}
}

func TestBigJacobiMatchesFloat64(t *testing.T) {
	m := herm2()
	vals, _, err := EigH(m)
	if err != nil {
		t.Fatal(err)
	}
	bigVals, _, err := EigHBig(LiftCMat(m, 128))
	if err != nil {
		t.Fatal(err)
	}
	for i := range vals {
		bv, _ := bigVals[i].Float64()
		if math.Abs(bv-vals[i]) > 1e-12 {
			t.Fatalf("eigenvalue %d: big %g vs float64 %g", i, bv, vals[i])
		}
	}
}

func TestLog2MBigMatchesFloat64(t *testing.T) {
	m := NewCMat(2)
	m.Set(0, 0, 0.5)
	m.Set(0, 1, 0.1)
	m.Set(1, 0, 0.1)
	m.Set(1, 1, 0.5)
	want, err := Log2M(m)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Log2MBig(LiftCMat(m, 128))
	if err != nil {
		t.Fatal(err)
	}
	if d := MaxAbsDiff(want, got); d > 1e-10 {
		t.Fatalf("big and float64 matrix logs deviate by %g", d)
	}
}

func TestBigComplexArithmetic(t *testing.T) {
	a := NewBigComplex(3, 4, 128)
	if abs, _ := a.Abs().Float64(); math.Abs(abs-5) > 1e-15 {
		t.Fatalf("abs(3+4i) = %g", abs)
	}
	prod := a.Mul(a.Conj())
	if re, _ := prod.Real.Float64(); math.Abs(re-25) > 1e-12 {
		t.Fatalf("(3+4i)(3-4i) real part %g, want 25", re)
	}
	if im, _ := prod.Imag.Float64(); math.Abs(im) > 1e-12 {
		t.Fatalf("(3+4i)(3-4i) imaginary part %g, want 0", im)
	}
}

func TestLiftRoundRoundtrip(t *testing.T) {
	m := herm2()
	back := LiftCMat(m, 96).Round()
	if d := MaxAbsDiff(m, back); d != 0 {
		t.Fatalf("lift/round deviates by %g", d)
	}
}

func TestHermitize(t *testing.T) {
	m := NewCMat(2)
	m.Set(0, 1, 1+1i)
	h := m.Hermitize()
	if dev := h.HermitianDeviation(); dev != 0 {
		t.Fatalf("hermitized deviation %g", dev)
	}
	if got := h.At(0, 1); got != 0.5+0.5i {
		t.Fatalf("symmetrized entry %v", got)
	}
}
