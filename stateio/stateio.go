// Package stateio reads the asymptotic state table and writes finite-key
// result rows. States travel as packed Hermitian matrices: D*D reals,
// row-major, where entry (i,j) with i<j holds Re rho_ij, entry (j,i) holds
// Im rho_ij and the diagonal holds Re rho_ii.
package stateio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"cvqkd-geat/qmath"
)

// State is one input row: a density matrix labelled by the channel
// distance and the coherent-state amplitude it was generated for.
type State struct {
	Distance int
	Amp      float64
	Rho      *qmath.CMat
}

// Reader streams states from a comma-separated table with one header line.
type Reader struct {
	csv  *csv.Reader
	dim  int
	row  int
	head bool
}

// NewReader wraps r for states of dimension dim.
func NewReader(r io.Reader, dim int) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	return &Reader{csv: cr, dim: dim}
}

// Next returns the next state, or io.EOF when the table is consumed.
// A malformed row is an error naming the row; the caller may keep reading.
func (r *Reader) Next() (State, error) {
	for {
		rec, err := r.csv.Read()
		if err != nil {
			return State{}, err
		}
		r.row++
		if !r.head {
			r.head = true
			continue
		}
		return r.parse(rec)
	}
}

func (r *Reader) parse(rec []string) (State, error) {
	want := 2 + r.dim*r.dim
	if len(rec) != want {
		return State{}, fmt.Errorf("stateio: row %d has %d fields, want %d", r.row, len(rec), want)
	}
	dist, err := strconv.Atoi(rec[0])
	if err != nil {
		return State{}, fmt.Errorf("stateio: row %d distance %q: %w", r.row, rec[0], err)
	}
	amp, err := strconv.ParseFloat(rec[1], 64)
	if err != nil {
		return State{}, fmt.Errorf("stateio: row %d amplitude %q: %w", r.row, rec[1], err)
	}
	packed := make([]float64, r.dim*r.dim)
	for i, field := range rec[2:] {
		packed[i], err = strconv.ParseFloat(field, 64)
		if err != nil {
			return State{}, fmt.Errorf("stateio: row %d entry %d %q: %w", r.row, i, field, err)
		}
	}
	return State{Distance: dist, Amp: amp, Rho: UnpackHermitian(packed, r.dim)}, nil
}

// ReadAll consumes the whole table.
func (r *Reader) ReadAll() ([]State, error) {
	var states []State
	for {
		s, err := r.Next()
		if err == io.EOF {
			return states, nil
		}
		if err != nil {
			return states, err
		}
		states = append(states, s)
	}
}

// UnpackHermitian rebuilds a Hermitian matrix from its packed form.
func UnpackHermitian(packed []float64, dim int) *qmath.CMat {
	m := qmath.NewCMat(dim)
	for i := 0; i < dim; i++ {
		m.Set(i, i, complex(packed[i*dim+i], 0))
		for j := i + 1; j < dim; j++ {
			re := packed[i*dim+j]
			im := packed[j*dim+i]
			m.Set(i, j, complex(re, im))
			m.Set(j, i, complex(re, -im))
		}
	}
	return m
}

// PackHermitian is the inverse of UnpackHermitian; only the upper triangle
// and diagonal of m are consulted.
func PackHermitian(m *qmath.CMat) []float64 {
	dim := m.N
	packed := make([]float64, dim*dim)
	for i := 0; i < dim; i++ {
		packed[i*dim+i] = real(m.At(i, i))
		for j := i + 1; j < dim; j++ {
			packed[i*dim+j] = real(m.At(i, j))
			packed[j*dim+i] = imag(m.At(i, j))
		}
	}
	return packed
}
