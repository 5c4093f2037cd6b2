package stateio

import (
	"fmt"
	"os"
	"strconv"
)

// ResultRow is one finite-key outcome keyed by its input row's labels.
type ResultRow struct {
	N        float64
	Distance int
	Amp      float64
	PKey     float64 // written only when the writer carries the pK column
	Rate     float64
}

// ResultWriter appends result rows to a file: header once, one line per
// completed row, flushed immediately so a crash loses at most the row in
// flight.
type ResultWriter struct {
	f        *os.File
	withPKey bool
	wrote    bool
}

// NewResultWriter opens (or creates) path for appending. withPKey selects
// the five-column layout N,D,amp,pK,FKR over the four-column N,D,amp,FKR.
func NewResultWriter(path string, withPKey bool) (*ResultWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("stateio: open results: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stateio: stat results: %w", err)
	}
	// Appending to a non-empty file: the header is already there.
	return &ResultWriter{f: f, withPKey: withPKey, wrote: info.Size() > 0}, nil
}

// Write appends one row and syncs it to disk.
func (w *ResultWriter) Write(row ResultRow) error {
	if !w.wrote {
		header := "N,D,amp,FKR\n"
		if w.withPKey {
			header = "N,D,amp,pK,FKR\n"
		}
		if _, err := w.f.WriteString(header); err != nil {
			return fmt.Errorf("stateio: write header: %w", err)
		}
		w.wrote = true
	}
	var line string
	if w.withPKey {
		line = fmt.Sprintf("%s,%d,%s,%s,%s\n",
			ff(row.N), row.Distance, ff(row.Amp), ff(row.PKey), ff(row.Rate))
	} else {
		line = fmt.Sprintf("%s,%d,%s,%s\n",
			ff(row.N), row.Distance, ff(row.Amp), ff(row.Rate))
	}
	if _, err := w.f.WriteString(line); err != nil {
		return fmt.Errorf("stateio: write row: %w", err)
	}
	return w.f.Sync()
}

// Close releases the file handle.
func (w *ResultWriter) Close() error { return w.f.Close() }

func ff(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
