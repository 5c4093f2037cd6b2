// Package prof collects lightweight stage timings across the pipeline.
// Stages call `defer prof.Track(time.Now(), "stage")`; the driver prints an
// aggregated summary at the end of the run.
package prof

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// Entry represents a single timing measurement.
type Entry struct {
	Label string
	Dur   time.Duration
}

// Stat aggregates all measurements sharing a label.
type Stat struct {
	Label string
	Count int
	Total time.Duration
}

var (
	mu     sync.Mutex
	record []Entry
)

// Track logs the duration since start with the given name.
func Track(start time.Time, name string) {
	elapsed := time.Since(start)
	mu.Lock()
	record = append(record, Entry{Label: name, Dur: elapsed})
	mu.Unlock()
}

// SnapshotAndReset returns the collected timing entries and clears them.
func SnapshotAndReset() []Entry {
	mu.Lock()
	defer mu.Unlock()
	out := make([]Entry, len(record))
	copy(out, record)
	record = nil
	return out
}

// Aggregate folds entries into per-label statistics, sorted by total time
// descending.
func Aggregate(entries []Entry) []Stat {
	byLabel := make(map[string]*Stat)
	for _, e := range entries {
		s, ok := byLabel[e.Label]
		if !ok {
			s = &Stat{Label: e.Label}
			byLabel[e.Label] = s
		}
		s.Count++
		s.Total += e.Dur
	}
	stats := make([]Stat, 0, len(byLabel))
	for _, s := range byLabel {
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Total > stats[j].Total })
	return stats
}

// WriteSummary prints the aggregated snapshot and resets the record.
func WriteSummary(w io.Writer) {
	for _, s := range Aggregate(SnapshotAndReset()) {
		avg := s.Total / time.Duration(s.Count)
		fmt.Fprintf(w, "%-24s %6d calls  total %12v  avg %12v\n", s.Label, s.Count, s.Total, avg)
	}
}
