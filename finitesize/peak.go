package finitesize

// The sweep terminates on a peak-detection heuristic: the rate curve is
// assumed unimodal in the sweep coordinate, so once the running maximum is
// positive and a run of consecutive candidates fails to improve it, the
// peak has been passed. The heuristic is an explicit three-state machine so
// its termination contract is testable in isolation from the sweep.

type searchPhase int

const (
	phaseSearching searchPhase = iota
	phaseStalling
	phaseFound
)

type peakTracker struct {
	phase      searchPhase
	stallLimit int
	stall      int
	seen       bool
	best       float64
	bestArg    float64
}

func newPeakTracker(stallLimit int) *peakTracker {
	return &peakTracker{stallLimit: stallLimit}
}

// observe feeds one candidate; it returns true when the search is done.
// Stalling only engages while the running maximum is positive: a string of
// non-positive candidates carries no evidence a peak was passed.
func (t *peakTracker) observe(arg, val float64) bool {
	if t.phase == phaseFound {
		return true
	}
	if !t.seen || val > t.best {
		t.seen = true
		t.best = val
		t.bestArg = arg
		t.phase = phaseSearching
		t.stall = 0
		return false
	}
	if t.best <= 0 {
		return false
	}
	t.phase = phaseStalling
	t.stall++
	if t.stall > t.stallLimit {
		t.phase = phaseFound
		return true
	}
	return false
}

// bestPoint returns the running maximum and its sweep coordinate.
func (t *peakTracker) bestPoint() (arg, val float64, ok bool) {
	return t.bestArg, t.best, t.seen
}

// done reports whether the tracker has committed to a peak.
func (t *peakTracker) done() bool { return t.phase == phaseFound }
