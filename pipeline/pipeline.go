// Package pipeline orchestrates the per-row computation: PSD repair,
// marginal check, relative-entropy gradient, dual solve and finite-size
// correction, with a worker pool over independent input rows and a single
// collector preserving input order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"cvqkd-geat/conic"
	"cvqkd-geat/dual"
	"cvqkd-geat/finitesize"
	"cvqkd-geat/gradient"
	"cvqkd-geat/prof"
	"cvqkd-geat/protocol"
	"cvqkd-geat/qmath"
	"cvqkd-geat/stateio"
)

const (
	// repairWarn is the total shrink weight above which the PSD repair is
	// loud: the upstream table violated physicality well beyond rounding.
	repairWarn = 1e-6
	// marginalWarn bounds the acceptable gap between the reduced state and
	// the coherent-state Gram matrix.
	marginalWarn = 1e-7
	// epsFloor keeps the dual robustness weight strictly positive even for
	// exactly consistent inputs.
	epsFloor = 1e-10
)

// Config fixes one run of the pipeline.
type Config struct {
	Protocol protocol.Config
	N        float64
	Eps      finitesize.EpsilonBudget
	Variant  finitesize.Variant
	// ECEff is the error-correction efficiency f; 0 selects the Shannon
	// limit.
	ECEff float64
	// Prec is the gradient eigensolver precision in bits; 0 selects the
	// default.
	Prec uint
	// SolveTimeout bounds each dual solve; 0 means no bound.
	SolveTimeout time.Duration
	Workers      int
	Log          *logrus.Logger
}

// Runner holds the per-run immutable operators.
type Runner struct {
	cfg    Config
	km     *protocol.KeyMap
	cons   *protocol.Constraints
	solver conic.Solver
	log    *logrus.Logger
}

// New validates the configuration and precomputes the key-map and
// constraint operators shared by every row. The shared operators do not
// depend on the preparation amplitude; each input row carries its own, so
// an unset Protocol.Amp is seeded with a stand-in.
func New(cfg Config) (*Runner, error) {
	if cfg.Protocol.Amp == 0 {
		cfg.Protocol.Amp = 1
	}
	if err := cfg.Protocol.Validate(); err != nil {
		return nil, err
	}
	if cfg.N <= 1 {
		return nil, fmt.Errorf("pipeline: round count %g must exceed 1", cfg.N)
	}
	if err := cfg.Eps.Validate(); err != nil {
		return nil, err
	}
	km, err := protocol.NewKeyMap(cfg.Protocol)
	if err != nil {
		return nil, err
	}
	cons, err := protocol.NewConstraints(cfg.Protocol)
	if err != nil {
		return nil, err
	}
	log := cfg.Log
	if log == nil {
		log = logrus.New()
	}
	return &Runner{
		cfg:    cfg,
		km:     km,
		cons:   cons,
		solver: &conic.CutPlaneSolver{},
		log:    log,
	}, nil
}

// ProcessRow runs the full pipeline on one input state. A nil error with a
// PKey of -1 marks an exhausted finite-size search; genuine zero rates come
// back as plain zero rows.
func (r *Runner) ProcessRow(ctx context.Context, st stateio.State) (stateio.ResultRow, error) {
	defer prof.Track(time.Now(), "pipeline.row")
	row := stateio.ResultRow{N: r.cfg.N, Distance: st.Distance, Amp: st.Amp}

	dim := r.cfg.Protocol.Dim()
	if st.Rho == nil || st.Rho.N != dim {
		return row, fmt.Errorf("pipeline: D=%d amp=%g: state dimension mismatch", st.Distance, st.Amp)
	}
	cons, err := r.cons.ForAmp(st.Amp)
	if err != nil {
		return row, fmt.Errorf("pipeline: D=%d: %w", st.Distance, err)
	}

	start := time.Now()
	rho, rep, err := qmath.RepairPSD(st.Rho)
	prof.Track(start, "pipeline.repair")
	if err != nil {
		return row, fmt.Errorf("pipeline: D=%d amp=%g: psd repair: %w", st.Distance, st.Amp, err)
	}
	if rep.Shrink > repairWarn {
		r.log.Warnf("pipeline: D=%d amp=%g: psd repair shrank state by %.3g over %d iterations",
			st.Distance, st.Amp, rep.Shrink, rep.Iterations)
	}

	gap, err := cons.MarginalGap(rho)
	if err != nil {
		return row, fmt.Errorf("pipeline: D=%d amp=%g: marginal check: %w", st.Distance, st.Amp, err)
	}
	if gap > marginalWarn {
		r.log.Warnf("pipeline: D=%d amp=%g: Alice marginal deviates from Gram matrix by %.3g",
			st.Distance, st.Amp, gap)
	}
	eps := math.Max(gap, epsFloor)

	start = time.Now()
	grad, err := gradient.Compute(rho, r.km, r.cfg.Prec)
	prof.Track(start, "pipeline.gradient")
	if err != nil {
		return row, fmt.Errorf("pipeline: D=%d amp=%g: gradient: %w", st.Distance, st.Amp, err)
	}

	table := cons.Table(rho)
	deltaEC := cons.ECCost(rho, r.cfg.ECEff)

	solveCtx := ctx
	if r.cfg.SolveTimeout > 0 {
		var cancel context.CancelFunc
		solveCtx, cancel = context.WithTimeout(ctx, r.cfg.SolveTimeout)
		defer cancel()
	}
	start = time.Now()
	sol, err := dual.Solve(solveCtx, r.solver, dual.Params{
		Gradient:   grad,
		Cons:       cons,
		Table:      table,
		Eps:        eps,
		DeltaEC:    deltaEC,
		Regularize: r.cfg.Variant == finitesize.VariantA,
	})
	prof.Track(start, "pipeline.dual")
	if err != nil {
		return row, fmt.Errorf("pipeline: D=%d amp=%g: dual solve: %w", st.Distance, st.Amp, err)
	}

	start = time.Now()
	res, err := finitesize.Maximize(finitesize.Config{
		N:       r.cfg.N,
		Eps:     r.cfg.Eps,
		Variant: r.cfg.Variant,
	}, sol, table)
	prof.Track(start, "pipeline.finitesize")
	if errors.Is(err, finitesize.ErrSearchExhausted) {
		r.log.Errorf("pipeline: D=%d amp=%g: %v", st.Distance, st.Amp, err)
		row.PKey = -1
		return row, nil
	}
	if err != nil {
		return row, fmt.Errorf("pipeline: D=%d amp=%g: finite-size: %w", st.Distance, st.Amp, err)
	}

	row.PKey = res.PKey
	if res.Rate > 0 {
		row.Rate = res.Rate
	}
	return row, nil
}

// Run drives all states through a worker pool and writes one result row
// per successful input row, in input order. Per-row failures are logged
// and skipped; only writer failures abort the run.
func (r *Runner) Run(ctx context.Context, states []stateio.State, w *stateio.ResultWriter) error {
	workers := r.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(states) {
		workers = len(states)
	}

	type outcome struct {
		idx int
		row stateio.ResultRow
		err error
	}
	jobs := make(chan int)
	results := make(chan outcome, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				row, err := r.ProcessRow(ctx, states[idx])
				results <- outcome{idx: idx, row: row, err: err}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for i := range states {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	var writeErr error
	pending := make(map[int]outcome)
	next := 0
	for res := range results {
		pending[res.idx] = res
		for {
			o, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			if o.err != nil {
				r.log.Errorf("%v", o.err)
				continue
			}
			if writeErr == nil {
				if err := w.Write(o.row); err != nil {
					writeErr = err
				}
			}
		}
	}
	if writeErr != nil {
		return writeErr
	}
	return ctx.Err()
}
