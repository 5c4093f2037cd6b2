package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"cvqkd-geat/finitesize"
	"cvqkd-geat/pipeline"
	"cvqkd-geat/prof"
	"cvqkd-geat/protocol"
	"cvqkd-geat/stateio"
)

const (
	defaultOutPath = "finite_rates.csv"
	defaultRounds  = 1e12
	defaultCutoff  = 11
	defaultDelta   = 2.0
	defaultBins    = 5
	defaultPrec    = 160
	defaultTimeout = 10 * time.Minute
	defaultEps     = 1e-10
)

func main() {
	inPath := flag.String("in", "", "input asymptotic state table (CSV)")
	outPath := flag.String("out", defaultOutPath, "output results table (appended)")
	rounds := flag.Float64("rounds", defaultRounds, "total protocol rounds N")
	cutoff := flag.Int("cutoff", defaultCutoff, "photon-number cutoff Nc")
	delta := flag.Float64("delta", defaultDelta, "post-selection parameter (disk radius delta/2)")
	bins := flag.Int("bins", defaultBins, "angular parameter-estimation bins outside the disk")
	ecF := flag.Float64("amp-f", 0, "error-correction efficiency (0 = Shannon limit)")
	variantName := flag.String("variant", "a", "finite-size variant: a or b")
	workers := flag.Int("workers", 1, "rows processed in parallel")
	prec := flag.Uint("prec", defaultPrec, "gradient eigensolver precision in bits")
	timeout := flag.Duration("solve-timeout", defaultTimeout, "per-row dual solve timeout (0 disables)")
	epsSound := flag.Float64("eps", defaultEps, "overall soundness epsilon")
	epsPE := flag.Float64("eps-pe", defaultEps, "parameter-estimation epsilon")
	epsPA := flag.Float64("eps-pa", defaultEps, "privacy-amplification epsilon")
	epsEC := flag.Float64("eps-ec", defaultEps, "error-correction epsilon")
	timing := flag.Bool("timing", false, "print per-stage timing summary to stderr")
	flag.Parse()

	if *inPath == "" {
		exitErr("missing -in: path to the asymptotic state table")
	}
	var variant finitesize.Variant
	switch *variantName {
	case "a", "A":
		variant = finitesize.VariantA
	case "b", "B":
		variant = finitesize.VariantB
	default:
		exitErr("unknown variant %q (want a or b)", *variantName)
	}

	proto := protocol.Config{Cutoff: *cutoff, PostSel: *delta, Bins: *bins}
	log := logrus.New()
	runner, err := pipeline.New(pipeline.Config{
		Protocol:     proto,
		N:            *rounds,
		Eps:          finitesize.EpsilonBudget{Sound: *epsSound, PE: *epsPE, PA: *epsPA, EC: *epsEC},
		Variant:      variant,
		ECEff:        *ecF,
		Prec:         *prec,
		SolveTimeout: *timeout,
		Workers:      *workers,
		Log:          log,
	})
	if err != nil {
		exitErr("configure pipeline: %v", err)
	}

	f, err := os.Open(*inPath)
	if err != nil {
		exitErr("open input table: %v", err)
	}
	reader := stateio.NewReader(f, proto.Dim())
	var states []stateio.State
	for {
		st, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A malformed row loses only itself.
			log.Errorf("skipping input row: %v", err)
			continue
		}
		states = append(states, st)
	}
	f.Close()
	if len(states) == 0 {
		exitErr("input table %s holds no state rows", *inPath)
	}
	log.Infof("finitekey: %d rows, D=%d, N=%g, variant %s", len(states), proto.Dim(), *rounds, *variantName)

	writer, err := stateio.NewResultWriter(*outPath, variant == finitesize.VariantA)
	if err != nil {
		exitErr("open results table: %v", err)
	}
	start := time.Now()
	runErr := runner.Run(context.Background(), states, writer)
	if cerr := writer.Close(); runErr == nil {
		runErr = cerr
	}
	if runErr != nil {
		exitErr("run: %v", runErr)
	}
	log.Infof("finitekey: finished in %v", time.Since(start).Round(time.Millisecond))
	if *timing {
		prof.WriteSummary(os.Stderr)
	}
}

func exitErr(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
