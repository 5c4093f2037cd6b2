// synthstate writes a synthetic asymptotic state table so the finite-key
// pipeline can be exercised without the upstream rate generator. States are
// random density matrices drawn from a PRNG keyed to each row's labels, so
// repeated runs produce identical tables.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"cvqkd-geat/protocol"
	"cvqkd-geat/sampler"
	"cvqkd-geat/stateio"
)

const (
	defaultOutPath   = "synth_states.csv"
	defaultCutoff    = 11
	defaultAmp       = 0.35
	defaultDistances = "10,20,30,40,50"
)

func main() {
	outPath := flag.String("out", defaultOutPath, "output state table")
	cutoff := flag.Int("cutoff", defaultCutoff, "photon-number cutoff Nc")
	amp := flag.Float64("amp", defaultAmp, "amplitude label written to every row")
	distSpec := flag.String("distances", defaultDistances, "comma list of distance labels")
	flag.Parse()

	distances, err := parseInts(*distSpec)
	if err != nil {
		exitErr("parse distances: %v", err)
	}
	cfg := protocol.Config{Cutoff: *cutoff, Amp: *amp, PostSel: 2, Bins: 5}
	if err := cfg.Validate(); err != nil {
		exitErr("%v", err)
	}
	dim := cfg.Dim()

	f, err := os.Create(*outPath)
	if err != nil {
		exitErr("create %s: %v", *outPath, err)
	}
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "distance,amplitude,state[%dx%d]\n", dim, dim)
	for _, d := range distances {
		s, err := sampler.New(d, *amp)
		if err != nil {
			exitErr("sampler for D=%d: %v", d, err)
		}
		packed := stateio.PackHermitian(s.State(dim))
		fmt.Fprintf(w, "%d,%s", d, strconv.FormatFloat(*amp, 'g', -1, 64))
		for _, v := range packed {
			fmt.Fprintf(w, ",%s", strconv.FormatFloat(v, 'g', -1, 64))
		}
		fmt.Fprintln(w)
	}
	if err := w.Flush(); err != nil {
		exitErr("flush %s: %v", *outPath, err)
	}
	if err := f.Close(); err != nil {
		exitErr("close %s: %v", *outPath, err)
	}
	fmt.Printf("wrote %d states of dimension %d to %s\n", len(distances), dim, *outPath)
}

func parseInts(spec string) ([]int, error) {
	parts := strings.Split(spec, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty distance list %q", spec)
	}
	return out, nil
}

func exitErr(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
