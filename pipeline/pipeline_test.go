package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"cvqkd-geat/finitesize"
	"cvqkd-geat/protocol"
	"cvqkd-geat/qmath"
	"cvqkd-geat/stateio"
)

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.FatalLevel)
	return log
}

func testProtocol() protocol.Config {
	return protocol.Config{Cutoff: 1, Amp: 0.35, PostSel: 2, Bins: 5}
}

// vacuumState is the Alice Gram matrix tensored with Bob's vacuum: a valid
// density matrix whose Alice marginal matches the tomography targets
// exactly.
func vacuumState(cfg protocol.Config) *qmath.CMat {
	vac := qmath.NewCMat(cfg.BobDim())
	vac.Set(0, 0, 1)
	return qmath.Kron(cfg.AliceGram(), vac)
}

func testRunner(t *testing.T) *Runner {
	t.Helper()
	r, err := New(Config{
		Protocol: testProtocol(),
		N:        1e8,
		Eps:      finitesize.DefaultEpsilons(),
		ECEff:    0,
		Prec:     64,
		Log:      quietLog(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestProcessRowEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("full pipeline solve")
	}
	r := testRunner(t)
	st := stateio.State{Distance: 10, Amp: 0.35, Rho: vacuumState(testProtocol())}
	row, err := r.ProcessRow(context.Background(), st)
	if err != nil {
		t.Fatal(err)
	}
	if row.N != 1e8 || row.Distance != 10 || row.Amp != 0.35 {
		t.Fatalf("row labels %+v", row)
	}
	if row.Rate < 0 {
		t.Fatalf("finite rate %g negative", row.Rate)
	}
	if row.PKey == -1 {
		t.Fatal("search exhausted on the vacuum scenario")
	}
	if row.Rate > 0 && !(row.PKey > 0 && row.PKey < 1) {
		t.Fatalf("positive rate %g with key fraction %g outside (0,1)", row.Rate, row.PKey)
	}
}

// Each row is checked against constraint targets built from its own
// amplitude, not the runner's seed configuration.
func TestProcessRowRetargetsConstraints(t *testing.T) {
	r := testRunner(t)
	cfg := testProtocol()
	cfg.Amp = 0.6
	rho := vacuumState(cfg)

	cons, err := r.cons.ForAmp(0.6)
	if err != nil {
		t.Fatal(err)
	}
	gap, err := cons.MarginalGap(rho)
	if err != nil {
		t.Fatal(err)
	}
	if gap > 1e-13 {
		t.Fatalf("marginal gap %g against matched targets", gap)
	}
	gap, err = r.cons.MarginalGap(rho)
	if err != nil {
		t.Fatal(err)
	}
	if gap < 1e-3 {
		t.Fatalf("marginal gap %g against the seed targets, want a clear mismatch", gap)
	}
}

// A state exactly physical at its own amplitude clears the marginal check
// even when the runner was built without one.
func TestProcessRowUsesRowAmplitude(t *testing.T) {
	if testing.Short() {
		t.Skip("full pipeline solve")
	}
	r, err := New(Config{
		Protocol: protocol.Config{Cutoff: 1, PostSel: 2, Bins: 5},
		N:        1e8,
		Eps:      finitesize.DefaultEpsilons(),
		Prec:     64,
	})
	if err != nil {
		t.Fatal(err)
	}
	log := logrus.New()
	log.SetOutput(io.Discard)
	hook := logtest.NewLocal(log)
	r.log = log

	cfg := testProtocol()
	cfg.Amp = 0.6
	st := stateio.State{Distance: 10, Amp: 0.6, Rho: vacuumState(cfg)}
	row, err := r.ProcessRow(context.Background(), st)
	if err != nil {
		t.Fatal(err)
	}
	if row.Amp != 0.6 || row.PKey == -1 {
		t.Fatalf("row %+v", row)
	}
	for _, e := range hook.AllEntries() {
		if strings.Contains(e.Message, "marginal") {
			t.Fatalf("exactly physical state flagged: %s", e.Message)
		}
	}
}

func TestProcessRowRejectsWrongDimension(t *testing.T) {
	r := testRunner(t)
	st := stateio.State{Distance: 10, Amp: 0.35, Rho: qmath.Identity(4)}
	if _, err := r.ProcessRow(context.Background(), st); err == nil {
		t.Fatal("dimension mismatch accepted")
	}
}

func TestRunPreservesInputOrder(t *testing.T) {
	if testing.Short() {
		t.Skip("full pipeline solve")
	}
	r, err := New(Config{
		Protocol: testProtocol(),
		N:        1e8,
		Eps:      finitesize.DefaultEpsilons(),
		Prec:     64,
		Workers:  2,
		Log:      quietLog(),
	})
	if err != nil {
		t.Fatal(err)
	}
	rho := vacuumState(testProtocol())
	states := []stateio.State{
		{Distance: 10, Amp: 0.35, Rho: rho},
		{Distance: 20, Amp: 0.35, Rho: rho},
		{Distance: 30, Amp: 0.35, Rho: rho},
	}
	path := filepath.Join(t.TempDir(), "rates.csv")
	w, err := stateio.NewResultWriter(path, true)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Run(context.Background(), states, w); err != nil {
		t.Fatal(err)
	}
	w.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want header plus 3 rows:\n%s", len(lines), data)
	}
	for i, want := range []string{"10", "20", "30"} {
		fields := strings.Split(lines[i+1], ",")
		if fields[1] != want {
			t.Fatalf("row %d has distance %s, want %s", i, fields[1], want)
		}
	}
}

func TestRunSkipsFailedRows(t *testing.T) {
	if testing.Short() {
		t.Skip("full pipeline solve")
	}
	r := testRunner(t)
	states := []stateio.State{
		{Distance: 10, Amp: 0.35, Rho: qmath.Identity(3)}, // wrong dimension
		{Distance: 20, Amp: 0.35, Rho: vacuumState(testProtocol())},
	}
	path := filepath.Join(t.TempDir(), "rates.csv")
	w, err := stateio.NewResultWriter(path, true)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Run(context.Background(), states, w); err != nil {
		t.Fatal(err)
	}
	w.Close()

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header plus the one surviving row:\n%s", len(lines), data)
	}
	if !strings.HasPrefix(lines[1], "1e+08,20,") {
		t.Fatalf("surviving row %q", lines[1])
	}
}
