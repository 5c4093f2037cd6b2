//go:build analysis

// ratesplot renders finite-key rate curves from a results table: one line
// per amplitude, rate against distance. Works with both the four-column
// (N,D,amp,FKR) and five-column (N,D,amp,pK,FKR) layouts.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

type point struct {
	dist float64
	rate float64
}

func main() {
	inPath := flag.String("in", "finite_rates.csv", "results table to plot")
	outPath := flag.String("out", "finite_rates.html", "output HTML report")
	title := flag.String("title", "Finite-size key rate", "chart title")
	flag.Parse()

	curves, err := loadCurves(*inPath)
	if err != nil {
		exitErr("load %s: %v", *inPath, err)
	}
	if len(curves) == 0 {
		exitErr("no plottable rows in %s", *inPath)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: *title, Subtitle: *inPath}),
		charts.WithInitializationOpts(opts.Initialization{PageTitle: *title, Width: "1200px", Height: "600px"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "distance"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "secret key rate (bits/round)", Type: "log"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}, opts.DataZoom{Type: "slider"}),
	)

	amps := make([]string, 0, len(curves))
	for amp := range curves {
		amps = append(amps, amp)
	}
	sort.Strings(amps)

	var xAxis []string
	for _, amp := range amps {
		pts := curves[amp]
		sort.Slice(pts, func(i, j int) bool { return pts[i].dist < pts[j].dist })
		if len(pts) > len(xAxis) {
			xAxis = xAxis[:0]
			for _, p := range pts {
				xAxis = append(xAxis, strconv.FormatFloat(p.dist, 'g', -1, 64))
			}
		}
	}
	line.SetXAxis(xAxis)
	for _, amp := range amps {
		data := make([]opts.LineData, 0, len(curves[amp]))
		for _, p := range curves[amp] {
			data = append(data, opts.LineData{Value: p.rate})
		}
		line.AddSeries("amp "+amp, data)
	}

	page := components.NewPage()
	page.AddCharts(line)
	f, err := os.Create(*outPath)
	if err != nil {
		exitErr("create %s: %v", *outPath, err)
	}
	if err := page.Render(f); err != nil {
		exitErr("render: %v", err)
	}
	if err := f.Close(); err != nil {
		exitErr("close %s: %v", *outPath, err)
	}
	fmt.Printf("wrote %s (%d curves)\n", *outPath, len(amps))
}

// loadCurves groups rows by amplitude label; the rate is always the last
// column, the distance the second.
func loadCurves(path string) (map[string][]point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	recs, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	curves := make(map[string][]point)
	for i, rec := range recs {
		if i == 0 || len(rec) < 4 {
			continue
		}
		dist, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d distance %q: %w", i, rec[1], err)
		}
		rate, err := strconv.ParseFloat(rec[len(rec)-1], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d rate %q: %w", i, rec[len(rec)-1], err)
		}
		curves[rec[2]] = append(curves[rec[2]], point{dist: dist, rate: rate})
	}
	return curves, nil
}

func exitErr(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
