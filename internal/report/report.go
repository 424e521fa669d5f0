// Package report renders batch results as a standalone HTML page with
// go-echarts: one heatmap per distance matrix and a bar chart of task
// outcomes.
package report

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/topofingerprint/internal/batch"
	"github.com/banshee-data/topofingerprint/internal/fsutil"
)

// viridis is the heatmap palette, low to high.
var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// MatrixChart renders a distance matrix as a heatmap with sample IDs on
// both axes.
func MatrixChart(m *batch.Matrix) *charts.HeatMap {
	n := m.Size()
	data := make([]opts.HeatMapData, 0, n*n)
	maxV := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := m.At(i, j)
			maxV = math.Max(maxV, v)
			data = append(data, opts.HeatMapData{Value: [3]interface{}{i, j, v}})
		}
	}
	if maxV == 0 {
		maxV = 1
	}

	side := fmt.Sprintf("%dpx", 360+18*n)
	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Topological fingerprints", Width: side, Height: side}),
		charts.WithTitleOpts(opts.Title{Title: m.Key.String(), Subtitle: fmt.Sprintf("samples=%d", n)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: m.IDs, SplitArea: &opts.SplitArea{Show: opts.Bool(true)}}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: m.IDs, SplitArea: &opts.SplitArea{Show: opts.Bool(true)}}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxV),
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	hm.SetXAxis(m.IDs).AddSeries(m.Key.String(), data)
	return hm
}

// OutcomeChart renders the computed, skipped and failed task counts.
func OutcomeChart(rep *batch.Report) *charts.Bar {
	outcomes := []batch.Outcome{batch.OutcomeComputed, batch.OutcomeSkipped, batch.OutcomeFailed}
	x := make([]string, len(outcomes))
	y := make([]opts.BarData, len(outcomes))
	for i, o := range outcomes {
		x[i] = string(o)
		y[i] = opts.BarData{Value: rep.Count(o)}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "720px", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Diagram round", Subtitle: rep.Summary()}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("tasks", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

// WriteHTML renders the outcome chart (when rep is non-nil) followed by one
// heatmap per non-empty matrix.
func WriteHTML(w io.Writer, rep *batch.Report, matrices []*batch.Matrix) error {
	page := components.NewPage()
	page.PageTitle = "Topological fingerprints"
	if rep != nil {
		page.AddCharts(OutcomeChart(rep))
	}
	for _, m := range matrices {
		if m.Size() == 0 {
			continue
		}
		page.AddCharts(MatrixChart(m))
	}
	return page.Render(w)
}

// SaveHTML writes the page to path.
func SaveHTML(fsys fsutil.FileSystem, path string, rep *batch.Report, matrices []*batch.Matrix) error {
	w, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteHTML(w, rep, matrices); err != nil {
		w.Close()
		return fmt.Errorf("render %s: %w", path, err)
	}
	return w.Close()
}
