package diagplot

import (
	"fmt"
	"image/color"
	"math"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/topofingerprint/internal/cells"
	"github.com/banshee-data/topofingerprint/internal/rips"
)

// edges draws the 1-simplices of a complex as straight segments. It
// implements plot.Plotter and plot.DataRanger.
type edges struct {
	points []cells.Point
	edges  []rips.Simplex
	draw.LineStyle
}

func (e *edges) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&c)
	for _, s := range e.edges {
		a, b := e.points[s.Vertices[0]], e.points[s.Vertices[1]]
		c.StrokeLine2(e.LineStyle, trX(a.X), trY(a.Y), trX(b.X), trY(b.Y))
	}
}

func (e *edges) DataRange() (xmin, xmax, ymin, ymax float64) {
	xmin, ymin = math.Inf(1), math.Inf(1)
	xmax, ymax = math.Inf(-1), math.Inf(-1)
	for _, p := range e.points {
		xmin, xmax = math.Min(xmin, p.X), math.Max(xmax, p.X)
		ymin, ymax = math.Min(ymin, p.Y), math.Max(ymax, p.Y)
	}
	return xmin, xmax, ymin, ymax
}

// SkeletonPlot draws the cloud's points, coloured by phenotype label, over
// the edges of cx. cx must have been built from cloud.Points.
func SkeletonPlot(cloud cells.Cloud, cx *rips.Complex, title string) (*plot.Plot, error) {
	if cx == nil || cx.NumVertices != cloud.Len() {
		return nil, fmt.Errorf("complex does not match cloud %q", cloud.SampleID)
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"
	if cloud.Len() == 0 {
		return p, nil
	}

	p.Add(&edges{
		points:    cloud.Points,
		edges:     cx.Edges(),
		LineStyle: draw.LineStyle{Color: color.Gray{Y: 150}, Width: vg.Points(0.5)},
	})

	byLabel := make(map[string]plotter.XYs)
	for _, pt := range cloud.Points {
		byLabel[pt.Label] = append(byLabel[pt.Label], plotter.XY{X: pt.X, Y: pt.Y})
	}
	labels := make([]string, 0, len(byLabel))
	for l := range byLabel {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	colors := generateColors(len(labels))
	for i, l := range labels {
		s, err := plotter.NewScatter(byLabel[l])
		if err != nil {
			return nil, err
		}
		s.Color = colors[i]
		s.Shape = draw.CircleGlyph{}
		s.Radius = vg.Points(2)
		p.Add(s)
		if l == "" {
			l = "unlabelled"
		}
		p.Legend.Add(l, s)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}
