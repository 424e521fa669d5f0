// Package diagplot renders persistence diagrams and Rips 1-skeletons as PNG
// images with gonum/plot.
package diagplot

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/topofingerprint/internal/persistence"
)

// Size of saved images.
var (
	Width  = 6 * vg.Inch
	Height = 6 * vg.Inch
)

// ceiling returns the death value at which essential classes are drawn: a
// margin above the largest finite coordinate, or limit when that is larger.
func ceiling(d persistence.Diagram, limit float64) float64 {
	top := 0.0
	for _, p := range d {
		top = math.Max(top, p.Birth)
		if !p.Essential() {
			top = math.Max(top, p.Death)
		}
	}
	top *= 1.1
	if limit > 0 && limit < persistence.EssentialDeath {
		top = math.Max(top, limit)
	}
	if top == 0 {
		top = 1
	}
	return top
}

// DiagramPlot plots birth against death for every pair, one colour per
// dimension. Essential classes are drawn as triangles on a dashed line at
// the top of the axes; limit, typically the maximum edge length, raises that
// line when positive.
func DiagramPlot(d persistence.Diagram, title string, limit float64) (*plot.Plot, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	top := ceiling(d, limit)

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Birth"
	p.Y.Label.Text = "Death"
	p.X.Min, p.X.Max = 0, top*1.05
	p.Y.Min, p.Y.Max = 0, top*1.05

	diag, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: top * 1.05, Y: top * 1.05}})
	if err != nil {
		return nil, err
	}
	diag.Color = color.Gray{Y: 120}
	diag.Width = vg.Points(1)
	p.Add(diag)

	if len(d.Essential()) > 0 {
		inf, err := plotter.NewLine(plotter.XYs{{X: 0, Y: top}, {X: top * 1.05, Y: top}})
		if err != nil {
			return nil, err
		}
		inf.Color = color.Gray{Y: 160}
		inf.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(inf)
	}

	colors := generateColors(persistence.MaxDimension + 1)
	for dim := 0; dim <= persistence.MaxDimension; dim++ {
		pairs := d.Dimension(dim)
		if len(pairs) == 0 {
			continue
		}
		var finite, essential plotter.XYs
		for _, pr := range pairs {
			if pr.Essential() {
				essential = append(essential, plotter.XY{X: pr.Birth, Y: top})
			} else {
				finite = append(finite, plotter.XY{X: pr.Birth, Y: pr.Death})
			}
		}
		label := fmt.Sprintf("H%d", dim)
		if len(finite) > 0 {
			s, err := plotter.NewScatter(finite)
			if err != nil {
				return nil, err
			}
			s.Color = colors[dim]
			s.Shape = draw.CircleGlyph{}
			s.Radius = vg.Points(3)
			p.Add(s)
			p.Legend.Add(label, s)
		}
		if len(essential) > 0 {
			s, err := plotter.NewScatter(essential)
			if err != nil {
				return nil, err
			}
			s.Color = colors[dim]
			s.Shape = draw.TriangleGlyph{}
			s.Radius = vg.Points(4)
			p.Add(s)
			p.Legend.Add(label+" ∞", s)
		}
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}
