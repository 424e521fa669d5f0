package diagplot

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"

	"github.com/banshee-data/topofingerprint/internal/batch"
	"github.com/banshee-data/topofingerprint/internal/cells"
	"github.com/banshee-data/topofingerprint/internal/fsutil"
	"github.com/banshee-data/topofingerprint/internal/persistence"
	"github.com/banshee-data/topofingerprint/internal/rips"
)

// FileName names the image of a key: <sample>[_<group>]_<kind>.png.
func FileName(k batch.Key, kind string) string {
	stem := k.SampleID
	if k.Group != "" {
		stem += "_" + k.Group
	}
	return stem + "_" + kind + ".png"
}

// SavePNG renders p into path.
func SavePNG(fsys fsutil.FileSystem, path string, p *plot.Plot) error {
	wt, err := p.WriterTo(Width, Height, "png")
	if err != nil {
		return err
	}
	w, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		w.Close()
		return fmt.Errorf("render %s: %w", path, err)
	}
	return w.Close()
}

func title(k batch.Key, what string) string {
	return strings.TrimSpace(fmt.Sprintf("%s %s %s", k.SampleID, k.Group, what))
}

// SaveDiagram renders a persistence diagram into dir.
func SaveDiagram(fsys fsutil.FileSystem, dir string, k batch.Key, d persistence.Diagram, limit float64) error {
	p, err := DiagramPlot(d, title(k, "persistence"), limit)
	if err != nil {
		return err
	}
	return SavePNG(fsys, filepath.Join(dir, FileName(k, "diagram")), p)
}

// SaveSkeleton builds the 1-skeleton of the selected cloud and renders it
// into dir.
func SaveSkeleton(fsys fsutil.FileSystem, dir string, k batch.Key, cloud cells.Cloud, sel cells.Selection, opts rips.Options) error {
	sub := sel.Apply(cloud)
	opts.MaxDim = 1
	cx, err := rips.Build(sub.Points, opts)
	if err != nil {
		return err
	}
	p, err := SkeletonPlot(sub, cx, title(k, "1-skeleton"))
	if err != nil {
		return err
	}
	return SavePNG(fsys, filepath.Join(dir, FileName(k, "skeleton")), p)
}

// Sink renders a diagram image for every computed task. It implements
// batch.Sink; matrices are ignored.
type Sink struct {
	FS    fsutil.FileSystem
	Dir   string
	Limit float64
}

var _ batch.Sink = (*Sink)(nil)

// NewSink creates dir and returns a sink writing into it.
func NewSink(fsys fsutil.FileSystem, dir string, limit float64) (*Sink, error) {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Sink{FS: fsys, Dir: dir, Limit: limit}, nil
}

func (s *Sink) RecordTask(_ context.Context, res batch.TaskResult, d persistence.Diagram) error {
	if res.Outcome != batch.OutcomeComputed {
		return nil
	}
	return SaveDiagram(s.FS, s.Dir, res.Key, d, s.Limit)
}

func (s *Sink) RecordMatrix(context.Context, *batch.Matrix) error { return nil }

func (s *Sink) RecordMatrixFailure(context.Context, batch.MatrixFailure) error { return nil }
