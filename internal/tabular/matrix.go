package tabular

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/topofingerprint/internal/batch"
	"github.com/banshee-data/topofingerprint/internal/fault"
	"github.com/banshee-data/topofingerprint/internal/fsutil"
	"github.com/banshee-data/topofingerprint/internal/persistence"
)

// WriteMatrix writes a square table: an empty corner cell followed by the
// sample IDs, then one row per sample starting with its ID.
func WriteMatrix(w io.Writer, m *batch.Matrix) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{""}, m.IDs...)); err != nil {
		return err
	}
	row := make([]string, m.Size()+1)
	for i, id := range m.IDs {
		row[0] = id
		for j := range m.IDs {
			row[j+1] = FormatFloat(m.At(i, j))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadMatrix parses a matrix written by WriteMatrix. Row and column IDs must
// agree and the table must be symmetric with a zero diagonal.
func ReadMatrix(r io.Reader, key batch.MatrixKey) (*batch.Matrix, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrMalformedInput, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty matrix file", fault.ErrMalformedInput)
	}
	ids := records[0][1:]
	if len(records)-1 != len(ids) {
		return nil, fmt.Errorf("%w: %d rows for %d columns", fault.ErrMalformedInput, len(records)-1, len(ids))
	}
	rows := make([][]float64, len(ids))
	for i, rec := range records[1:] {
		if rec[0] != ids[i] {
			return nil, fmt.Errorf("%w: row %d is %q, column is %q", fault.ErrMalformedInput, i, rec[0], ids[i])
		}
		rows[i] = make([]float64, len(ids))
		for j, cell := range rec[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: (%s, %s): %v", fault.ErrMalformedInput, ids[i], ids[j], err)
			}
			rows[i][j] = v
		}
	}
	return batch.NewMatrixFromRows(key, ids, rows)
}

// MatrixFileName names a matrix file: <metric>_dim<d>[_<group>].csv.
func MatrixFileName(k batch.MatrixKey) string {
	name := fmt.Sprintf("%s_dim%d", k.Metric, k.Dim)
	if k.Group != "" {
		name += "_" + k.Group
	}
	return name + Ext
}

// SaveMatrix writes a matrix file into dir.
func SaveMatrix(fsys fsutil.FileSystem, dir string, m *batch.Matrix) error {
	w, err := fsys.Create(filepath.Join(dir, MatrixFileName(m.Key)))
	if err != nil {
		return fmt.Errorf("create matrix file: %w", err)
	}
	if err := WriteMatrix(w, m); err != nil {
		w.Close()
		return fmt.Errorf("write matrix %s: %w", m.Key, err)
	}
	return w.Close()
}

// DirSink writes computed diagrams and complete matrices as CSV files. An
// aborted matrix never produces a file.
type DirSink struct {
	FS         fsutil.FileSystem
	DiagramDir string
	MatrixDir  string
}

// NewDirSink creates both output directories.
func NewDirSink(fsys fsutil.FileSystem, diagramDir, matrixDir string) (*DirSink, error) {
	for _, dir := range []string{diagramDir, matrixDir} {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	return &DirSink{FS: fsys, DiagramDir: diagramDir, MatrixDir: matrixDir}, nil
}

func (s *DirSink) RecordTask(_ context.Context, res batch.TaskResult, d persistence.Diagram) error {
	if res.Outcome != batch.OutcomeComputed {
		return nil
	}
	return SaveDiagram(s.FS, s.DiagramDir, res.Key, d)
}

func (s *DirSink) RecordMatrix(_ context.Context, m *batch.Matrix) error {
	return SaveMatrix(s.FS, s.MatrixDir, m)
}

func (s *DirSink) RecordMatrixFailure(context.Context, batch.MatrixFailure) error { return nil }
