package batch

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/topofingerprint/internal/distance"
	"github.com/banshee-data/topofingerprint/internal/fault"
)

// MatrixKey names one distance matrix: a group selection, a homological
// dimension and a metric.
type MatrixKey struct {
	Group  string
	Dim    int
	Metric distance.Metric
}

func (k MatrixKey) String() string {
	s := fmt.Sprintf("%s dim%d", k.Metric, k.Dim)
	if k.Group != "" {
		s += " " + k.Group
	}
	return s
}

// ErrInvalidMatrix reports a matrix that is not symmetric with a zero
// diagonal and finite non-negative entries.
var ErrInvalidMatrix = fmt.Errorf("%w: invalid distance matrix", fault.ErrComputation)

// Matrix is a symmetric distance matrix over sorted sample IDs. Values is
// nil when IDs is empty.
type Matrix struct {
	Key    MatrixKey
	IDs    []string
	Values *mat.SymDense
}

func newMatrix(key MatrixKey, ids []string) *Matrix {
	m := &Matrix{Key: key, IDs: append([]string(nil), ids...)}
	if len(ids) > 0 {
		m.Values = mat.NewSymDense(len(ids), nil)
	}
	return m
}

// Size returns the number of samples.
func (m *Matrix) Size() int { return len(m.IDs) }

// At returns the distance between the i-th and j-th samples.
func (m *Matrix) At(i, j int) float64 { return m.Values.At(i, j) }

// Lookup returns the distance between two samples by ID.
func (m *Matrix) Lookup(a, b string) (float64, bool) {
	i, j := m.index(a), m.index(b)
	if i < 0 || j < 0 {
		return 0, false
	}
	return m.At(i, j), true
}

func (m *Matrix) index(id string) int {
	for i, s := range m.IDs {
		if s == id {
			return i
		}
	}
	return -1
}

// Validate checks the zero diagonal and finite non-negative entries.
// Symmetry holds by construction of the backing SymDense.
func (m *Matrix) Validate() error {
	for i := 0; i < m.Size(); i++ {
		if d := m.At(i, i); d != 0 {
			return fmt.Errorf("%w: diagonal entry %s = %v", ErrInvalidMatrix, m.IDs[i], d)
		}
		for j := i + 1; j < m.Size(); j++ {
			if d := m.At(i, j); math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
				return fmt.Errorf("%w: entry (%s, %s) = %v", ErrInvalidMatrix, m.IDs[i], m.IDs[j], d)
			}
		}
	}
	return nil
}

// Rows returns the matrix as a dense row-major slice.
func (m *Matrix) Rows() [][]float64 {
	out := make([][]float64, m.Size())
	for i := range out {
		out[i] = make([]float64, m.Size())
		for j := range out[i] {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}

// NewMatrixFromRows builds a matrix from a square row-major table, used when
// reading matrices back from disk. The table must be symmetric with a zero
// diagonal.
func NewMatrixFromRows(key MatrixKey, ids []string, rows [][]float64) (*Matrix, error) {
	if len(rows) != len(ids) {
		return nil, fmt.Errorf("%w: %d rows for %d samples", ErrInvalidMatrix, len(rows), len(ids))
	}
	for i, row := range rows {
		if len(row) != len(ids) {
			return nil, fmt.Errorf("%w: row %s has %d columns", ErrInvalidMatrix, ids[i], len(row))
		}
	}
	m := newMatrix(key, ids)
	for i, row := range rows {
		for j := i; j < len(row); j++ {
			if row[j] != rows[j][i] {
				return nil, fmt.Errorf("%w: (%s, %s) is not symmetric", ErrInvalidMatrix, ids[i], ids[j])
			}
			m.Values.SetSym(i, j, row[j])
		}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
