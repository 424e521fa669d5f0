package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/topofingerprint/internal/distance"
	"github.com/banshee-data/topofingerprint/internal/persistence"
)

func TestDiagramStore(t *testing.T) {
	s := NewDiagramStore()
	s.Put(Key{SampleID: "b", Group: "tumor"}, persistence.Diagram{{Dim: 1, Birth: 1, Death: 2}, {Dim: 0, Birth: 0, Death: 1}})
	s.Put(Key{SampleID: "a", Group: "tumor"}, nil)
	s.Put(Key{SampleID: "c"}, persistence.Diagram{})

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []string{"", "tumor"}, s.Groups())
	assert.Equal(t, []string{"a", "b"}, s.SampleIDs("tumor"))
	assert.Empty(t, s.SampleIDs("myeloid"))
	assert.Equal(t, []Key{{"c", ""}, {"a", "tumor"}, {"b", "tumor"}}, s.Keys())

	d, ok := s.Get(Key{SampleID: "b", Group: "tumor"})
	require.True(t, ok)
	assert.Equal(t, 0, d[0].Dim, "stored diagrams are in canonical order")

	assert.Equal(t, "b/tumor", Key{SampleID: "b", Group: "tumor"}.String())
	assert.Equal(t, "c", Key{SampleID: "c"}.String())
}

func TestMatrix(t *testing.T) {
	key := MatrixKey{Group: "tumor", Dim: 1, Metric: distance.MetricBottleneck}
	assert.Equal(t, "bottleneck dim1 tumor", key.String())

	rows := [][]float64{{0, 1, 2}, {1, 0, 3}, {2, 3, 0}}
	m, err := NewMatrixFromRows(key, []string{"a", "b", "c"}, rows)
	require.NoError(t, err)
	assert.Equal(t, rows, m.Rows())
	d, ok := m.Lookup("c", "b")
	require.True(t, ok)
	assert.Equal(t, 3.0, d)
	_, ok = m.Lookup("a", "z")
	assert.False(t, ok)

	_, err = NewMatrixFromRows(key, []string{"a", "b"}, [][]float64{{0, 1}, {2, 0}})
	assert.ErrorIs(t, err, ErrInvalidMatrix)
	_, err = NewMatrixFromRows(key, []string{"a", "b"}, [][]float64{{1, 1}, {1, 0}})
	assert.ErrorIs(t, err, ErrInvalidMatrix)
	_, err = NewMatrixFromRows(key, []string{"a", "b"}, [][]float64{{0, -1}, {-1, 0}})
	assert.ErrorIs(t, err, ErrInvalidMatrix)
	_, err = NewMatrixFromRows(key, []string{"a"}, [][]float64{{0}, {0}})
	assert.ErrorIs(t, err, ErrInvalidMatrix)

	empty, err := NewMatrixFromRows(key, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Size())
	assert.Empty(t, empty.Rows())
}
