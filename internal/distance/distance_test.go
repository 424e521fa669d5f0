package distance

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/topofingerprint/internal/fault"
	"github.com/banshee-data/topofingerprint/internal/persistence"
)

func dgm(dim int, bd ...float64) persistence.Diagram {
	out := persistence.Diagram{}
	for i := 0; i+1 < len(bd); i += 2 {
		out = append(out, persistence.Pair{Dim: dim, Birth: bd[i], Death: bd[i+1]})
	}
	return out
}

func randomDiagram(rng *rand.Rand, n int) persistence.Diagram {
	out := make(persistence.Diagram, n)
	for i := range out {
		b := math.Round(rng.Float64()*100) / 10
		out[i] = persistence.Pair{Dim: 1, Birth: b, Death: b + math.Round(rng.Float64()*50)/10}
	}
	return out
}

var metrics = []Metric{MetricWasserstein, MetricBottleneck}

var norms = []Norm{NormEuclidean, NormInfinity}

func TestIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	cases := map[string]persistence.Diagram{
		"empty":     {},
		"nil":       nil,
		"single":    dgm(0, 0, 2),
		"essential": dgm(0, 0, 1, 0, persistence.EssentialDeath),
		"random":    randomDiagram(rng, 12),
	}
	for name, d := range cases {
		for _, metric := range metrics {
			t.Run(name+"/"+string(metric), func(t *testing.T) {
				got, err := Between(metric, d, d, Options{})
				require.NoError(t, err)
				assert.Equal(t, 0.0, got)

				// Same multiset in a different order.
				rev := append(persistence.Diagram(nil), d...)
				for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
					rev[i], rev[j] = rev[j], rev[i]
				}
				got, err = Between(metric, d, rev, Options{})
				require.NoError(t, err)
				assert.Equal(t, 0.0, got)
			})
		}
	}
}

func TestEmptyAgainstSinglePoint(t *testing.T) {
	single := dgm(0, 0, 2)
	tests := []struct {
		norm Norm
		want float64
	}{
		{NormEuclidean, math.Sqrt2},
		{NormInfinity, 1},
	}
	for _, tt := range tests {
		for _, metric := range metrics {
			t.Run(tt.norm.String()+"/"+string(metric), func(t *testing.T) {
				got, err := Between(metric, persistence.Diagram{}, single, Options{Ground: tt.norm})
				require.NoError(t, err)
				assert.InDelta(t, tt.want, got, 1e-12)
			})
		}
	}
}

func TestOneEmptySumsDiagonalCosts(t *testing.T) {
	d := dgm(1, 0, 2, 1, 2, 3, 7)
	w, err := Wasserstein(d, nil, Options{})
	require.NoError(t, err)
	assert.InDelta(t, (2+1+4)/math.Sqrt2, w, 1e-12)

	b, err := Bottleneck(nil, d, Options{})
	require.NoError(t, err)
	assert.InDelta(t, 4/math.Sqrt2, b, 1e-12)
}

func TestKnownValues(t *testing.T) {
	a := dgm(1, 0, 1)
	b := dgm(1, 0, 2)

	w, err := Wasserstein(a, b, Options{})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, w, 1e-12, "matching the points beats two diagonal projections")

	bn, err := Bottleneck(a, b, Options{})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, bn, 1e-12)

	// Far apart points are cheaper to send to the diagonal.
	far := dgm(1, 100, 101)
	w, err = Wasserstein(a, far, Options{})
	require.NoError(t, err)
	assert.InDelta(t, 2/math.Sqrt2, w, 1e-12)
}

func TestOrder(t *testing.T) {
	d := dgm(0, 0, 2, 0, 2)
	got, err := Wasserstein(nil, d, Options{Order: 2})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, got, 1e-12)

	_, err = Wasserstein(nil, d, Options{Order: 0.5})
	assert.ErrorIs(t, err, ErrInvalidOrder)
	_, err = Wasserstein(nil, d, Options{Order: math.Inf(1)})
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestEssentialClasses(t *testing.T) {
	ess := dgm(0, 0, persistence.EssentialDeath)
	got, err := Wasserstein(ess, nil, Options{})
	require.NoError(t, err)
	assert.InDelta(t, persistence.EssentialDeath/math.Sqrt2, got, 1e-6)

	// Essential classes with close births match each other cheaply.
	got, err = Wasserstein(ess, dgm(0, 0.5, persistence.EssentialDeath), Options{})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got, 1e-9)
}

func TestErrors(t *testing.T) {
	_, err := Wasserstein(dgm(0, 0, 1), dgm(1, 0, 1), Options{})
	assert.ErrorIs(t, err, ErrMixedDimensions)
	assert.ErrorIs(t, err, fault.ErrComputation)

	_, err = Bottleneck(append(dgm(0, 0, 1), dgm(1, 0, 1)...), nil, Options{})
	assert.ErrorIs(t, err, ErrMixedDimensions)

	_, err = Wasserstein(dgm(0, 2, 1), nil, Options{})
	assert.ErrorIs(t, err, persistence.ErrInvalidPair)

	_, err = Between("energy", nil, nil, Options{})
	assert.ErrorIs(t, err, ErrUnknownMetric)

	_, err = Wasserstein(nil, nil, Options{Ground: Norm(9)})
	assert.ErrorIs(t, err, ErrUnknownNorm)
}

func TestSymmetry(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 20; trial++ {
		a := randomDiagram(rng, rng.Intn(8))
		b := randomDiagram(rng, rng.Intn(8))
		for _, metric := range metrics {
			for _, norm := range norms {
				opts := Options{Ground: norm}
				ab, err := Between(metric, a, b, opts)
				require.NoError(t, err)
				ba, err := Between(metric, b, a, opts)
				require.NoError(t, err)
				assert.Equal(t, ab, ba, "trial %d %s %s", trial, metric, norm)
				assert.GreaterOrEqual(t, ab, 0.0)
			}
		}
	}
}

func TestMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 40; trial++ {
		a := randomDiagram(rng, rng.Intn(5))
		b := randomDiagram(rng, rng.Intn(5))
		for _, norm := range norms {
			for _, order := range []float64{1, 2} {
				opts := Options{Ground: norm, Order: order}
				want := bruteForce(a, b, opts, false)
				got, err := Wasserstein(a, b, opts)
				require.NoError(t, err)
				assert.InDelta(t, want, got, 1e-9, "wasserstein trial %d", trial)
			}
			opts := Options{Ground: norm}
			want := bruteForce(a, b, opts, true)
			got, err := Bottleneck(a, b, opts)
			require.NoError(t, err)
			assert.InDelta(t, want, got, 1e-12, "bottleneck trial %d", trial)
		}
	}
}

func TestBottleneckNotAboveWasserstein(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 10; trial++ {
		a := randomDiagram(rng, 6)
		b := randomDiagram(rng, 9)
		w, err := Wasserstein(a, b, Options{})
		require.NoError(t, err)
		bn, err := Bottleneck(a, b, Options{})
		require.NoError(t, err)
		assert.LessOrEqual(t, bn, w+1e-12)
	}
}

// bruteForce enumerates every partial matching of a into b.
func bruteForce(a, b persistence.Diagram, opts Options, bottleneck bool) float64 {
	p := opts.order()
	combine := func(acc, c float64) float64 {
		if bottleneck {
			return math.Max(acc, c)
		}
		return acc + math.Pow(c, p)
	}
	used := make([]bool, len(b))
	best := math.Inf(1)
	var walk func(i int, acc float64)
	walk = func(i int, acc float64) {
		if i == len(a) {
			for j, pt := range b {
				if !used[j] {
					acc = combine(acc, opts.diagonalCost(pt.Birth, pt.Death))
				}
			}
			best = math.Min(best, acc)
			return
		}
		walk(i+1, combine(acc, opts.diagonalCost(a[i].Birth, a[i].Death)))
		for j := range b {
			if used[j] {
				continue
			}
			used[j] = true
			walk(i+1, combine(acc, opts.pointCost(a[i].Birth, a[i].Death, b[j].Birth, b[j].Death)))
			used[j] = false
		}
	}
	walk(0, 0)
	if bottleneck {
		return best
	}
	return root(best, p)
}

func TestParse(t *testing.T) {
	n, err := ParseNorm("L2")
	require.NoError(t, err)
	assert.Equal(t, NormEuclidean, n)
	n, err = ParseNorm("linf")
	require.NoError(t, err)
	assert.Equal(t, NormInfinity, n)
	_, err = ParseNorm("l1")
	assert.ErrorIs(t, err, ErrUnknownNorm)

	m, err := ParseMetric("Bottleneck")
	require.NoError(t, err)
	assert.Equal(t, MetricBottleneck, m)
	_, err = ParseMetric("")
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func TestHopcroftKarp(t *testing.T) {
	adj := [][]int{{0, 1}, {0}, {2}}
	assert.Equal(t, 3, hopcroftKarp(adj, 3))
	assert.Equal(t, 1, hopcroftKarp([][]int{{0}, {0}}, 1))
	assert.Equal(t, 0, hopcroftKarp(nil, 0))
}

func TestAssign(t *testing.T) {
	c := [][]float64{{4, 1, 3}, {2, 0, 5}, {3, 2, 2}}
	rows := assign(3, func(i, j int) float64 { return c[i][j] })
	sum := 0.0
	for i, j := range rows {
		sum += c[i][j]
	}
	assert.Equal(t, 5.0, sum)
}
