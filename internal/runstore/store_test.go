package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/topofingerprint/internal/batch"
	"github.com/banshee-data/topofingerprint/internal/cells"
	"github.com/banshee-data/topofingerprint/internal/db"
	"github.com/banshee-data/topofingerprint/internal/distance"
	"github.com/banshee-data/topofingerprint/internal/fault"
	"github.com/banshee-data/topofingerprint/internal/monitoring"
	"github.com/banshee-data/topofingerprint/internal/persistence"
	"github.com/banshee-data/topofingerprint/internal/rips"
	"github.com/banshee-data/topofingerprint/internal/testutil"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

func newStore(t *testing.T) *Store {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return NewStore(d.DB)
}

func TestCreateAndFinishRun(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	clock := time.Unix(1700000000, 0)
	s.now = func() time.Time { return clock }

	run, err := s.CreateRun(ctx, json.RawMessage(`{"workers":2}`))
	require.NoError(t, err)
	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, batch.StatePending, run.State)

	clock = clock.Add(time.Minute)
	require.NoError(t, s.FinishRun(ctx, run.RunID, batch.StatePartiallyFailed))

	got, err := s.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, batch.StatePartiallyFailed, got.State)
	assert.Equal(t, clock.UnixNano(), got.FinishedAt)
	assert.JSONEq(t, `{"workers":2}`, string(got.ConfigJSON))

	other, err := s.CreateRun(ctx, nil)
	require.NoError(t, err)
	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, other.RunID, runs[0].RunID)
	assert.Nil(t, runs[0].ConfigJSON)
}

func TestUnknownRun(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.GetRun(ctx, "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, s.FinishRun(ctx, "nope", batch.StateCompleted), ErrRunNotFound)

	// Outcomes reference their run.
	err = s.Recorder("nope").RecordTask(ctx, batch.TaskResult{Key: batch.Key{SampleID: "s1"}, Outcome: batch.OutcomeSkipped}, nil)
	assert.Error(t, err)
}

func TestRecorderRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	run, err := s.CreateRun(ctx, nil)
	require.NoError(t, err)
	rec := s.Recorder(run.RunID)
	assert.Equal(t, run.RunID, rec.RunID())

	o, err := batch.New(batch.Config{
		Workers:    2,
		Rips:       rips.Options{MaxEdgeLength: 4, MaxDim: 2},
		Bottleneck: true,
	}, batch.WithSink(rec))
	require.NoError(t, err)

	sources := []batch.Source{
		batch.CloudSource(testutil.Circle("s1", 12, 5, 0, 0, "tumor cells")),
		batch.CloudSource(testutil.Circle("s2", 10, 3, 1, 1, "tumor cells")),
		batch.CloudSource(testutil.Grid("s3", 3, 3, 2, "NK")),
		batch.CloudSource(cells.Cloud{SampleID: "tiny", Points: []cells.Point{{X: 0, Y: 0, Label: "NK"}}}),
	}
	res, err := o.Run(ctx, sources, []cells.Selection{cells.WholeCloud()})
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, run.RunID, res.State))

	store, err := s.LoadDiagrams(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.Store.Keys(), store.Keys())
	for _, k := range store.Keys() {
		want, _ := res.Store.Get(k)
		got, _ := store.Get(k)
		assert.True(t, want.Equal(got), "%s: %s", k, cmp.Diff(want, got))
	}

	rep, err := s.Outcomes(ctx, run.RunID)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(res.Report.Results, rep.Results))
	tiny, ok := rep.Lookup(batch.Key{SampleID: "tiny"})
	require.True(t, ok)
	assert.Equal(t, batch.OutcomeSkipped, tiny.Outcome)
	assert.Equal(t, fault.KindInsufficient, tiny.Kind)

	records, err := s.Matrices(ctx, run.RunID)
	require.NoError(t, err)
	assert.Len(t, records, len(res.Matrices))
	for _, m := range res.Matrices {
		got, err := s.LoadMatrix(ctx, run.RunID, m.Key)
		require.NoError(t, err, m.Key.String())
		assert.Equal(t, m.IDs, got.IDs)
		assert.Empty(t, cmp.Diff(m.Rows(), got.Rows()), m.Key.String())
	}
}

func TestMatrixFailureRecorded(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	run, err := s.CreateRun(ctx, nil)
	require.NoError(t, err)
	rec := s.Recorder(run.RunID)

	key := batch.MatrixKey{Group: "tumor", Dim: 1, Metric: distance.MetricBottleneck}
	require.NoError(t, rec.RecordMatrixFailure(ctx, batch.MatrixFailure{Key: key, Err: errors.New("pair s1/s2 failed")}))

	_, err = s.LoadMatrix(ctx, run.RunID, key)
	assert.ErrorIs(t, err, ErrMatrixNotFound)

	rep, err := s.Outcomes(ctx, run.RunID)
	require.NoError(t, err)
	require.Len(t, rep.Matrices, 1)
	assert.Equal(t, key, rep.Matrices[0].Key)
	assert.EqualError(t, rep.Matrices[0].Err, "pair s1/s2 failed")

	// A key is recorded once per run.
	assert.Error(t, rec.RecordMatrixFailure(ctx, batch.MatrixFailure{Key: key}))
}

func TestEmptyDiagramLoadsAsEmpty(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	run, err := s.CreateRun(ctx, nil)
	require.NoError(t, err)
	rec := s.Recorder(run.RunID)

	k := batch.Key{SampleID: "s1", Group: "tumor"}
	require.NoError(t, rec.RecordTask(ctx, batch.TaskResult{Key: k, Outcome: batch.OutcomeComputed}, persistence.Diagram{}))
	require.NoError(t, rec.RecordTask(ctx, batch.TaskResult{Key: batch.Key{SampleID: "s2", Group: "tumor"}, Outcome: batch.OutcomeFailed, Kind: fault.KindComputation, Detail: "boom"}, nil))

	store, err := s.LoadDiagrams(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, []batch.Key{k}, store.Keys())
	d, ok := store.Get(k)
	require.True(t, ok)
	assert.Empty(t, d)
}

func TestEssentialPairsSurvive(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	run, err := s.CreateRun(ctx, nil)
	require.NoError(t, err)

	d := persistence.Diagram{{Dim: 0, Birth: 0, Death: persistence.EssentialDeath}, {Dim: 1, Birth: 1, Death: 1.5}}
	k := batch.Key{SampleID: "s1"}
	require.NoError(t, s.Recorder(run.RunID).RecordTask(ctx, batch.TaskResult{Key: k, Outcome: batch.OutcomeComputed}, d))

	store, err := s.LoadDiagrams(ctx, run.RunID)
	require.NoError(t, err)
	got, _ := store.Get(k)
	assert.True(t, d.Equal(got))
}
