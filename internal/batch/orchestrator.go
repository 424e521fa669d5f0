package batch

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/banshee-data/topofingerprint/internal/cells"
	"github.com/banshee-data/topofingerprint/internal/distance"
	"github.com/banshee-data/topofingerprint/internal/fault"
	"github.com/banshee-data/topofingerprint/internal/monitoring"
	"github.com/banshee-data/topofingerprint/internal/persistence"
	"github.com/banshee-data/topofingerprint/internal/rips"
)

var logf = monitoring.Prefixed("batch")

// State is the lifecycle of an Orchestrator.
type State string

const (
	StatePending         State = "pending"
	StateRunning         State = "running"
	StateCompleted       State = "completed"
	StatePartiallyFailed State = "partially_failed"
)

// Source supplies the point cloud of one sample. Load is called at most once
// per round, from a worker goroutine.
type Source struct {
	ID   string
	Load func(ctx context.Context) (cells.Cloud, error)
}

// CloudSource wraps an in-memory cloud.
func CloudSource(c cells.Cloud) Source {
	return Source{
		ID:   c.SampleID,
		Load: func(context.Context) (cells.Cloud, error) { return c, nil },
	}
}

// Sink receives results as the reducer collects them, for example to persist
// a run. Calls are made from a single goroutine.
type Sink interface {
	RecordTask(ctx context.Context, res TaskResult, d persistence.Diagram) error
	RecordMatrix(ctx context.Context, m *Matrix) error
	RecordMatrixFailure(ctx context.Context, f MatrixFailure) error
}

// Config configures a batch.
type Config struct {
	// Workers bounds the pool. 0 means runtime.GOMAXPROCS(0).
	Workers  int
	Rips     rips.Options
	Distance distance.Options
	// Bottleneck adds a bottleneck matrix next to every Wasserstein one.
	Bottleneck bool
	// Dims lists the homological dimensions compared in the distance round.
	// Empty means 0 and 1.
	Dims []int
	// TaskTimeout bounds a single task. 0 disables it.
	TaskTimeout time.Duration
}

// DefaultDims are the dimensions compared when Config.Dims is empty.
var DefaultDims = []int{0, 1}

func (c Config) validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers %d", ErrInvalidConfig, c.Workers)
	}
	r := c.Rips.MaxEdgeLength
	if !(r > 0) || r >= persistence.EssentialDeath {
		return fmt.Errorf("%w: max edge length %v must be in (0, %g)", ErrInvalidConfig, r, persistence.EssentialDeath)
	}
	if c.Rips.MaxDim < 0 || c.Rips.MaxDim > rips.MaxSupportedDim {
		return fmt.Errorf("%w: max dimension %d", ErrInvalidConfig, c.Rips.MaxDim)
	}
	for _, d := range c.Dims {
		if d < 0 || d > persistence.MaxDimension {
			return fmt.Errorf("%w: distance dimension %d", ErrInvalidConfig, d)
		}
	}
	if c.TaskTimeout < 0 {
		return fmt.Errorf("%w: negative task timeout", ErrInvalidConfig)
	}
	if err := c.Distance.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c Config) workers() int {
	if c.Workers == 0 {
		return runtime.GOMAXPROCS(0)
	}
	return c.Workers
}

func (c Config) dims() []int {
	if len(c.Dims) == 0 {
		return DefaultDims
	}
	return c.Dims
}

// Metrics returns the metrics compared in every distance round.
func (c Config) Metrics() []distance.Metric {
	if c.Bottleneck {
		return []distance.Metric{distance.MetricWasserstein, distance.MetricBottleneck}
	}
	return []distance.Metric{distance.MetricWasserstein}
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithSink streams results to s.
func WithSink(s Sink) Option { return func(o *Orchestrator) { o.sink = s } }

// WithMetrics records task and matrix metrics.
func WithMetrics(m *monitoring.Metrics) Option { return func(o *Orchestrator) { o.metrics = m } }

// Orchestrator runs the diagram and distance rounds of a batch.
type Orchestrator struct {
	cfg     Config
	sink    Sink
	metrics *monitoring.Metrics

	diagramFn  func(cells.Cloud, rips.Options) (persistence.Diagram, error)
	distanceFn func(distance.Metric, persistence.Diagram, persistence.Diagram, distance.Options) (float64, error)

	mu    sync.Mutex
	state State
}

// New validates cfg and returns a pending orchestrator.
func New(cfg Config, opts ...Option) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.Dims = append([]int(nil), cfg.dims()...)
	o := &Orchestrator{
		cfg:        cfg,
		state:      StatePending,
		diagramFn:  ComputeDiagram,
		distanceFn: distance.Between,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) begin() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StatePending {
		o.state = StateRunning
	}
}

// finish settles the state. A partially failed orchestrator stays so.
func (o *Orchestrator) finish(failed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if failed || o.state == StatePartiallyFailed {
		o.state = StatePartiallyFailed
		return
	}
	o.state = StateCompleted
}

// ComputeDiagram builds the Rips complex of a cloud and returns its
// persistence diagram. Clouds below cells.MinPoints are insufficient input.
func ComputeDiagram(cloud cells.Cloud, opts rips.Options) (persistence.Diagram, error) {
	if err := cloud.Validate(); err != nil {
		return nil, err
	}
	if !cloud.Sufficient() {
		return nil, fmt.Errorf("%w: %d points", fault.ErrInsufficientInput, cloud.Len())
	}
	cx, err := rips.Build(cloud.Points, opts)
	if err != nil {
		return nil, err
	}
	return persistence.Compute(cx)
}

type diagramTask struct {
	key  Key
	sel  cells.Selection
	load func() (cells.Cloud, error)
}

type diagramResult struct {
	res  TaskResult
	diag persistence.Diagram
}

// DiagramRound computes one diagram per (source, selection). Skipped and
// failed tasks are reported, never returned as errors; the error result is
// reserved for invalid arguments, sink failures and cancellation.
func (o *Orchestrator) DiagramRound(ctx context.Context, sources []Source, selections []cells.Selection) (*DiagramStore, *Report, error) {
	o.begin()
	store, report, err := o.diagramRound(ctx, sources, selections)
	o.finish(err != nil || (report != nil && report.Count(OutcomeFailed) > 0))
	return store, report, err
}

func (o *Orchestrator) diagramRound(ctx context.Context, sources []Source, selections []cells.Selection) (*DiagramStore, *Report, error) {
	if len(selections) == 0 {
		selections = []cells.Selection{cells.WholeCloud()}
	}
	seen := make(map[string]bool, len(sources))
	var tasks []diagramTask
	for _, src := range sources {
		if src.ID == "" || src.Load == nil {
			return nil, nil, fmt.Errorf("%w: source %q has no ID or loader", ErrInvalidConfig, src.ID)
		}
		if seen[src.ID] {
			return nil, nil, fmt.Errorf("%w: duplicate sample %q", ErrInvalidConfig, src.ID)
		}
		seen[src.ID] = true

		load := src.Load
		once := sync.OnceValues(func() (cells.Cloud, error) { return load(ctx) })
		for _, sel := range selections {
			tasks = append(tasks, diagramTask{
				key:  Key{SampleID: src.ID, Group: sel.Name},
				sel:  sel,
				load: once,
			})
		}
	}
	logf("diagram round: %d samples x %d selections on %d workers", len(sources), len(selections), o.cfg.workers())

	store := NewDiagramStore()
	report := &Report{}
	var sinkErr error
	runPool(ctx, o.cfg.workers(), tasks, func(t diagramTask) diagramResult {
		return o.runDiagramTask(t)
	}, func(r diagramResult) bool {
		report.add(r.res)
		switch r.res.Outcome {
		case OutcomeComputed:
			store.Put(r.res.Key, r.diag)
		case OutcomeSkipped:
			logf("skipped %s: %s", r.res.Key, r.res.Detail)
		case OutcomeFailed:
			logf("failed %s, excluded from distance rounds: %s", r.res.Key, r.res.Detail)
		}
		if o.sink != nil {
			if err := o.sink.RecordTask(ctx, r.res, r.diag); err != nil {
				sinkErr = fmt.Errorf("record %s: %w", r.res.Key, err)
				return true
			}
		}
		return false
	})
	report.sort()

	if sinkErr != nil {
		return store, report, sinkErr
	}
	if err := ctx.Err(); err != nil {
		return store, report, err
	}
	logf("diagram round done: %s", report.Summary())
	return store, report, nil
}

func (o *Orchestrator) runDiagramTask(t diagramTask) diagramResult {
	o.metrics.TaskStarted()
	defer o.metrics.TaskDone()
	start := time.Now()

	res := TaskResult{Key: t.key}
	type computed struct {
		diag   persistence.Diagram
		points int
	}
	c, err := withTimeout(o.cfg.TaskTimeout, func() (computed, error) {
		cloud, err := t.load()
		if err != nil {
			return computed{}, err
		}
		sub := t.sel.Apply(cloud)
		d, err := o.diagramFn(sub, o.cfg.Rips)
		return computed{diag: d, points: sub.Len()}, err
	})
	res.Duration = time.Since(start)
	res.Points = c.points

	switch {
	case err == nil:
		res.Outcome = OutcomeComputed
		res.Pairs = c.diag.Counts()
	case fault.Skippable(err):
		res.Outcome = OutcomeSkipped
		res.Kind = fault.KindOf(err)
		res.Detail = err.Error()
	default:
		res.Outcome = OutcomeFailed
		res.Kind = fault.KindOf(err)
		res.Detail = err.Error()
	}
	o.metrics.ObserveTask("diagram", string(res.Outcome), res.Duration)
	if res.Outcome != OutcomeComputed {
		return diagramResult{res: res}
	}
	return diagramResult{res: res, diag: c.diag}
}

type pairTask struct {
	i, j int
	a, b persistence.Diagram
}

type pairResult struct {
	i, j int
	d    float64
	err  error
}

// DistanceRound assembles the matrix named by key over every sample of the
// store holding a diagram for key.Group. Any pair failure, including a
// non-zero self distance, aborts the matrix with a *PairError; no partial
// matrix is returned. A group without diagrams is an ErrInvalidConfig.
func (o *Orchestrator) DistanceRound(ctx context.Context, store *DiagramStore, key MatrixKey) (*Matrix, error) {
	o.begin()
	m, err := o.distanceRound(ctx, store, key)
	o.finish(err != nil)
	return m, err
}

func (o *Orchestrator) distanceRound(ctx context.Context, store *DiagramStore, key MatrixKey) (*Matrix, error) {
	if _, err := distance.ParseMetric(string(key.Metric)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	ids := store.SampleIDs(key.Group)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no diagrams for selection %q", ErrInvalidConfig, key.Group)
	}
	diagrams := make([]persistence.Diagram, len(ids))
	for i, id := range ids {
		d, _ := store.Get(Key{SampleID: id, Group: key.Group})
		diagrams[i] = d.Dimension(key.Dim)
	}

	tasks := make([]pairTask, 0, len(ids)*(len(ids)+1)/2)
	for i := range ids {
		for j := i; j < len(ids); j++ {
			tasks = append(tasks, pairTask{i: i, j: j, a: diagrams[i], b: diagrams[j]})
		}
	}
	logf("distance round %s: %d samples, %d pairs", key, len(ids), len(tasks))

	m := newMatrix(key, ids)
	var pairErr *PairError
	runPool(ctx, o.cfg.workers(), tasks, func(t pairTask) pairResult {
		return o.runPairTask(key, t)
	}, func(r pairResult) bool {
		err := r.err
		if err == nil && r.i == r.j && r.d != 0 {
			err = fmt.Errorf("%w: self distance %v", ErrInvalidMatrix, r.d)
		}
		if err != nil {
			pairErr = &PairError{Matrix: key, A: ids[r.i], B: ids[r.j], Err: err}
			return true
		}
		m.Values.SetSym(r.i, r.j, r.d)
		return false
	})

	if pairErr != nil {
		o.metrics.ObserveMatrix(string(key.Metric), false)
		logf("matrix %s aborted: %v", key, pairErr)
		return nil, pairErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	o.metrics.ObserveMatrix(string(key.Metric), true)
	if o.sink != nil {
		if err := o.sink.RecordMatrix(ctx, m); err != nil {
			return nil, fmt.Errorf("record matrix %s: %w", key, err)
		}
	}
	return m, nil
}

func (o *Orchestrator) runPairTask(key MatrixKey, t pairTask) pairResult {
	o.metrics.TaskStarted()
	defer o.metrics.TaskDone()
	start := time.Now()

	d, err := withTimeout(o.cfg.TaskTimeout, func() (float64, error) {
		return o.distanceFn(key.Metric, t.a, t.b, o.cfg.Distance)
	})
	outcome := OutcomeComputed
	if err != nil {
		outcome = OutcomeFailed
	}
	o.metrics.ObserveTask("distance", string(outcome), time.Since(start))
	return pairResult{i: t.i, j: t.j, d: d, err: err}
}

// RunResult is the outcome of a full batch.
type RunResult struct {
	Store    *DiagramStore
	Matrices []*Matrix
	Report   *Report
	State    State
}

// Run executes the diagram round, then one distance round per selection,
// configured dimension and metric. An aborted matrix is recorded in the
// report and the remaining matrices are still built.
func (o *Orchestrator) Run(ctx context.Context, sources []Source, selections []cells.Selection) (*RunResult, error) {
	o.begin()
	res, err := o.run(ctx, sources, selections)
	failed := err != nil
	if res != nil {
		failed = failed || res.Report.Count(OutcomeFailed) > 0 || len(res.Report.Matrices) > 0
	}
	o.finish(failed)
	if res != nil {
		res.State = o.State()
	}
	return res, err
}

func (o *Orchestrator) run(ctx context.Context, sources []Source, selections []cells.Selection) (*RunResult, error) {
	if len(selections) == 0 {
		selections = []cells.Selection{cells.WholeCloud()}
	}
	store, report, err := o.diagramRound(ctx, sources, selections)
	if err != nil {
		return nil, err
	}
	res := &RunResult{Store: store, Report: report}

	groups := make([]string, 0, len(selections))
	for _, sel := range selections {
		groups = append(groups, sel.Name)
	}
	res.Matrices, report.Matrices, err = o.distanceRounds(ctx, store, groups)
	if err != nil {
		return res, err
	}
	logf("run done: %s, %d matrices", report.Summary(), len(res.Matrices))
	return res, nil
}

// DistanceRounds builds every matrix for groups (deduplicated, in lexical
// order) × configured dimension × metric over store. Groups without
// diagrams are skipped. An aborted matrix is returned as a MatrixFailure and
// the remaining matrices are still built; the error is reserved for
// cancellation and sink failures.
func (o *Orchestrator) DistanceRounds(ctx context.Context, store *DiagramStore, groups []string) ([]*Matrix, []MatrixFailure, error) {
	o.begin()
	ms, failures, err := o.distanceRounds(ctx, store, groups)
	o.finish(err != nil || len(failures) > 0)
	return ms, failures, err
}

func (o *Orchestrator) distanceRounds(ctx context.Context, store *DiagramStore, groups []string) ([]*Matrix, []MatrixFailure, error) {
	seen := make(map[string]bool, len(groups))
	uniq := make([]string, 0, len(groups))
	for _, g := range groups {
		if !seen[g] {
			seen[g] = true
			uniq = append(uniq, g)
		}
	}
	sort.Strings(uniq)

	var (
		matrices []*Matrix
		failures []MatrixFailure
	)
	for _, group := range uniq {
		if len(store.SampleIDs(group)) == 0 {
			logf("no diagrams for selection %q, no matrices", group)
			continue
		}
		for _, dim := range o.cfg.Dims {
			for _, metric := range o.cfg.Metrics() {
				key := MatrixKey{Group: group, Dim: dim, Metric: metric}
				m, err := o.distanceRound(ctx, store, key)
				var pe *PairError
				switch {
				case errors.As(err, &pe):
					f := MatrixFailure{Key: key, Err: pe}
					failures = append(failures, f)
					if o.sink != nil {
						if err := o.sink.RecordMatrixFailure(ctx, f); err != nil {
							return matrices, failures, fmt.Errorf("record matrix failure %s: %w", key, err)
						}
					}
				case err != nil:
					return matrices, failures, err
				default:
					matrices = append(matrices, m)
				}
			}
		}
	}
	return matrices, failures, nil
}
