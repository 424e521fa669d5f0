// Package runstore persists batch runs in SQLite: run metadata, per-task
// outcomes, computed diagrams and distance matrices. A Recorder plugs into
// the orchestrator as a batch.Sink; the Store reads results back.
package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/topofingerprint/internal/batch"
	"github.com/banshee-data/topofingerprint/internal/distance"
	"github.com/banshee-data/topofingerprint/internal/fault"
	"github.com/banshee-data/topofingerprint/internal/persistence"
)

// ErrRunNotFound is returned for unknown run IDs.
var ErrRunNotFound = errors.New("run not found")

// ErrMatrixNotFound is returned when a run holds no complete matrix for a key.
var ErrMatrixNotFound = errors.New("matrix not found")

const (
	matrixComplete = "complete"
	matrixAborted  = "aborted"
)

// Run is one persisted batch run.
type Run struct {
	RunID      string          `json:"run_id"`
	StartedAt  int64           `json:"started_at"`
	FinishedAt int64           `json:"finished_at,omitempty"`
	State      batch.State     `json:"state"`
	ConfigJSON json.RawMessage `json:"config_json,omitempty"`
}

// MatrixRecord summarises a stored matrix, complete or aborted.
type MatrixRecord struct {
	MatrixID string
	Key      batch.MatrixKey
	Status   string
	Error    string
}

// Store provides persistence for batch runs.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a Store over an open, migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// CreateRun inserts a pending run and returns it. config is stored verbatim
// and may be nil.
func (s *Store) CreateRun(ctx context.Context, config json.RawMessage) (*Run, error) {
	run := &Run{
		RunID:      uuid.New().String(),
		StartedAt:  s.now().UnixNano(),
		State:      batch.StatePending,
		ConfigJSON: config,
	}
	var cfg interface{}
	if len(config) > 0 {
		cfg = string(config)
	}
	err := retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO runs (run_id, started_at, state, config_json) VALUES (?, ?, ?, ?)`,
			run.RunID, run.StartedAt, string(run.State), cfg)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// FinishRun records the final state of a run.
func (s *Store) FinishRun(ctx context.Context, runID string, state batch.State) error {
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var err error
		res, err = s.db.ExecContext(ctx,
			`UPDATE runs SET state = ?, finished_at = ? WHERE run_id = ?`,
			string(state), s.now().UnixNano(), runID)
		return err
	})
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// GetRun returns a single run by ID.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, started_at, finished_at, state, config_json
		FROM runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, err
}

// ListRuns returns all runs, most recent first.
func (s *Store) ListRuns(ctx context.Context) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, started_at, finished_at, state, config_json
		FROM runs ORDER BY started_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var finished sql.NullInt64
	var state string
	var cfg sql.NullString
	if err := row.Scan(&r.RunID, &r.StartedAt, &finished, &state, &cfg); err != nil {
		return nil, err
	}
	r.FinishedAt = finished.Int64
	r.State = batch.State(state)
	if cfg.Valid {
		r.ConfigJSON = json.RawMessage(cfg.String)
	}
	return &r, nil
}

// Outcomes returns the task outcomes of a run in key order.
func (s *Store) Outcomes(ctx context.Context, runID string) (*batch.Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.sample_id, o.group_name, o.outcome, o.kind, o.detail, o.points, o.duration_ns,
		       (SELECT COUNT(*) FROM diagram_pairs p
		         WHERE p.run_id = o.run_id AND p.sample_id = o.sample_id
		           AND p.group_name = o.group_name AND p.dimension = 0),
		       (SELECT COUNT(*) FROM diagram_pairs p
		         WHERE p.run_id = o.run_id AND p.sample_id = o.sample_id
		           AND p.group_name = o.group_name AND p.dimension = 1),
		       (SELECT COUNT(*) FROM diagram_pairs p
		         WHERE p.run_id = o.run_id AND p.sample_id = o.sample_id
		           AND p.group_name = o.group_name AND p.dimension = 2)
		FROM task_outcomes o
		WHERE o.run_id = ?
		ORDER BY o.group_name, o.sample_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	rep := &batch.Report{}
	for rows.Next() {
		var res batch.TaskResult
		var outcome, kind string
		var durNS int64
		if err := rows.Scan(&res.Key.SampleID, &res.Key.Group, &outcome, &kind, &res.Detail,
			&res.Points, &durNS, &res.Pairs[0], &res.Pairs[1], &res.Pairs[2]); err != nil {
			return nil, err
		}
		res.Outcome = batch.Outcome(outcome)
		res.Kind = fault.Kind(kind)
		res.Duration = time.Duration(durNS)
		rep.Results = append(rep.Results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	failures, err := s.Matrices(ctx, runID)
	if err != nil {
		return nil, err
	}
	for _, m := range failures {
		if m.Status == matrixAborted {
			rep.Matrices = append(rep.Matrices, batch.MatrixFailure{Key: m.Key, Err: errors.New(m.Error)})
		}
	}
	return rep, nil
}

// LoadDiagrams rebuilds the diagram store of a run from its stored pairs.
// Computed tasks with no pairs load as empty diagrams.
func (s *Store) LoadDiagrams(ctx context.Context, runID string) (*batch.DiagramStore, error) {
	store := batch.NewDiagramStore()

	keys, err := s.db.QueryContext(ctx, `
		SELECT sample_id, group_name FROM task_outcomes
		WHERE run_id = ? AND outcome = ?`, runID, string(batch.OutcomeComputed))
	if err != nil {
		return nil, fmt.Errorf("query computed tasks: %w", err)
	}
	diagrams := make(map[batch.Key]persistence.Diagram)
	for keys.Next() {
		var k batch.Key
		if err := keys.Scan(&k.SampleID, &k.Group); err != nil {
			keys.Close()
			return nil, err
		}
		diagrams[k] = persistence.Diagram{}
	}
	keys.Close()
	if err := keys.Err(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sample_id, group_name, dimension, birth, death FROM diagram_pairs
		WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("query diagram pairs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k batch.Key
		var p persistence.Pair
		if err := rows.Scan(&k.SampleID, &k.Group, &p.Dim, &p.Birth, &p.Death); err != nil {
			return nil, err
		}
		diagrams[k] = append(diagrams[k], p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for k, d := range diagrams {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("stored diagram %s: %w", k, err)
		}
		store.Put(k, d)
	}
	return store, nil
}

// Matrices lists every matrix recorded for a run in key order.
func (s *Store) Matrices(ctx context.Context, runID string) ([]MatrixRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT matrix_id, group_name, dimension, metric, status, error
		FROM matrices WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("query matrices: %w", err)
	}
	defer rows.Close()

	var out []MatrixRecord
	for rows.Next() {
		var m MatrixRecord
		var metric string
		if err := rows.Scan(&m.MatrixID, &m.Key.Group, &m.Key.Dim, &metric, &m.Status, &m.Error); err != nil {
			return nil, err
		}
		if m.Key.Metric, err = distance.ParseMetric(metric); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Key.String() < out[b].Key.String() })
	return out, nil
}

// LoadMatrix returns the complete matrix stored for key in a run.
func (s *Store) LoadMatrix(ctx context.Context, runID string, key batch.MatrixKey) (*batch.Matrix, error) {
	var matrixID string
	err := s.db.QueryRowContext(ctx, `
		SELECT matrix_id FROM matrices
		WHERE run_id = ? AND group_name = ? AND dimension = ? AND metric = ? AND status = ?`,
		runID, key.Group, key.Dim, string(key.Metric), matrixComplete).Scan(&matrixID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s in run %s", ErrMatrixNotFound, key, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query matrix: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT row_index, col_index, sample_a, sample_b, distance FROM matrix_entries
		WHERE matrix_id = ? ORDER BY row_index, col_index`, matrixID)
	if err != nil {
		return nil, fmt.Errorf("query matrix entries: %w", err)
	}
	defer rows.Close()

	type entry struct {
		i, j int
		v    float64
	}
	var entries []entry
	var ids []string
	for rows.Next() {
		var e entry
		var a, b string
		if err := rows.Scan(&e.i, &e.j, &a, &b, &e.v); err != nil {
			return nil, err
		}
		if e.i == e.j {
			if e.i != len(ids) {
				return nil, fmt.Errorf("%w: matrix %s is missing diagonal entry %d", batch.ErrInvalidMatrix, matrixID, len(ids))
			}
			ids = append(ids, a)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	n := len(ids)
	vals := make([][]float64, n)
	for i := range vals {
		vals[i] = make([]float64, n)
	}
	for _, e := range entries {
		if e.i >= n || e.j >= n {
			return nil, fmt.Errorf("%w: matrix %s entry (%d,%d) out of range", batch.ErrInvalidMatrix, matrixID, e.i, e.j)
		}
		vals[e.i][e.j] = e.v
		vals[e.j][e.i] = e.v
	}
	return batch.NewMatrixFromRows(key, ids, vals)
}
