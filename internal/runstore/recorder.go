package runstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/topofingerprint/internal/batch"
	"github.com/banshee-data/topofingerprint/internal/persistence"
)

// Recorder writes the results of one run. It implements batch.Sink.
type Recorder struct {
	store *Store
	runID string
}

var _ batch.Sink = (*Recorder)(nil)

// Recorder returns a sink that records into runID.
func (s *Store) Recorder(runID string) *Recorder {
	return &Recorder{store: s, runID: runID}
}

// RunID returns the run the recorder writes to.
func (r *Recorder) RunID() string { return r.runID }

// RecordTask stores a task outcome and, for computed tasks, its diagram.
func (r *Recorder) RecordTask(ctx context.Context, res batch.TaskResult, d persistence.Diagram) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO task_outcomes (
				run_id, sample_id, group_name, outcome, kind, detail, points, duration_ns
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.runID, res.Key.SampleID, res.Key.Group, string(res.Outcome), string(res.Kind),
			res.Detail, res.Points, res.Duration.Nanoseconds())
		if err != nil {
			return fmt.Errorf("insert outcome %s: %w", res.Key, err)
		}
		if res.Outcome != batch.OutcomeComputed || len(d) == 0 {
			return nil
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO diagram_pairs (run_id, sample_id, group_name, dimension, birth, death)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, p := range d {
			if _, err := stmt.ExecContext(ctx, r.runID, res.Key.SampleID, res.Key.Group, p.Dim, p.Birth, p.Death); err != nil {
				return fmt.Errorf("insert pair for %s: %w", res.Key, err)
			}
		}
		return nil
	})
}

// RecordMatrix stores the upper triangle of a complete matrix.
func (r *Recorder) RecordMatrix(ctx context.Context, m *batch.Matrix) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		id, err := r.insertMatrix(ctx, tx, m.Key, matrixComplete, "")
		if err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO matrix_entries (matrix_id, row_index, col_index, sample_a, sample_b, distance)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i := 0; i < m.Size(); i++ {
			for j := i; j < m.Size(); j++ {
				if _, err := stmt.ExecContext(ctx, id, i, j, m.IDs[i], m.IDs[j], m.At(i, j)); err != nil {
					return fmt.Errorf("insert %s entry (%d,%d): %w", m.Key, i, j, err)
				}
			}
		}
		return nil
	})
}

// RecordMatrixFailure stores an aborted matrix with its cause.
func (r *Recorder) RecordMatrixFailure(ctx context.Context, f batch.MatrixFailure) error {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		_, err := r.insertMatrix(ctx, tx, f.Key, matrixAborted, msg)
		return err
	})
}

func (r *Recorder) insertMatrix(ctx context.Context, tx *sql.Tx, key batch.MatrixKey, status, msg string) (string, error) {
	id := uuid.New().String()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO matrices (matrix_id, run_id, group_name, dimension, metric, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, r.runID, key.Group, key.Dim, string(key.Metric), status, msg)
	if err != nil {
		return "", fmt.Errorf("insert matrix %s: %w", key, err)
	}
	return id, nil
}

func (r *Recorder) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return retryOnBusy(ctx, func() error {
		tx, err := r.store.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}
