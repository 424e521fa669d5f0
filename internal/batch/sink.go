package batch

import (
	"context"
	"errors"

	"github.com/banshee-data/topofingerprint/internal/persistence"
)

// MultiSink fans every record out to each sink in order and joins their
// errors.
type MultiSink []Sink

func (ms MultiSink) RecordTask(ctx context.Context, res TaskResult, d persistence.Diagram) error {
	var errs []error
	for _, s := range ms {
		errs = append(errs, s.RecordTask(ctx, res, d))
	}
	return errors.Join(errs...)
}

func (ms MultiSink) RecordMatrix(ctx context.Context, m *Matrix) error {
	var errs []error
	for _, s := range ms {
		errs = append(errs, s.RecordMatrix(ctx, m))
	}
	return errors.Join(errs...)
}

func (ms MultiSink) RecordMatrixFailure(ctx context.Context, f MatrixFailure) error {
	var errs []error
	for _, s := range ms {
		errs = append(errs, s.RecordMatrixFailure(ctx, f))
	}
	return errors.Join(errs...)
}
