package main

import (
	"errors"
	"fmt"

	"github.com/banshee-data/topofingerprint/internal/batch"
)

// errAborted makes the process exit non-zero when a matrix was aborted.
var errAborted = errors.New("distance matrices aborted")

func abortedError(failures []batch.MatrixFailure) error {
	if len(failures) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d", errAborted, len(failures))
}
