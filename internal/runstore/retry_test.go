package runstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errBusy = errors.New("database is locked (5) (SQLITE_BUSY)")

func TestIsSQLiteBusy(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"database is locked", errBusy, true},
		{"SQLITE_BUSY", errors.New("SQLITE_BUSY"), true},
		{"other error", errors.New("some other error"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isSQLiteBusy(tt.err))
		})
	}
}

func TestRetryOnBusy(t *testing.T) {
	ctx := context.Background()

	t.Run("success after retry", func(t *testing.T) {
		calls := 0
		err := retryOnBusy(ctx, func() error {
			calls++
			if calls < 3 {
				return errBusy
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("non-busy error fails immediately", func(t *testing.T) {
		calls := 0
		other := errors.New("some other error")
		err := retryOnBusy(ctx, func() error {
			calls++
			return other
		})
		assert.Same(t, other, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("max attempts exceeded", func(t *testing.T) {
		calls := 0
		err := retryOnBusy(ctx, func() error {
			calls++
			return errBusy
		})
		assert.ErrorIs(t, err, errBusy)
		assert.Equal(t, maxBusyAttempts, calls)
	})

	t.Run("cancelled context stops waiting", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		start := time.Now()
		err := retryOnBusy(cctx, func() error { return errBusy })
		assert.ErrorIs(t, err, context.Canceled)
		assert.Less(t, time.Since(start), busyBaseDelay*4)
	})
}
