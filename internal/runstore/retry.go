package runstore

import (
	"context"
	"strings"
	"time"
)

const (
	maxBusyAttempts = 5
	busyBaseDelay   = 10 * time.Millisecond
)

// isSQLiteBusy reports whether err is a lock contention error worth retrying.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy runs fn up to maxBusyAttempts times, doubling the delay after
// each busy error. Other errors are returned immediately.
func retryOnBusy(ctx context.Context, fn func() error) error {
	delay := busyBaseDelay
	var err error
	for attempt := 1; attempt <= maxBusyAttempts; attempt++ {
		if err = fn(); !isSQLiteBusy(err) {
			return err
		}
		if attempt == maxBusyAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
