package batch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// runPool fans tasks out over at most workers goroutines and hands every
// result to reduce on the calling goroutine, which is the only place shared
// state may be written. When reduce returns true the producer stops
// submitting; tasks already running finish and their results are drained
// without being reduced. Cancelling ctx has the same effect.
func runPool[T, R any](ctx context.Context, workers int, tasks []T, work func(T) R, reduce func(R) (stop bool)) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan R, workers)
	go func() {
		var g errgroup.Group
		g.SetLimit(workers)
		for _, t := range tasks {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				results <- work(t)
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	stopped := false
	for r := range results {
		if stopped {
			continue
		}
		if reduce(r) {
			stopped = true
			cancel()
		}
	}
}

// withTimeout runs fn and gives up waiting after d. The abandoned call keeps
// running in the background until it returns; the algorithms it wraps are
// CPU-bound and take no context. d <= 0 disables the limit.
func withTimeout[R any](d time.Duration, fn func() (R, error)) (R, error) {
	if d <= 0 {
		return fn()
	}
	type out struct {
		r   R
		err error
	}
	ch := make(chan out, 1)
	go func() {
		r, err := fn()
		ch <- out{r, err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case o := <-ch:
		return o.r, o.err
	case <-timer.C:
		var zero R
		return zero, fmt.Errorf("%w after %s", ErrTaskTimeout, d)
	}
}
