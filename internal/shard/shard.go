// Package shard runs independent per-subject work in parallel.
//
// Subjects never share state, so the engines fan out one task per subject
// group and concatenate the per-slot results in ascending id order. Output
// is byte-identical to a serial run regardless of worker count.
package shard

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ForEach invokes fn for every index in [0, n) using at most workers
// goroutines. workers <= 0 means GOMAXPROCS. The first error cancels the
// group context and is returned; fn must write results only to its own
// pre-indexed slot.
func ForEach(ctx context.Context, n, workers int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, i)
		})
	}
	return g.Wait()
}
