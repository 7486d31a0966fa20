package docdedup

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// batch is a run of cache-missed segments sent to the provider in one call.
type batch struct {
	segments []Segment
	results  []string
}

// splitBatches cuts segments into runs of at most size.
func splitBatches(segments []Segment, size int) []*batch {
	if size <= 0 {
		size = DefaultBatchSize
	}
	batches := make([]*batch, 0, (len(segments)+size-1)/size)
	for start := 0; start < len(segments); start += size {
		end := min(start+size, len(segments))
		batches = append(batches, &batch{segments: segments[start:end]})
	}
	return batches
}

// runBatches calls fn for every batch with at most concurrency calls in
// flight. The first error cancels the remaining calls and is returned.
// fn must only write to the batch it is given.
func runBatches(ctx context.Context, batches []*batch, concurrency int, fn func(ctx context.Context, b *batch) error) error {
	if concurrency <= 1 || len(batches) <= 1 {
		for _, b := range batches {
			if err := fn(ctx, b); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, b := range batches {
		g.Go(func() error {
			return fn(gctx, b)
		})
	}
	return g.Wait()
}
