package coordinator

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// runPool executes fn for each item in items across a bounded pool of
// workers (default runtime.NumCPU()), collecting one result per item
// at the item's original index. Per-file reconcile work carries no
// dependency edges (unlike the teacher's HeavierStartScheduler DAG),
// so a plain capacity-bounded fan-out is enough (spec §5). The first
// error cancels the group's context and is returned; the run aborts.
func runPool[T, R any](ctx context.Context, workers int, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	results := make([]R, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			r, err := fn(gctx, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
