package services

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// WorkerPool runs CPU-bound work off the request goroutine with bounded parallelism.
type WorkerPool struct {
	limit int
}

// NewWorkerPool creates a pool running at most limit tasks at once.
func NewWorkerPool(limit int) *WorkerPool {
	if limit < 1 {
		limit = 1
	}
	return &WorkerPool{limit: limit}
}

// Map applies fn to every input in parallel and returns outputs in input order.
// The first error cancels the remaining tasks.
func Map[In, Out any](ctx context.Context, pool *WorkerPool, inputs []In, fn func(context.Context, In) (Out, error)) ([]Out, error) {
	out := make([]Out, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(pool.limit)

	for i, in := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := fn(ctx, in)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
