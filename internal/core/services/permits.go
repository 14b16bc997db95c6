package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// PermitPool admits a bounded number of heavy model calls at once.
// Callers hold a permit for the whole operation, retries included.
type PermitPool struct {
	size int64
	sem  *semaphore.Weighted
}

// NewPermitPool creates a pool with size permits. Sizes below one are raised to one.
func NewPermitPool(size int) *PermitPool {
	if size < 1 {
		size = 1
	}
	return &PermitPool{
		size: int64(size),
		sem:  semaphore.NewWeighted(int64(size)),
	}
}

// Acquire blocks until a permit is free or ctx is done.
// The returned release func must be called exactly once.
func (p *PermitPool) Acquire(ctx context.Context) (release func(), err error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquiring permit: %w", err)
	}
	return func() { p.sem.Release(1) }, nil
}

// Size returns the number of permits.
func (p *PermitPool) Size() int {
	return int(p.size)
}
