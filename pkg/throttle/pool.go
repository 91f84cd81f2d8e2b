// Package throttle bounds the number of estimator calls running at once.
package throttle

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rhuss/modelserve/pkg/observability"
)

// Pool admits at most Size concurrent inference calls. Further calls queue
// until a worker is free or their context ends.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// NewPool creates a pool with the given number of workers. A non-positive
// size uses GOMAXPROCS.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{
		sem:  semaphore.NewWeighted(int64(workers)),
		size: workers,
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// Do runs fn once a worker is available. It returns ctx.Err() without
// running fn if ctx ends while waiting. A nil pool runs fn directly.
func (p *Pool) Do(ctx context.Context, fn func(context.Context) error) error {
	if p == nil {
		return fn(ctx)
	}

	start := time.Now()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	observability.InferenceQueueWait.Observe(time.Since(start).Seconds())

	observability.InferenceInFlight.Inc()
	defer observability.InferenceInFlight.Dec()

	return fn(ctx)
}

// TryDo runs fn only if a worker is free right now. It reports whether fn ran.
func (p *Pool) TryDo(ctx context.Context, fn func(context.Context) error) (bool, error) {
	if p == nil {
		return true, fn(ctx)
	}
	if !p.sem.TryAcquire(1) {
		return false, nil
	}
	defer p.sem.Release(1)

	observability.InferenceInFlight.Inc()
	defer observability.InferenceInFlight.Dec()

	return true, fn(ctx)
}
