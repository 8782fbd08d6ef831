package service

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"kycgate/pkg/platform/sentinel"
)

// pool runs verification jobs on at most `workers` goroutines at a time.
// Submit never blocks; waiting jobs queue on the semaphore.
type pool struct {
	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func newPool(workers int) *pool {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &pool{
		sem:    semaphore.NewWeighted(int64(workers)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// submit schedules job. After shutdown it returns sentinel.ErrUnavailable.
// A job always runs, with a cancelled ctx if the pool was stopped before a
// worker slot freed up, so it can finalize its state.
func (p *pool) submit(job func(ctx context.Context)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return sentinel.ErrUnavailable
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(p.ctx, 1); err == nil {
			defer p.sem.Release(1)
		}
		job(p.ctx)
	}()
	return nil
}

// shutdown stops intake and waits for running jobs. When ctx expires first
// the remaining jobs are cancelled and awaited.
func (p *pool) shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}
