package warmup

import (
	"context"
	"errors"
	"sync"
)

type job func(ctx context.Context)

// pool runs jobs on a fixed number of workers fed by a bounded queue.
type pool struct {
	ctx    context.Context
	cancel context.CancelFunc
	jobs   chan job
	wg     sync.WaitGroup
}

func newPool(parent context.Context, concurrency, queueSize int) (*pool, error) {
	if concurrency <= 0 || queueSize <= 0 {
		return nil, errors.New("worker pool requires positive concurrency and queue size")
	}
	ctx, cancel := context.WithCancel(parent)
	p := &pool{
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(chan job, queueSize),
	}
	for i := 0; i < concurrency; i++ {
		p.wg.Add(1)
		go p.work()
	}
	return p, nil
}

func (p *pool) work() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case fn, ok := <-p.jobs:
			if !ok {
				return
			}
			fn(p.ctx)
		}
	}
}

// submit blocks until the job is queued or the pool is cancelled.
func (p *pool) submit(fn job) error {
	select {
	case <-p.ctx.Done():
		return p.ctx.Err()
	case p.jobs <- fn:
		return nil
	}
}

// drain lets queued jobs finish, then stops the workers.
func (p *pool) drain() {
	close(p.jobs)
	p.wg.Wait()
	p.cancel()
}
