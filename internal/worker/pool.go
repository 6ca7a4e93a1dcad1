// Package worker runs queued campaign jobs on a fixed set of goroutines. The
// serve command hands submitted campaigns to a Pool so HTTP requests return
// immediately.
package worker

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Job is one unit of queued work. The ctx is the pool's run context.
type Job struct {
	RunID string
	Fn    func(ctx context.Context)
}

// ErrQueueFull is returned by Submit when the queue has no capacity left.
var ErrQueueFull = eris.New("worker: queue is full")

// ErrStopped is returned by Submit after Shutdown has begun.
var ErrStopped = eris.New("worker: pool is stopped")

// Pool is a bounded in-process job queue with a fixed worker count.
type Pool struct {
	jobs    chan Job
	workers int

	mu      sync.Mutex
	stopped bool

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a pool with the given worker count and queue depth. Values
// below 1 are raised to 1.
func New(workers, queueDepth int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueDepth < 1 {
		queueDepth = 1
	}
	return &Pool{
		jobs:    make(chan Job, queueDepth),
		workers: workers,
	}
}

// Start launches the workers. Jobs receive a context derived from ctx and
// are cancelled together with it.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	for i := range p.workers {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			log := zap.L().With(zap.Int("worker", id))
			for job := range p.jobs {
				if ctx.Err() != nil {
					log.Warn("dropping job after cancellation", zap.String("run_id", job.RunID))
					continue
				}
				log.Info("job started", zap.String("run_id", job.RunID))
				job.Fn(ctx)
				log.Info("job finished", zap.String("run_id", job.RunID))
			}
		}(i)
	}
}

// Submit enqueues a job without blocking.
func (p *Pool) Submit(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}

	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting jobs and waits for in-flight work to finish, or
// for ctx to expire. Queued jobs still run; expiry cancels them.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		if p.cancel != nil {
			p.cancel()
		}
		<-done
		return eris.Wrap(ctx.Err(), "worker: shutdown timed out")
	}
}
