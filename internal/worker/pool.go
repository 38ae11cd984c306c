package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

type queuedJob struct {
	seq int
	job Job
}

// Pool runs jobs on a fixed number of workers and returns their results in
// submission order.
type Pool struct {
	workers   int
	queue     chan queuedJob
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	mu      sync.Mutex
	results []Result
}

// NewPool creates a pool whose jobs run under ctx. Cancelling ctx stops the
// workers after their current job.
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers: workers,
		queue:   make(chan queuedJob, workers*2),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start starts the workers
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case qj, ok := <-p.queue:
			if !ok {
				return
			}
			result := qj.job.Execute(p.ctx)
			p.mu.Lock()
			p.results[qj.seq] = result
			p.mu.Unlock()
		}
	}
}

// Submit queues a job. It returns false without blocking once the pool has
// been shut down. Submit must not be called concurrently with Wait.
func (p *Pool) Submit(job Job) bool {
	if p.ctx.Err() != nil {
		return false
	}

	p.mu.Lock()
	seq := len(p.results)
	p.results = append(p.results, nil)
	p.mu.Unlock()

	select {
	case <-p.ctx.Done():
		return false
	case p.queue <- queuedJob{seq: seq, job: job}:
		return true
	}
}

// Wait closes the queue, waits for the workers and returns the results of
// every job that ran, in submission order.
func (p *Pool) Wait() []Result {
	p.closeOnce.Do(func() { close(p.queue) })
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Result, 0, len(p.results))
	for _, r := range p.results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// Shutdown stops the pool immediately; queued jobs that have not started are
// dropped.
func (p *Pool) Shutdown() {
	p.cancel()
	p.wg.Wait()
}
