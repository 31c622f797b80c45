// Package pool runs submitted jobs on a fixed number of worker goroutines
// that drain a shared, unbounded FIFO queue.
package pool

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrInvalidWorkers indicates a worker count below one.
	ErrInvalidWorkers = errors.New("pool: worker count must be at least 1")

	// ErrStopped indicates a submit after Stop.
	ErrStopped = errors.New("pool: stopped")

	// ErrNilJob indicates a nil job was submitted.
	ErrNilJob = errors.New("pool: nil job")
)

// Job is one independent unit of work. A returned error or a panic is
// logged by the worker that ran it and never affects other jobs.
type Job func() error

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger that records job failures. By default,
// logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Pool is a fixed-size worker pool.
type Pool struct {
	workers int
	logger  *slog.Logger
	metrics *Metrics

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Job
	started bool
	stopped bool
	seq     uint64

	wg sync.WaitGroup
}

// New creates a pool with the given number of workers. Workers are not
// started until Start is called; jobs submitted before that are queued.
func New(workers int, opts ...Option) (*Pool, error) {
	if workers < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWorkers, workers)
	}

	p := &Pool{
		workers: workers,
		logger:  slog.New(slog.DiscardHandler),
		metrics: &Metrics{},
	}
	p.cond = sync.NewCond(&p.mu)

	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Workers returns the fixed worker count.
func (p *Pool) Workers() int {
	return p.workers
}

// Metrics returns the pool's live counters.
func (p *Pool) Metrics() *Metrics {
	return p.metrics
}

// Start launches the workers. Calling Start more than once, or after Stop,
// has no effect.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.stopped {
		return
	}
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Debug("worker pool started", "workers", p.workers)
}

// Submit appends job to the tail of the queue and wakes one idle worker.
// It never waits for queued or running work.
func (p *Pool) Submit(job Job) error {
	if job == nil {
		return ErrNilJob
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrStopped
	}
	p.queue = append(p.queue, job)
	p.metrics.PendingJobs.Add(1)
	p.mu.Unlock()

	p.cond.Signal()
	return nil
}

// Stop asks the workers to exit and rejects further submits. Running jobs
// are not interrupted and jobs already queued still run: a worker exits only
// once it observes the stop with an empty queue.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	p.cond.Broadcast()
}

// Wait blocks until every started worker has exited. It only returns after
// Stop has been called.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Pending returns the number of queued jobs not yet picked up by a worker.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		job, seq, ok := p.next()
		if !ok {
			p.logger.Debug("worker exiting", "worker", id)
			return
		}
		p.run(id, seq, job)
	}
}

// next blocks until a job is available or the pool is stopped with an empty
// queue. The predicate is re-checked after every wakeup.
func (p *Pool) next() (Job, uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) == 0 && !p.stopped {
		p.cond.Wait()
	}
	if len(p.queue) == 0 {
		return nil, 0, false
	}

	job := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	p.metrics.PendingJobs.Add(-1)
	p.seq++
	return job, p.seq, true
}

func (p *Pool) run(worker int, seq uint64, job Job) {
	start := time.Now()
	p.metrics.ActiveJobs.Add(1)

	err := safeCall(job)

	p.metrics.ActiveJobs.Add(-1)
	p.metrics.ProcessingTime.Add(time.Since(start).Nanoseconds())

	if err != nil {
		p.metrics.FailedJobs.Add(1)
		p.logger.Error("job failed", "worker", worker, "job", seq, "error", err)
		return
	}
	p.metrics.CompletedJobs.Add(1)
}

func safeCall(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job()
}
