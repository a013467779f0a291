package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"genstudio/internal/config"
	"genstudio/internal/jobs"
	"genstudio/internal/logging"
)

// ErrQueueFull reports that the pending queue has no room for another job.
var ErrQueueFull = errors.New("job queue is full")

// ErrPoolClosed reports a submission after Close.
var ErrPoolClosed = errors.New("dispatch pool is closed")

// Options sizes the pool.
type Options struct {
	// MaxConcurrent is the number of jobs allowed to run at once.
	MaxConcurrent int
	// QueueSize bounds how many accepted jobs may wait for a worker.
	QueueSize int
}

// OptionsFromConfig derives pool options from application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxConcurrent: cfg.Jobs.MaxConcurrent,
		QueueSize:     cfg.Jobs.QueueSize,
	}
}

type pendingJob struct {
	ctx     context.Context
	req     jobs.Request
	updates chan jobs.Update
}

// Runner starts jobs and reports progress. Satisfied by jobs.Runner.
type Runner interface {
	Run(ctx context.Context, req jobs.Request) <-chan jobs.Update
}

// Pool runs jobs through a shared runner with a concurrency ceiling.
type Pool struct {
	runner Runner
	logger *slog.Logger

	pending chan pendingJob
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewPool starts the worker pool.
func NewPool(runner Runner, opts Options, logger *slog.Logger) *Pool {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if opts.QueueSize < opts.MaxConcurrent {
		opts.QueueSize = opts.MaxConcurrent
	}
	p := &Pool{
		runner:  runner,
		logger:  logging.NewComponentLogger(logger, "dispatch"),
		pending: make(chan pendingJob, opts.QueueSize),
	}
	for i := 0; i < opts.MaxConcurrent; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit enqueues a job. It returns ErrQueueFull without blocking when the
// pending queue is at capacity. The returned channel follows the runner's
// progress-sequence contract and closes even when the job is cancelled
// while still queued.
func (p *Pool) Submit(ctx context.Context, req jobs.Request) (<-chan jobs.Update, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	job := pendingJob{ctx: ctx, req: req, updates: make(chan jobs.Update, 8)}
	select {
	case p.pending <- job:
		p.mu.Unlock()
		return job.updates, nil
	default:
		p.mu.Unlock()
		p.logger.Warn("rejecting job, queue full",
			logging.String(logging.FieldOperation, req.Operation),
		)
		return nil, ErrQueueFull
	}
}

// Run adapts Submit to the runner-style signature. Rejections surface as a
// terminal failed update on the returned channel.
func (p *Pool) Run(ctx context.Context, req jobs.Request) <-chan jobs.Update {
	updates, err := p.Submit(ctx, req)
	if err != nil {
		ch := make(chan jobs.Update, 1)
		ch <- jobs.Update{State: jobs.StateFailed, Message: "Error: " + err.Error()}
		close(ch)
		return ch
	}
	return updates
}

// Close stops accepting submissions, lets queued and running jobs finish,
// and waits for the workers to drain.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.pending)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.pending {
		p.execute(job)
	}
}

func (p *Pool) execute(job pendingJob) {
	defer close(job.updates)

	// A job cancelled while it waited in the queue never reaches the engine.
	select {
	case <-job.ctx.Done():
		return
	default:
	}

	for update := range p.runner.Run(job.ctx, job.req) {
		select {
		case job.updates <- update:
		case <-job.ctx.Done():
			return
		}
	}
}
