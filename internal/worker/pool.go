// Package worker runs pipeline requests in the background so HTTP callers
// can poll for the result instead of holding a connection for minutes.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/vibereco/internal/core/domain"
	"github.com/ewilliams-labs/vibereco/internal/logging"
	"github.com/ewilliams-labs/vibereco/internal/metrics"
)

var (
	ErrQueueFull = errors.New("worker: run queue is full")
	ErrStopped   = errors.New("worker: pool is stopped")
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, query string, limit int) *domain.RunResult
}

type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
)

// Job is a snapshot of one submitted run.
type Job struct {
	ID          string            `json:"id"`
	Query       string            `json:"query"`
	Limit       int               `json:"limit"`
	Status      Status            `json:"status"`
	SubmittedAt time.Time         `json:"submittedAt"`
	FinishedAt  *time.Time        `json:"finishedAt,omitempty"`
	Result      *domain.RunResult `json:"result,omitempty"`
}

// Pool manages background workers for pipeline runs.
type Pool struct {
	runner Runner
	jobs   chan string
	keep   int

	mu       sync.Mutex
	byID     map[string]*Job
	finished []string // oldest first, trimmed to keep
	stopped  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    zerolog.Logger
}

// NewPool creates a pool with the given queue size. keep bounds how many
// finished jobs stay pollable.
func NewPool(runner Runner, queueSize, keep int) *Pool {
	if queueSize < 1 {
		queueSize = 1
	}
	if keep < 1 {
		keep = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		runner: runner,
		jobs:   make(chan string, queueSize),
		keep:   keep,
		byID:   make(map[string]*Job),
		ctx:    ctx,
		cancel: cancel,
		log:    logging.Component("worker"),
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start(workers int) {
	if workers < 1 {
		workers = 1
	}
	for range workers {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for id := range p.jobs {
				metrics.QueuedRuns.Dec()
				p.process(id)
			}
		}()
	}
}

// Stop closes the queue and waits for queued and running jobs. When ctx
// ends first, in-flight runs are cancelled and Stop returns ctx's error
// once they have wound down.
func (p *Pool) Stop(ctx context.Context) error {
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
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

// Submit queues a run without blocking and returns its id.
func (p *Pool) Submit(query string, limit int) (string, error) {
	job := &Job{
		ID:          uuid.NewString(),
		Query:       query,
		Limit:       limit,
		Status:      StatusQueued,
		SubmittedAt: time.Now().UTC(),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return "", ErrStopped
	}
	select {
	case p.jobs <- job.ID:
	default:
		p.log.Warn().Str("query", query).Msg("run queue full, rejecting")
		return "", ErrQueueFull
	}
	p.byID[job.ID] = job
	metrics.QueuedRuns.Inc()
	return job.ID, nil
}

// Get returns a copy of the job so callers never race with the worker.
func (p *Pool) Get(id string) (Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	job, ok := p.byID[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

func (p *Pool) process(id string) {
	p.mu.Lock()
	job, ok := p.byID[id]
	if !ok {
		p.mu.Unlock()
		return
	}
	job.Status = StatusRunning
	query, limit := job.Query, job.Limit
	p.mu.Unlock()

	log := p.log.With().Str("job", id).Str("query", query).Logger()
	log.Info().Msg("run started")

	res := p.safeRun(query, limit)

	p.mu.Lock()
	finished := time.Now().UTC()
	job.Status = StatusDone
	job.Result = res
	job.FinishedAt = &finished
	p.finished = append(p.finished, id)
	for len(p.finished) > p.keep {
		delete(p.byID, p.finished[0])
		p.finished = p.finished[1:]
	}
	p.mu.Unlock()

	log.Info().Bool("ok", res.OK).Msg("run finished")
}

func (p *Pool) safeRun(query string, limit int) (res *domain.RunResult) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Str("query", query).Msg("runner panicked")
			res = &domain.RunResult{Query: query, Message: "internal error"}
		}
	}()
	res = p.runner.Run(p.ctx, query, limit)
	if res == nil {
		res = &domain.RunResult{Query: query, Message: "internal error: empty result"}
	}
	return res
}
