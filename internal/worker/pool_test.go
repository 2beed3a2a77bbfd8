package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/vibereco/internal/core/domain"
)

// blockingRunner holds every run until release is closed.
type blockingRunner struct {
	release chan struct{}
	started chan string

	mu    sync.Mutex
	calls []string
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{release: make(chan struct{}), started: make(chan string, 16)}
}

func (r *blockingRunner) Run(ctx context.Context, query string, _ int) *domain.RunResult {
	r.mu.Lock()
	r.calls = append(r.calls, query)
	r.mu.Unlock()
	r.started <- query
	select {
	case <-r.release:
		return &domain.RunResult{Query: query, OK: true}
	case <-ctx.Done():
		return &domain.RunResult{Query: query, Message: "cancelled: " + ctx.Err().Error()}
	}
}

func waitStatus(t *testing.T, p *Pool, id string, want Status) Job {
	t.Helper()
	var job Job
	require.Eventually(t, func() bool {
		var ok bool
		job, ok = p.Get(id)
		return ok && job.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestPool_RunLifecycle(t *testing.T) {
	runner := newBlockingRunner()
	p := NewPool(runner, 4, 10)
	p.Start(1)
	defer p.Stop(context.Background())

	id, err := p.Submit("Iris", 10)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	<-runner.started
	waitStatus(t, p, id, StatusRunning)

	close(runner.release)
	job := waitStatus(t, p, id, StatusDone)
	require.NotNil(t, job.Result)
	assert.True(t, job.Result.OK)
	assert.Equal(t, "Iris", job.Query)
	assert.NotNil(t, job.FinishedAt)
}

func TestPool_SubmitQueueFull(t *testing.T) {
	runner := newBlockingRunner()
	p := NewPool(runner, 1, 10)
	p.Start(1)
	defer func() {
		close(runner.release)
		p.Stop(context.Background())
	}()

	_, err := p.Submit("first", 5)
	require.NoError(t, err)
	<-runner.started

	queued, err := p.Submit("second", 5)
	require.NoError(t, err)
	job, ok := p.Get(queued)
	require.True(t, ok)
	assert.Equal(t, StatusQueued, job.Status)

	_, err = p.Submit("third", 5)
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestPool_GetUnknown(t *testing.T) {
	p := NewPool(newBlockingRunner(), 1, 1)
	_, ok := p.Get("nope")
	assert.False(t, ok)
}

func TestPool_StopCancelsInFlight(t *testing.T) {
	runner := newBlockingRunner()
	p := NewPool(runner, 2, 10)
	p.Start(1)

	id, err := p.Submit("slow", 5)
	require.NoError(t, err)
	<-runner.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = p.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	job, ok := p.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusDone, job.Status)
	assert.False(t, job.Result.OK)

	_, err = p.Submit("late", 5)
	assert.ErrorIs(t, err, ErrStopped)
	assert.NoError(t, p.Stop(context.Background()), "second stop is a no-op")
}

func TestPool_EvictsOldestFinished(t *testing.T) {
	runner := newBlockingRunner()
	close(runner.release)
	p := NewPool(runner, 8, 2)
	p.Start(1)

	var ids []string
	for _, q := range []string{"a", "b", "c"} {
		id, err := p.Submit(q, 1)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, p.Stop(context.Background()))

	_, ok := p.Get(ids[0])
	assert.False(t, ok, "oldest finished job should be evicted")
	for _, id := range ids[1:] {
		job, ok := p.Get(id)
		require.True(t, ok)
		assert.Equal(t, StatusDone, job.Status)
	}
}

type panicRunner struct{}

func (panicRunner) Run(context.Context, string, int) *domain.RunResult { panic("boom") }

func TestPool_RecoversRunnerPanic(t *testing.T) {
	p := NewPool(panicRunner{}, 1, 1)
	p.Start(1)
	id, err := p.Submit("x", 1)
	require.NoError(t, err)
	require.NoError(t, p.Stop(context.Background()))

	job, ok := p.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusDone, job.Status)
	assert.False(t, job.Result.OK)
}
