package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"genstudio/internal/jobs"
	"genstudio/internal/logging"
)

// blockingRunner holds each job until release is closed, counting how many
// run concurrently.
type blockingRunner struct {
	release chan struct{}
	active  atomic.Int64
	peak    atomic.Int64
	total   atomic.Int64
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{release: make(chan struct{})}
}

func (r *blockingRunner) Run(ctx context.Context, req jobs.Request) <-chan jobs.Update {
	ch := make(chan jobs.Update, 1)
	go func() {
		defer close(ch)
		n := r.active.Add(1)
		defer r.active.Add(-1)
		for {
			prev := r.peak.Load()
			if n <= prev || r.peak.CompareAndSwap(prev, n) {
				break
			}
		}
		r.total.Add(1)
		select {
		case <-r.release:
		case <-ctx.Done():
			return
		}
		ch <- jobs.Update{State: jobs.StateFinished, Message: "done"}
	}()
	return ch
}

func drain(t *testing.T, updates <-chan jobs.Update) []jobs.Update {
	t.Helper()
	var got []jobs.Update
	deadline := time.After(5 * time.Second)
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				return got
			}
			got = append(got, u)
		case <-deadline:
			t.Fatal("updates channel never closed")
		}
	}
}

func TestPoolLimitsConcurrency(t *testing.T) {
	runner := newBlockingRunner()
	pool := NewPool(runner, Options{MaxConcurrent: 2, QueueSize: 8}, logging.NewNop())
	defer pool.Close()

	var channels []<-chan jobs.Update
	for i := 0; i < 6; i++ {
		ch, err := pool.Submit(context.Background(), jobs.Request{})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		channels = append(channels, ch)
	}

	// Give the workers time to pick up the first two jobs.
	deadline := time.Now().Add(2 * time.Second)
	for runner.active.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := runner.active.Load(); got != 2 {
		t.Fatalf("active jobs = %d, want 2", got)
	}

	close(runner.release)
	for _, ch := range channels {
		drain(t, ch)
	}
	if runner.peak.Load() > 2 {
		t.Fatalf("peak concurrency = %d, want <= 2", runner.peak.Load())
	}
	if runner.total.Load() != 6 {
		t.Fatalf("jobs run = %d, want 6", runner.total.Load())
	}
}

func TestPoolRejectsWhenQueueFull(t *testing.T) {
	runner := newBlockingRunner()
	pool := NewPool(runner, Options{MaxConcurrent: 1, QueueSize: 2}, logging.NewNop())
	defer pool.Close()
	defer close(runner.release)

	// Fill the single worker plus the two queue slots. The worker may not
	// have dequeued yet, so allow one extra accepted submission.
	accepted := 0
	var rejected bool
	for i := 0; i < 5; i++ {
		_, err := pool.Submit(context.Background(), jobs.Request{})
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, ErrQueueFull):
			rejected = true
		default:
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	if !rejected {
		t.Fatalf("no submission rejected after %d accepted", accepted)
	}
	if accepted > 4 {
		t.Fatalf("accepted %d submissions, queue bound not enforced", accepted)
	}
}

func TestPoolSkipsCancelledQueuedJobs(t *testing.T) {
	runner := newBlockingRunner()
	pool := NewPool(runner, Options{MaxConcurrent: 1, QueueSize: 4}, logging.NewNop())
	defer pool.Close()

	// Occupy the only worker.
	blockerCtx, cancelBlocker := context.WithCancel(context.Background())
	blocker, err := pool.Submit(blockerCtx, jobs.Request{})
	if err != nil {
		t.Fatalf("submit blocker: %v", err)
	}

	// Give the worker time to pick up the blocker.
	deadline := time.Now().Add(2 * time.Second)
	for runner.active.Load() < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := runner.active.Load(); got != 1 {
		t.Fatalf("active jobs = %d, want 1", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	queued, err := pool.Submit(ctx, jobs.Request{})
	if err != nil {
		t.Fatalf("submit queued: %v", err)
	}
	cancel()

	cancelBlocker()
	drain(t, blocker)
	drain(t, queued)

	// Only the blocker reached the runner.
	if got := runner.total.Load(); got != 1 {
		t.Fatalf("jobs run = %d, want 1", got)
	}
}

func TestPoolClosedRejectsSubmissions(t *testing.T) {
	runner := newBlockingRunner()
	close(runner.release)
	pool := NewPool(runner, Options{MaxConcurrent: 1, QueueSize: 1}, logging.NewNop())
	pool.Close()

	if _, err := pool.Submit(context.Background(), jobs.Request{}); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("err = %v, want ErrPoolClosed", err)
	}
}

func TestRunSurfacesRejectionOnChannel(t *testing.T) {
	runner := newBlockingRunner()
	defer close(runner.release)
	pool := NewPool(runner, Options{MaxConcurrent: 1, QueueSize: 1}, logging.NewNop())
	pool.Close()

	got := drain(t, pool.Run(context.Background(), jobs.Request{}))
	if len(got) != 1 || got[0].State != jobs.StateFailed {
		t.Fatalf("updates = %+v, want single failed update", got)
	}
}
