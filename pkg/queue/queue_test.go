package queue_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/orderly/pkg/database"
	"github.com/shashiranjanraj/orderly/pkg/queue"
)

// Jobs carry their observable side effects in package-level counters since
// workers decode a fresh value from the factory.
var (
	echoed   atomic.Int32
	failures atomic.Int32
	flaky    atomic.Int32
	lastVal  sync.Map
)

type echoJob struct {
	Val string `json:"val"`
}

func (*echoJob) Name() string { return "echo" }

func (j *echoJob) Handle(context.Context) error {
	lastVal.Store("echo", j.Val)
	echoed.Add(1)
	return nil
}

type failJob struct{}

func (*failJob) Name() string { return "fail" }

func (*failJob) Handle(context.Context) error {
	failures.Add(1)
	return errors.New("always fails")
}

// flakyJob fails on its first run and succeeds after that.
type flakyJob struct{}

func (*flakyJob) Name() string { return "flaky" }

func (*flakyJob) Handle(context.Context) error {
	if flaky.Add(1) == 1 {
		return errors.New("first run fails")
	}
	return nil
}

func newManager(t *testing.T, opts ...queue.Option) *queue.Manager {
	t.Helper()
	opts = append([]queue.Option{queue.WithBackoff(func(int) time.Duration { return 0 })}, opts...)
	m := queue.New(opts...)
	m.Register("echo", func() queue.Job { return &echoJob{} })
	m.Register("fail", func() queue.Job { return &failJob{} })
	m.Register("flaky", func() queue.Job { return &flakyJob{} })
	return m
}

func run(t *testing.T, m *queue.Manager, workers int) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Run(ctx, workers)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestDispatchAndProcess(t *testing.T) {
	m := newManager(t)
	before := echoed.Load()

	require.NoError(t, m.Dispatch(context.Background(), &echoJob{Val: "hello"}))
	run(t, m, 2)

	assert.Eventually(t, func() bool { return echoed.Load() == before+1 }, 2*time.Second, 10*time.Millisecond)
	v, _ := lastVal.Load("echo")
	assert.Equal(t, "hello", v)
}

func TestDispatchUnknownJob(t *testing.T) {
	m := queue.New()
	err := m.Dispatch(context.Background(), &echoJob{})
	assert.ErrorIs(t, err, queue.ErrUnknownJob)
}

func TestDispatchAfter(t *testing.T) {
	m := newManager(t)
	before := echoed.Load()

	require.NoError(t, m.DispatchAfter(context.Background(), &echoJob{Val: "later"}, 50*time.Millisecond))
	run(t, m, 1)

	assert.Eventually(t, func() bool { return echoed.Load() == before+1 }, 2*time.Second, 10*time.Millisecond)
}

func TestFailedJobRetry(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, database.Options{
		Driver:         "sqlite",
		DSN:            "file:queue_failed?mode=memory&cache=shared",
		MaxOpenConns:   1,
		DisableMetrics: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	require.NoError(t, db.AutoMigrate(&queue.FailedJobRecord{}))

	m := newManager(t, queue.WithMaxRetry(2), queue.WithFailedJobStore(db))
	before := failures.Load()

	require.NoError(t, m.Dispatch(ctx, &failJob{}))
	run(t, m, 1)

	assert.Eventually(t, func() bool { return len(m.FailedJobs()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, before+2, failures.Load())

	failed := m.FailedJobs()[0]
	assert.Equal(t, "fail", failed.Name)
	assert.Equal(t, 2, failed.Attempts)
	assert.EqualError(t, failed.Err, "always fails")

	var rows []queue.FailedJobRecord
	require.Eventually(t, func() bool {
		return db.Find(&rows).Error == nil && len(rows) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "fail", rows[0].JobType)
	assert.Equal(t, "always fails", rows[0].Error)

	n, err := queue.PruneFailed(ctx, db, rows[0].FailedAt.Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = queue.PruneFailed(ctx, db, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDispatchConcurrent(t *testing.T) {
	m := newManager(t)
	before := echoed.Load()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Dispatch(context.Background(), &echoJob{Val: "c"}))
		}()
	}
	wg.Wait()
	run(t, m, 4)

	assert.Eventually(t, func() bool { return echoed.Load() == before+20 }, 2*time.Second, 10*time.Millisecond)
}

func TestRunStopsOnCancel(t *testing.T) {
	m := newManager(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Run(ctx, 3)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestMemoryDriverFull(t *testing.T) {
	d := queue.NewMemoryDriver()
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		require.NoError(t, d.Push(ctx, []byte("x")))
	}
	assert.ErrorIs(t, d.Push(ctx, []byte("x")), queue.ErrQueueFull)
	assert.Equal(t, 1000, d.Len())
}

func TestRetryDoesNotHoldWorker(t *testing.T) {
	m := newManager(t,
		queue.WithMaxRetry(2),
		queue.WithBackoff(func(int) time.Duration { return time.Hour }),
	)
	ctx := context.Background()
	beforeFail, beforeEcho := failures.Load(), echoed.Load()

	require.NoError(t, m.Dispatch(ctx, &failJob{}))
	require.NoError(t, m.Dispatch(ctx, &echoJob{Val: "behind a retry"}))
	run(t, m, 1)

	assert.Eventually(t, func() bool { return echoed.Load() == beforeEcho+1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, beforeFail+1, failures.Load())
	assert.Empty(t, m.FailedJobs())
}

func TestRetrySucceeds(t *testing.T) {
	flaky.Store(0)
	m := newManager(t, queue.WithMaxRetry(3))

	require.NoError(t, m.Dispatch(context.Background(), &flakyJob{}))
	run(t, m, 1)

	assert.Eventually(t, func() bool { return flaky.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, m.FailedJobs())
}

func TestFailedJobsAreBounded(t *testing.T) {
	m := newManager(t, queue.WithMaxRetry(1))
	ctx := context.Background()
	before := failures.Load()

	for i := 0; i < 105; i++ {
		require.NoError(t, m.Dispatch(ctx, &failJob{}))
	}
	run(t, m, 2)

	require.Eventually(t, func() bool { return failures.Load() == before+105 }, 5*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return len(m.FailedJobs()) == 100 }, 2*time.Second, 10*time.Millisecond)
	for _, f := range m.FailedJobs() {
		assert.Equal(t, 1, f.Attempts)
	}
}
