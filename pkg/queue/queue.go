// Package queue runs named background jobs through a pluggable driver.
//
// Usage:
//
//	q := queue.New(queue.WithDriver(queue.NewMemoryDriver()))
//	q.Register("send_mail", func() queue.Job { return &SendMailJob{} })
//	_ = q.Dispatch(ctx, &SendMailJob{To: "a@b.c"})
//	go q.Run(ctx, 4)
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/orderly/pkg/logger"
	"github.com/shashiranjanraj/orderly/pkg/metrics"
)

// Job is a unit of background work. Implementations are JSON-encoded on
// dispatch and decoded into a fresh value from the registered factory.
type Job interface {
	Name() string
	Handle(ctx context.Context) error
}

// Factory returns an empty job ready to be decoded into.
type Factory func() Job

// Driver stores encoded envelopes. Pop blocks until a payload is ready or ctx
// ends; a nil payload with nil error means "nothing yet, ask again".
type Driver interface {
	Push(ctx context.Context, payload []byte) error
	PushDelayed(ctx context.Context, payload []byte, delay time.Duration) error
	Pop(ctx context.Context) ([]byte, error)
}

// promoter is implemented by drivers that park delayed jobs out of band and
// need a loop to move them onto the ready list.
type promoter interface {
	Promote(ctx context.Context) error
}

// ErrUnknownJob is returned by Dispatch for a job whose name was never
// registered.
var ErrUnknownJob = errors.New("queue: unknown job")

// FailedJob describes a job that exhausted its retries.
type FailedJob struct {
	Name     string
	Payload  json.RawMessage
	Err      error
	Attempts int
	FailedAt time.Time
}

// envelope is what drivers store. ID keeps identical payloads distinct in
// the redis delayed set; Attempts counts the runs already made.
type envelope struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts,omitempty"`
}

// Manager dispatches jobs to a driver and runs workers that drain it.
type Manager struct {
	mu       sync.RWMutex
	driver   Driver
	registry map[string]Factory
	failed   []FailedJob

	maxRetry int
	backoff  func(attempt int) time.Duration
	failedDB *gorm.DB
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithDriver replaces the default in-memory driver.
func WithDriver(d Driver) Option { return func(m *Manager) { m.driver = d } }

// WithMaxRetry sets how many attempts a job gets before it is recorded as
// failed. Values below 1 are treated as 1.
func WithMaxRetry(n int) Option {
	return func(m *Manager) {
		if n < 1 {
			n = 1
		}
		m.maxRetry = n
	}
}

// WithBackoff sets the pause before retry attempt n (1-based).
func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(m *Manager) { m.backoff = fn }
}

// WithFailedJobStore persists exhausted jobs to the failed_jobs table.
func WithFailedJobStore(db *gorm.DB) Option { return func(m *Manager) { m.failedDB = db } }

// New builds a Manager. Defaults: memory driver, 3 attempts, linear 1s backoff.
func New(opts ...Option) *Manager {
	m := &Manager{
		registry: map[string]Factory{},
		maxRetry: 3,
		backoff:  func(attempt int) time.Duration { return time.Duration(attempt) * time.Second },
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.driver == nil {
		m.driver = NewMemoryDriver()
	}
	return m
}

// Register makes name decodable by workers.
func (m *Manager) Register(name string, f Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry[name] = f
}

// Dispatch enqueues job for immediate processing.
func (m *Manager) Dispatch(ctx context.Context, job Job) error {
	raw, err := m.encode(job)
	if err != nil {
		return err
	}
	return m.driver.Push(ctx, raw)
}

// DispatchAfter enqueues job to become ready after delay.
func (m *Manager) DispatchAfter(ctx context.Context, job Job, delay time.Duration) error {
	raw, err := m.encode(job)
	if err != nil {
		return err
	}
	return m.driver.PushDelayed(ctx, raw, delay)
}

func (m *Manager) encode(job Job) ([]byte, error) {
	name := job.Name()

	m.mu.RLock()
	_, ok := m.registry[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("queue: marshal job %s: %w", name, err)
	}

	return marshalEnvelope(envelope{ID: uuid.NewString(), Type: name, Payload: payload})
}

func marshalEnvelope(env envelope) ([]byte, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("queue: marshal envelope: %w", err)
	}
	return raw, nil
}

// Run starts n workers and blocks until ctx is cancelled and every worker
// has finished its current job.
func (m *Manager) Run(ctx context.Context, n int) error {
	if n < 1 {
		n = 1
	}

	var wg sync.WaitGroup

	if p, ok := m.driver.(promoter); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.promote(ctx, p)
		}()
	}

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			m.work(ctx)
		}()
	}

	logger.Info("queue: workers started", "count", n)
	wg.Wait()
	logger.Info("queue: workers stopped")
	return nil
}

func (m *Manager) promote(ctx context.Context, p promoter) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Promote(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("queue: promote delayed jobs", "error", err)
			}
		}
	}
}

func (m *Manager) work(ctx context.Context) {
	for {
		raw, err := m.driver.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("queue: pop", "error", err)
			if !sleep(ctx, 500*time.Millisecond) {
				return
			}
			continue
		}
		if raw == nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}

		// A popped job is finished even if shutdown begins mid-run.
		m.process(context.WithoutCancel(ctx), raw)
	}
}

func (m *Manager) process(ctx context.Context, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Error("queue: bad envelope", "error", err)
		return
	}

	m.mu.RLock()
	factory, ok := m.registry[env.Type]
	m.mu.RUnlock()
	if !ok {
		logger.Warn("queue: unregistered job type", "type", env.Type)
		return
	}

	job := factory()
	if err := json.Unmarshal(env.Payload, job); err != nil {
		logger.Error("queue: unmarshal payload", "type", env.Type, "error", err)
		return
	}

	m.attempt(ctx, job, env)
}

// attempt runs job once. A failure with attempts left is pushed back to the
// driver as a delayed job, so no worker sits out the backoff.
func (m *Manager) attempt(ctx context.Context, job Job, env envelope) {
	start := time.Now()
	err := job.Handle(ctx)
	env.Attempts++
	if err == nil {
		metrics.RecordQueueJob(env.Type, "success", start)
		logger.Debug("queue: job processed", "type", env.Type, "attempt", env.Attempts)
		return
	}

	if env.Attempts < m.maxRetry {
		metrics.RecordQueueJob(env.Type, "retried", start)
		logger.Warn("queue: job failed, retrying", "type", env.Type, "attempt", env.Attempts, "error", err)

		raw, encErr := marshalEnvelope(env)
		if encErr == nil {
			encErr = m.driver.PushDelayed(ctx, raw, m.backoff(env.Attempts))
		}
		if encErr == nil {
			return
		}
		logger.Error("queue: requeue failed job", "type", env.Type, "error", encErr)
	} else {
		metrics.RecordQueueJob(env.Type, "failed", start)
	}

	m.persistFailed(ctx, env, err)
	logger.Error("queue: job exhausted retries", "type", env.Type, "attempts", env.Attempts, "error", err)
}

// FailedJobs returns the most recent failures recorded by this Manager,
// oldest first.
func (m *Manager) FailedJobs() []FailedJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]FailedJob, len(m.failed))
	copy(out, m.failed)
	return out
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
