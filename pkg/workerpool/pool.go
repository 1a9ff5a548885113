// Package workerpool provides a bounded goroutine pool with backpressure.
//
// When every worker is busy and the buffer is full, Submit returns
// ErrPoolFull immediately so the caller can decide to drop, retry or
// reject.
//
//	pool := workerpool.New(8)
//	defer pool.Shutdown(ctx)
//
//	if err := pool.Submit(func() { notify() }); errors.Is(err, workerpool.ErrPoolFull) {
//	    // shed load
//	}
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shashiranjanraj/orderly/pkg/logger"
)

// ErrPoolFull is returned by Submit when the task buffer is at capacity.
var ErrPoolFull = errors.New("workerpool: pool is full")

// ErrPoolClosed is returned by Submit after Shutdown has been called.
var ErrPoolClosed = errors.New("workerpool: pool is closed")

// Pool is a bounded goroutine pool.
type Pool struct {
	mu      sync.RWMutex
	tasks   chan func()
	closeCh chan struct{}
	once    sync.Once
	wg      sync.WaitGroup

	onPanic func(recovered any)
}

// Option configures a Pool.
type Option func(*poolConfig)

type poolConfig struct {
	buffer  int
	onPanic func(any)
}

// WithBuffer sets the task buffer length. Defaults to twice the worker count.
func WithBuffer(n int) Option { return func(c *poolConfig) { c.buffer = n } }

// WithPanicHandler is called with the recovered value when a task panics.
func WithPanicHandler(fn func(any)) Option { return func(c *poolConfig) { c.onPanic = fn } }

// New starts size workers. size below 1 is treated as 1.
func New(size int, opts ...Option) *Pool {
	if size <= 0 {
		size = 1
	}

	cfg := poolConfig{
		buffer: size * 2,
		onPanic: func(r any) {
			logger.Error("workerpool: task panicked", "panic", fmt.Sprint(r))
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.buffer < 0 {
		cfg.buffer = 0
	}

	p := &Pool{
		tasks:   make(chan func(), cfg.buffer),
		closeCh: make(chan struct{}),
		onPanic: cfg.onPanic,
	}

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

// Submit enqueues task without blocking.
func (p *Pool) Submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	select {
	case <-p.closeCh:
		return ErrPoolClosed
	default:
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrPoolFull
	}
}

// SubmitWait blocks until the task is buffered, the pool closes or ctx ends.
func (p *Pool) SubmitWait(ctx context.Context, task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	select {
	case <-p.closeCh:
		return ErrPoolClosed
	default:
	}

	select {
	case <-p.closeCh:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	case p.tasks <- task:
		return nil
	}
}

// Shutdown stops accepting tasks and waits for buffered and running tasks to
// finish, or for ctx to end. It is safe to call more than once.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.once.Do(func() {
		close(p.closeCh)
		// Writers hold the read lock; once we own it no send is in flight.
		p.mu.Lock()
		close(p.tasks)
		p.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("workerpool: shutdown: %w", ctx.Err())
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(task)
	}
}

func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil && p.onPanic != nil {
			p.onPanic(r)
		}
	}()
	task()
}
