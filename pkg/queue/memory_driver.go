package queue

import (
	"context"
	"errors"
	"time"

	"github.com/shashiranjanraj/orderly/pkg/logger"
)

// ErrQueueFull is returned by MemoryDriver.Push when the buffer is full.
var ErrQueueFull = errors.New("queue: memory buffer full")

// MemoryDriver is an in-process, channel-backed driver. Jobs do not survive
// a restart.
type MemoryDriver struct {
	ch chan []byte
}

// NewMemoryDriver creates an in-memory queue with a buffer of 1000 jobs.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{ch: make(chan []byte, 1000)}
}

// Push never blocks; a full buffer is reported as ErrQueueFull.
func (d *MemoryDriver) Push(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case d.ch <- payload:
		return nil
	default:
		return ErrQueueFull
	}
}

// PushDelayed pushes payload once delay has elapsed. A job that finds the
// buffer full at that point is dropped and logged.
func (d *MemoryDriver) PushDelayed(ctx context.Context, payload []byte, delay time.Duration) error {
	if delay <= 0 {
		return d.Push(ctx, payload)
	}
	time.AfterFunc(delay, func() {
		select {
		case d.ch <- payload:
		default:
			logger.Warn("queue: memory buffer full, delayed job dropped", "bytes", len(payload))
		}
	})
	return nil
}

func (d *MemoryDriver) Pop(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case payload := <-d.ch:
		return payload, nil
	}
}

// Len reports the number of ready jobs.
func (d *MemoryDriver) Len() int { return len(d.ch) }
