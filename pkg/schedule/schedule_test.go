package schedule_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shashiranjanraj/orderly/pkg/schedule"
)

func TestEveryRunsOnStartAndOnInterval(t *testing.T) {
	s := schedule.New(schedule.WithTick(5 * time.Millisecond))

	var runs atomic.Int32
	s.Every(20 * time.Millisecond).Name("counter").Run(func(context.Context) error {
		runs.Add(1)
		return nil
	})
	s.Every(time.Hour).Run(func(context.Context) error { return errors.New("logged, not fatal") })

	ctx, cancel := context.WithTimeout(context.Background(), 110*time.Millisecond)
	defer cancel()
	s.Start(ctx)

	assert.GreaterOrEqual(t, runs.Load(), int32(3))
	assert.Equal(t, []string{"counter  [every 20ms]", "task-2  [every 1h0m0s]"}, s.List())
}

func TestWithoutOverlapping(t *testing.T) {
	s := schedule.New(schedule.WithTick(2 * time.Millisecond))

	var (
		active  atomic.Int32
		maxSeen atomic.Int32
	)
	s.Every(time.Millisecond).WithoutOverlapping().Run(func(ctx context.Context) error {
		n := active.Add(1)
		if n > maxSeen.Load() {
			maxSeen.Store(n)
		}
		time.Sleep(15 * time.Millisecond)
		active.Add(-1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	s.Start(ctx)

	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Zero(t, active.Load(), "Start waits for running tasks")
}

func TestPanickingTaskDoesNotStopScheduler(t *testing.T) {
	s := schedule.New(schedule.WithTick(2 * time.Millisecond))

	var after atomic.Int32
	s.Every(time.Millisecond).Run(func(context.Context) error { panic("boom") })
	s.Every(time.Millisecond).Run(func(context.Context) error {
		after.Add(1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	s.Start(ctx)

	assert.Positive(t, after.Load())
}
