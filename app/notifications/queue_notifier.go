package notifications

import (
	"context"

	"github.com/shashiranjanraj/orderly/pkg/logger"
	"github.com/shashiranjanraj/orderly/pkg/metrics"
	"github.com/shashiranjanraj/orderly/pkg/queue"
)

// Submitter runs a task without blocking. *workerpool.Pool satisfies it.
type Submitter interface {
	Submit(task func()) error
}

// JobDispatcher enqueues a job. *queue.Manager satisfies it.
type JobDispatcher interface {
	Dispatch(ctx context.Context, job queue.Job) error
}

// QueueNotifier hands each notification to the worker pool, which pushes a
// SendMailJob onto the queue. Notify never blocks and never fails; a full
// pool drops the notification with a warning.
type QueueNotifier struct {
	pool  Submitter
	queue JobDispatcher
}

func NewQueueNotifier(pool Submitter, q JobDispatcher) *QueueNotifier {
	return &QueueNotifier{pool: pool, queue: q}
}

func (n *QueueNotifier) Notify(ctx context.Context, to, subject, body string) {
	log := logger.WithCtx(ctx)
	bg := context.WithoutCancel(ctx)
	job := &SendMailJob{To: to, Subject: subject, Body: body}

	err := n.pool.Submit(func() {
		if err := n.queue.Dispatch(bg, job); err != nil {
			metrics.NotificationsEnqueued.WithLabelValues("failed").Inc()
			log.Error("notifications: enqueue failed", "to", to, "error", err)
			return
		}
		metrics.NotificationsEnqueued.WithLabelValues("queued").Inc()
	})
	if err != nil {
		metrics.NotificationsEnqueued.WithLabelValues("rejected").Inc()
		log.Warn("notifications: dropped", "to", to, "subject", subject, "error", err)
	}
}
