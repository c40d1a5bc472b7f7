// Package queue publishes and consumes background tasks through asynq.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

// DefaultQueue is used when no queue name is configured.
const DefaultQueue = "default"

// Task represents a job to be processed asynchronously.
type Task struct {
	Kind           string
	Payload        []byte
	IdempotencyKey string
	MaxAttempts    int
	Delay          time.Duration

	// Attempt is set on consumed tasks: 0 for the first delivery.
	Attempt int
}

// TaskClient is the part of *asynq.Client the enqueuer needs.
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer publishes tasks to one asynq queue.
type Enqueuer struct {
	Client TaskClient
	Queue  string
	// DedupTTL keeps completed tasks around so a repeated idempotency key is
	// still rejected after the first run finished.
	DedupTTL time.Duration
}

// Enqueue inserts the task into the queue. If an idempotency key is supplied the
// task is only enqueued once while asynq still knows the task id.
func (e Enqueuer) Enqueue(ctx context.Context, t Task) error {
	if e.Client == nil {
		return errors.New("queue: client not configured")
	}
	kind := sanitizeKind(t.Kind)
	if kind == "" {
		return errors.New("queue: task kind is required")
	}
	maxAttempts := t.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	opts := []asynq.Option{
		asynq.Queue(e.queue()),
		asynq.MaxRetry(maxAttempts - 1),
	}
	if t.Delay > 0 {
		opts = append(opts, asynq.ProcessIn(t.Delay))
	}
	if t.IdempotencyKey != "" {
		opts = append(opts, asynq.TaskID(kind+":"+t.IdempotencyKey))
		ttl := e.DedupTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		opts = append(opts, asynq.Retention(ttl))
	}

	_, err := e.Client.EnqueueContext(ctx, asynq.NewTask(kind, t.Payload), opts...)
	switch {
	case err == nil:
		QueueEnqueuedTotal.WithLabelValues(kind, "enqueued").Inc()
		return nil
	case errors.Is(err, asynq.ErrTaskIDConflict), errors.Is(err, asynq.ErrDuplicateTask):
		QueueEnqueuedTotal.WithLabelValues(kind, "duplicate").Inc()
		return nil
	default:
		QueueEnqueuedTotal.WithLabelValues(kind, "error").Inc()
		return err
	}
}

func (e Enqueuer) queue() string {
	if e.Queue == "" {
		return DefaultQueue
	}
	return e.Queue
}

func sanitizeKind(kind string) string {
	for i := 0; i < len(kind); i++ {
		c := kind[i]
		if c >= 'a' && c <= 'z' {
			continue
		}
		if c >= '0' && c <= '9' {
			continue
		}
		if c == '-' || c == '_' || c == ':' {
			continue
		}
		return ""
	}
	return kind
}
