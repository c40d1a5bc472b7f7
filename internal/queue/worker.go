package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/camper-configurator/internal/resilience"
)

// Handler processes one task. Returning an error wrapped around ErrPermanent
// archives the task without further retries.
type Handler func(context.Context, Task) error

// ErrPermanent marks failures that retrying cannot fix.
var ErrPermanent = asynq.SkipRetry

// Worker consumes tasks for the registered kinds.
type Worker struct {
	Queue       string
	Concurrency int
	RetryBase   time.Duration
	RetryJitter float64
	Logger      zerolog.Logger

	handlers map[string]Handler
}

// Handle registers the handler for a task kind.
func (w *Worker) Handle(kind string, h Handler) error {
	k := sanitizeKind(kind)
	if k == "" {
		return fmt.Errorf("queue: invalid task kind %q", kind)
	}
	if h == nil {
		return errors.New("queue: worker handler not configured")
	}
	if w.handlers == nil {
		w.handlers = map[string]Handler{}
	}
	w.handlers[k] = h
	return nil
}

// Mux builds the asynq handler routing each registered kind.
func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	for kind, h := range w.handlers {
		mux.HandleFunc(kind, w.wrap(kind, h))
	}
	return mux
}

func (w *Worker) wrap(kind string, h Handler) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, t *asynq.Task) error {
		attempt, _ := asynq.GetRetryCount(ctx)
		err := h(ctx, Task{Kind: kind, Payload: t.Payload(), Attempt: attempt})
		switch {
		case err == nil:
			QueueProcessedTotal.WithLabelValues(kind, "ok").Inc()
		case errors.Is(err, asynq.SkipRetry):
			QueueProcessedTotal.WithLabelValues(kind, "archived").Inc()
		default:
			QueueProcessedTotal.WithLabelValues(kind, "retry").Inc()
		}
		return err
	}
}

// Config returns the asynq server configuration for this worker.
func (w *Worker) Config() asynq.Config {
	queue := w.Queue
	if queue == "" {
		queue = DefaultQueue
	}
	concurrency := w.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	base := w.RetryBase
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	logger := w.Logger
	return asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue: 1},
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			return resilience.Backoff(base, n+1, w.RetryJitter)
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, t *asynq.Task, err error) {
			logger.Warn().Err(err).Str("kind", t.Type()).Msg("task failed")
		}),
	}
}

// Run serves tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context, redisOpt asynq.RedisConnOpt) error {
	if len(w.handlers) == 0 {
		return errors.New("queue: no handlers registered")
	}
	srv := asynq.NewServer(redisOpt, w.Config())
	if err := srv.Start(w.Mux()); err != nil {
		return err
	}
	<-ctx.Done()
	srv.Shutdown()
	return nil
}
