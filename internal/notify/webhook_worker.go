package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/camper-configurator/internal/queue"
)

// Locker serialises work on one key across worker processes.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// DeliveryWorker wraps submission delivery with distributed locking so two
// workers never post the same quote concurrently.
type DeliveryWorker struct {
	Dispatcher *Dispatcher
	Locker     Locker
	LockTTL    time.Duration
}

// Handle executes the delivery described by the task payload.
func (w DeliveryWorker) Handle(ctx context.Context, task queue.Task) error {
	if w.Dispatcher == nil {
		return errors.New("webhook worker: dispatcher not configured")
	}
	var sub Submission
	if err := json.Unmarshal(task.Payload, &sub); err != nil {
		return fmt.Errorf("%w: decode submission: %v", queue.ErrPermanent, err)
	}
	if strings.TrimSpace(sub.QuoteID) == "" {
		return nil
	}
	if w.Locker == nil {
		return w.Dispatcher.Deliver(ctx, sub)
	}
	ttl := w.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	key := fmt.Sprintf("lock:submission:%s", sub.QuoteID)
	return w.Locker.WithLock(ctx, key, ttl, func(ctx context.Context) error {
		return w.Dispatcher.Deliver(ctx, sub)
	})
}
