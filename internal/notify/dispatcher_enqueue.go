package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/noah-isme/camper-configurator/internal/aggregate"
	"github.com/noah-isme/camper-configurator/internal/obs"
	"github.com/noah-isme/camper-configurator/internal/queue"
	"github.com/noah-isme/camper-configurator/internal/quotes"
)

const submissionTask = "submission:deliver"

// ErrDisabled is returned when no webhook is configured.
var ErrDisabled = errors.New("notify: submissions disabled")

// SubmissionTask returns the queue kind used for submission deliveries.
func SubmissionTask() string {
	return submissionTask
}

// TaskQueue publishes tasks. queue.Enqueuer satisfies it.
type TaskQueue interface {
	Enqueue(ctx context.Context, t queue.Task) error
}

// QuoteArchive stores submitted quotes.
type QuoteArchive interface {
	Save(ctx context.Context, r quotes.Record) error
}

// Submitter archives a payload and schedules its delivery.
type Submitter struct {
	Queue       TaskQueue
	Quotes      QuoteArchive
	MaxAttempts int
}

// Submit returns the id of the archived quote once its delivery is queued.
func (s Submitter) Submit(ctx context.Context, sessionID string, payload aggregate.Payload) (string, error) {
	if s.Queue == nil {
		return "", ErrDisabled
	}
	rec := quotes.NewRecord(sessionID, payload)
	if s.Quotes != nil {
		if err := s.Quotes.Save(ctx, rec); err != nil {
			obs.Inc(obs.SubmissionsTotal, payload.Product, "archive_error")
			return "", fmt.Errorf("archive quote: %w", err)
		}
	}
	body, err := json.Marshal(Submission{QuoteID: rec.ID, SessionID: sessionID, Payload: payload})
	if err != nil {
		return "", err
	}
	maxAttempts := s.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 8
	}
	task := queue.Task{
		Kind:           submissionTask,
		Payload:        body,
		IdempotencyKey: rec.ID,
		MaxAttempts:    maxAttempts,
	}
	if err := s.Queue.Enqueue(ctx, task); err != nil {
		obs.Inc(obs.SubmissionsTotal, payload.Product, "enqueue_error")
		return "", fmt.Errorf("enqueue submission: %w", err)
	}
	obs.Inc(obs.SubmissionsTotal, payload.Product, "queued")
	return rec.ID, nil
}
