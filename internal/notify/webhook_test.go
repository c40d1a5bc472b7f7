package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/camper-configurator/internal/aggregate"
	"github.com/noah-isme/camper-configurator/internal/lock"
	"github.com/noah-isme/camper-configurator/internal/notify"
	"github.com/noah-isme/camper-configurator/internal/queue"
	"github.com/noah-isme/camper-configurator/internal/quotes"
	"github.com/noah-isme/camper-configurator/internal/resilience"
)

var fixed = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type markerStub struct {
	delivered []string
	failed    []string
}

func (m *markerStub) MarkDelivered(_ context.Context, id string) error {
	m.delivered = append(m.delivered, id)
	return nil
}

func (m *markerStub) MarkFailed(_ context.Context, id string, _ error) error {
	m.failed = append(m.failed, id)
	return nil
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func httpClient(srv *httptest.Server) *resilience.HTTPClient {
	return &resilience.HTTPClient{
		Client:      srv.Client(),
		Breaker:     resilience.NewBreaker(10, 1, time.Second),
		MaxAttempts: 1,
		Timeout:     time.Second,
		Target:      "submission-webhook",
	}
}

func submission() notify.Submission {
	return notify.Submission{
		QuoteID:   "0b7c9d4e-5f0a-4c35-9f2e-7d1c9a7b1a11",
		SessionID: "sess-1",
		Payload: aggregate.Payload{
			Source:     "configurator",
			Timestamp:  fixed,
			Product:    "pegasus",
			Country:    "GERMANY",
			CountryCol: "DE",
			Codes:      []string{"P3GR3G", "7R4N5P0R"},
			TotalGross: 105128,
		},
	}
}

func TestDeliverSignsPayload(t *testing.T) {
	type recorded struct {
		header http.Header
		body   []byte
	}
	received := make(chan recorded, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- recorded{header: r.Header.Clone(), body: body}
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)

	marker := &markerStub{}
	d := &notify.Dispatcher{
		URL:    srv.URL,
		Secret: "secret",
		HTTP:   httpClient(srv),
		Quotes: marker,
		Now:    func() time.Time { return fixed },
	}
	sub := submission()
	require.NoError(t, d.Deliver(context.Background(), sub))

	got := <-received
	ts := strconv.FormatInt(fixed.Unix(), 10)
	require.Equal(t, ts, got.header.Get("X-Timestamp"))
	require.Equal(t, sub.QuoteID, got.header.Get("X-Quote-ID"))
	require.Equal(t, notify.ComputeSignature("secret", fixed.Unix(), sub.QuoteID, got.body), got.header.Get("X-Signature"))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(got.body, &payload))
	require.Equal(t, []any{"P3GR3G", "7R4N5P0R"}, payload["mo_codes"])
	require.Equal(t, 105128.0, payload["total_gross"])
	require.Equal(t, []string{sub.QuoteID}, marker.delivered)
}

func TestDeliverRejectionIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown mo code", http.StatusUnprocessableEntity)
	}))
	t.Cleanup(srv.Close)

	marker := &markerStub{}
	d := &notify.Dispatcher{URL: srv.URL, Secret: "s", HTTP: httpClient(srv), Quotes: marker}
	err := d.Deliver(context.Background(), submission())

	var rejected *notify.RejectedError
	require.ErrorAs(t, err, &rejected)
	require.Equal(t, http.StatusUnprocessableEntity, rejected.Status)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Len(t, marker.failed, 1)
}

func TestDeliverServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	d := &notify.Dispatcher{URL: srv.URL, Secret: "s", HTTP: httpClient(srv)}
	err := d.Deliver(context.Background(), submission())
	require.Error(t, err)
	require.False(t, errors.Is(err, asynq.SkipRetry))

	var status *resilience.StatusError
	require.ErrorAs(t, err, &status)
	require.Equal(t, http.StatusBadGateway, status.Code)
}

func TestReplayGuardSuppressesSecondDelivery(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	client := newRedis(t)
	d := &notify.Dispatcher{
		URL:       srv.URL,
		Secret:    "s",
		HTTP:      httpClient(srv),
		Replay:    notify.RedisReplayProtector{Client: client},
		ReplayTTL: time.Hour,
	}
	require.NoError(t, d.Deliver(context.Background(), submission()))
	require.NoError(t, d.Deliver(context.Background(), submission()))
	require.Equal(t, int32(1), hits.Load())
}

func TestReplayGuardReleasedOnFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	client := newRedis(t)
	d := &notify.Dispatcher{
		URL:       srv.URL,
		Secret:    "s",
		HTTP:      httpClient(srv),
		Replay:    notify.RedisReplayProtector{Client: client},
		ReplayTTL: time.Hour,
	}
	require.Error(t, d.Deliver(context.Background(), submission()))
	require.NoError(t, d.Deliver(context.Background(), submission()))
	require.Equal(t, int32(2), hits.Load())
}

func TestDeliverRejectsPlainHTTPRemote(t *testing.T) {
	d := &notify.Dispatcher{URL: "http://crm.example/hook", HTTP: &resilience.HTTPClient{Client: http.DefaultClient}}
	err := d.Deliver(context.Background(), submission())
	require.ErrorIs(t, err, asynq.SkipRetry)
}

type queueStub struct{ tasks []queue.Task }

func (q *queueStub) Enqueue(_ context.Context, t queue.Task) error {
	q.tasks = append(q.tasks, t)
	return nil
}

type archiveStub struct{ saved []quotes.Record }

func (a *archiveStub) Save(_ context.Context, r quotes.Record) error {
	a.saved = append(a.saved, r)
	return nil
}

func TestSubmitArchivesAndEnqueues(t *testing.T) {
	q := &queueStub{}
	archive := &archiveStub{}
	s := notify.Submitter{Queue: q, Quotes: archive, MaxAttempts: 3}

	id, err := s.Submit(context.Background(), "sess-1", submission().Payload)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Len(t, archive.saved, 1)
	require.Equal(t, id, archive.saved[0].ID)

	require.Len(t, q.tasks, 1)
	task := q.tasks[0]
	require.Equal(t, notify.SubmissionTask(), task.Kind)
	require.Equal(t, id, task.IdempotencyKey)
	require.Equal(t, 3, task.MaxAttempts)

	var sub notify.Submission
	require.NoError(t, json.Unmarshal(task.Payload, &sub))
	require.Equal(t, id, sub.QuoteID)
	require.Equal(t, "sess-1", sub.SessionID)
}

func TestSubmitWithoutQueueIsDisabled(t *testing.T) {
	_, err := notify.Submitter{}.Submit(context.Background(), "s", aggregate.Payload{})
	require.ErrorIs(t, err, notify.ErrDisabled)
}

func TestDeliveryWorkerHandlesQueuedSubmission(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	client := newRedis(t)
	worker := notify.DeliveryWorker{
		Dispatcher: &notify.Dispatcher{URL: srv.URL, Secret: "s", HTTP: httpClient(srv)},
		Locker:     lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond},
		LockTTL:    time.Second,
	}
	body, err := json.Marshal(submission())
	require.NoError(t, err)

	w := &queue.Worker{}
	require.NoError(t, w.Handle(notify.SubmissionTask(), worker.Handle))
	require.NoError(t, w.Mux().ProcessTask(context.Background(), asynq.NewTask(notify.SubmissionTask(), body)))
	require.Equal(t, int32(1), hits.Load())

	err = worker.Handle(context.Background(), queue.Task{Payload: []byte("{not json")})
	require.ErrorIs(t, err, asynq.SkipRetry)
}
