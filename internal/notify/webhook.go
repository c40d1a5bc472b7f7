// Package notify delivers submitted configurations to the dealer webhook.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/camper-configurator/internal/aggregate"
	"github.com/noah-isme/camper-configurator/internal/obs"
	"github.com/noah-isme/camper-configurator/internal/queue"
)

// Submission is the queued unit of work: one archived quote and its payload.
type Submission struct {
	QuoteID   string            `json:"quote_id"`
	SessionID string            `json:"session_id"`
	Payload   aggregate.Payload `json:"payload"`
}

// Doer sends an HTTP request. resilience.HTTPClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// QuoteMarker records delivery outcomes on the archived quote.
type QuoteMarker interface {
	MarkDelivered(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, cause error) error
}

// ReplayProtector guards against sending one quote twice.
type ReplayProtector interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Confirm(ctx context.Context, key string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// RejectedError is returned when the webhook answers with a 4xx other than 429.
type RejectedError struct {
	Status int
	Body   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("webhook rejected submission: status=%d body=%q", e.Status, e.Body)
}

// Unwrap marks rejections as permanent for the queue.
func (e *RejectedError) Unwrap() error { return queue.ErrPermanent }

// Dispatcher posts signed submissions to the configured webhook.
type Dispatcher struct {
	URL       string
	Secret    string
	HTTP      Doer
	Replay    ReplayProtector
	ReplayTTL time.Duration
	// InFlightTTL bounds a pending claim left by a worker that died mid
	// delivery. Defaults to five minutes, capped at ReplayTTL.
	InFlightTTL time.Duration
	Quotes      QuoteMarker
	Logger      zerolog.Logger
	Now         func() time.Time
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Dispatcher) inFlightTTL() time.Duration {
	ttl := d.InFlightTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return min(ttl, d.ReplayTTL)
}

// Deliver sends one submission. A submission already delivered within the
// replay window is skipped.
func (d *Dispatcher) Deliver(ctx context.Context, sub Submission) error {
	if d == nil || d.HTTP == nil {
		return errors.New("notify: dispatcher not configured")
	}
	ctx, span := otel.Tracer("notify.Dispatcher").Start(ctx, "Dispatcher.Deliver")
	defer span.End()
	span.SetAttributes(
		attribute.String("quote.id", sub.QuoteID),
		attribute.String("quote.product", sub.Payload.Product),
	)
	if err := validateURL(d.URL); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", queue.ErrPermanent, err)
	}

	if d.Replay != nil && d.ReplayTTL > 0 {
		ok, err := d.Replay.Acquire(ctx, sub.QuoteID, d.inFlightTTL())
		if err != nil {
			span.RecordError(err)
			return err
		}
		if !ok {
			span.AddEvent("delivery replay prevented")
			d.record("suppressed", 0)
			return nil
		}
	}

	start := time.Now()
	status, err := d.post(ctx, sub)
	if err == nil {
		span.SetAttributes(attribute.Int("http.status_code", status))
		d.record("delivered", time.Since(start))
		d.Logger.Info().Str("quote_id", sub.QuoteID).Int("status", status).Msg("submission delivered")
		if d.Replay != nil && d.ReplayTTL > 0 {
			if confirmErr := d.Replay.Confirm(ctx, sub.QuoteID, d.ReplayTTL); confirmErr != nil {
				d.Logger.Warn().Err(confirmErr).Str("quote_id", sub.QuoteID).Msg("confirm replay guard")
			}
		}
		if d.Quotes != nil {
			if markErr := d.Quotes.MarkDelivered(ctx, sub.QuoteID); markErr != nil {
				d.Logger.Warn().Err(markErr).Str("quote_id", sub.QuoteID).Msg("mark quote delivered")
			}
		}
		return nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if d.Replay != nil && d.ReplayTTL > 0 {
		_ = d.Replay.Release(ctx, sub.QuoteID)
	}
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		d.record("rejected", time.Since(start))
	} else {
		d.record("failed", time.Since(start))
	}
	if d.Quotes != nil {
		_ = d.Quotes.MarkFailed(ctx, sub.QuoteID, err)
	}
	d.Logger.Warn().Err(err).Str("quote_id", sub.QuoteID).Msg("submission delivery failed")
	return err
}

func (d *Dispatcher) post(ctx context.Context, sub Submission) (int, error) {
	body, err := json.Marshal(sub.Payload)
	if err != nil {
		return 0, fmt.Errorf("%w: encode payload: %v", queue.ErrPermanent, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	ts := d.now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "camper-configurator/1.0")
	req.Header.Set("X-Quote-ID", sub.QuoteID)
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Idempotency-Key", sub.QuoteID)
	req.Header.Set("X-Signature", ComputeSignature(d.Secret, ts, sub.QuoteID, body))

	resp, err := d.HTTP.Do(ctx, req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp.StatusCode, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return resp.StatusCode, fmt.Errorf("webhook throttled submission: status=%d", resp.StatusCode)
	default:
		return resp.StatusCode, &RejectedError{Status: resp.StatusCode, Body: string(respBody)}
	}
}

func (d *Dispatcher) record(result string, elapsed time.Duration) {
	if obs.WebhookDeliveriesTotal != nil {
		obs.WebhookDeliveriesTotal.WithLabelValues(result).Inc()
	}
	if obs.WebhookAttemptLatency != nil && elapsed > 0 {
		obs.WebhookAttemptLatency.WithLabelValues(result).Observe(obs.DurationMillis(elapsed))
	}
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.New("webhook url must be http or https")
	}
	if parsed.Scheme == "http" {
		host := parsed.Hostname()
		if host != "localhost" && host != "127.0.0.1" {
			return errors.New("http webhook only allowed for localhost")
		}
	}
	if parsed.Host == "" {
		return errors.New("webhook url must include host")
	}
	return nil
}

// ComputeSignature calculates the webhook signature for the provided payload. The
// format is HMAC-SHA256 over "<ts>.<quoteID>.<body>" using the shared secret.
func ComputeSignature(secret string, ts int64, quoteID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(quoteID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// HttpClient returns an HTTP client configured for webhook delivery.
func HttpClient(timeout time.Duration, insecure bool) *http.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	transport := &http.Transport{}
	if insecure {
		transport.TLSClientConfig = insecureTLSConfig
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(transport),
	}
}

var insecureTLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
