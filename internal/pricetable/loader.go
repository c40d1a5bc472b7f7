package pricetable

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Doer executes outbound requests. resilience.HTTPClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// RawCache keeps the last good sheet text so a cold start can warm up while
// the source is down.
type RawCache interface {
	GetRaw(ctx context.Context, key string) (string, bool, error)
	SetRaw(ctx context.Context, key, value string) error
}

// Loader fetches a product's price sheet and installs it into a Store.
type Loader struct {
	Product  string
	URL      string
	Client   Doer
	Store    *Store
	Cache    RawCache
	CacheKey string
	Options  ParseOptions
	Timeout  time.Duration
	Logger   zerolog.Logger
	Now      func() time.Time
}

func (l *Loader) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Reload fetches, parses and swaps the table. On any failure the current table
// stays installed and a *SourceError is returned.
func (l *Loader) Reload(ctx context.Context) (*Table, error) {
	t, raw, err := l.fetch(ctx)
	if err != nil {
		reloadsTotal.WithLabelValues(l.Product, "error").Inc()
		l.Logger.Warn().Err(err).Str("product", l.Product).Bool("retryable", IsRetryable(err)).Msg("price table reload failed")
		return nil, err
	}
	l.install(t, "fetch")
	if l.Cache != nil && l.CacheKey != "" {
		if err := l.Cache.SetRaw(ctx, l.CacheKey, raw); err != nil {
			l.Logger.Warn().Err(err).Str("product", l.Product).Msg("price table cache write failed")
		}
	}
	reloadsTotal.WithLabelValues(l.Product, "ok").Inc()
	return t, nil
}

// WarmStart installs the cached sheet when the store is still empty. It
// reports whether a table was installed.
func (l *Loader) WarmStart(ctx context.Context) (bool, error) {
	if l.Store.Current() != nil || l.Cache == nil || l.CacheKey == "" {
		return false, nil
	}
	raw, ok, err := l.Cache.GetRaw(ctx, l.CacheKey)
	if err != nil || !ok {
		return false, err
	}
	t, err := ParseString(raw, l.Options)
	if err != nil {
		return false, err
	}
	l.install(t, "cache")
	return true, nil
}

// Run reloads every interval until ctx ends. Failed reloads are retried with
// exponential backoff capped at the interval.
func (l *Loader) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = l.reloadWithRetry(ctx, interval)
		}
	}
}

func (l *Loader) reloadWithRetry(ctx context.Context, budget time.Duration) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxElapsedTime = budget
	return backoff.Retry(func() error {
		_, err := l.Reload(ctx)
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(policy, ctx))
}

func (l *Loader) install(t *Table, from string) {
	l.Store.Swap(t)
	tableRows.WithLabelValues(l.Product).Set(float64(len(t.rows)))
	l.Logger.Info().
		Str("product", l.Product).
		Str("from", from).
		Int("rows", len(t.rows)).
		Strs("columns", t.columns).
		Msg("price table installed")
}

func (l *Loader) fetch(ctx context.Context) (*Table, string, error) {
	if l.Client == nil || strings.TrimSpace(l.URL) == "" {
		return nil, "", &SourceError{Op: "fetch", Err: errors.New("no source configured")}
	}
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}
	u, err := url.Parse(l.URL)
	if err != nil {
		return nil, "", &SourceError{Op: "fetch", Err: err}
	}
	q := u.Query()
	q.Set("_ts", strconv.FormatInt(l.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", &SourceError{Op: "fetch", Err: err}
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Accept", "text/csv, text/plain")

	resp, err := l.Client.Do(ctx, req)
	if err != nil {
		return nil, "", &SourceError{Op: "fetch", Retryable: true, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, "", &SourceError{Op: "fetch", Retryable: true, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &SourceError{Op: "read", Retryable: true, Err: err}
	}
	t, err := ParseString(string(body), l.Options)
	if err != nil {
		return nil, "", err
	}
	return t, string(body), nil
}
