package pricetable_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/camper-configurator/internal/cache"
	"github.com/noah-isme/camper-configurator/internal/pricetable"
	"github.com/noah-isme/camper-configurator/internal/resilience"
)

func newLoader(t *testing.T, srv *httptest.Server, store *pricetable.Store, raw *cache.Redis) *pricetable.Loader {
	t.Helper()
	return &pricetable.Loader{
		Product:  "pegasus",
		URL:      srv.URL + "/sheet.csv?gid=1",
		Client:   resilience.HTTPClient{Client: srv.Client(), MaxAttempts: 1},
		Store:    store,
		Cache:    raw,
		CacheKey: cache.KeyPriceTable("pegasus"),
		Timeout:  time.Second,
		Logger:   zerolog.Nop(),
		Now:      func() time.Time { return time.UnixMilli(1700000000000) },
	}
}

func TestLoaderReloadSwapsAndCaches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "1700000000000", r.URL.Query().Get("_ts"))
		assert.Equal(t, "1", r.URL.Query().Get("gid"))
		assert.Equal(t, "no-cache", r.Header.Get("Cache-Control"))
		_, _ = w.Write([]byte("MO_CODE,DE\nX1,500\n"))
	}))
	t.Cleanup(srv.Close)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	raw := cache.New(client, time.Hour)

	store := pricetable.NewStore(nil)
	loader := newLoader(t, srv, store, raw)

	tbl, err := loader.Reload(context.Background())
	require.NoError(t, err)
	require.Same(t, tbl, store.Current())
	require.EqualValues(t, 1, hits.Load())

	cached, ok, err := raw.GetRaw(context.Background(), cache.KeyPriceTable("pegasus"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, cached, "X1,500")

	cold := pricetable.NewStore(nil)
	warm := newLoader(t, srv, cold, raw)
	installed, err := warm.WarmStart(context.Background())
	require.NoError(t, err)
	require.True(t, installed)
	p, ok := cold.Current().PriceOf("X1", "DE")
	require.True(t, ok)
	require.Equal(t, "500", p.String())
}

func TestLoaderFailureKeepsPreviousTable(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("MO_CODE,DE\nX1,500\n"))
	}))
	t.Cleanup(srv.Close)

	store := pricetable.NewStore(nil)
	loader := newLoader(t, srv, store, nil)
	first, err := loader.Reload(context.Background())
	require.NoError(t, err)

	fail.Store(true)
	_, err = loader.Reload(context.Background())
	require.ErrorIs(t, err, pricetable.ErrSource)
	require.True(t, pricetable.IsRetryable(err))
	require.Same(t, first, store.Current())
}

func TestLoaderRejectsMalformedSheet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("CODE,DE\nX1,500\n"))
	}))
	t.Cleanup(srv.Close)

	seed, err := pricetable.ParseString("MO_CODE,DE\nX1,1\n", pricetable.ParseOptions{})
	require.NoError(t, err)
	store := pricetable.NewStore(seed)
	loader := newLoader(t, srv, store, nil)

	_, err = loader.Reload(context.Background())
	require.ErrorIs(t, err, pricetable.ErrSource)
	require.False(t, pricetable.IsRetryable(err))
	require.Same(t, seed, store.Current())
}
