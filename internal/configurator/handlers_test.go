package configurator_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/camper-configurator/internal/aggregate"
	"github.com/noah-isme/camper-configurator/internal/cache"
	"github.com/noah-isme/camper-configurator/internal/common"
	"github.com/noah-isme/camper-configurator/internal/configurator"
	"github.com/noah-isme/camper-configurator/internal/lock"
	"github.com/noah-isme/camper-configurator/internal/pricetable"
	"github.com/noah-isme/camper-configurator/internal/product"
	"github.com/noah-isme/camper-configurator/internal/session"
)

const pegasusSheet = "MO_CODE,DE,SI\n" +
	"P3GR3G,100000,98000\n" +
	"UP4U70,3000,3100\n" +
	"7R4N5P0R,1800,1900\n"

var fixedNow = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

type submitStub struct {
	mu       sync.Mutex
	payloads []aggregate.Payload
	err      error
}

func (s *submitStub) Submit(_ context.Context, sessionID string, p aggregate.Payload) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.payloads = append(s.payloads, p)
	return fmt.Sprintf("quote-%s-%d", sessionID, len(s.payloads)), nil
}

func (s *submitStub) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *submitStub) submitted() []aggregate.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]aggregate.Payload(nil), s.payloads...)
}

type reloaderStub struct {
	mu    sync.Mutex
	table *pricetable.Table
	err   error
}

func (r *reloaderStub) Reload(context.Context) (*pricetable.Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.table, r.err
}

func (r *reloaderStub) set(t *pricetable.Table, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table, r.err = t, err
}

type fixture struct {
	srv       *httptest.Server
	submitter *submitStub
	womondo   *reloaderStub
}

func newFixture(t *testing.T, withSubmitter bool) *fixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tbl, err := pricetable.ParseString(pegasusSheet, pricetable.ParseOptions{})
	require.NoError(t, err)
	prices := map[string]pricetable.Provider{"pegasus": pricetable.NewStore(tbl)}

	var (
		mu sync.Mutex
		n  int
	)
	store := &session.Store{
		Cache:    cache.New(client, time.Hour),
		Locker:   lock.Locker{R: client, RetryBackoff: 2 * time.Millisecond},
		Products: product.Default(),
		Prices:   prices,
		Options:  []session.Option{session.WithClock(func() time.Time { return fixedNow })},
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("sess-%d", n)
		},
	}

	f := &fixture{womondo: &reloaderStub{}}
	h := &configurator.Handler{
		Sessions:       store,
		Products:       product.Default(),
		Prices:         prices,
		DefaultProduct: "pegasus",
	}
	if withSubmitter {
		f.submitter = &submitStub{}
		h.Submitter = f.submitter
	}
	admin := &configurator.PriceAdmin{Handler: h, Loaders: map[string]configurator.Reloader{"womondo": f.womondo}}
	guards := configurator.Guards{
		Idempotency: common.Idem{R: client}.Middleware,
		Admin: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("X-Admin-Key") != "letmein" {
					common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
					return
				}
				next.ServeHTTP(w, r)
			})
		},
	}

	r := chi.NewRouter()
	r.Route("/api/v1", func(v chi.Router) {
		h.Mount(v, guards)
		v.Route("/admin", func(a chi.Router) {
			admin.MountAdmin(a, guards, func(ar chi.Router) {
				ar.Get("/ping", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
			})
		})
	})
	f.srv = httptest.NewServer(r)
	t.Cleanup(f.srv.Close)
	return f
}

type response struct {
	Status int
	Body   map[string]any
	Header http.Header
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers ...string) response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := response{Status: resp.StatusCode, Header: resp.Header}
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out.Body))
	}
	return out
}

func data(t *testing.T, r response) map[string]any {
	t.Helper()
	d, ok := r.Body["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %v", r.Body)
	return d
}

func errorCode(r response) string {
	e, _ := r.Body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestListProducts(t *testing.T) {
	f := newFixture(t, false)
	resp := f.do(t, http.MethodGet, "/api/v1/products", nil)
	require.Equal(t, http.StatusOK, resp.Status)

	list, ok := resp.Body["data"].([]any)
	require.True(t, ok)
	require.Len(t, list, 2)
	first := list[0].(map[string]any)
	require.Equal(t, "pegasus", first["key"])
	require.Equal(t, true, first["prices_loaded"])
	second := list[1].(map[string]any)
	require.Equal(t, "womondo", second["key"])
	require.Equal(t, false, second["prices_loaded"])
	require.Contains(t, resp.Body["countries"], "SLOVENIA")
}

func TestCatalogUsesCountryColumn(t *testing.T) {
	f := newFixture(t, false)
	resp := f.do(t, http.MethodGet, "/api/v1/products/pegasus/catalog?country=Slovenia%2022%25%20VAT", nil)
	require.Equal(t, http.StatusOK, resp.Status)

	d := data(t, resp)
	require.Equal(t, "SI", d["column"])
	require.Equal(t, "SLOVENIA", d["country"])

	cats := d["categories"].([]any)
	models := cats[0].(map[string]any)
	require.Equal(t, "models", models["id"])
	regular := models["options"].([]any)[0].(map[string]any)
	require.Equal(t, "regular", regular["id"])
	require.Equal(t, "98000", regular["price"])
	require.Equal(t, "table", regular["source"])

	upgrades := cats[1].(map[string]any)["options"].([]any)
	var fourByFour map[string]any
	for _, o := range upgrades {
		if o.(map[string]any)["id"] == "4x4" {
			fourByFour = o.(map[string]any)
		}
	}
	require.NotNil(t, fourByFour)
	require.Equal(t, "catalog", fourByFour["source"])
	require.ElementsMatch(t, []any{"auto-gearbox", "190hp", "pro"}, fourByFour["requires"])

	resp = f.do(t, http.MethodGet, "/api/v1/products/vw-bus/catalog", nil)
	require.Equal(t, http.StatusNotFound, resp.Status)
	require.Equal(t, "NOT_FOUND", errorCode(resp))
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t, false)

	resp := f.do(t, http.MethodPost, "/api/v1/sessions", map[string]string{"product": "pegasus", "country": "Slovenia"})
	require.Equal(t, http.StatusCreated, resp.Status)
	view := data(t, resp)
	require.Equal(t, "sess-1", view["id"])
	require.Equal(t, "SI", view["column"])
	require.Empty(t, view["selected"])

	resp = f.do(t, http.MethodPost, "/api/v1/sessions/sess-1/toggle", map[string]string{"option_id": "regular"})
	require.Equal(t, http.StatusOK, resp.Status)
	view = data(t, resp)
	require.Equal(t, []any{"regular"}, view["selected"])
	require.Equal(t, "99900", view["total"])
	change := resp.Body["change"].(map[string]any)
	require.Equal(t, []any{"regular"}, change["selected"])

	resp = f.do(t, http.MethodPut, "/api/v1/sessions/sess-1/country", map[string]string{"country": "Germany"})
	require.Equal(t, http.StatusOK, resp.Status)
	view = data(t, resp)
	require.Equal(t, "DE", view["column"])
	require.Equal(t, "101800", view["total"])
	require.Equal(t, []any{"regular"}, view["selected"])

	resp = f.do(t, http.MethodGet, "/api/v1/sessions/sess-1/payload", nil)
	require.Equal(t, http.StatusOK, resp.Status)
	payload := data(t, resp)
	require.Equal(t, []any{"P3GR3G", "7R4N5P0R"}, payload["mo_codes"])
	require.Equal(t, 101800.0, payload["total_gross"])
	require.Equal(t, "DE", payload["countryCol"])

	resp = f.do(t, http.MethodPost, "/api/v1/sessions/sess-1/reset", nil)
	require.Equal(t, http.StatusOK, resp.Status)
	require.Empty(t, data(t, resp)["selected"])

	resp = f.do(t, http.MethodGet, "/api/v1/sessions/sess-1", nil)
	require.Equal(t, http.StatusOK, resp.Status)
	require.Empty(t, data(t, resp)["selected"])

	resp = f.do(t, http.MethodDelete, "/api/v1/sessions/sess-1", nil)
	require.Equal(t, http.StatusNoContent, resp.Status)
	resp = f.do(t, http.MethodGet, "/api/v1/sessions/sess-1", nil)
	require.Equal(t, http.StatusNotFound, resp.Status)
}

func TestCreateSessionDefaultsProduct(t *testing.T) {
	f := newFixture(t, false)
	resp := f.do(t, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.Status)
	view := data(t, resp)
	require.Equal(t, "pegasus", view["product"])
	require.Equal(t, "GERMANY", view["country"])

	resp = f.do(t, http.MethodPost, "/api/v1/sessions", map[string]string{"product": "vw-bus"})
	require.Equal(t, http.StatusNotFound, resp.Status)
	require.Equal(t, "NOT_FOUND", errorCode(resp))
}

func TestToggleErrors(t *testing.T) {
	f := newFixture(t, false)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/v1/sessions", map[string]string{"product": "pegasus"}).Status)

	resp := f.do(t, http.MethodPost, "/api/v1/sessions/sess-1/toggle", map[string]string{"option_id": "4x4"})
	require.Equal(t, http.StatusConflict, resp.Status)
	require.Equal(t, "CONSTRAINT_VIOLATION", errorCode(resp))
	details := resp.Body["error"].(map[string]any)["details"].(map[string]any)
	require.Equal(t, "4x4", details["option_id"])
	require.NotEmpty(t, details["missing"])

	resp = f.do(t, http.MethodGet, "/api/v1/sessions/sess-1", nil)
	require.Empty(t, data(t, resp)["selected"], "rejected toggle must not change the session")

	resp = f.do(t, http.MethodPost, "/api/v1/sessions/sess-1/toggle", map[string]string{"option_id": "flux-capacitor"})
	require.Equal(t, http.StatusNotFound, resp.Status)

	resp = f.do(t, http.MethodPost, "/api/v1/sessions/sess-1/toggle", map[string]string{})
	require.Equal(t, http.StatusBadRequest, resp.Status)
	require.Equal(t, "INVALID_REQUEST", errorCode(resp))
	details = resp.Body["error"].(map[string]any)["details"].(map[string]any)
	require.Equal(t, "required", details["OptionID"])

	resp = f.do(t, http.MethodPost, "/api/v1/sessions/missing/toggle", map[string]string{"option_id": "regular"})
	require.Equal(t, http.StatusNotFound, resp.Status)
}

func TestSummaryIsPlainText(t *testing.T) {
	f := newFixture(t, false)
	f.do(t, http.MethodPost, "/api/v1/sessions", map[string]string{"product": "pegasus"})
	f.do(t, http.MethodPost, "/api/v1/sessions/sess-1/toggle", map[string]string{"option_id": "regular"})

	resp, err := f.srv.Client().Get(f.srv.URL + "/api/v1/sessions/sess-1/summary")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "MODEL: Womondo Pegasus REGULAR")
	require.Contains(t, buf.String(), "=== PEGASUS CONFIGURATION ===")
}

func TestSubmit(t *testing.T) {
	f := newFixture(t, true)
	f.do(t, http.MethodPost, "/api/v1/sessions", map[string]string{"product": "pegasus"})

	resp := f.do(t, http.MethodPost, "/api/v1/sessions/sess-1/submit", nil)
	require.Equal(t, http.StatusBadRequest, resp.Status, "empty configuration cannot be submitted")

	f.do(t, http.MethodPost, "/api/v1/sessions/sess-1/toggle", map[string]string{"option_id": "regular"})
	resp = f.do(t, http.MethodPost, "/api/v1/sessions/sess-1/submit", nil, common.IdempotencyHeader, "k-1")
	require.Equal(t, http.StatusAccepted, resp.Status)
	d := data(t, resp)
	require.Equal(t, "quote-sess-1-1", d["quote_id"])
	require.Equal(t, []any{"P3GR3G", "7R4N5P0R"}, d["mo_codes"])
	require.Len(t, f.submitter.submitted(), 1)
	require.Equal(t, "pegasus", f.submitter.submitted()[0].Product)

	resp = f.do(t, http.MethodPost, "/api/v1/sessions/sess-1/submit", nil, common.IdempotencyHeader, "k-1")
	require.Equal(t, http.StatusConflict, resp.Status)
	require.Equal(t, "IDEMPOTENT_REPLAY", errorCode(resp))
	require.Len(t, f.submitter.submitted(), 1)
}

func TestSubmitFailures(t *testing.T) {
	f := newFixture(t, false)
	f.do(t, http.MethodPost, "/api/v1/sessions", map[string]string{"product": "pegasus"})
	f.do(t, http.MethodPost, "/api/v1/sessions/sess-1/toggle", map[string]string{"option_id": "regular"})

	resp := f.do(t, http.MethodPost, "/api/v1/sessions/sess-1/submit", nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.Status)
	require.Equal(t, "SUBMISSIONS_DISABLED", errorCode(resp))

	f = newFixture(t, true)
	f.submitter.fail(errors.New("redis down"))
	f.do(t, http.MethodPost, "/api/v1/sessions", map[string]string{"product": "pegasus"})
	f.do(t, http.MethodPost, "/api/v1/sessions/sess-1/toggle", map[string]string{"option_id": "regular"})
	resp = f.do(t, http.MethodPost, "/api/v1/sessions/sess-1/submit", nil, common.IdempotencyHeader, "k-2")
	require.Equal(t, http.StatusInternalServerError, resp.Status)

	f.submitter.fail(nil)
	resp = f.do(t, http.MethodPost, "/api/v1/sessions/sess-1/submit", nil, common.IdempotencyHeader, "k-2")
	require.Equal(t, http.StatusAccepted, resp.Status, "a failed submit may be retried with the same key")
}

func TestPriceAdmin(t *testing.T) {
	f := newFixture(t, false)

	resp := f.do(t, http.MethodGet, "/api/v1/admin/pricetables/pegasus", nil)
	require.Equal(t, http.StatusUnauthorized, resp.Status)

	auth := []string{"X-Admin-Key", "letmein"}
	resp = f.do(t, http.MethodGet, "/api/v1/admin/pricetables/pegasus", nil, auth...)
	require.Equal(t, http.StatusOK, resp.Status)
	d := data(t, resp)
	require.Equal(t, true, d["loaded"])
	require.Equal(t, []any{"DE", "SI"}, d["columns"])
	require.Equal(t, 3.0, d["rows"])

	resp = f.do(t, http.MethodPost, "/api/v1/admin/pricetables/pegasus/reload", nil, auth...)
	require.Equal(t, http.StatusNotFound, resp.Status, "pegasus has no loader in this fixture")

	f.womondo.set(nil, &pricetable.SourceError{Op: "fetch", Retryable: true, Err: errors.New("timeout")})
	resp = f.do(t, http.MethodPost, "/api/v1/admin/pricetables/womondo/reload", nil, auth...)
	require.Equal(t, http.StatusServiceUnavailable, resp.Status)
	require.Equal(t, "SOURCE_UNAVAILABLE", errorCode(resp))
	details := resp.Body["error"].(map[string]any)["details"].(map[string]any)
	require.Equal(t, true, details["retryable"])

	fresh, err := pricetable.ParseString("MO_CODE,DE,AT\nWOTRANS,1290,1290\n", pricetable.ParseOptions{})
	require.NoError(t, err)
	f.womondo.set(fresh, nil)
	resp = f.do(t, http.MethodPost, "/api/v1/admin/pricetables/womondo/reload", nil, auth...)
	require.Equal(t, http.StatusOK, resp.Status)
	require.Equal(t, []any{"DE", "AT"}, data(t, resp)["columns"])

	resp = f.do(t, http.MethodGet, "/api/v1/admin/ping", nil, auth...)
	require.Equal(t, http.StatusNoContent, resp.Status)
}
