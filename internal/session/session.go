// Package session binds a product definition, the live price table and one
// buyer's selection into a configuration session.
package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/camper-configurator/internal/aggregate"
	"github.com/noah-isme/camper-configurator/internal/catalog"
	"github.com/noah-isme/camper-configurator/internal/obs"
	"github.com/noah-isme/camper-configurator/internal/pricetable"
	"github.com/noah-isme/camper-configurator/internal/product"
	"github.com/noah-isme/camper-configurator/internal/remap"
	"github.com/noah-isme/camper-configurator/internal/selection"
)

// Option customises a session.
type Option func(*Session)

// WithClock overrides the time source used for summary dates and payload
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger degraded mappings are reported to.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// Session is one buyer's configuration. Methods are safe for concurrent use.
type Session struct {
	mu sync.Mutex

	id      string
	def     *product.Definition
	prices  pricetable.Provider
	sel     *selection.Selection
	country string
	updated time.Time

	now    func() time.Time
	logger zerolog.Logger
}

// New starts an empty session. An empty country uses the product default.
func New(id string, def *product.Definition, prices pricetable.Provider, country string, opts ...Option) *Session {
	if prices == nil {
		prices = pricetable.Static{}
	}
	s := &Session{
		id:     id,
		def:    def,
		prices: prices,
		sel:    selection.New(def.Catalog),
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.country = s.normalizeCountry(country)
	s.updated = s.now()
	return s
}

func (s *Session) normalizeCountry(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return s.def.DefaultCountry
	}
	return label
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Product returns the product definition.
func (s *Session) Product() *product.Definition { return s.def }

// Country returns the selected country label.
func (s *Session) Country() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.country
}

// Toggle selects or deselects an option or addon.
func (s *Session) Toggle(id string) (selection.Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, err := s.sel.Toggle(id)
	switch {
	case err == nil:
		obs.Inc(obs.SelectionTogglesTotal, s.def.Key, "ok")
		s.touch()
	case errors.Is(err, selection.ErrConstraintViolation):
		obs.Inc(obs.SelectionTogglesTotal, s.def.Key, "rejected")
	case errors.Is(err, catalog.ErrNotFound):
		obs.Inc(obs.SelectionTogglesTotal, s.def.Key, "unknown")
	}
	return ch, err
}

// SetCountry switches the price column. Selections are untouched.
func (s *Session) SetCountry(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.country = s.normalizeCountry(label)
	s.touch()
}

// Reset clears the selection and keeps the country.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel.Reset()
	s.touch()
}

func (s *Session) touch() { s.updated = s.now() }

// IsOptionSelectable reports whether id could be selected now.
func (s *Session) IsOptionSelectable(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel.IsSelectable(id)
}

// column resolves the country column against tbl. Without a table the mapped
// key or the product default is reported so callers still see a column name.
func (s *Session) column(tbl *pricetable.Table) string {
	if col, ok := tbl.ColumnFor(s.country, s.def.DefaultColumn); ok {
		return col
	}
	if col, ok := pricetable.CountryColumn(s.country); ok {
		return col
	}
	if s.def.DefaultColumn != "" {
		return s.def.DefaultColumn
	}
	return pricetable.DefaultColumn
}

// quote prices the selection against exactly one table snapshot. Callers hold mu.
func (s *Session) quote() aggregate.Quote {
	tbl := s.prices.Current()
	return aggregate.Build(aggregate.Input{
		Product:   s.def,
		Selection: s.sel,
		Table:     tbl,
		Column:    s.column(tbl),
		Country:   s.country,
	})
}

func (s *Session) meta() aggregate.SummaryMeta {
	return aggregate.SummaryMeta{Date: s.now(), CountryLabel: s.country}
}

// Quote returns the priced selection.
func (s *Session) Quote() aggregate.Quote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quote()
}

// CurrentTotal returns the gross total.
func (s *Session) CurrentTotal() decimal.Decimal {
	return s.Quote().Total()
}

// CurrentSummaryText renders the plain text summary.
func (s *Session) CurrentSummaryText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return aggregate.Summary(s.quote(), s.meta())
}

// ExportPayload builds the submission payload. Codes without a canonical
// mapping are exported in generic form; each one is logged and counted.
func (s *Session) ExportPayload() aggregate.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, degraded := aggregate.Export(s.quote(), s.meta())
	s.reportDegraded(degraded)
	return payload
}

func (s *Session) reportDegraded(degraded []remap.Degradation) {
	for _, d := range degraded {
		obs.Inc(obs.DegradedMappingsTotal, s.def.Key, string(d.Kind), d.Brand)
		s.logger.Warn().
			Str("session_id", s.id).
			Str("product", s.def.Key).
			Str("code", d.Code).
			Str("kind", string(d.Kind)).
			Str("brand", d.Brand).
			Str("length", string(d.Length)).
			Msg("no canonical code for option, exporting generic code")
	}
}

// View is the full client-facing state of a session.
type View struct {
	ID         string            `json:"id"`
	Product    string            `json:"product"`
	Country    string            `json:"country"`
	Column     string            `json:"column"`
	Selected   []string          `json:"selected"`
	Addons     map[string]string `json:"addons,omitempty"`
	Selectable map[string]bool   `json:"selectable"`
	Quote      aggregate.Quote   `json:"quote"`
	Total      decimal.Decimal   `json:"total"`
	TotalText  string            `json:"total_text"`
	Summary    string            `json:"summary"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// View renders the session for clients.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.quote()
	snap := s.sel.Snapshot()
	selectable := map[string]bool{}
	for _, cat := range s.def.Catalog.Categories() {
		for _, o := range cat.Options {
			ok, _ := s.sel.IsSelectable(o.ID)
			selectable[o.ID] = ok
		}
	}
	selected := snap.Options
	if selected == nil {
		selected = []string{}
	}
	return View{
		ID:         s.id,
		Product:    s.def.Key,
		Country:    s.country,
		Column:     q.Column,
		Selected:   selected,
		Addons:     snap.Addons,
		Selectable: selectable,
		Quote:      q,
		Total:      q.Total(),
		TotalText:  aggregate.FormatEuro(q.Total()),
		Summary:    aggregate.Summary(q, s.meta()),
		UpdatedAt:  s.updated.UTC(),
	}
}
