// Package configurator exposes products, configuration sessions and quote
// submission over HTTP.
package configurator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/camper-configurator/internal/aggregate"
	"github.com/noah-isme/camper-configurator/internal/catalog"
	"github.com/noah-isme/camper-configurator/internal/common"
	"github.com/noah-isme/camper-configurator/internal/pricetable"
	"github.com/noah-isme/camper-configurator/internal/pricing"
	"github.com/noah-isme/camper-configurator/internal/product"
	"github.com/noah-isme/camper-configurator/internal/selection"
	"github.com/noah-isme/camper-configurator/internal/session"
)

// Sessions is the session persistence the handlers need. *session.Store
// satisfies it.
type Sessions interface {
	Create(ctx context.Context, productKey, country string) (*session.Session, error)
	Get(ctx context.Context, id string) (*session.Session, error)
	Update(ctx context.Context, id string, fn func(*session.Session) error) (*session.Session, []string, error)
	Delete(ctx context.Context, id string) error
}

// Submitter hands an exported payload to the delivery pipeline and returns
// the archived quote id.
type Submitter interface {
	Submit(ctx context.Context, sessionID string, p aggregate.Payload) (string, error)
}

// Handler wires the configurator to HTTP.
type Handler struct {
	Sessions  Sessions
	Products  *product.Registry
	Prices    map[string]pricetable.Provider
	Submitter Submitter
	// DefaultProduct is used when a session is created without a product.
	DefaultProduct string
	Validate       *validator.Validate
	Logger         zerolog.Logger
}

type createSessionRequest struct {
	Product string `json:"product" validate:"omitempty,max=32"`
	Country string `json:"country" validate:"omitempty,max=64"`
}

type toggleRequest struct {
	OptionID string `json:"option_id" validate:"required,max=128"`
}

type countryRequest struct {
	Country string `json:"country" validate:"required,max=64"`
}

type productSummary struct {
	Key            string `json:"key"`
	Name           string `json:"name"`
	DefaultCountry string `json:"default_country"`
	PricesLoaded   bool   `json:"prices_loaded"`
}

type catalogOption struct {
	ID       string            `json:"id"`
	Code     string            `json:"code"`
	Name     string            `json:"name"`
	Price    decimal.Decimal   `json:"price"`
	Source   pricing.Source    `json:"source"`
	Requires []string          `json:"requires,omitempty"`
	Tags     map[string]string `json:"tags,omitempty"`
	Addons   []catalogAddon    `json:"addons,omitempty"`
}

type catalogAddon struct {
	ID     string          `json:"id"`
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Source pricing.Source  `json:"source"`
}

type catalogCategory struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Cardinality catalog.Cardinality `json:"cardinality"`
	Role        catalog.Role        `json:"role"`
	Options     []catalogOption     `json:"options"`
}

var defaultValidator = validator.New()

func (h *Handler) validate() *validator.Validate {
	if h.Validate == nil {
		return defaultValidator
	}
	return h.Validate
}

// decode reads a JSON body into dst and validates it. An empty body decodes to
// the zero value so required fields surface as validation errors.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		common.JSONError(w, http.StatusBadRequest, common.CodeInvalidRequest, "invalid JSON body", nil)
		return false
	}
	if err := h.validate().Struct(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeInvalidRequest, "validation failed", validationDetails(err))
		return false
	}
	return true
}

func (h *Handler) table(key string) *pricetable.Table {
	if p, ok := h.Prices[key]; ok && p != nil {
		return p.Current()
	}
	return nil
}

// ListProducts lists the registered product lines.
func (h *Handler) ListProducts(w http.ResponseWriter, _ *http.Request) {
	if h.Products == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "product registry not configured", nil)
		return
	}
	out := make([]productSummary, 0, len(h.Products.Keys()))
	for _, key := range h.Products.Keys() {
		def, err := h.Products.Get(key)
		if err != nil {
			continue
		}
		out = append(out, productSummary{
			Key:            def.Key,
			Name:           def.Name,
			DefaultCountry: def.DefaultCountry,
			PricesLoaded:   h.table(def.Key) != nil,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":      out,
		"countries": pricetable.Countries(),
	})
}

// Catalog returns a product's categories with prices for ?country.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	if h.Products == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "product registry not configured", nil)
		return
	}
	def, err := h.Products.Get(chi.URLParam(r, "product"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	country := strings.TrimSpace(r.URL.Query().Get("country"))
	if country == "" {
		country = def.DefaultCountry
	}
	tbl := h.table(def.Key)
	column, _ := tbl.ColumnFor(country, def.DefaultColumn)
	resolver := pricing.Resolver{Table: tbl, Column: column, Model: def.DefaultAxes.Model}

	cats := def.Catalog.Categories()
	out := make([]catalogCategory, 0, len(cats))
	for _, c := range cats {
		cc := catalogCategory{ID: c.ID, Title: c.Title, Cardinality: c.Cardinality, Role: c.Role}
		cc.Options = make([]catalogOption, 0, len(c.Options))
		for _, o := range c.Options {
			p := resolver.Option(o)
			co := catalogOption{ID: o.ID, Code: o.Code, Name: o.Name, Price: p.Amount, Source: p.Source, Tags: o.Tags}
			for _, cons := range o.Constraints {
				co.Requires = append(co.Requires, cons.References()...)
			}
			for _, a := range o.Addons {
				ap := resolver.Addon(a)
				co.Addons = append(co.Addons, catalogAddon{ID: a.ID, Code: a.Code, Name: a.Name, Price: ap.Amount, Source: ap.Source})
			}
			cc.Options = append(cc.Options, co)
		}
		out = append(out, cc)
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"product":    def.Key,
			"name":       def.Name,
			"country":    pricetable.CleanCountryLabel(country),
			"column":     column,
			"categories": out,
		},
	})
}

// CreateSession starts a session for a product.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if h.Sessions == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "session store not configured", nil)
		return
	}
	var req createSessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	key := strings.TrimSpace(req.Product)
	if key == "" {
		key = h.DefaultProduct
	}
	s, err := h.Sessions.Create(r.Context(), key, req.Country)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.Logger.Info().Str("session_id", s.ID()).Str("product", s.Product().Key).Msg("session created")
	common.Data(w, http.StatusCreated, s.View())
}

// GetSession returns the full session view.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, s.View())
}

// DeleteSession discards a session.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Toggle selects or deselects one option or addon. A rejected selection
// leaves the session unchanged and answers 409 with the missing prerequisites.
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if !h.decode(w, r, &req) {
		return
	}
	var change selection.Change
	s, dropped, err := h.Sessions.Update(r.Context(), chi.URLParam(r, "id"), func(s *session.Session) error {
		ch, err := s.Toggle(strings.TrimSpace(req.OptionID))
		change = ch
		return err
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":    s.View(),
		"change":  change,
		"dropped": nonNil(dropped),
	})
}

// SetCountry switches the price column of a session.
func (h *Handler) SetCountry(w http.ResponseWriter, r *http.Request) {
	var req countryRequest
	if !h.decode(w, r, &req) {
		return
	}
	s, _, err := h.Sessions.Update(r.Context(), chi.URLParam(r, "id"), func(s *session.Session) error {
		s.SetCountry(req.Country)
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, s.View())
}

// Reset clears every selection. The country is kept.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	s, _, err := h.Sessions.Update(r.Context(), chi.URLParam(r, "id"), func(s *session.Session) error {
		s.Reset()
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, s.View())
}

// Payload returns the export payload without submitting it.
func (h *Handler) Payload(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, s.ExportPayload())
}

// Summary returns the plain text configuration summary.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(s.CurrentSummaryText()))
}

// Submit archives the session's payload and queues it for delivery.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if h.Submitter == nil {
		common.JSONError(w, http.StatusServiceUnavailable, common.CodeSubmissionsDisabled, "submissions are not configured", nil)
		return
	}
	s, err := h.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if len(s.View().Selected) == 0 {
		common.JSONError(w, http.StatusBadRequest, common.CodeInvalidRequest, "nothing selected", nil)
		return
	}
	payload := s.ExportPayload()
	quoteID, err := h.Submitter.Submit(r.Context(), s.ID(), payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.Logger.Info().Str("session_id", s.ID()).Str("quote_id", quoteID).Strs("codes", payload.Codes).Msg("configuration submitted")
	common.JSON(w, http.StatusAccepted, map[string]any{
		"data": map[string]any{
			"quote_id":    quoteID,
			"mo_codes":    payload.Codes,
			"total_gross": payload.TotalGross,
		},
	})
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
