package configurator

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/camper-configurator/internal/common"
	"github.com/noah-isme/camper-configurator/internal/obs"
	"github.com/noah-isme/camper-configurator/internal/pricetable"
)

// Reloader refetches one product's price table. *pricetable.Loader
// satisfies it.
type Reloader interface {
	Reload(ctx context.Context) (*pricetable.Table, error)
}

// PriceAdmin lets operators inspect and refresh the live price tables.
type PriceAdmin struct {
	Handler *Handler
	Loaders map[string]Reloader
}

type tableInfo struct {
	Product string   `json:"product"`
	Loaded  bool     `json:"loaded"`
	Columns []string `json:"columns"`
	Rows    int      `json:"rows"`
}

func describe(key string, t *pricetable.Table) tableInfo {
	info := tableInfo{Product: key, Loaded: t != nil, Columns: []string{}}
	if t != nil {
		info.Columns = t.Columns()
		info.Rows = len(t.Rows())
	}
	return info
}

// Table reports the active table of a product.
func (a *PriceAdmin) Table(w http.ResponseWriter, r *http.Request) {
	def, err := a.Handler.Products.Get(chi.URLParam(r, "product"))
	if err != nil {
		a.Handler.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, describe(def.Key, a.Handler.table(def.Key)))
}

// Reload fetches the product's sheet now. A failed reload keeps the previous
// table and answers 503.
func (a *PriceAdmin) Reload(w http.ResponseWriter, r *http.Request) {
	def, err := a.Handler.Products.Get(chi.URLParam(r, "product"))
	if err != nil {
		a.Handler.writeError(w, err)
		return
	}
	loader, ok := a.Loaders[def.Key]
	if !ok || loader == nil {
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "no price source configured for "+def.Key, nil)
		return
	}
	t, err := loader.Reload(r.Context())
	if err != nil {
		a.Handler.writeError(w, err)
		return
	}
	a.Handler.Logger.Info().
		Str("product", def.Key).
		Str("subject", obs.SubjectFromContext(r.Context())).
		Int("rows", len(t.Rows())).
		Msg("price table reloaded by operator")
	common.Data(w, http.StatusOK, describe(def.Key, t))
}
