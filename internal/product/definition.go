// Package product describes the configurable product lines: their catalogs,
// remap tables, auto-fees and how vehicle variant axes are read from a
// selection.
package product

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/camper-configurator/internal/catalog"
	"github.com/noah-isme/camper-configurator/internal/pricetable"
	"github.com/noah-isme/camper-configurator/internal/pricing"
	"github.com/noah-isme/camper-configurator/internal/remap"
	"github.com/noah-isme/camper-configurator/internal/selection"
)

// ErrUnknownProduct is returned for product keys that are not registered.
var ErrUnknownProduct = errors.New("product: unknown product")

// Trigger decides whether an auto-fee applies. Implementations are Always and
// AnySelectedCode.
type Trigger interface {
	Fires(selectedCodes []string) bool
}

// Always fires for every configuration.
type Always struct{}

func (Always) Fires([]string) bool { return true }

// AnySelectedCode fires when one of Codes is among the selected generic codes.
type AnySelectedCode struct {
	Codes []string
}

func (t AnySelectedCode) Fires(selected []string) bool {
	for _, c := range t.Codes {
		if slices.Contains(selected, strings.ToUpper(strings.TrimSpace(c))) {
			return true
		}
	}
	return false
}

// FeeRule is a derived charge priced from the table by Code, or Fallback when
// the active column has no entry.
type FeeRule struct {
	Code     string
	Label    string
	Fallback decimal.Decimal
	Trigger  Trigger
}

// Axes are the vehicle variant coordinates read from a selection.
type Axes struct {
	Model  int    `json:"model"`
	Brand  string `json:"brand"`
	Trans  string `json:"trans"`
	Engine string `json:"engine"`
}

// Definition is the immutable description of one product line. It is shared by
// every session of that product.
type Definition struct {
	Key        string
	Name       string
	Source     string
	ModelLabel string
	Catalog    *catalog.Catalog
	Remap      *remap.Table
	Fees       []FeeRule

	DefaultColumn  string
	DefaultCountry string
	DefaultAxes    Axes
	// AxisCategories only steer variant axes. Their options are priced but
	// contribute no code of their own to the export.
	AxisCategories []string
	// BaseCodeFromTable reads the model's code from the variant row of the
	// price table instead of the model option.
	BaseCodeFromTable bool
}

// IsAxisCategory reports whether category only steers variant axes.
func (d *Definition) IsAxisCategory(category string) bool {
	return slices.Contains(d.AxisCategories, category)
}

// Axes reads model, brand, transmission and engine from the selection. The
// model falls back to the first model option, the rest to DefaultAxes.
func (d *Definition) Axes(sel *selection.Selection) Axes {
	ax := d.DefaultAxes
	if model, ok := sel.ModelOption(); ok {
		ax.Model = pricing.ModelNumber(model.Tag(catalog.TagModel))
	} else if cat, ok := d.Catalog.ModelCategory(); ok {
		if opts, err := d.Catalog.OptionsInCategory(cat); err == nil && len(opts) > 0 {
			ax.Model = pricing.ModelNumber(opts[0].Tag(catalog.TagModel))
		}
	}
	for _, opt := range sel.Active() {
		if b := opt.Tag(catalog.TagBrand); b != "" {
			ax.Brand = b
		}
		if ad, ok := sel.AddonOf(opt.ID); ok {
			if t := ad.Tag(catalog.TagTrans); t != "" {
				ax.Trans = t
			}
			if e := ad.Tag(catalog.TagEngine); e != "" {
				ax.Engine = e
			}
		}
	}
	return ax
}

// RemapContext converts axes into a remap context.
func (d *Definition) RemapContext(ax Axes) remap.Context {
	return remap.NewContext(ax.Brand, ax.Model)
}

// BaseCode returns the code identifying the configured vehicle.
func (d *Definition) BaseCode(sel *selection.Selection, tbl *pricetable.Table, ax Axes) (string, bool) {
	model, ok := sel.ModelOption()
	if !ok {
		return "", false
	}
	if d.BaseCodeFromTable {
		if code, ok := tbl.BaseCode(ax.Model, ax.Brand, ax.Trans, ax.Engine); ok {
			return code, true
		}
	}
	return model.Code, true
}

// ActiveFees returns the fee rules whose trigger fires for the selected codes.
func (d *Definition) ActiveFees(selectedCodes []string) []FeeRule {
	var out []FeeRule
	for _, f := range d.Fees {
		if f.Trigger == nil || f.Trigger.Fires(selectedCodes) {
			out = append(out, f)
		}
	}
	return out
}

// Registry looks product definitions up by key.
type Registry struct {
	defs map[string]*Definition
}

// NewRegistry registers the given definitions.
func NewRegistry(defs ...*Definition) (*Registry, error) {
	r := &Registry{defs: map[string]*Definition{}}
	for _, d := range defs {
		key := strings.ToLower(strings.TrimSpace(d.Key))
		if key == "" || d.Catalog == nil {
			return nil, fmt.Errorf("product: definition %q is incomplete", d.Key)
		}
		if _, dup := r.defs[key]; dup {
			return nil, fmt.Errorf("product: duplicate key %q", key)
		}
		r.defs[key] = d
	}
	return r, nil
}

// Default returns the registry of the built-in product lines.
func Default() *Registry {
	r, err := NewRegistry(Pegasus(), Womondo())
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns the definition for key.
func (r *Registry) Get(key string) (*Definition, error) {
	d, ok := r.defs[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProduct, key)
	}
	return d, nil
}

// Keys lists registered product keys in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.defs))
	for k := range r.defs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
