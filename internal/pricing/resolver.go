// Package pricing resolves catalog prices against the active price table.
package pricing

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/camper-configurator/internal/catalog"
	"github.com/noah-isme/camper-configurator/internal/pricetable"
)

// Source tells where a resolved price came from.
type Source string

const (
	FromTable   Source = "table"
	FromCatalog Source = "catalog"
	FromDefault Source = "default"
)

// Price is a resolved gross price.
type Price struct {
	Amount decimal.Decimal `json:"amount"`
	Source Source          `json:"source"`
}

// Resolver prices options against one table snapshot and column. A code with
// no table entry keeps its catalog price; it never becomes free. The zero
// Resolver prices everything from the catalog.
type Resolver struct {
	Table  *pricetable.Table
	Column string
	// Model is the model number variant deltas are computed for.
	Model int
}

// Option resolves an option's price.
func (r Resolver) Option(o catalog.Option) Price {
	return r.resolve(o.Code, o.Tag(catalog.TagModel), o.Pricing, o.Price)
}

// Addon resolves an addon's price.
func (r Resolver) Addon(a catalog.Addon) Price {
	return r.resolve(a.Code, a.Tag(catalog.TagModel), a.Pricing, a.Price)
}

// Fee resolves an auto-fee by code, falling back to a fixed amount.
func (r Resolver) Fee(code string, fallback decimal.Decimal) Price {
	if p, ok := r.Table.PriceOf(code, r.Column); ok {
		return Price{Amount: p, Source: FromTable}
	}
	return Price{Amount: fallback, Source: FromDefault}
}

func (r Resolver) resolve(code, modelTag string, rule catalog.PriceRule, base decimal.Decimal) Price {
	if r.Table != nil {
		if p, ok := r.lookup(code, modelTag, rule); ok {
			return Price{Amount: p, Source: FromTable}
		}
	}
	return Price{Amount: base, Source: FromCatalog}
}

func (r Resolver) lookup(code, modelTag string, rule catalog.PriceRule) (decimal.Decimal, bool) {
	switch rule := rule.(type) {
	case catalog.PriceByVariant:
		return r.Table.VariantPrice(ModelNumber(modelTag), rule.Trans, rule.Engine, r.Column)
	case catalog.PriceByVariantDelta:
		model := r.Model
		if model == 0 {
			model = ModelNumber(modelTag)
		}
		hi, ok := r.Table.VariantPrice(model, rule.Trans, rule.Engine, r.Column)
		if !ok {
			return decimal.Decimal{}, false
		}
		lo, ok := r.Table.VariantPrice(model, rule.BaseTrans, rule.BaseEngine, r.Column)
		if !ok {
			return decimal.Decimal{}, false
		}
		delta := hi.Sub(lo)
		if delta.IsNegative() {
			return decimal.Decimal{}, false
		}
		return delta, true
	default:
		return r.Table.PriceOf(code, r.Column)
	}
}

// ModelNumber extracts the digits of a model tag such as "600" or "W600".
func ModelNumber(tag string) int {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, tag)
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}
