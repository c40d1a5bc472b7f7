// Package aggregate derives totals, the human readable summary and the export
// payload from a selection. Nothing here mutates the selection.
package aggregate

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/camper-configurator/internal/catalog"
	"github.com/noah-isme/camper-configurator/internal/pricetable"
	"github.com/noah-isme/camper-configurator/internal/pricing"
	"github.com/noah-isme/camper-configurator/internal/product"
	"github.com/noah-isme/camper-configurator/internal/selection"
)

// AddonLine is the active sub-option of a line.
type AddonLine struct {
	ID     string          `json:"id"`
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Source pricing.Source  `json:"source"`
}

// Line is one active option with its resolved price.
type Line struct {
	OptionID string          `json:"id"`
	Category string          `json:"category"`
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Source   pricing.Source  `json:"source"`
	Addon    *AddonLine      `json:"addon,omitempty"`
}

// Gross is the line price including its addon.
func (l Line) Gross() decimal.Decimal {
	if l.Addon == nil {
		return l.Price
	}
	return l.Price.Add(l.Addon.Price)
}

// FeeLine is an active auto-fee.
type FeeLine struct {
	Code   string          `json:"code"`
	Label  string          `json:"label"`
	Price  decimal.Decimal `json:"price"`
	Source pricing.Source  `json:"source"`
}

// Input is everything a quote is computed from. Table may be nil, in which
// case catalog prices and fee fallbacks apply.
type Input struct {
	Product   *product.Definition
	Selection *selection.Selection
	Table     *pricetable.Table
	Column    string
	Country   string
}

// Quote is a priced snapshot of a selection.
type Quote struct {
	Product  string            `json:"product"`
	Country  string            `json:"country"`
	Column   string            `json:"column"`
	Axes     product.Axes      `json:"axes"`
	BaseCode string            `json:"base_code,omitempty"`
	Model    *Line             `json:"model,omitempty"`
	Lines    []Line            `json:"lines"`
	Extras   []Line            `json:"extras"`
	Fees     []FeeLine         `json:"fees"`
	Totals   pricing.Breakdown `json:"totals"`

	def *product.Definition
}

// Total is the gross configuration total.
func (q Quote) Total() decimal.Decimal { return q.Totals.Total }

// Build prices the selection against one table snapshot.
func Build(in Input) Quote {
	def, sel := in.Product, in.Selection
	ax := def.Axes(sel)
	r := pricing.Resolver{Table: in.Table, Column: in.Column, Model: ax.Model}

	q := Quote{
		Product: def.Key,
		Country: in.Country,
		Column:  in.Column,
		Axes:    ax,
		def:     def,
	}
	if code, ok := def.BaseCode(sel, in.Table, ax); ok {
		q.BaseCode = code
	}

	var selected []string
	line := func(o catalog.Option) Line {
		p := r.Option(o)
		l := Line{OptionID: o.ID, Category: o.Category, Code: o.Code, Name: o.Name, Price: p.Amount, Source: p.Source}
		selected = append(selected, o.Code)
		if ad, ok := sel.AddonOf(o.ID); ok {
			ap := r.Addon(ad)
			l.Addon = &AddonLine{ID: ad.ID, Code: ad.Code, Name: ad.Name, Price: ap.Amount, Source: ap.Source}
			if ad.Code != "" {
				selected = append(selected, ad.Code)
			}
		}
		return l
	}

	var optionPrices, extraPrices, feePrices []decimal.Decimal
	for _, o := range sel.Active() {
		l := line(o)
		optionPrices = append(optionPrices, l.Price)
		if l.Addon != nil {
			optionPrices = append(optionPrices, l.Addon.Price)
		}
		if def.Catalog.RoleOf(o.ID) == catalog.RoleModel {
			model := l
			q.Model = &model
			continue
		}
		q.Lines = append(q.Lines, l)
	}
	for _, o := range sel.Extras() {
		l := line(o)
		extraPrices = append(extraPrices, l.Gross())
		q.Extras = append(q.Extras, l)
	}
	for _, f := range def.ActiveFees(selected) {
		p := r.Fee(f.Code, f.Fallback)
		q.Fees = append(q.Fees, FeeLine{Code: f.Code, Label: f.Label, Price: p.Amount, Source: p.Source})
		feePrices = append(feePrices, p.Amount)
	}
	q.Totals = pricing.Compute(optionPrices, extraPrices, feePrices)
	return q
}
