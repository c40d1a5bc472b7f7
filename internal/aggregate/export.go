package aggregate

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/camper-configurator/internal/remap"
)

// Item is one entry of the structured configuration in a payload.
type Item struct {
	ID    string          `json:"id,omitempty"`
	Code  string          `json:"code"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Addon *Item           `json:"addon,omitempty"`
}

// CategoryItems groups the items of one category.
type CategoryItems struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Items []Item `json:"items"`
}

// Configuration is the structured view of the configuration.
type Configuration struct {
	Model      *Item           `json:"model,omitempty"`
	Categories []CategoryItems `json:"categories"`
	Extras     []Item          `json:"extras,omitempty"`
	Fees       []Item          `json:"fees,omitempty"`
}

// Payload is handed to the submission system. Codes only ever holds canonical
// product codes.
type Payload struct {
	Source        string        `json:"source"`
	Timestamp     time.Time     `json:"timestamp"`
	Product       string        `json:"product"`
	Country       string        `json:"country"`
	CountryCol    string        `json:"countryCol"`
	Codes         []string      `json:"mo_codes"`
	Note          string        `json:"note"`
	TotalGross    float64       `json:"total_gross"`
	Configuration Configuration `json:"configuration"`
}

// Export builds the payload. Codes are the base vehicle code, the active
// options with their addons in selection order after remapping, the extras and
// the fee codes, upper-cased and de-duplicated with the first occurrence kept.
// Codes that fell back to their generic form are reported alongside.
func Export(q Quote, meta SummaryMeta) (Payload, []remap.Degradation) {
	def := q.def
	ctx := def.RemapContext(q.Axes)

	var (
		codes    []string
		degraded []remap.Degradation
		seen     = map[string]struct{}{}
	)
	add := func(code string, mapped bool) {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			return
		}
		if mapped && def.Remap != nil {
			canonical, err := def.Remap.Remap(code, ctx)
			var dm *remap.DegradedMappingError
			if errors.As(err, &dm) {
				degraded = append(degraded, dm.Degradation())
			}
			code = canonical
		}
		if _, dup := seen[code]; dup {
			return
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}

	add(q.BaseCode, false)
	for _, l := range q.Lines {
		if def.IsAxisCategory(l.Category) {
			continue
		}
		add(l.Code, true)
		if l.Addon != nil {
			add(l.Addon.Code, true)
		}
	}
	for _, l := range q.Extras {
		add(l.Code, true)
		if l.Addon != nil {
			add(l.Addon.Code, true)
		}
	}
	for _, f := range q.Fees {
		add(f.Code, false)
	}
	if codes == nil {
		codes = []string{}
	}

	total, _ := q.Total().Round(2).Float64()
	return Payload{
		Source:        def.Source,
		Timestamp:     meta.Date.UTC(),
		Product:       def.Key,
		Country:       meta.CountryLabel,
		CountryCol:    q.Column,
		Codes:         codes,
		Note:          Summary(q, meta),
		TotalGross:    total,
		Configuration: configuration(q),
	}, degraded
}

func item(l Line) Item {
	it := Item{ID: l.OptionID, Code: l.Code, Name: l.Name, Price: l.Price}
	if l.Addon != nil {
		it.Addon = &Item{ID: l.Addon.ID, Code: l.Addon.Code, Name: l.Addon.Name, Price: l.Addon.Price}
	}
	return it
}

func configuration(q Quote) Configuration {
	var c Configuration
	if q.Model != nil {
		m := item(*q.Model)
		c.Model = &m
	}
	for _, cat := range q.def.Catalog.Categories() {
		group := CategoryItems{ID: cat.ID, Title: cat.Title}
		for _, l := range q.Lines {
			if l.Category == cat.ID {
				group.Items = append(group.Items, item(l))
			}
		}
		if len(group.Items) > 0 {
			c.Categories = append(c.Categories, group)
		}
	}
	for _, l := range q.Extras {
		c.Extras = append(c.Extras, item(l))
	}
	for _, f := range q.Fees {
		c.Fees = append(c.Fees, Item{Code: f.Code, Name: f.Label, Price: f.Price})
	}
	return c
}
