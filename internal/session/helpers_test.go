package session_test

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/camper-configurator/internal/catalog"
	"github.com/noah-isme/camper-configurator/internal/product"
	"github.com/noah-isme/camper-configurator/internal/remap"
)

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func eur(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func requires(ids ...string) []catalog.Constraint {
	return []catalog.Constraint{catalog.RequiresOptions{IDs: ids}}
}

// demoDefinition is a small product line covering models, a brand axis,
// dependency chains and one remapped pack.
func demoDefinition() *product.Definition {
	cat := catalog.MustNew("DEMO",
		catalog.Category{
			ID: "models", Title: "Model", Cardinality: catalog.ExactlyOne, Role: catalog.RoleModel,
			Options: []catalog.Option{
				{ID: "base", Code: "BASE", Name: "BASE", Price: eur(10000), Tags: map[string]string{catalog.TagModel: "540"}},
				{ID: "pro", Code: "PRO", Name: "PRO", Price: eur(12000), Tags: map[string]string{catalog.TagModel: "636"}},
			},
		},
		catalog.Category{
			ID: "brands", Title: "Brand", Cardinality: catalog.ExactlyOne,
			Options: []catalog.Option{
				{ID: "brand-a", Code: "BRA", Name: "A", Tags: map[string]string{catalog.TagBrand: "A"}},
				{ID: "brand-b", Code: "BRB", Name: "B", Tags: map[string]string{catalog.TagBrand: "B"}},
			},
		},
		catalog.Category{
			ID: "upgrades", Title: "Upgrades", Cardinality: catalog.Any,
			Options: []catalog.Option{
				{ID: "auto", Code: "AUTO", Name: "Automatic", Price: eur(1000)},
				{ID: "190hp", Code: "190HP", Name: "190 hp", Constraints: requires("auto")},
			},
		},
		catalog.Category{
			ID: "chain", Title: "Chain", Cardinality: catalog.Any,
			Options: []catalog.Option{
				{ID: "a", Code: "CA"},
				{ID: "b", Code: "CB", Constraints: requires("a")},
				{ID: "c", Code: "CC", Constraints: requires("b")},
			},
		},
		catalog.Category{
			ID: "packs", Title: "Packs", Cardinality: catalog.Any,
			Options: []catalog.Option{
				{ID: "drv", Code: "DRV", Name: "Drivetrain pack"},
				{ID: "x1", Code: "X1", Name: "X1 kit", Price: eur(450)},
			},
		},
	)
	drivetrain := remap.Kind("drivetrain")
	return &product.Definition{
		Key:            "demo",
		Name:           "DEMO",
		Source:         "demo-configurator",
		Catalog:        cat,
		DefaultColumn:  "DE",
		DefaultCountry: "GERMANY",
		DefaultAxes:    product.Axes{Brand: "A"},
		AxisCategories: []string{"brands"},
		Remap: remap.MustTable([]remap.Entry{
			{Kind: drivetrain, Brand: "A", Length: remap.L2, Code: "A-DRV-L2"},
			{Kind: drivetrain, Brand: "B", Length: remap.L2, Code: "B-DRV-L2"},
		}, map[string]remap.Kind{"DRV": drivetrain}),
	}
}
