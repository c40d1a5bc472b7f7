package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/camper-configurator/internal/catalog"
	"github.com/noah-isme/camper-configurator/internal/pricetable"
	"github.com/noah-isme/camper-configurator/internal/pricing"
)

const sheet = "MO_CODE,MODEL,TRANS,ENGINE,DE,SI\n" +
	"X1,,,,500,\n" +
	"LENG0L2,540,MANUAL,140HP,50000,51000\n" +
	"LENG0L2A,540,AUTOMATIC,140HP,53000,53500\n" +
	"LENG0L2B,540,AUTOMATIC,180HP,56000,\n" +
	"LENG0L3,600,MANUAL,140HP,55000,56000\n" +
	"LENG0L3A,600,AUTOMATIC,140HP,54000,58000\n" +
	"WOTRANS,,,,1290,\n"

func table(t *testing.T) *pricetable.Table {
	t.Helper()
	tbl, err := pricetable.ParseString(sheet, pricetable.ParseOptions{})
	require.NoError(t, err)
	return tbl
}

func TestResolveByCodeFallsBackToCatalog(t *testing.T) {
	opt := catalog.Option{Code: "X1", Price: decimal.NewFromInt(450)}
	tbl := table(t)

	de := pricing.Resolver{Table: tbl, Column: "DE"}.Option(opt)
	require.Equal(t, pricing.FromTable, de.Source)
	require.Equal(t, "500", de.Amount.String())

	si := pricing.Resolver{Table: tbl, Column: "SI"}.Option(opt)
	require.Equal(t, pricing.FromCatalog, si.Source)
	require.Equal(t, "450", si.Amount.String())

	none := pricing.Resolver{}.Option(opt)
	require.Equal(t, "450", none.Amount.String())
}

func TestResolveVariantAndDelta(t *testing.T) {
	tbl := table(t)
	model := catalog.Option{
		Code: "LENG0L3", Price: decimal.NewFromInt(1),
		Tags:    map[string]string{catalog.TagModel: "600"},
		Pricing: catalog.PriceByVariant{Trans: "MANUAL", Engine: "140HP"},
	}
	p := pricing.Resolver{Table: tbl, Column: "SI"}.Option(model)
	require.Equal(t, "56000", p.Amount.String())

	auto140 := catalog.Addon{
		Code: "AUTO140", Price: decimal.NewFromInt(3000),
		Pricing: catalog.PriceByVariantDelta{Trans: "AUTOMATIC", Engine: "140HP", BaseTrans: "MANUAL", BaseEngine: "140HP"},
	}
	p = pricing.Resolver{Table: tbl, Column: "DE", Model: 540}.Addon(auto140)
	require.Equal(t, pricing.FromTable, p.Source)
	require.Equal(t, "3000", p.Amount.String())

	p = pricing.Resolver{Table: tbl, Column: "SI", Model: 600}.Addon(auto140)
	require.Equal(t, "2000", p.Amount.String())

	// a cheaper automatic row is treated as missing data
	p = pricing.Resolver{Table: tbl, Column: "DE", Model: 600}.Addon(auto140)
	require.Equal(t, pricing.FromCatalog, p.Source)

	auto180 := catalog.Addon{
		Code: "AUTO180", Price: decimal.NewFromInt(6500),
		Pricing: catalog.PriceByVariantDelta{Trans: "AUTOMATIC", Engine: "180HP", BaseTrans: "MANUAL", BaseEngine: "140HP"},
	}
	p = pricing.Resolver{Table: tbl, Column: "SI", Model: 540}.Addon(auto180)
	require.Equal(t, pricing.FromCatalog, p.Source)
	require.Equal(t, "6500", p.Amount.String())
}

func TestFee(t *testing.T) {
	r := pricing.Resolver{Table: table(t), Column: "DE"}
	require.Equal(t, "1290", r.Fee("wotrans", decimal.Zero).Amount.String())
	p := pricing.Resolver{Table: table(t), Column: "SI"}.Fee("WOTRANS", decimal.Zero)
	require.Equal(t, pricing.FromDefault, p.Source)
	require.True(t, p.Amount.IsZero())
}

func TestCompute(t *testing.T) {
	b := pricing.Compute(
		[]decimal.Decimal{decimal.NewFromInt(12000), decimal.NewFromInt(1000)},
		[]decimal.Decimal{decimal.NewFromInt(-5)},
		[]decimal.Decimal{decimal.RequireFromString("1789.50")},
	)
	require.Equal(t, "13000", b.Options.String())
	require.True(t, b.Extras.IsZero())
	require.Equal(t, "14789.5", b.Total.String())
	require.Equal(t, 600, pricing.ModelNumber("W600"))
	require.Zero(t, pricing.ModelNumber("none"))
}
