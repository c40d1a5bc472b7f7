package product_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/camper-configurator/internal/product"
	"github.com/noah-isme/camper-configurator/internal/remap"
	"github.com/noah-isme/camper-configurator/internal/selection"
)

func TestRegistry(t *testing.T) {
	reg := product.Default()
	require.Equal(t, []string{"pegasus", "womondo"}, reg.Keys())

	def, err := reg.Get(" Pegasus ")
	require.NoError(t, err)
	require.Equal(t, "PEGASUS", def.Catalog.Name())

	_, err = reg.Get("nope")
	require.ErrorIs(t, err, product.ErrUnknownProduct)

	_, err = product.NewRegistry(product.Pegasus(), product.Pegasus())
	require.Error(t, err)
}

func TestFeeTriggers(t *testing.T) {
	w := product.Womondo()
	require.Empty(t, w.ActiveFees([]string{"CH0775"}))
	fees := w.ActiveFees([]string{"CH0775", "LENG0L3"})
	require.Len(t, fees, 1)
	require.Equal(t, product.WomondoTransportCode, fees[0].Code)

	p := product.Pegasus()
	require.Len(t, p.ActiveFees(nil), 1)
}

func TestWomondoAxes(t *testing.T) {
	def := product.Womondo()
	sel := selection.New(def.Catalog)
	require.Equal(t, product.Axes{Model: 540, Brand: "FIAT", Trans: "MANUAL", Engine: "140HP"}, def.Axes(sel))

	_, err := sel.Toggle("opel-auto-180")
	require.NoError(t, err)
	_, err = sel.Toggle("w636")
	require.NoError(t, err)
	ax := def.Axes(sel)
	require.Equal(t, product.Axes{Model: 636, Brand: "OPEL", Trans: "AUTOMATIC", Engine: "180HP"}, ax)
	require.Equal(t, remap.L3L4, def.RemapContext(ax).Length)
	require.True(t, def.IsAxisCategory("chassis"))
}

func TestWomondoRemapTable(t *testing.T) {
	tbl := product.Womondo().Remap
	ctx := remap.NewContext("CITROEN", 540)

	code, err := tbl.Remap("CH0776", ctx)
	require.NoError(t, err)
	require.Equal(t, "CH0781", code)

	code, err = tbl.Remap("CH0776", remap.NewContext("OPEL", 600))
	require.NoError(t, err)
	require.Equal(t, "CH0784", code)

	code, err = tbl.Remap("CH0781", remap.NewContext("FIAT", 636))
	require.NoError(t, err)
	require.Equal(t, "CH0776", code, "already remapped codes follow a brand change")

	code, err = tbl.Remap("COLMETAL", ctx)
	require.NoError(t, err)
	require.Equal(t, "COLMETAL", code)
}
