package product

import (
	"github.com/noah-isme/camper-configurator/internal/catalog"
	"github.com/noah-isme/camper-configurator/internal/pricetable"
	"github.com/noah-isme/camper-configurator/internal/remap"
)

// Remap kinds of the Womondo chassis packs and paints.
const (
	KindDrive      remap.Kind = "chassis-drive"
	KindTech       remap.Kind = "chassis-tech"
	KindStyle      remap.Kind = "chassis-style"
	KindWhite      remap.Kind = "paint-white"
	KindExpedition remap.Kind = "paint-expedition"
	KindLanzarote  remap.Kind = "paint-lanzarote"
	KindArtense    remap.Kind = "paint-artense"
	KindFerro      remap.Kind = "paint-ferro"
	KindGraphito   remap.Kind = "paint-graphito"
)

// WomondoTransportCode is the auto-fee charged once a body length is chosen.
const WomondoTransportCode = "WOTRANS"

var womondoLengthCodes = []string{"LENG0L2", "LENG0L3", "LENG0L4"}

func womondoRemap() *remap.Table {
	type row struct {
		brand                           string
		drive, tech, styleL3L4, styleL2 string
		white, expedition, lanzarote    string
		artense, ferro, graphito        string
	}
	rows := []row{
		{"FIAT", "CH0775", "CH0774", "CH0776", "CH0777", "CH0320", "CH0327", "CH0328", "CH0323", "CH0329", "CH0321"},
		{"CITROEN", "CH0778", "CH0779", "CH0780", "CH0781", "CH0301", "CH0302", "CH0303", "CH0304", "CH0305", "CH0306"},
		{"OPEL", "CH0782", "CH0783", "CH0784", "CH0785", "CH0350", "CH0351", "CH0352", "CH0353", "CH0354", "CH0355"},
	}
	var entries []remap.Entry
	for _, r := range rows {
		entries = append(entries,
			remap.Entry{Kind: KindDrive, Brand: r.brand, Length: remap.AnyLength, Code: r.drive},
			remap.Entry{Kind: KindTech, Brand: r.brand, Length: remap.AnyLength, Code: r.tech},
			remap.Entry{Kind: KindStyle, Brand: r.brand, Length: remap.L3L4, Code: r.styleL3L4},
			remap.Entry{Kind: KindStyle, Brand: r.brand, Length: remap.L2, Code: r.styleL2},
			remap.Entry{Kind: KindWhite, Brand: r.brand, Length: remap.AnyLength, Code: r.white},
			remap.Entry{Kind: KindExpedition, Brand: r.brand, Length: remap.AnyLength, Code: r.expedition},
			remap.Entry{Kind: KindLanzarote, Brand: r.brand, Length: remap.AnyLength, Code: r.lanzarote},
			remap.Entry{Kind: KindArtense, Brand: r.brand, Length: remap.AnyLength, Code: r.artense},
			remap.Entry{Kind: KindFerro, Brand: r.brand, Length: remap.AnyLength, Code: r.ferro},
			remap.Entry{Kind: KindGraphito, Brand: r.brand, Length: remap.AnyLength, Code: r.graphito},
		)
	}
	return remap.MustTable(entries, nil)
}

func model(id, code string, number string, price int64) catalog.Option {
	o := opt(id, code, "Womondo "+number, price)
	o.Tags = map[string]string{catalog.TagModel: number}
	o.Pricing = catalog.PriceByVariant{Trans: "MANUAL", Engine: "140HP"}
	return o
}

func brand(id, code, name string) catalog.Option {
	o := opt(id, code, name, 0)
	o.Tags = map[string]string{catalog.TagBrand: name}
	o.Addons = []catalog.Addon{
		{
			ID: id + "-auto-140", Code: code + "A14", Name: "Automatic 140HP", Price: eur(3500),
			Tags:    map[string]string{catalog.TagTrans: "AUTOMATIC", catalog.TagEngine: "140HP"},
			Pricing: catalog.PriceByVariantDelta{Trans: "AUTOMATIC", Engine: "140HP", BaseTrans: "MANUAL", BaseEngine: "140HP"},
		},
		{
			ID: id + "-auto-180", Code: code + "A18", Name: "Automatic 180HP", Price: eur(6500),
			Tags:    map[string]string{catalog.TagTrans: "AUTOMATIC", catalog.TagEngine: "180HP"},
			Pricing: catalog.PriceByVariantDelta{Trans: "AUTOMATIC", Engine: "180HP", BaseTrans: "MANUAL", BaseEngine: "140HP"},
		},
	}
	return o
}

func colourCard(id, code, name string, price int64, colours ...catalog.Addon) catalog.Option {
	o := opt(id, code, name, price)
	o.Addons = colours
	o.AutoSelectFirstAddon = true
	return o
}

func paint(id, code, name string) catalog.Addon {
	return catalog.Addon{ID: id, Code: code, Name: name}
}

// Womondo is the van line built on FIAT, CITROEN and OPEL chassis in three
// body lengths. Model prices and automatic gearbox surcharges come from the
// variant rows of the price table; chassis packs and paints are ordered with
// FIAT codes and remapped per brand and length.
func Womondo() *Definition {
	cat := catalog.MustNew("WOMONDO",
		catalog.Category{
			ID: "models", Title: "Model", Cardinality: catalog.ExactlyOne, Role: catalog.RoleModel,
			Options: []catalog.Option{
				model("w540", "LENG0L2", "540", 59990),
				model("w600", "LENG0L3", "600", 63990),
				model("w636", "LENG0L4", "636", 66990),
			},
		},
		catalog.Category{
			ID: "chassis", Title: "Chassis", Cardinality: catalog.ExactlyOne,
			Options: []catalog.Option{
				brand("fiat", "BRFIAT", "FIAT"),
				brand("citroen", "BRCITROEN", "CITROEN"),
				brand("opel", "BROPEL", "OPEL"),
			},
		},
		catalog.Category{
			ID: "chassis-packs", Title: "Chassis packs", Cardinality: catalog.Any,
			Options: []catalog.Option{
				opt("drive-pack", "CH0775", "DRIVE pack", 2490),
				opt("tech-pack", "CH0774", "TECH pack", 1890),
				opt("style-pack", "CH0776", "STYLE pack", 1290),
			},
		},
		catalog.Category{
			ID: "living-packs", Title: "Living packs", Cardinality: catalog.Any,
			Options: []catalog.Option{
				opt("comfort-pack", "LVCOMF01", "COMFORT living pack", 2990),
				opt("offgrid-pack", "LVOFFG01", "OFF-GRID pack", 3490),
				needs(opt("winter-pack", "LVWINT01", "WINTER pack", 1990),
					catalog.RequiresOptions{IDs: []string{"comfort-pack"}}),
			},
		},
		catalog.Category{
			ID: "colour", Title: "Colour", Cardinality: catalog.ExactlyOne,
			Options: []catalog.Option{
				colourCard("base-colour", "COLBASE", "Base colour", 0,
					paint("white", "CH0320", "White")),
				colourCard("standard-colour", "COLSTAND", "Standard colour", 990,
					paint("expedition-grey", "CH0327", "Expedition Grey"),
					paint("lanzarote-grey", "CH0328", "Lanzarote Grey")),
				colourCard("metallic-colour", "COLMETAL", "Metallic colour", 1490,
					paint("artense-grey", "CH0323", "Artense Grey"),
					paint("ferro-grey", "CH0329", "Ferro Grey"),
					paint("graphito-grey", "CH0321", "Graphito Grey")),
			},
		},
		catalog.Category{
			ID: "extras", Title: "Special extras", Cardinality: catalog.Any, Role: catalog.RoleExtra,
			Options: []catalog.Option{
				opt("bike-rack", "EXBIKE01", "Bike rack for 2 bikes", 690),
				opt("mosquito-net", "EXNET001", "Sliding door mosquito net", 390),
				opt("levelling-ramps", "EXRAMP01", "Levelling ramps", 89),
			},
		},
	)
	return &Definition{
		Key:               "womondo",
		Name:              "WOMONDO",
		Source:            "womondo-configurator",
		ModelLabel:        "",
		Catalog:           cat,
		Remap:             womondoRemap(),
		DefaultColumn:     pricetable.DefaultColumn,
		DefaultCountry:    "GERMANY",
		DefaultAxes:       Axes{Brand: "FIAT", Trans: "MANUAL", Engine: "140HP"},
		AxisCategories:    []string{"chassis"},
		BaseCodeFromTable: true,
		Fees: []FeeRule{
			{
				Code:    WomondoTransportCode,
				Label:   "Transport and documents cost",
				Trigger: AnySelectedCode{Codes: womondoLengthCodes},
			},
		},
	}
}
