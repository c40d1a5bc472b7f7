package product

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/camper-configurator/internal/catalog"
	"github.com/noah-isme/camper-configurator/internal/pricetable"
)

func eur(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func opt(id, code, name string, price int64) catalog.Option {
	return catalog.Option{ID: id, Code: code, Name: name, Price: eur(price)}
}

func needs(o catalog.Option, cons ...catalog.Constraint) catalog.Option {
	o.Constraints = cons
	return o
}

// Pegasus is the Mercedes based Pegasus line. Every option has a fixed code;
// transport is always charged.
func Pegasus() *Definition {
	cat := catalog.MustNew("PEGASUS",
		catalog.Category{
			ID: "models", Title: "Model", Cardinality: catalog.ExactlyOne, Role: catalog.RoleModel,
			Options: []catalog.Option{
				opt("regular", "P3GR3G", "REGULAR", 99790),
				opt("pro", "P3GPR0", "PRO", 115390),
			},
		},
		catalog.Category{
			ID: "upgrades", Title: "Upgrades", Cardinality: catalog.Any,
			Options: []catalog.Option{
				opt("auto-gearbox", "UP4U70", "Automatic gearbox", 2999),
				needs(opt("190hp", "UP190HP", "190 hp upgrade (only with automatic gearbox)", 4299),
					catalog.RequiresOptions{IDs: []string{"auto-gearbox"}}),
				needs(opt("4x4", "UP4X4", "4×4 drive option (only with automatic, 190 hp and PRO)", 8499),
					catalog.RequiresOptions{IDs: []string{"auto-gearbox", "190hp"}},
					catalog.RequiresCategoryChoice{OptionID: "pro"}),
				opt("airmatic", "UP41RM47", "AIRMATIC air suspension Mercedes-Benz", 4099),
			},
		},
		catalog.Category{
			ID: "colours", Title: "Colour", Cardinality: catalog.ExactlyOne,
			Options: []catalog.Option{
				opt("selenit-grey", "C0L53L3N", "Selenit Grey", 1999),
				opt("tenorit-grey", "C0L73N0R", "Tenorit Grey", 1999),
				opt("obsidian-black", "C0L0B51D", "Obsidian Black", 1999),
				opt("blue-grey", "C0LBLU3G", "Blue Grey", 899),
				opt("pebble-grey", "C0LP3BBL", "Pebble Grey", 899),
				opt("white", "C0LWH173", "White (standard)", 0),
			},
		},
		catalog.Category{
			ID: "packages", Title: "Packages", Cardinality: catalog.Any,
			Options: []catalog.Option{
				opt("popup-roof", "PKGP0PUP", "POP-UP roof (extra sleeping area, double bed 120×200 with mattress)", 9899),
				opt("smart-tv", "PKG5M4R7", "Smart TV package (Smart TV / bracket / 4G LTE antenna + router kit)", 1999),
				opt("winter", "PKGW1N73", "Winter Package (Truma 6D + 2kW electric heating, high altitude setup, partly insulated driver cabin, heated grey water tank)", 1499),
				opt("offroad", "PKG0FFR0", "Off Road Pack", 8999),
				opt("offroad-popup", "PKG0FCL5", "Off Road pack with Pop-up Roof (pop-up roof not included)", 6999),
				opt("side-extension", "0P751D33", "Side extension sleeping area (left + right)", 3999),
				opt("airline", "0P741RL1", "Airline system", 0),
			},
		},
		catalog.Category{
			ID: "equipment", Title: "Additional equipment", Cardinality: catalog.Any,
			Options: []catalog.Option{
				opt("ext-gas", "3Q3X7G45", "External gas connection", 249),
				opt("ext-shower", "3Q3X75H0", "External hot & cold shower connection", 249),
				opt("isofix", "3Q150F1X", "Isofix", 249),
				opt("tow-hook", "3Q70WH00", "Tow hook", 1099),
				opt("extra-bed", "3Q3X7R4B", "Extra bed in the dining area", 999),
				opt("grey-tank-heat", "3QGR3YW4", "Heating of grey water tank", 499),
				opt("back-window", "3QB4CKD0", "Back door window 500×450 (per side)", 489),
				opt("heated-seats", "3QH3473D", "Heated seats", 599),
				opt("perfectvan-toilet", "3QP3RF3C", "PerfectVan separation toilet", 2089),
				opt("clesana-toilet", "3QCL354N", "Clesana toilet", 2199),
				opt("truma-4de", "3Q7RUM44", "Truma 4DE heating", 599),
				opt("alu-wheels", "3Q4LUWH3", `16" ALU wheels (Dezent KH BLACK)`, 1399),
				opt("roof-ac", "3QR00F4C", "2200W roof air conditioner", 2499),
				opt("alarm-premium", "3Q4L4RM7", "Premium alarm system Thitronik", 1099),
				opt("profinder", "3Q7H17R0", "Thitronik Profinder", 699),
				opt("alarm-standard", "3Q4L4DTB", "Thitronik standard alarm system, door only", 799),
			},
		},
	)
	return &Definition{
		Key:            "pegasus",
		Name:           "PEGASUS",
		Source:         "pegasus-configurator",
		ModelLabel:     "Womondo Pegasus",
		Catalog:        cat,
		DefaultColumn:  pricetable.DefaultColumn,
		DefaultCountry: "GERMANY",
		Fees: []FeeRule{
			{Code: "7R4N5P0R", Label: "Transport costs", Fallback: eur(1789), Trigger: Always{}},
		},
	}
}
