package pricing

import "github.com/shopspring/decimal"

// Breakdown aggregates the components of a configuration total.
type Breakdown struct {
	Options decimal.Decimal `json:"options"`
	Extras  decimal.Decimal `json:"extras"`
	Fees    decimal.Decimal `json:"fees"`
	Total   decimal.Decimal `json:"total"`
}

// Compute sums each group of line amounts. Negative lines are ignored and the
// total is never negative.
func Compute(options, extras, fees []decimal.Decimal) Breakdown {
	b := Breakdown{
		Options: sum(options),
		Extras:  sum(extras),
		Fees:    sum(fees),
	}
	b.Total = b.Options.Add(b.Extras).Add(b.Fees)
	return b
}

func sum(lines []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		if l.IsNegative() {
			continue
		}
		total = total.Add(l)
	}
	return total
}
