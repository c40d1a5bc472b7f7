package aggregate

import (
	"fmt"
	"strings"
	"time"
)

var (
	ruleLine  = strings.Repeat("─", 29)
	closeLine = strings.Repeat("=", 29)
)

// SummaryMeta is the context printed in the summary header.
type SummaryMeta struct {
	Date         time.Time
	CountryLabel string
}

// Summary renders the quote as plain text. Every amount comes from the quote,
// so the text always agrees with Total.
func Summary(q Quote, meta SummaryMeta) string {
	def := q.def
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	name := q.Product
	if def != nil {
		name = def.Name
	}
	line("=== %s CONFIGURATION ===", strings.ToUpper(name))
	line("Date: %s", meta.Date.Format("02.01.2006"))
	if label := strings.TrimSpace(meta.CountryLabel); label != "" {
		line("Country: %s (%s)", label, q.Column)
	}
	line("%s", ruleLine)

	if q.Model != nil {
		label := q.Model.Name
		if def != nil && def.ModelLabel != "" {
			label = def.ModelLabel + " " + label
		}
		line("MODEL: %s", label)
		line("Base Price: %s", FormatEuro(q.Model.Price))
		if q.Model.Addon != nil {
			line("  + %s: %s", q.Model.Addon.Name, FormatEuro(q.Model.Addon.Price))
		}
	} else {
		line("MODEL: N/A")
	}
	b.WriteByte('\n')

	if def != nil {
		for _, cat := range def.Catalog.Categories() {
			var items []Line
			for _, l := range q.Lines {
				if l.Category == cat.ID {
					items = append(items, l)
				}
			}
			if len(items) == 0 {
				continue
			}
			line("%s:", strings.ToUpper(cat.Title))
			for _, l := range items {
				line("  • %s: %s", l.Name, FormatEuro(l.Price))
				if l.Addon != nil {
					line("    + %s: %s", l.Addon.Name, FormatEuro(l.Addon.Price))
				}
			}
			b.WriteByte('\n')
		}
	}

	if len(q.Fees) > 0 {
		line("FEES:")
		for _, f := range q.Fees {
			line("  • %s: %s", f.Label, FormatEuro(f.Price))
		}
		b.WriteByte('\n')
	}
	if len(q.Extras) > 0 {
		line("SPECIAL EXTRAS:")
		for _, l := range q.Extras {
			line("  • %s: %s", l.Name, FormatEuro(l.Gross()))
		}
		b.WriteByte('\n')
	}

	line("%s", ruleLine)
	line("TOTAL (incl. VAT): %s", FormatEuro(q.Total()))
	b.WriteString(closeLine)
	return b.String()
}
