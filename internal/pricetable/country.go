package pricetable

import (
	"regexp"
	"sort"
	"strings"
)

// DefaultColumn is used when a requested country column is missing.
const DefaultColumn = "DE"

var countryColumns = map[string]string{
	"GERMANY":        "DE",
	"AUSTRIA":        "AT",
	"BELGIUM":        "BE",
	"BULGARIA":       "BG",
	"CROATIA":        "HR",
	"CYPRUS":         "CY",
	"CZECH REPUBLIC": "CZ",
	"DENMARK":        "DK",
	"ESTONIA":        "EE",
	"FINLAND":        "FI",
	"FRANCE":         "FR",
	"GREECE":         "GR",
	"HUNGARY":        "HU",
	"ITALY":          "IT",
	"NETHERLANDS":    "NL",
	"POLAND":         "PL",
	"PORTUGAL":       "PT",
	"ROMANIA":        "RO",
	"SLOVENIA":       "SI",
	"SPAIN":          "ES",
	"SWEDEN":         "SE",
}

var (
	labelDigits = regexp.MustCompile(`\s*\d.*$`)
	labelVAT    = regexp.MustCompile(`(?i)\s*VAT.*$`)
)

// CleanCountryLabel strips the VAT rate decoration a country picker shows, so
// "Germany 19% VAT" becomes "GERMANY".
func CleanCountryLabel(label string) string {
	s := strings.TrimSpace(strings.ReplaceAll(label, "\u00a0", " "))
	s = strings.TrimSpace(labelDigits.ReplaceAllString(s, ""))
	s = strings.TrimSpace(labelVAT.ReplaceAllString(s, ""))
	return strings.ToUpper(s)
}

// CountryColumn maps a country label to its column key.
func CountryColumn(label string) (string, bool) {
	col, ok := countryColumns[CleanCountryLabel(label)]
	return col, ok
}

// Countries lists the known country labels alphabetically.
func Countries() []string {
	out := make([]string, 0, len(countryColumns))
	for label := range countryColumns {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// ColumnFor resolves the column used for a country label: the mapped key, then
// the label itself as a column header, then fallback, then the first column.
// It only returns false for a table without price columns.
func (t *Table) ColumnFor(label, fallback string) (string, bool) {
	if t == nil || len(t.columns) == 0 {
		return "", false
	}
	candidates := []string{}
	if col, ok := CountryColumn(label); ok {
		candidates = append(candidates, col)
	}
	candidates = append(candidates, CleanCountryLabel(label), label)
	if strings.TrimSpace(fallback) == "" {
		fallback = DefaultColumn
	}
	candidates = append(candidates, fallback)
	for _, c := range candidates {
		if key := NormalizeHeader(c); key != "" && t.HasColumn(key) {
			return key, true
		}
	}
	return t.columns[0], true
}
