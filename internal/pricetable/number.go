package pricetable

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseLoose parses a gross price cell written in either European ("99.790,00")
// or plain ("1234.5") notation. Blank, non-numeric and negative cells report
// false: callers keep the price they already have instead of using zero.
func ParseLoose(raw string) (decimal.Decimal, bool) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case unicode.IsSpace(r):
		case r >= '0' && r <= '9', r == '.', r == ',':
			b.WriteRune(r)
		case r == '-' || r == '\u2212':
			return decimal.Decimal{}, false
		}
	}
	s := b.String()
	if !strings.ContainsAny(s, "0123456789") {
		return decimal.Decimal{}, false
	}

	switch {
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
		s = strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	case strings.Contains(s, "."):
		ix := strings.Index(s, ".")
		whole := strings.TrimLeft(s[:ix], "0")
		if len(s)-ix-1 == 3 && whole != "" {
			s = s[:ix] + s[ix+1:]
		}
	}
	s = strings.TrimSuffix(s, ".")
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}

	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Decimal{}, false
	}
	return d, true
}
