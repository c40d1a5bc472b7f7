package pricetable

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// DefaultCodeColumn is the header holding each row's product code.
const DefaultCodeColumn = "MO_CODE"

var metadataColumns = map[string]struct{}{
	"MOCODE":      {},
	"MODEL":       {},
	"BRAND":       {},
	"TRANS":       {},
	"ENGINE":      {},
	"PRICE":       {},
	"DESCRIPTION": {},
}

// ParseOptions tunes Parse.
type ParseOptions struct {
	// CodeColumn names the product code header. Defaults to MO_CODE.
	CodeColumn string
	// Delimiter defaults to a comma.
	Delimiter byte
}

// Row is one data row with its descriptive metadata.
type Row struct {
	Code   string
	Model  int
	Brand  string
	Trans  string
	Engine string
	cells  map[string]decimal.Decimal
}

// Price returns the row's gross price in a country column.
func (r Row) Price(column string) (decimal.Decimal, bool) {
	p, ok := r.cells[NormalizeHeader(column)]
	return p, ok
}

// Table is an immutable lookup of gross prices by product code and country
// column. A code whose cell is blank or unparsable is absent from that column.
type Table struct {
	columns  []string
	byColumn map[string]map[string]decimal.Decimal
	rows     []Row
	variants bool
	brands   bool
}

// NormalizeHeader upper-cases a header and drops everything that is not a letter
// or a digit, so "d e", "DE " and "D-E" all resolve to "DE".
func NormalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(h) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " ")))
}

// Parse reads a price sheet whose first record is the header row.
func Parse(r io.Reader, opts ParseOptions) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &SourceError{Op: "read", Retryable: true, Err: err}
	}
	return ParseString(string(raw), opts)
}

// ParseString is Parse for in-memory text.
func ParseString(text string, opts ParseOptions) (*Table, error) {
	codeHeader := NormalizeHeader(opts.CodeColumn)
	if codeHeader == "" {
		codeHeader = NormalizeHeader(DefaultCodeColumn)
	}
	delim := opts.Delimiter
	if delim == 0 {
		delim = ','
	}

	records := splitRecords(text, delim)
	if len(records) == 0 {
		return nil, &SourceError{Op: "parse", Err: fmt.Errorf("price sheet is empty")}
	}
	header := records[0]
	index := map[string]int{}
	for i, h := range header {
		key := NormalizeHeader(h)
		if _, seen := index[key]; !seen {
			index[key] = i
		}
	}
	codeIx, ok := index[codeHeader]
	if !ok {
		return nil, &SourceError{Op: "parse", Err: fmt.Errorf("price sheet has no %s header", opts.codeColumnName())}
	}
	meta := func(name string) int {
		if ix, ok := index[name]; ok {
			return ix
		}
		return -1
	}
	modelIx, brandIx, transIx, engineIx := meta("MODEL"), meta("BRAND"), meta("TRANS"), meta("ENGINE")

	t := &Table{
		byColumn: map[string]map[string]decimal.Decimal{},
		variants: modelIx >= 0 && transIx >= 0 && engineIx >= 0,
		brands:   brandIx >= 0,
	}

	priceCols := map[int]string{}
	for i, h := range header {
		key := NormalizeHeader(h)
		if i == codeIx || key == "" {
			continue
		}
		if _, isMeta := metadataColumns[key]; isMeta {
			continue
		}
		priceCols[i] = key
		if _, exists := t.byColumn[key]; !exists {
			t.columns = append(t.columns, key)
			t.byColumn[key] = map[string]decimal.Decimal{}
		}
	}

	for _, rec := range records[1:] {
		row := Row{
			Code:   upper(cell(rec, codeIx)),
			Model:  digits(cell(rec, modelIx)),
			Brand:  upper(cell(rec, brandIx)),
			Trans:  upper(cell(rec, transIx)),
			Engine: upper(cell(rec, engineIx)),
			cells:  map[string]decimal.Decimal{},
		}
		for i := range header {
			key, ok := priceCols[i]
			if !ok {
				continue
			}
			price, ok := ParseLoose(cell(rec, i))
			if !ok {
				continue
			}
			row.cells[key] = price
			if row.Code != "" {
				t.byColumn[key][row.Code] = price
			}
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

func (o ParseOptions) codeColumnName() string {
	if strings.TrimSpace(o.CodeColumn) == "" {
		return DefaultCodeColumn
	}
	return o.CodeColumn
}

func cell(rec []string, ix int) string {
	if ix < 0 || ix >= len(rec) {
		return ""
	}
	return rec[ix]
}

func digits(s string) int {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0
	}
	return n
}

// Columns returns the normalized country column keys in header order.
func (t *Table) Columns() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.columns...)
}

// HasColumn reports whether the normalized column exists.
func (t *Table) HasColumn(column string) bool {
	if t == nil {
		return false
	}
	_, ok := t.byColumn[NormalizeHeader(column)]
	return ok
}

// Rows returns a copy of the data rows.
func (t *Table) Rows() []Row {
	if t == nil {
		return nil
	}
	return append([]Row(nil), t.rows...)
}

// PriceOf returns the gross price of a code in a column.
func (t *Table) PriceOf(code, column string) (decimal.Decimal, bool) {
	if t == nil {
		return decimal.Decimal{}, false
	}
	col, ok := t.byColumn[NormalizeHeader(column)]
	if !ok {
		return decimal.Decimal{}, false
	}
	p, ok := col[upper(code)]
	return p, ok
}

// VariantPrice returns the price of the first row describing the given model,
// transmission and engine that has a value in the column.
func (t *Table) VariantPrice(model int, trans, engine, column string) (decimal.Decimal, bool) {
	if t == nil || !t.variants {
		return decimal.Decimal{}, false
	}
	trans, engine = upper(trans), upper(engine)
	for _, row := range t.rows {
		if row.Model != model || row.Trans != trans || row.Engine != engine {
			continue
		}
		if p, ok := row.Price(column); ok {
			return p, true
		}
	}
	return decimal.Decimal{}, false
}

// BaseCode returns the product code of the row describing the given vehicle
// variant. Rows with a brand that does not mention the requested brand are
// skipped; rows without a brand match any brand.
func (t *Table) BaseCode(model int, brand, trans, engine string) (string, bool) {
	if t == nil || !t.variants {
		return "", false
	}
	brand, trans, engine = upper(brand), upper(trans), upper(engine)
	for _, row := range t.rows {
		if row.Model != model || row.Trans != trans || row.Engine != engine {
			continue
		}
		if t.brands && row.Brand != "" && !strings.Contains(row.Brand, brand) {
			continue
		}
		if row.Code != "" {
			return row.Code, true
		}
	}
	return "", false
}
