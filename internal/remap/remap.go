// Package remap translates generic option codes into the brand and body
// length specific part numbers the ordering system expects.
package remap

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrDegradedMapping marks a classified code with no canonical entry for the
// requested brand and length. The generic code is used instead.
var ErrDegradedMapping = errors.New("remap: no canonical code for context")

// Kind is a family of interchangeable parts, e.g. a drivetrain pack or a paint.
type Kind string

// LengthClass groups body lengths that share part numbers.
type LengthClass string

const (
	L2        LengthClass = "L2"
	L3L4      LengthClass = "L3L4"
	AnyLength LengthClass = ""
)

// ShortBodyModel is the only model built on the L2 body.
const ShortBodyModel = 540

// LengthClassFor derives the length class from a model number.
func LengthClassFor(model int) LengthClass {
	if model == ShortBodyModel {
		return L2
	}
	return L3L4
}

// Context carries the axes chosen elsewhere in the configuration.
type Context struct {
	Brand  string
	Model  int
	Length LengthClass
}

// NewContext builds a context with the length class derived from model.
func NewContext(brand string, model int) Context {
	return Context{Brand: strings.ToUpper(strings.TrimSpace(brand)), Model: model, Length: LengthClassFor(model)}
}

// Entry is one canonical code for a kind, brand and length. AnyLength entries
// apply to every length class.
type Entry struct {
	Kind   Kind
	Brand  string
	Length LengthClass
	Code   string
}

// DegradedMappingError names the code and context that fell back.
type DegradedMappingError struct {
	Code    string
	Kind    Kind
	Context Context
}

func (e *DegradedMappingError) Error() string {
	return fmt.Sprintf("remap: %s (%s) has no code for brand %q length %q", e.Code, e.Kind, e.Context.Brand, e.Context.Length)
}

func (e *DegradedMappingError) Unwrap() error { return ErrDegradedMapping }

// Degradation records one fallback for reporting.
type Degradation struct {
	Code   string      `json:"code"`
	Kind   Kind        `json:"kind"`
	Brand  string      `json:"brand"`
	Length LengthClass `json:"length"`
}

// Degradation converts the error into a plain record.
func (e *DegradedMappingError) Degradation() Degradation {
	return Degradation{Code: e.Code, Kind: e.Kind, Brand: e.Context.Brand, Length: e.Context.Length}
}

type key struct {
	kind   Kind
	brand  string
	length LengthClass
}

// Table is an immutable remap table.
type Table struct {
	canonical map[key]string
	kindOf    map[string]Kind
}

// NewTable indexes the entries. Every entry code, plus any alias, classifies
// as its kind, so a code already remapped for one brand can be remapped again
// after the brand changes.
func NewTable(entries []Entry, aliases map[string]Kind) (*Table, error) {
	t := &Table{canonical: map[key]string{}, kindOf: map[string]Kind{}}
	for _, e := range entries {
		code := norm(e.Code)
		if e.Kind == "" || code == "" || strings.TrimSpace(e.Brand) == "" {
			return nil, fmt.Errorf("remap: incomplete entry %+v", e)
		}
		k := key{kind: e.Kind, brand: norm(e.Brand), length: e.Length}
		if prev, dup := t.canonical[k]; dup && prev != code {
			return nil, fmt.Errorf("remap: %s/%s/%s mapped to both %s and %s", e.Kind, k.brand, e.Length, prev, code)
		}
		t.canonical[k] = code
		if err := t.classify(code, e.Kind); err != nil {
			return nil, err
		}
	}
	for code, kind := range aliases {
		if err := t.classify(norm(code), kind); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustTable is NewTable for static definitions.
func MustTable(entries []Entry, aliases map[string]Kind) *Table {
	t, err := NewTable(entries, aliases)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) classify(code string, kind Kind) error {
	if prev, ok := t.kindOf[code]; ok && prev != kind {
		return fmt.Errorf("remap: code %s classified as %s and %s", code, prev, kind)
	}
	t.kindOf[code] = kind
	return nil
}

// KindOf reports the kind of a code.
func (t *Table) KindOf(code string) (Kind, bool) {
	if t == nil {
		return "", false
	}
	k, ok := t.kindOf[norm(code)]
	return k, ok
}

// Kinds lists the known kinds in sorted order.
func (t *Table) Kinds() []Kind {
	if t == nil {
		return nil
	}
	seen := map[Kind]struct{}{}
	for _, k := range t.kindOf {
		seen[k] = struct{}{}
	}
	out := make([]Kind, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Remap returns the canonical code for ctx. Codes of no known kind pass
// through unchanged. A classified code without an entry for ctx also passes
// through, together with a *DegradedMappingError.
func (t *Table) Remap(code string, ctx Context) (string, error) {
	code = norm(code)
	kind, ok := t.KindOf(code)
	if !ok {
		return code, nil
	}
	brand := norm(ctx.Brand)
	length := ctx.Length
	if length == AnyLength && ctx.Model != 0 {
		length = LengthClassFor(ctx.Model)
	}
	if c, ok := t.canonical[key{kind, brand, length}]; ok {
		return c, nil
	}
	if c, ok := t.canonical[key{kind, brand, AnyLength}]; ok {
		return c, nil
	}
	return code, &DegradedMappingError{Code: code, Kind: kind, Context: Context{Brand: brand, Model: ctx.Model, Length: length}}
}

func norm(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
