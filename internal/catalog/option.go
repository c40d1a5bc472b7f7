package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Cardinality controls how many options of a category may be active together.
type Cardinality string

const (
	// ExactlyOne replaces the active option when another one is selected.
	ExactlyOne Cardinality = "exactlyOne"
	// Any lets options toggle independently.
	Any Cardinality = "any"
)

// Role tells the aggregator how a category contributes to totals and summaries.
type Role string

const (
	RoleStandard Role = "standard"
	// RoleModel marks the base vehicle category. At most one per catalog.
	RoleModel Role = "model"
	// RoleExtra marks free-floating add-ons listed apart from the equipment.
	RoleExtra Role = "extra"
)

// Well-known tag keys used by remapping and variant pricing.
const (
	TagBrand  = "brand"
	TagModel  = "model"
	TagTrans  = "trans"
	TagEngine = "engine"
)

// Constraint is one dependency rule attached to an option. The concrete types are
// NoConstraint, RequiresOptions and RequiresCategoryChoice; an option holds all of
// its rules and every one must hold.
type Constraint interface {
	isConstraint()
	// References lists the option ids the constraint depends on.
	References() []string
}

// NoConstraint marks an option that is always selectable.
type NoConstraint struct{}

// RequiresOptions is satisfied when every listed option is active.
type RequiresOptions struct {
	IDs []string
}

// RequiresCategoryChoice is satisfied when OptionID is the active choice of its
// category, e.g. an upgrade only offered on one trim.
type RequiresCategoryChoice struct {
	OptionID string
}

func (NoConstraint) isConstraint()           {}
func (RequiresOptions) isConstraint()        {}
func (RequiresCategoryChoice) isConstraint() {}

func (NoConstraint) References() []string { return nil }

func (c RequiresOptions) References() []string {
	return append([]string(nil), c.IDs...)
}

func (c RequiresCategoryChoice) References() []string {
	return []string{c.OptionID}
}

// PriceRule tells the price resolver which price table cell overrides the
// catalog price. A nil rule behaves like PriceByCode.
type PriceRule interface {
	isPriceRule()
}

// PriceByCode looks the option code up in the active country column.
type PriceByCode struct{}

// PriceByVariant reads the row matching the option's model tag and the given
// transmission and engine.
type PriceByVariant struct {
	Trans  string
	Engine string
}

// PriceByVariantDelta prices an add-on as the difference between two variant
// rows of the currently selected model.
type PriceByVariantDelta struct {
	Trans      string
	Engine     string
	BaseTrans  string
	BaseEngine string
}

func (PriceByCode) isPriceRule()         {}
func (PriceByVariant) isPriceRule()      {}
func (PriceByVariantDelta) isPriceRule() {}

// Addon is a sub-option nested under a parent option, e.g. a gearbox variant
// of a chassis brand or a paint colour of a colour card.
type Addon struct {
	ID      string            `json:"id"`
	Parent  string            `json:"parent"`
	Code    string            `json:"code"`
	Name    string            `json:"name"`
	Price   decimal.Decimal   `json:"price"`
	Tags    map[string]string `json:"tags,omitempty"`
	Pricing PriceRule         `json:"-"`
}

// Tag returns the upper-cased tag value or an empty string.
func (a Addon) Tag(key string) string {
	return strings.ToUpper(strings.TrimSpace(a.Tags[key]))
}

// Option is a selectable catalog entry. Options are immutable once the catalog
// is built.
type Option struct {
	ID          string            `json:"id"`
	Category    string            `json:"category"`
	Code        string            `json:"code"`
	Name        string            `json:"name"`
	Price       decimal.Decimal   `json:"price"`
	Constraints []Constraint      `json:"-"`
	Tags        map[string]string `json:"tags,omitempty"`
	Pricing     PriceRule         `json:"-"`
	Addons      []Addon           `json:"addons,omitempty"`
	// AutoSelectFirstAddon selects Addons[0] whenever the option is selected.
	AutoSelectFirstAddon bool `json:"auto_select_first_addon,omitempty"`
}

// Tag returns the upper-cased tag value or an empty string.
func (o Option) Tag(key string) string {
	return strings.ToUpper(strings.TrimSpace(o.Tags[key]))
}

// Category groups related options under one cardinality policy.
type Category struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Cardinality Cardinality `json:"cardinality"`
	Role        Role        `json:"role"`
	Options     []Option    `json:"options"`
}
