package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned for unknown option, addon or category ids.
	ErrNotFound = errors.New("catalog: not found")
	// ErrInvalid is returned when a catalog definition is inconsistent.
	ErrInvalid = errors.New("catalog: invalid definition")
)

// Catalog is the read-only description of a product's option groups. It is safe
// to share between sessions.
type Catalog struct {
	name       string
	categories []Category
	categoryIx map[string]int
	options    map[string]Option
	addons     map[string]Addon
	modelCat   string
}

// New validates the categories and builds an immutable catalog.
func New(name string, categories ...Category) (*Catalog, error) {
	c := &Catalog{
		name:       strings.TrimSpace(name),
		categoryIx: make(map[string]int, len(categories)),
		options:    make(map[string]Option),
		addons:     make(map[string]Addon),
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("%w: no categories", ErrInvalid)
	}
	for i, cat := range categories {
		if cat.ID == "" {
			return nil, fmt.Errorf("%w: category %d has no id", ErrInvalid, i)
		}
		if _, dup := c.categoryIx[cat.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate category %q", ErrInvalid, cat.ID)
		}
		switch cat.Cardinality {
		case ExactlyOne, Any:
		default:
			return nil, fmt.Errorf("%w: category %q has cardinality %q", ErrInvalid, cat.ID, cat.Cardinality)
		}
		if cat.Role == "" {
			cat.Role = RoleStandard
		}
		if cat.Role == RoleModel {
			if c.modelCat != "" {
				return nil, fmt.Errorf("%w: more than one model category", ErrInvalid)
			}
			c.modelCat = cat.ID
		}

		opts := make([]Option, 0, len(cat.Options))
		for _, opt := range cat.Options {
			opt.Category = cat.ID
			if err := c.addOption(&opt); err != nil {
				return nil, err
			}
			opts = append(opts, opt)
		}
		cat.Options = opts
		c.categoryIx[cat.ID] = len(c.categories)
		c.categories = append(c.categories, cat)
	}

	for _, opt := range c.options {
		for _, con := range opt.Constraints {
			for _, ref := range con.References() {
				if _, ok := c.options[ref]; !ok {
					return nil, fmt.Errorf("%w: option %q depends on unknown option %q", ErrInvalid, opt.ID, ref)
				}
			}
		}
	}
	return c, nil
}

// MustNew is New for static catalog definitions.
func MustNew(name string, categories ...Category) *Catalog {
	c, err := New(name, categories...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) addOption(opt *Option) error {
	if opt.ID == "" {
		return fmt.Errorf("%w: option without id in category %q", ErrInvalid, opt.Category)
	}
	if c.known(opt.ID) {
		return fmt.Errorf("%w: duplicate id %q", ErrInvalid, opt.ID)
	}
	opt.Code = normalizeCode(opt.Code)
	if opt.Code == "" {
		return fmt.Errorf("%w: option %q has no code", ErrInvalid, opt.ID)
	}
	if opt.Price.IsNegative() {
		return fmt.Errorf("%w: option %q has a negative price", ErrInvalid, opt.ID)
	}
	if len(opt.Constraints) == 0 {
		opt.Constraints = []Constraint{NoConstraint{}}
	}
	if opt.Pricing == nil {
		opt.Pricing = PriceByCode{}
	}
	if opt.AutoSelectFirstAddon && len(opt.Addons) == 0 {
		return fmt.Errorf("%w: option %q auto-selects an addon but has none", ErrInvalid, opt.ID)
	}

	addons := make([]Addon, 0, len(opt.Addons))
	for _, ad := range opt.Addons {
		if ad.ID == "" || c.known(ad.ID) || ad.ID == opt.ID {
			return fmt.Errorf("%w: addon id %q of option %q is empty or duplicate", ErrInvalid, ad.ID, opt.ID)
		}
		ad.Parent = opt.ID
		ad.Code = normalizeCode(ad.Code)
		if ad.Price.IsNegative() {
			return fmt.Errorf("%w: addon %q has a negative price", ErrInvalid, ad.ID)
		}
		if ad.Pricing == nil {
			ad.Pricing = PriceByCode{}
		}
		c.addons[ad.ID] = ad
		addons = append(addons, ad)
	}
	opt.Addons = addons
	c.options[opt.ID] = *opt
	return nil
}

func (c *Catalog) known(id string) bool {
	if _, ok := c.options[id]; ok {
		return true
	}
	_, ok := c.addons[id]
	return ok
}

// Name returns the product line name, e.g. "PEGASUS".
func (c *Catalog) Name() string { return c.name }

// Categories returns the categories in display order.
func (c *Catalog) Categories() []Category {
	return append([]Category(nil), c.categories...)
}

// Category returns the category with the given id.
func (c *Catalog) Category(id string) (Category, error) {
	ix, ok := c.categoryIx[id]
	if !ok {
		return Category{}, fmt.Errorf("%w: category %q", ErrNotFound, id)
	}
	return c.categories[ix], nil
}

// CategoryIndex reports the display position of a category, -1 when unknown.
func (c *Catalog) CategoryIndex(id string) int {
	ix, ok := c.categoryIx[id]
	if !ok {
		return -1
	}
	return ix
}

// ModelCategory returns the id of the RoleModel category, if any.
func (c *Catalog) ModelCategory() (string, bool) {
	return c.modelCat, c.modelCat != ""
}

// OptionsInCategory returns the options of a category in display order.
func (c *Catalog) OptionsInCategory(category string) ([]Option, error) {
	cat, err := c.Category(category)
	if err != nil {
		return nil, err
	}
	return append([]Option(nil), cat.Options...), nil
}

// Option returns the option with the given id.
func (c *Catalog) Option(id string) (Option, error) {
	opt, ok := c.options[id]
	if !ok {
		return Option{}, fmt.Errorf("%w: option %q", ErrNotFound, id)
	}
	return opt, nil
}

// Addon returns the addon with the given id.
func (c *Catalog) Addon(id string) (Addon, error) {
	ad, ok := c.addons[id]
	if !ok {
		return Addon{}, fmt.Errorf("%w: addon %q", ErrNotFound, id)
	}
	return ad, nil
}

// IsAddon reports whether id names an addon rather than an option.
func (c *Catalog) IsAddon(id string) bool {
	_, ok := c.addons[id]
	return ok
}

// ConstraintsOf returns the rules of an option. Options without dependencies
// report a single NoConstraint.
func (c *Catalog) ConstraintsOf(id string) ([]Constraint, error) {
	opt, err := c.Option(id)
	if err != nil {
		return nil, err
	}
	return append([]Constraint(nil), opt.Constraints...), nil
}

// CategoryOf returns the category id an option or addon belongs to.
func (c *Catalog) CategoryOf(id string) (string, error) {
	if ad, ok := c.addons[id]; ok {
		id = ad.Parent
	}
	opt, err := c.Option(id)
	if err != nil {
		return "", err
	}
	return opt.Category, nil
}

// RoleOf returns the role of the category an option belongs to.
func (c *Catalog) RoleOf(id string) Role {
	opt, ok := c.options[id]
	if !ok {
		return ""
	}
	return c.categories[c.categoryIx[opt.Category]].Role
}

// CardinalityOf returns the cardinality of the category an option belongs to.
func (c *Catalog) CardinalityOf(id string) Cardinality {
	opt, ok := c.options[id]
	if !ok {
		return ""
	}
	return c.categories[c.categoryIx[opt.Category]].Cardinality
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
