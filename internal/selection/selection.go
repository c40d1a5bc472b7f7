// Package selection holds the options a buyer has chosen and enforces category
// cardinality and option dependencies on every change.
package selection

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/noah-isme/camper-configurator/internal/catalog"
)

// ErrConstraintViolation is returned when an option's dependencies do not hold.
var ErrConstraintViolation = errors.New("selection: constraint violation")

// ConstraintError lists the unmet prerequisites of a rejected selection.
type ConstraintError struct {
	OptionID string
	Missing  []string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("selection: %s requires %s", e.OptionID, strings.Join(e.Missing, ", "))
}

func (e *ConstraintError) Unwrap() error { return ErrConstraintViolation }

// Change reports the effect of one Toggle. Deselected includes options removed
// by replacement and by cascade, in removal order.
type Change struct {
	Selected   []string `json:"selected,omitempty"`
	Deselected []string `json:"deselected,omitempty"`
}

// Selection is the mutable state of one configuration session. It is not safe
// for concurrent use.
type Selection struct {
	cat    *catalog.Catalog
	active []string
	addons map[string]string
}

// New returns an empty selection over cat.
func New(cat *catalog.Catalog) *Selection {
	return &Selection{cat: cat, addons: map[string]string{}}
}

// Catalog returns the catalog the selection is bound to.
func (s *Selection) Catalog() *catalog.Catalog { return s.cat }

// Toggle selects an inactive option or addon and deselects an active one.
// Selecting an addon also selects its parent option.
func (s *Selection) Toggle(id string) (Change, error) {
	if s.cat.IsAddon(id) {
		return s.toggleAddon(id)
	}
	if _, err := s.cat.Option(id); err != nil {
		return Change{}, err
	}
	var ch Change
	if s.IsActive(id) {
		s.deselectOption(id, &ch)
		return ch, nil
	}
	if err := s.selectOption(id, &ch); err != nil {
		return Change{}, err
	}
	return ch, nil
}

func (s *Selection) toggleAddon(id string) (Change, error) {
	ad, err := s.cat.Addon(id)
	if err != nil {
		return Change{}, err
	}
	var ch Change
	if s.addons[ad.Parent] == id {
		delete(s.addons, ad.Parent)
		ch.Deselected = append(ch.Deselected, id)
		return ch, nil
	}
	if !s.IsActive(ad.Parent) {
		if err := s.selectOption(ad.Parent, &ch); err != nil {
			return Change{}, err
		}
	}
	if prev, ok := s.addons[ad.Parent]; ok && prev != id {
		if ch.wasSelected(prev) {
			ch.Selected = slices.DeleteFunc(ch.Selected, func(x string) bool { return x == prev })
		} else {
			ch.Deselected = append(ch.Deselected, prev)
		}
	}
	if ch.wasSelected(id) {
		return ch, nil
	}
	s.addons[ad.Parent] = id
	ch.Selected = append(ch.Selected, id)
	return ch, nil
}

func (c Change) wasSelected(id string) bool {
	return slices.Contains(c.Selected, id)
}

// selectOption activates id after checking its constraints against the state
// before the change. An exactlyOne category drops its previous choice first,
// then dependents of the dropped option cascade out.
func (s *Selection) selectOption(id string, ch *Change) error {
	opt, err := s.cat.Option(id)
	if err != nil {
		return err
	}
	if missing := s.unmet(opt); len(missing) > 0 {
		return &ConstraintError{OptionID: id, Missing: missing}
	}
	if s.cat.CardinalityOf(id) == catalog.ExactlyOne {
		for _, prev := range s.ActiveIn(opt.Category) {
			s.remove(prev, ch)
		}
	}
	s.active = append(s.active, id)
	ch.Selected = append(ch.Selected, id)
	if opt.AutoSelectFirstAddon && len(opt.Addons) > 0 {
		s.addons[id] = opt.Addons[0].ID
		ch.Selected = append(ch.Selected, opt.Addons[0].ID)
	}
	ch.Deselected = append(ch.Deselected, s.ValidateAll()...)
	return nil
}

func (s *Selection) deselectOption(id string, ch *Change) {
	s.remove(id, ch)
	ch.Deselected = append(ch.Deselected, s.ValidateAll()...)
}

func (s *Selection) remove(id string, ch *Change) {
	ix := slices.Index(s.active, id)
	if ix < 0 {
		return
	}
	s.active = slices.Delete(s.active, ix, ix+1)
	if ch != nil {
		ch.Deselected = append(ch.Deselected, id)
	}
	if ad, ok := s.addons[id]; ok {
		delete(s.addons, id)
		if ch != nil {
			ch.Deselected = append(ch.Deselected, ad)
		}
	}
}

// ValidateAll drops every active option whose constraints no longer hold and
// repeats until the state is stable. Options are checked in selection order,
// so the result only depends on the selection history. It returns the
// removed option ids in removal order.
func (s *Selection) ValidateAll() []string {
	var removed []string
	for {
		changed := false
		for _, id := range slices.Clone(s.active) {
			opt, err := s.cat.Option(id)
			if err == nil && len(s.unmet(opt)) == 0 {
				continue
			}
			s.remove(id, nil)
			removed = append(removed, id)
			changed = true
		}
		if !changed {
			return removed
		}
	}
}

func (s *Selection) unmet(opt catalog.Option) []string {
	var missing []string
	for _, con := range opt.Constraints {
		switch c := con.(type) {
		case catalog.RequiresOptions:
			for _, dep := range c.IDs {
				if !s.IsActive(dep) {
					missing = append(missing, dep)
				}
			}
		case catalog.RequiresCategoryChoice:
			if !s.IsActive(c.OptionID) {
				missing = append(missing, c.OptionID)
			}
		}
	}
	return missing
}

// IsActive reports whether an option or addon is selected.
func (s *Selection) IsActive(id string) bool {
	if s.cat.IsAddon(id) {
		ad, _ := s.cat.Addon(id)
		return s.addons[ad.Parent] == id
	}
	return slices.Contains(s.active, id)
}

// IsSelectable reports whether the constraints of an option, or of an addon's
// parent, currently hold. Active options are always selectable.
func (s *Selection) IsSelectable(id string) (bool, error) {
	if ad, err := s.cat.Addon(id); err == nil {
		id = ad.Parent
	}
	opt, err := s.cat.Option(id)
	if err != nil {
		return false, err
	}
	return s.IsActive(id) || len(s.unmet(opt)) == 0, nil
}

// Selected returns every active option id in selection order.
func (s *Selection) Selected() []string {
	return slices.Clone(s.active)
}

// Active returns the active options of standard and model categories in
// selection order.
func (s *Selection) Active() []catalog.Option {
	return s.filter(func(o catalog.Option) bool { return s.cat.RoleOf(o.ID) != catalog.RoleExtra })
}

// Extras returns the active options of extra categories in selection order.
func (s *Selection) Extras() []catalog.Option {
	return s.filter(func(o catalog.Option) bool { return s.cat.RoleOf(o.ID) == catalog.RoleExtra })
}

// ActiveIn returns the active option ids of one category in selection order.
func (s *Selection) ActiveIn(category string) []string {
	var out []string
	for _, o := range s.filter(func(o catalog.Option) bool { return o.Category == category }) {
		out = append(out, o.ID)
	}
	return out
}

func (s *Selection) filter(keep func(catalog.Option) bool) []catalog.Option {
	var out []catalog.Option
	for _, id := range s.active {
		opt, err := s.cat.Option(id)
		if err == nil && keep(opt) {
			out = append(out, opt)
		}
	}
	return out
}

// AddonOf returns the active addon of a parent option.
func (s *Selection) AddonOf(parent string) (catalog.Addon, bool) {
	id, ok := s.addons[parent]
	if !ok {
		return catalog.Addon{}, false
	}
	ad, err := s.cat.Addon(id)
	return ad, err == nil
}

// ModelOption returns the active option of the model category.
func (s *Selection) ModelOption() (catalog.Option, bool) {
	cat, ok := s.cat.ModelCategory()
	if !ok {
		return catalog.Option{}, false
	}
	ids := s.ActiveIn(cat)
	if len(ids) == 0 {
		return catalog.Option{}, false
	}
	opt, err := s.cat.Option(ids[0])
	return opt, err == nil
}

// Reset clears every selection.
func (s *Selection) Reset() {
	s.active = nil
	s.addons = map[string]string{}
}
