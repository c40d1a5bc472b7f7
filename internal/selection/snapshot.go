package selection

import (
	"maps"

	"github.com/noah-isme/camper-configurator/internal/catalog"
)

// Snapshot is the persistable form of a selection.
type Snapshot struct {
	Options []string          `json:"options"`
	Addons  map[string]string `json:"addons,omitempty"`
}

// Snapshot captures the current state.
func (s *Selection) Snapshot() Snapshot {
	return Snapshot{Options: s.Selected(), Addons: maps.Clone(s.addons)}
}

// Restore replaces the state with snap. Options are replayed in order with
// cardinality applied, then the result is validated, so a snapshot taken
// against an older catalog cannot leave the selection inconsistent. Unknown
// ids fail with catalog.ErrNotFound and leave the state untouched.
func (s *Selection) Restore(snap Snapshot) ([]string, error) {
	next := New(s.cat)
	for _, id := range snap.Options {
		if _, err := s.cat.Option(id); err != nil {
			return nil, err
		}
		if next.IsActive(id) {
			continue
		}
		if s.cat.CardinalityOf(id) == catalog.ExactlyOne {
			opt, _ := s.cat.Option(id)
			for _, prev := range next.ActiveIn(opt.Category) {
				next.remove(prev, nil)
			}
		}
		next.active = append(next.active, id)
	}
	for parent, id := range snap.Addons {
		ad, err := s.cat.Addon(id)
		if err != nil {
			return nil, err
		}
		if ad.Parent == parent && next.IsActive(parent) {
			next.addons[parent] = id
		}
	}
	removed := next.ValidateAll()
	s.active, s.addons = next.active, next.addons
	return removed, nil
}
