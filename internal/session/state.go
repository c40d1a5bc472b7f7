package session

import (
	"fmt"
	"time"

	"github.com/noah-isme/camper-configurator/internal/pricetable"
	"github.com/noah-isme/camper-configurator/internal/product"
	"github.com/noah-isme/camper-configurator/internal/selection"
)

// State is the persisted form of a session.
type State struct {
	ID        string             `json:"id"`
	Product   string             `json:"product"`
	Country   string             `json:"country"`
	Selection selection.Snapshot `json:"selection"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// State captures the session for persistence.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		ID:        s.id,
		Product:   s.def.Key,
		Country:   s.country,
		Selection: s.sel.Snapshot(),
		UpdatedAt: s.updated.UTC(),
	}
}

// Restore rebuilds a session from st. Ids the catalog no longer knows are
// dropped, and options whose dependencies no longer hold cascade out; both are
// returned so callers can tell the buyer.
func Restore(st State, def *product.Definition, prices pricetable.Provider, opts ...Option) (*Session, []string, error) {
	if st.Product != def.Key {
		return nil, nil, fmt.Errorf("session: state of %q restored as %q", st.Product, def.Key)
	}
	s := New(st.ID, def, prices, st.Country, opts...)

	var dropped []string
	snap := selection.Snapshot{Addons: map[string]string{}}
	for _, id := range st.Selection.Options {
		if _, err := def.Catalog.Option(id); err != nil {
			dropped = append(dropped, id)
			continue
		}
		snap.Options = append(snap.Options, id)
	}
	for parent, id := range st.Selection.Addons {
		if ad, err := def.Catalog.Addon(id); err != nil || ad.Parent != parent {
			dropped = append(dropped, id)
			continue
		}
		snap.Addons[parent] = id
	}

	removed, err := s.sel.Restore(snap)
	if err != nil {
		return nil, nil, err
	}
	if !st.UpdatedAt.IsZero() {
		s.updated = st.UpdatedAt
	}
	return s, append(dropped, removed...), nil
}
