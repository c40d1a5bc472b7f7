package pricetable

import "sync/atomic"

// Provider hands out whole table snapshots. Readers take one snapshot per
// computation so a concurrent reload never mixes two tables.
type Provider interface {
	Current() *Table
}

// Store holds the active table of one product line.
type Store struct {
	current atomic.Pointer[Table]
}

// NewStore returns a store, optionally seeded with a table.
func NewStore(initial *Table) *Store {
	s := &Store{}
	if initial != nil {
		s.current.Store(initial)
	}
	return s
}

// Current returns the active snapshot, nil before the first successful load.
func (s *Store) Current() *Table {
	if s == nil {
		return nil
	}
	return s.current.Load()
}

// Swap installs t and returns the replaced snapshot.
func (s *Store) Swap(t *Table) *Table {
	return s.current.Swap(t)
}

// Static is a Provider over a fixed table.
type Static struct{ T *Table }

func (s Static) Current() *Table { return s.T }
