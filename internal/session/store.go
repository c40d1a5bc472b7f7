package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/camper-configurator/internal/cache"
	"github.com/noah-isme/camper-configurator/internal/obs"
	"github.com/noah-isme/camper-configurator/internal/pricetable"
	"github.com/noah-isme/camper-configurator/internal/product"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session: not found")

// Locker serialises work on a key across processes.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Store keeps sessions in Redis as JSON. Mutations run under a per-session
// lock so concurrent requests for one session apply one after the other.
type Store struct {
	Cache    *cache.Redis
	Locker   Locker
	Products *product.Registry
	// Prices maps product keys to their live price tables.
	Prices  map[string]pricetable.Provider
	LockTTL time.Duration
	Options []Option
	NewID   func() string
}

func (st *Store) provider(key string) pricetable.Provider {
	if p, ok := st.Prices[key]; ok && p != nil {
		return p
	}
	return pricetable.Static{}
}

func (st *Store) newID() string {
	if st.NewID != nil {
		return st.NewID()
	}
	return uuid.NewString()
}

// Create starts and persists a new session.
func (st *Store) Create(ctx context.Context, productKey, country string) (*Session, error) {
	def, err := st.Products.Get(productKey)
	if err != nil {
		return nil, err
	}
	s := New(st.newID(), def, st.provider(def.Key), country, st.Options...)
	if err := st.save(ctx, s); err != nil {
		return nil, err
	}
	obs.Inc(obs.SessionsTotal, def.Key)
	return s, nil
}

// Get loads a session.
func (st *Store) Get(ctx context.Context, id string) (*Session, error) {
	s, _, err := st.load(ctx, id)
	return s, err
}

// Update applies fn to the session under its lock and persists the result
// when fn succeeds. Options dropped while restoring are returned.
func (st *Store) Update(ctx context.Context, id string, fn func(*Session) error) (*Session, []string, error) {
	if st.Locker == nil {
		return nil, nil, errors.New("session: locker not configured")
	}
	ttl := st.LockTTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	var (
		out     *Session
		dropped []string
	)
	err := st.Locker.WithLock(ctx, cache.KeySessionLock(id), ttl, func(ctx context.Context) error {
		s, d, err := st.load(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(s); err != nil {
			return err
		}
		if err := st.save(ctx, s); err != nil {
			return err
		}
		out, dropped = s, d
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, dropped, nil
}

// Delete removes a session.
func (st *Store) Delete(ctx context.Context, id string) error {
	return st.Cache.Delete(ctx, cache.KeySession(id))
}

func (st *Store) load(ctx context.Context, id string) (*Session, []string, error) {
	var state State
	ok, err := st.Cache.GetJSON(ctx, cache.KeySession(id), &state)
	if err != nil {
		return nil, nil, fmt.Errorf("session: load %s: %w", id, err)
	}
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	def, err := st.Products.Get(state.Product)
	if err != nil {
		return nil, nil, err
	}
	return Restore(state, def, st.provider(def.Key), st.Options...)
}

func (st *Store) save(ctx context.Context, s *Session) error {
	if !st.Cache.Enabled() {
		return errors.New("session: redis not configured")
	}
	if err := st.Cache.SetJSON(ctx, cache.KeySession(s.ID()), s.State()); err != nil {
		return fmt.Errorf("session: save %s: %w", s.ID(), err)
	}
	return nil
}
