package amm

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry owns the pool state of every pair. Pools are created zero-valued
// on first reference and are never removed.
//
// Reads return copies and writes replace a pool's state whole, so readers
// never observe a half-applied update.
type Registry struct {
	mu    sync.RWMutex
	pools map[PairKey]*PoolState
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{pools: make(map[PairKey]*PoolState)}
}

// GetOrCreate returns the state of pair's pool, creating it if absent.
func (r *Registry) GetOrCreate(pair Pair) PoolState {
	key := pair.Key()

	r.mu.RLock()
	pool, ok := r.pools[key]
	r.mu.RUnlock()
	if ok {
		return *pool
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if pool, ok := r.pools[key]; ok {
		return *pool
	}
	pool = &PoolState{Pair: pair}
	r.pools[key] = pool
	return *pool
}

// Get returns the pool for key without creating it.
func (r *Registry) Get(key PairKey) (PoolState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pool, ok := r.pools[key]
	if !ok {
		return PoolState{}, false
	}
	return *pool, true
}

// Put replaces the stored state of the pool.
func (r *Registry) Put(state PoolState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := state
	r.pools[state.Key()] = &stored
}

// Len returns the number of known pools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pools)
}

// Pools returns a copy of every pool ordered by key.
func (r *Registry) Pools() []PoolState {
	r.mu.RLock()
	out := make([]PoolState, 0, len(r.pools))
	for _, pool := range r.pools {
		out = append(out, *pool)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ki, kj := out[i].Key(), out[j].Key()
		return bytes.Compare(ki[:], kj[:]) < 0
	})
	return out
}

// Restore loads pool states, replacing any existing entry for the same pair.
// Nothing is loaded if any state is invalid.
func (r *Registry) Restore(states []PoolState) error {
	for _, state := range states {
		if state.Pair.Identical() {
			return ErrInvalidPath.Wrapf("pool %s pairs %s with itself", state.Key(), state.Pair.Asset0.Hex())
		}
		if NewPair(state.Pair.Asset0, state.Pair.Asset1) != state.Pair {
			return ErrInvalidPoolState.Wrapf("pool %s assets are not in canonical order", state.Key())
		}
		if err := state.Validate(); err != nil {
			return fmt.Errorf("restore pool: %w", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, state := range states {
		stored := state
		r.pools[state.Key()] = &stored
	}
	return nil
}

// CheckInvariants validates every pool and joins the violations.
func (r *Registry) CheckInvariants() error {
	var errs []error
	for _, pool := range r.Pools() {
		if err := pool.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
