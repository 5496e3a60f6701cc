package rollup

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/eth2030/syncrollups/core/rawdb"
	"github.com/eth2030/syncrollups/core/types"
)

// ExecutionCache holds the proven transitions keyed by the fingerprint of
// the action that triggers them. Entries under one fingerprint form a dense
// array; removal swaps the last entry into the freed slot, so insertion
// order is not preserved once an entry has been consumed or evicted.
type ExecutionCache struct {
	db       rawdb.KeyValueStore
	registry *Registry
	clock    func() uint64
}

// NewExecutionCache returns a cache on db that applies deltas through
// registry and stamps insertions with clock.
func NewExecutionCache(db rawdb.KeyValueStore, registry *Registry, clock func() uint64) *ExecutionCache {
	return &ExecutionCache{db: db, registry: registry, clock: clock}
}

// Insert appends a transition under action and records the current tick.
// It returns the index the entry was stored at.
func (c *ExecutionCache) Insert(action common.Hash, t *types.Transition) (uint64, error) {
	n, err := rawdb.ReadCacheCount(c.db, action)
	if err != nil {
		return 0, err
	}
	if err := rawdb.WriteCacheEntry(c.db, action, n, t); err != nil {
		return 0, err
	}
	if err := rawdb.WriteCacheEntryTick(c.db, action, n, c.clock()); err != nil {
		return 0, err
	}
	return n, rawdb.WriteCacheCount(c.db, action, n+1)
}

// Count returns how many transitions are stored under action.
func (c *ExecutionCache) Count(action common.Hash) (uint64, error) {
	return rawdb.ReadCacheCount(c.db, action)
}

// InsertionTimeOf returns the tick the entry at index was inserted at.
func (c *ExecutionCache) InsertionTimeOf(action common.Hash, index uint64) (uint64, error) {
	n, err := rawdb.ReadCacheCount(c.db, action)
	if err != nil {
		return 0, err
	}
	if index >= n {
		return 0, fmt.Errorf("%w: index %d, count %d", ErrIndexOutOfRange, index, n)
	}
	return rawdb.ReadCacheEntryTick(c.db, action, index)
}

// Entry returns the transition stored at index.
func (c *ExecutionCache) Entry(action common.Hash, index uint64) (*types.Transition, error) {
	n, err := rawdb.ReadCacheCount(c.db, action)
	if err != nil {
		return nil, err
	}
	if index >= n {
		return nil, fmt.Errorf("%w: index %d, count %d", ErrIndexOutOfRange, index, n)
	}
	raw, err := rawdb.ReadCacheEntry(c.db, action, index)
	if err != nil {
		return nil, err
	}
	return rawdb.DecodeCacheEntry(raw)
}

// lookup scans from the most recently inserted entry and returns the first
// one whose deltas all expect the live state roots.
func (c *ExecutionCache) lookup(action common.Hash) (uint64, *types.Transition, error) {
	n, err := rawdb.ReadCacheCount(c.db, action)
	if err != nil {
		return 0, nil, err
	}
	roots := make(map[uint64]common.Hash)
	for i := n; i > 0; i-- {
		t, err := c.Entry(action, i-1)
		if err != nil {
			return 0, nil, err
		}
		ok, err := c.eligible(t, roots)
		if err != nil {
			return 0, nil, err
		}
		if ok {
			return i - 1, t, nil
		}
	}
	return 0, nil, fmt.Errorf("%w: action %s", ErrTransitionNotFound, action)
}

func (c *ExecutionCache) eligible(t *types.Transition, roots map[uint64]common.Hash) (bool, error) {
	for _, d := range t.Deltas {
		root, ok := roots[d.DomainID]
		if !ok {
			dom, err := c.registry.Get(d.DomainID)
			if err != nil {
				return false, err
			}
			root = dom.StateRoot
			roots[d.DomainID] = root
		}
		if root != d.CurrentRoot {
			return false, nil
		}
	}
	return true, nil
}

// MatchAndApply consumes the transition matching action and the live
// state, applies all of its deltas and returns the action execution
// continues with. Nothing changes when no entry matches or a delta would
// drive a balance negative.
func (c *ExecutionCache) MatchAndApply(action common.Hash) (types.Action, error) {
	index, t, err := c.lookup(action)
	if err != nil {
		return types.Action{}, err
	}
	if err := c.applyDeltas(t.Deltas); err != nil {
		return types.Action{}, err
	}
	if err := c.remove(action, index); err != nil {
		return types.Action{}, err
	}
	return t.NextAction, nil
}

// applyDeltas validates every delta before writing any of them.
func (c *ExecutionCache) applyDeltas(deltas []types.StateDelta) error {
	var (
		order   []uint64
		domains = make(map[uint64]*types.Domain)
	)
	for _, delta := range deltas {
		d, ok := domains[delta.DomainID]
		if !ok {
			var err error
			if d, err = c.registry.Get(delta.DomainID); err != nil {
				return err
			}
			domains[delta.DomainID] = d
			order = append(order, delta.DomainID)
		}
		d.StateRoot = delta.NewRoot
		if err := addBalance(delta.DomainID, d, delta.BalanceDelta); err != nil {
			return err
		}
	}
	for _, id := range order {
		if err := c.registry.put(id, domains[id]); err != nil {
			return err
		}
	}
	return nil
}

// remove deletes the entry at index by moving the last entry into its slot.
func (c *ExecutionCache) remove(action common.Hash, index uint64) error {
	n, err := rawdb.ReadCacheCount(c.db, action)
	if err != nil {
		return err
	}
	last := n - 1
	if index != last {
		raw, err := rawdb.ReadCacheEntry(c.db, action, last)
		if err != nil {
			return err
		}
		tick, err := rawdb.ReadCacheEntryTick(c.db, action, last)
		if err != nil {
			return err
		}
		if err := rawdb.WriteRawCacheEntry(c.db, action, index, raw); err != nil {
			return err
		}
		if err := rawdb.WriteCacheEntryTick(c.db, action, index, tick); err != nil {
			return err
		}
	}
	if err := rawdb.DeleteCacheEntry(c.db, action, last); err != nil {
		return err
	}
	return rawdb.WriteCacheCount(c.db, action, last)
}

// EvictExpired removes every entry under action inserted more than maxAge
// ticks ago, whether or not it would match. It returns how many entries
// were removed, or ErrNothingToEvict when none qualified.
func (c *ExecutionCache) EvictExpired(action common.Hash, maxAge uint64) (int, error) {
	n, err := rawdb.ReadCacheCount(c.db, action)
	if err != nil {
		return 0, err
	}
	now := c.clock()
	evicted := 0
	// Scanning backwards means the entry swapped into a freed slot has
	// already been inspected.
	for i := n; i > 0; i-- {
		tick, err := rawdb.ReadCacheEntryTick(c.db, action, i-1)
		if err != nil {
			return evicted, err
		}
		if now < tick || now-tick <= maxAge {
			continue
		}
		if err := c.remove(action, i-1); err != nil {
			return evicted, err
		}
		evicted++
	}
	if evicted == 0 {
		return 0, fmt.Errorf("%w: action %s", ErrNothingToEvict, action)
	}
	return evicted, nil
}
