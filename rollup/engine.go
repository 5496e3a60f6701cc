package rollup

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/eth2030/syncrollups/core/rawdb"
	"github.com/eth2030/syncrollups/core/state"
	"github.com/eth2030/syncrollups/core/types"
	"github.com/eth2030/syncrollups/log"
	"github.com/eth2030/syncrollups/metrics"
	"github.com/eth2030/syncrollups/proofs"
)

// DefaultMaxAge is the eviction age, in ticks, used when EvictExpired is
// called without one.
const DefaultMaxAge = 7200

// DefaultMaxScopeDepth bounds the nesting of the call tree.
const DefaultMaxScopeDepth = 64

// DefaultAddress is the settlement-layer account holding the value of all
// domains.
var DefaultAddress = common.HexToAddress("0x0000000000000000000000000000000000005c01")

// Config holds the engine parameters.
type Config struct {
	// Address is the engine's settlement-layer account. It holds the
	// native asset of every domain and deploys the relays.
	Address common.Address

	// DefaultMaxAge is the eviction age used when EvictExpired receives 0.
	DefaultMaxAge uint64

	// MaxScopeDepth is the deepest scope path the navigator descends to.
	MaxScopeDepth int
}

// DefaultConfig returns the default engine parameters.
func DefaultConfig() Config {
	return Config{
		Address:       DefaultAddress,
		DefaultMaxAge: DefaultMaxAge,
		MaxScopeDepth: DefaultMaxScopeDepth,
	}
}

// Backend bundles the collaborators an engine runs against. State must be
// the same StateDB the host keeps its accounts in.
type Backend struct {
	State    *state.StateDB
	Host     Host
	Verifier proofs.Verifier
	Relays   RelayResolver
	Metrics  *metrics.Metrics
	Logger   *log.Logger
}

// Engine is the cross-domain execution engine. Every exported mutating
// method is an atomic operation: it either keeps all of its effects or none
// of them, and effects reach the database only when the outermost atomic
// unit on the shared StateDB succeeds.
//
// Engine is not safe for concurrent use. Like a contract on the settlement
// layer it relies on the host to serialize transactions; host call frames
// re-enter it through relays.
type Engine struct {
	config   Config
	state    *state.StateDB
	host     Host
	verifier proofs.Verifier
	relays   RelayResolver
	metrics  *metrics.Metrics
	log      *log.Logger

	registry *Registry
	cache    *ExecutionCache
}

// New creates an engine.
func New(config Config, b Backend) (*Engine, error) {
	switch {
	case b.State == nil:
		return nil, errors.New("rollup: nil state")
	case b.Host == nil:
		return nil, errors.New("rollup: nil host")
	case b.Verifier == nil:
		return nil, errors.New("rollup: nil verifier")
	case b.Relays == nil:
		return nil, errors.New("rollup: nil relay resolver")
	}
	if config.DefaultMaxAge == 0 {
		config.DefaultMaxAge = DefaultMaxAge
	}
	if config.MaxScopeDepth <= 0 {
		config.MaxScopeDepth = DefaultMaxScopeDepth
	}
	if b.Metrics == nil {
		b.Metrics = metrics.New(nil)
	}
	if b.Logger == nil {
		b.Logger = log.Default()
	}
	e := &Engine{
		config:   config,
		state:    b.State,
		host:     b.Host,
		verifier: b.Verifier,
		relays:   b.Relays,
		metrics:  b.Metrics,
		log:      b.Logger.Module("rollup"),
	}
	e.registry = NewRegistry(b.State)
	e.cache = NewExecutionCache(b.State, e.registry, b.Host.Tick)
	return e, nil
}

// Address returns the engine's settlement-layer account.
func (e *Engine) Address() common.Address { return e.config.Address }

// atomic runs fn as one all-or-nothing operation.
func (e *Engine) atomic(fn func() error) error {
	return e.state.Atomic(fn)
}

// Update sources recorded in the last-update marker.
const (
	updateNone uint8 = iota
	updateBatch
	updateExecution
)

// checkUpdate enforces same-tick exclusivity: a batch commitment may not
// share a tick with any other update, and nothing may follow a batch
// commitment in the same tick.
func (e *Engine) checkUpdate(source uint8) error {
	lu, err := rawdb.ReadLastUpdate(e.state)
	if err != nil {
		return err
	}
	if lu.Source == updateNone || lu.Tick != e.host.Tick() {
		return nil
	}
	if source == updateBatch || lu.Source == updateBatch {
		return fmt.Errorf("%w: tick %d", ErrAlreadyUpdatedThisTick, lu.Tick)
	}
	return nil
}

func (e *Engine) markUpdated(source uint8) error {
	tick := e.host.Tick()
	if err := rawdb.WriteLastUpdate(e.state, rawdb.LastUpdate{Tick: tick, Source: source}); err != nil {
		return err
	}
	e.metrics.LastUpdateTick.Set(float64(tick))
	return nil
}

// matchAndApply consumes the transition for action against live state and
// marks the tick as updated.
func (e *Engine) matchAndApply(action types.Action) (types.Action, error) {
	if err := e.checkUpdate(updateExecution); err != nil {
		return types.Action{}, err
	}
	hash := action.Hash()
	next, err := e.cache.MatchAndApply(hash)
	if err != nil {
		if errors.Is(err, ErrTransitionNotFound) {
			e.metrics.TransitionsMissed.Inc()
			e.log.Debug("No transition matches", "action", action.Type, "domain", action.DomainID, "hash", hash)
		}
		return types.Action{}, err
	}
	if err := e.markUpdated(updateExecution); err != nil {
		return types.Action{}, err
	}
	e.metrics.TransitionsMatched.Inc()
	e.log.Debug("Applied transition", "action", action.Type, "domain", action.DomainID, "hash", hash, "next", next.Type)
	return next, nil
}

// CreateDomain registers a domain and returns its id.
func (e *Engine) CreateDomain(owner common.Address, vk, root common.Hash) (uint64, error) {
	var id uint64
	err := e.atomic(func() error {
		var err error
		id, err = e.registry.Create(owner, vk, root)
		return err
	})
	if err != nil {
		return 0, err
	}
	e.log.Info("Created domain", "id", id, "owner", owner, "root", root)
	return id, nil
}

// SetStateRoot force-sets a domain's root. Owner only.
func (e *Engine) SetStateRoot(caller common.Address, id uint64, root common.Hash) error {
	return e.atomic(func() error { return e.registry.SetStateRoot(caller, id, root) })
}

// SetVerificationKey replaces a domain's verification key. Owner only.
func (e *Engine) SetVerificationKey(caller common.Address, id uint64, vk common.Hash) error {
	return e.atomic(func() error { return e.registry.SetVerificationKey(caller, id, vk) })
}

// TransferOwnership hands a domain to a new owner. Owner only.
func (e *Engine) TransferOwnership(caller common.Address, id uint64, owner common.Address) error {
	return e.atomic(func() error { return e.registry.TransferOwnership(caller, id, owner) })
}

// Deposit moves amount from the sender's settlement account into custody
// and credits it to the domain.
func (e *Engine) Deposit(sender common.Address, id uint64, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}
	return e.atomic(func() error {
		if _, err := e.registry.Get(id); err != nil {
			return err
		}
		if err := e.host.Transfer(sender, e.config.Address, amount); err != nil {
			return err
		}
		return e.registry.Deposit(id, amount)
	})
}

// Withdraw pays amount out of the balance of the domain the calling relay
// belongs to. Only authorized relays may withdraw, and nothing moves when
// the balance is short.
func (e *Engine) Withdraw(caller, to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}
	return e.atomic(func() error {
		info, err := e.relayInfo(caller)
		if err != nil {
			return err
		}
		if err := e.registry.Withdraw(info.OriginalDomain, amount); err != nil {
			return err
		}
		return e.host.Transfer(e.config.Address, to, amount)
	})
}

// relayInfo resolves an authorized relay and fails closed for any other
// caller.
func (e *Engine) relayInfo(caller common.Address) (*types.RelayInfo, error) {
	if !e.relays.IsAuthorized(caller) {
		return nil, fmt.Errorf("%w: %s is not a relay", ErrUnauthorizedCaller, caller)
	}
	return e.relays.Info(caller)
}

// CreateRelay authorizes the relay of (original, domain) and returns its
// address. Creating an existing relay returns the same address.
func (e *Engine) CreateRelay(original common.Address, domain uint64) (common.Address, error) {
	var relay common.Address
	err := e.atomic(func() error {
		if _, err := e.registry.Get(domain); err != nil {
			return err
		}
		var err error
		relay, err = e.relays.ResolveOrCreate(original, domain)
		return err
	})
	return relay, err
}

// RelayAddress derives the relay address of (original, domain) without
// creating it.
func (e *Engine) RelayAddress(original common.Address, domain uint64) common.Address {
	return e.relays.Address(original, domain)
}

// Domain returns a copy of a domain record.
func (e *Engine) Domain(id uint64) (*types.Domain, error) {
	return e.registry.Get(id)
}

// DomainCount returns how many domains were created.
func (e *Engine) DomainCount() (uint64, error) {
	return e.registry.Count()
}

// CacheCount returns how many transitions are cached under an action
// fingerprint.
func (e *Engine) CacheCount(action common.Hash) (uint64, error) {
	return e.cache.Count(action)
}

// CacheInsertionTime returns the tick the cached transition at index was
// inserted at.
func (e *Engine) CacheInsertionTime(action common.Hash, index uint64) (uint64, error) {
	return e.cache.InsertionTimeOf(action, index)
}

// CacheEntry returns the cached transition at index.
func (e *Engine) CacheEntry(action common.Hash, index uint64) (*types.Transition, error) {
	return e.cache.Entry(action, index)
}

// LastUpdate returns the tick of the latest state mutation and whether it
// was a batch commitment.
func (e *Engine) LastUpdate() (tick uint64, batch bool, err error) {
	lu, err := rawdb.ReadLastUpdate(e.state)
	if err != nil {
		return 0, false, err
	}
	return lu.Tick, lu.Source == updateBatch, nil
}

// EvictExpired removes the transitions cached under action that are older
// than maxAge ticks. A zero maxAge selects the configured default. Anyone
// may call it.
func (e *Engine) EvictExpired(action common.Hash, maxAge uint64) (int, error) {
	if maxAge == 0 {
		maxAge = e.config.DefaultMaxAge
	}
	var n int
	err := e.atomic(func() error {
		var err error
		n, err = e.cache.EvictExpired(action, maxAge)
		return err
	})
	if err != nil {
		return 0, err
	}
	e.metrics.TransitionsEvicted.Add(float64(n))
	e.log.Info("Evicted expired transitions", "action", action, "count", n, "maxAge", maxAge)
	return n, nil
}
