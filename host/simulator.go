// Package host simulates the settlement layer the engine runs on: a tick
// clock with per-tick randomness, blobs, native balances and contracts
// implemented in Go. All account state lives in the engine's StateDB, so a
// failed call frame rolls back host and engine effects together.
package host

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/eth2030/syncrollups/core/rawdb"
	"github.com/eth2030/syncrollups/core/state"
	"github.com/eth2030/syncrollups/crypto"
	"github.com/eth2030/syncrollups/log"
)

var (
	ErrInsufficientFunds = errors.New("host: insufficient funds")
	ErrCallDepth         = errors.New("host: max call depth exceeded")
	ErrBlobNotAttached   = errors.New("host: blob not attached")
	ErrBalanceOverflow   = errors.New("host: balance overflow")
)

// MaxCallDepth bounds nested call frames.
const MaxCallDepth = 1024

// RelayHandler runs the code behind relay addresses.
type RelayHandler interface {
	IsRelay(addr common.Address) bool
	ForwardRelayCall(relay, sender common.Address, value *uint256.Int, input []byte) ([]byte, error)
}

// Simulator is an in-process settlement layer. Transactions submitted
// through Transact and Do are serialized; Call is the frame-level entry
// used by code already running inside a transaction.
type Simulator struct {
	mu sync.Mutex

	state   *state.StateDB
	chainID uint64
	seed    common.Hash
	tick    uint64

	contracts map[common.Address]Contract
	relays    RelayHandler
	blobs     []common.Hash
	depth     int

	log *log.Logger
}

// New returns a simulator keeping its accounts in st. The current tick is
// restored from st.
func New(st *state.StateDB, chainID uint64, seed common.Hash) (*Simulator, error) {
	tick, err := rawdb.ReadHostTick(st)
	if err != nil {
		return nil, err
	}
	return &Simulator{
		state:     st,
		chainID:   chainID,
		seed:      seed,
		tick:      tick,
		contracts: make(map[common.Address]Contract),
		log:       log.Default().Module("host"),
	}, nil
}

// SetRelayHandler installs the code run for relay addresses.
func (s *Simulator) SetRelayHandler(h RelayHandler) { s.relays = h }

// Deploy installs a contract at addr.
func (s *Simulator) Deploy(addr common.Address, c Contract) { s.contracts[addr] = c }

func (s *Simulator) ChainID() uint64 { return s.chainID }

func (s *Simulator) Tick() uint64 { return s.tick }

// Randomness returns the randomness of the current tick.
func (s *Simulator) Randomness() common.Hash {
	return crypto.Keccak256Hash(s.seed[:], common.BigToHash(new(big.Int).SetUint64(s.tick)).Bytes())
}

// AdvanceTick moves the clock forward by n ticks and drops the attached
// blobs.
func (s *Simulator) AdvanceTick(n uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.tick + n
	if err := s.state.Atomic(func() error { return rawdb.WriteHostTick(s.state, next) }); err != nil {
		return err
	}
	s.tick = next
	s.blobs = nil
	return nil
}

// AttachBlobs attaches blobs to the current tick and returns their
// versioned hashes.
func (s *Simulator) AttachBlobs(blobs ...[]byte) ([]common.Hash, error) {
	committer, err := crypto.DefaultBlobCommitter()
	if err != nil {
		return nil, err
	}
	hashes := make([]common.Hash, len(blobs))
	for i, blob := range blobs {
		if hashes[i], err = committer.VersionedHash(blob); err != nil {
			return nil, fmt.Errorf("host: blob %d: %w", i, err)
		}
	}
	s.AttachBlobHashes(hashes...)
	return hashes, nil
}

// AttachBlobHashes attaches precomputed versioned hashes to the current
// tick.
func (s *Simulator) AttachBlobHashes(hashes ...common.Hash) {
	s.blobs = append(s.blobs, hashes...)
}

// BlobHashes returns the first count attached blob hashes.
func (s *Simulator) BlobHashes(count uint64) ([]common.Hash, error) {
	if count > uint64(len(s.blobs)) {
		return nil, fmt.Errorf("%w: want %d, have %d", ErrBlobNotAttached, count, len(s.blobs))
	}
	return append([]common.Hash(nil), s.blobs[:count]...), nil
}

// Balance returns the native balance of addr.
func (s *Simulator) Balance(addr common.Address) (*uint256.Int, error) {
	return rawdb.ReadHostBalance(s.state, addr)
}

// SetBalance sets the native balance of addr, as a genesis allocation does.
func (s *Simulator) SetBalance(addr common.Address, amount *uint256.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Atomic(func() error { return rawdb.WriteHostBalance(s.state, addr, amount) })
}

// Storage returns a storage slot of addr.
func (s *Simulator) Storage(addr common.Address, slot common.Hash) (common.Hash, error) {
	return rawdb.ReadHostStorage(s.state, addr, slot)
}

// Transfer moves native asset between accounts.
func (s *Simulator) Transfer(from, to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() || from == to {
		return nil
	}
	fromBal, err := rawdb.ReadHostBalance(s.state, from)
	if err != nil {
		return err
	}
	if fromBal.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, from, fromBal, amount)
	}
	toBal, err := rawdb.ReadHostBalance(s.state, to)
	if err != nil {
		return err
	}
	if _, overflow := toBal.AddOverflow(toBal, amount); overflow {
		return fmt.Errorf("%w: %s", ErrBalanceOverflow, to)
	}
	if err := rawdb.WriteHostBalance(s.state, from, fromBal.Sub(fromBal, amount)); err != nil {
		return err
	}
	return rawdb.WriteHostBalance(s.state, to, toBal)
}

// Call runs a call frame from sender to to carrying value. The frame is
// atomic: on error every effect it had, nested frames included, is undone.
// Calls to accounts without code only move value.
func (s *Simulator) Call(sender, to common.Address, value *uint256.Int, input []byte) ([]byte, error) {
	if s.depth >= MaxCallDepth {
		return nil, ErrCallDepth
	}
	if value == nil {
		value = new(uint256.Int)
	}
	s.depth++
	defer func() { s.depth-- }()

	var ret []byte
	err := s.state.Atomic(func() error {
		if err := s.Transfer(sender, to, value); err != nil {
			return err
		}
		var err error
		switch c, ok := s.contracts[to]; {
		case s.relays != nil && s.relays.IsRelay(to):
			ret, err = s.relays.ForwardRelayCall(to, sender, value, input)
		case ok:
			ret, err = c.Run(&CallContext{sim: s, Self: to, Caller: sender, Value: new(uint256.Int).Set(value), Input: common.CopyBytes(input)})
		}
		return err
	})
	var rev *RevertError
	if errors.As(err, &rev) {
		ret = rev.Data
	}
	return ret, err
}

// Transact submits a transaction from an externally owned account.
func (s *Simulator) Transact(sender, to common.Address, value *uint256.Int, input []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret, err := s.Call(sender, to, value, input)
	if err != nil {
		s.log.Debug("Transaction failed", "from", sender, "to", to, "err", err)
	}
	return ret, err
}

// Do runs fn as one serialized transaction, typically a direct call of an
// engine entry point.
func (s *Simulator) Do(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}
