package rollup

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/eth2030/syncrollups/core/types"
)

// Host is the settlement layer the engine runs on. All of its state must
// live in the engine's StateDB so that a failed operation or a reverted
// scope rolls host effects back together with engine effects.
type Host interface {
	ChainID() uint64

	// Tick returns the current logical time (block number).
	Tick() uint64

	// Randomness returns the external randomness of the current tick.
	Randomness() common.Hash

	// BlobHashes returns the versioned hashes of the first count blobs
	// attached to the current operation.
	BlobHashes(count uint64) ([]common.Hash, error)

	// Call performs a settlement-layer call with sender as the caller. value
	// is drawn from the sender's balance. A non-nil error means the call
	// failed and its effects were rolled back; ret may carry revert data.
	Call(sender, to common.Address, value *uint256.Int, input []byte) (ret []byte, err error)

	// Transfer moves native asset between settlement-layer accounts.
	Transfer(from, to common.Address, amount *uint256.Int) error
}

// RelayResolver derives and authorizes the per-(address, domain) relays
// the engine executes calls through.
type RelayResolver interface {
	// Address derives the relay address without creating it.
	Address(original common.Address, originalDomain uint64) common.Address

	// ResolveOrCreate derives the relay address and authorizes it on first
	// use.
	ResolveOrCreate(original common.Address, originalDomain uint64) (common.Address, error)

	// Info returns the account an authorized relay acts for.
	Info(relay common.Address) (*types.RelayInfo, error)

	IsAuthorized(relay common.Address) bool
}
