package host

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/eth2030/syncrollups/core/rawdb"
)

// Contract is settlement-layer code written in Go.
type Contract interface {
	Run(ctx *CallContext) ([]byte, error)
}

// ContractFunc adapts a function to Contract.
type ContractFunc func(ctx *CallContext) ([]byte, error)

func (f ContractFunc) Run(ctx *CallContext) ([]byte, error) { return f(ctx) }

// RevertError fails a call frame and hands Data back to the caller.
type RevertError struct {
	Data []byte
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("host: execution reverted: %x", e.Data)
}

// Revert returns a RevertError carrying data.
func Revert(data []byte) error {
	return &RevertError{Data: common.CopyBytes(data)}
}

// CallContext is the environment of one call frame.
type CallContext struct {
	sim *Simulator

	Self   common.Address
	Caller common.Address
	Value  *uint256.Int
	Input  []byte
}

// Load reads a storage slot of the executing contract.
func (c *CallContext) Load(slot common.Hash) (common.Hash, error) {
	return rawdb.ReadHostStorage(c.sim.state, c.Self, slot)
}

// Store writes a storage slot of the executing contract.
func (c *CallContext) Store(slot, value common.Hash) error {
	return rawdb.WriteHostStorage(c.sim.state, c.Self, slot, value)
}

// Call opens a nested frame with the executing contract as sender.
func (c *CallContext) Call(to common.Address, value *uint256.Int, input []byte) ([]byte, error) {
	return c.sim.Call(c.Self, to, value, input)
}

// Tick returns the current tick.
func (c *CallContext) Tick() uint64 { return c.sim.Tick() }
