package host

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// CounterSlot is the storage slot Counter keeps its count in.
var CounterSlot = common.Hash{}

// Counter increments its count on every call and returns the new count as a
// 32-byte word.
func Counter() Contract {
	return ContractFunc(func(ctx *CallContext) ([]byte, error) {
		cur, err := ctx.Load(CounterSlot)
		if err != nil {
			return nil, err
		}
		next := common.BigToHash(new(big.Int).Add(cur.Big(), common.Big1))
		if err := ctx.Store(CounterSlot, next); err != nil {
			return nil, err
		}
		return next.Bytes(), nil
	})
}

// Reverter always reverts with its input as revert data.
func Reverter() Contract {
	return ContractFunc(func(ctx *CallContext) ([]byte, error) {
		return nil, Revert(ctx.Input)
	})
}

// Forwarder calls the address in the first 20 bytes of its input with the
// rest of the input and the value it received, and returns the result. A
// failed inner call fails the forwarder too.
func Forwarder() Contract {
	return ContractFunc(func(ctx *CallContext) ([]byte, error) {
		if len(ctx.Input) < common.AddressLength {
			return nil, Revert([]byte("short input"))
		}
		to := common.BytesToAddress(ctx.Input[:common.AddressLength])
		return ctx.Call(to, ctx.Value, ctx.Input[common.AddressLength:])
	})
}

// ForwardInput builds the input of a Forwarder call.
func ForwardInput(to common.Address, payload []byte) []byte {
	return append(to.Bytes(), payload...)
}
