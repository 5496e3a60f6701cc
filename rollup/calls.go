package rollup

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/eth2030/syncrollups/core/types"
)

// ExecuteDomainTx executes a raw transaction of a domain against the cached
// transitions and returns the data of the final result.
func (e *Engine) ExecuteDomainTx(domainID uint64, tx []byte) ([]byte, error) {
	var ret []byte
	err := e.atomic(func() error {
		if _, err := e.registry.Get(domainID); err != nil {
			return err
		}
		next, err := e.matchAndApply(types.NewTx(domainID, tx))
		if err != nil {
			return err
		}
		ret, err = e.resolveScopes(next)
		return err
	})
	if err != nil {
		e.log.Debug("Domain tx failed", "domain", domainID, "err", err)
		return nil, err
	}
	return ret, nil
}

// ExecuteCrossDomainCall is entered by a relay forwarding a settlement-layer
// call from source into the relay's domain. value was paid to the relay by
// source; it moves into custody and is credited to the relay's domain
// before the call is matched.
func (e *Engine) ExecuteCrossDomainCall(caller, source common.Address, value *uint256.Int, data []byte) ([]byte, error) {
	if value == nil {
		value = new(uint256.Int)
	}
	var ret []byte
	err := e.atomic(func() error {
		info, err := e.relayInfo(caller)
		if err != nil {
			return err
		}
		if !value.IsZero() {
			if err := e.host.Transfer(caller, e.config.Address, value); err != nil {
				return err
			}
			if err := e.registry.Deposit(info.OriginalDomain, value); err != nil {
				return err
			}
		}
		call := types.NewCall(info.OriginalDomain, info.OriginalAddress, value, data, source, types.SettlementDomainID, nil)
		next, err := e.matchAndApply(call)
		if err != nil {
			return err
		}
		ret, err = e.resolveScopes(next)
		return err
	})
	if err != nil {
		e.log.Debug("Cross-domain call failed", "relay", caller, "source", source, "err", err)
		return nil, err
	}
	return ret, nil
}

// IsRelay reports whether addr is an authorized relay. Together with
// ForwardRelayCall it lets a host dispatch calls to relay addresses.
func (e *Engine) IsRelay(addr common.Address) bool {
	return e.relays.IsAuthorized(addr)
}

// ForwardRelayCall is the code behind every relay: a call from sender to the
// relay becomes a cross-domain call.
func (e *Engine) ForwardRelayCall(relay, sender common.Address, value *uint256.Int, input []byte) ([]byte, error) {
	return e.ExecuteCrossDomainCall(relay, sender, value, input)
}
