package rollup

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/eth2030/syncrollups/core/rawdb"
	"github.com/eth2030/syncrollups/core/types"
)

// Registry stores the domain records. Ids are handed out monotonically from
// 1 and records are never destroyed.
//
// The registry performs no authorization of its own beyond owner checks;
// the engine gates relay-only operations.
type Registry struct {
	db rawdb.KeyValueStore
}

// NewRegistry returns a registry backed by db.
func NewRegistry(db rawdb.KeyValueStore) *Registry {
	return &Registry{db: db}
}

// Create registers a new domain and returns its id.
func (r *Registry) Create(owner common.Address, vk, root common.Hash) (uint64, error) {
	count, err := rawdb.ReadDomainCount(r.db)
	if err != nil {
		return 0, err
	}
	id := count + 1
	d := &types.Domain{
		Owner:           owner,
		VerificationKey: vk,
		StateRoot:       root,
		Balance:         new(uint256.Int),
	}
	if err := rawdb.WriteDomain(r.db, id, d); err != nil {
		return 0, err
	}
	if err := rawdb.WriteDomainCount(r.db, id); err != nil {
		return 0, err
	}
	return id, nil
}

// Count returns how many domains were created.
func (r *Registry) Count() (uint64, error) {
	return rawdb.ReadDomainCount(r.db)
}

// Get returns a copy of the domain record.
func (r *Registry) Get(id uint64) (*types.Domain, error) {
	d, err := rawdb.ReadDomain(r.db, id)
	if errors.Is(err, rawdb.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrDomainNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *Registry) put(id uint64, d *types.Domain) error {
	return rawdb.WriteDomain(r.db, id, d)
}

// update loads a domain, applies fn and stores the result unless fn fails.
func (r *Registry) update(id uint64, fn func(d *types.Domain) error) error {
	d, err := r.Get(id)
	if err != nil {
		return err
	}
	if err := fn(d); err != nil {
		return err
	}
	return r.put(id, d)
}

func (r *Registry) ownerUpdate(caller common.Address, id uint64, fn func(d *types.Domain)) error {
	return r.update(id, func(d *types.Domain) error {
		if d.Owner != caller {
			return fmt.Errorf("%w: %s does not own domain %d", ErrUnauthorizedCaller, caller, id)
		}
		fn(d)
		return nil
	})
}

// SetStateRoot force-sets the state root. Only the owner may call it.
func (r *Registry) SetStateRoot(caller common.Address, id uint64, root common.Hash) error {
	return r.ownerUpdate(caller, id, func(d *types.Domain) { d.StateRoot = root })
}

// SetVerificationKey replaces the verification key. Only the owner may call
// it.
func (r *Registry) SetVerificationKey(caller common.Address, id uint64, vk common.Hash) error {
	return r.ownerUpdate(caller, id, func(d *types.Domain) { d.VerificationKey = vk })
}

// TransferOwnership hands the domain to a new owner. Only the owner may call
// it.
func (r *Registry) TransferOwnership(caller common.Address, id uint64, owner common.Address) error {
	return r.ownerUpdate(caller, id, func(d *types.Domain) { d.Owner = owner })
}

// setStateRoot writes a root without authorization. It is the engine's
// restore path after a reverted scope.
func (r *Registry) setStateRoot(id uint64, root common.Hash) error {
	return r.update(id, func(d *types.Domain) error {
		d.StateRoot = root
		return nil
	})
}

// Deposit credits amount to the domain balance.
func (r *Registry) Deposit(id uint64, amount *uint256.Int) error {
	return r.update(id, func(d *types.Domain) error {
		if _, overflow := d.Balance.AddOverflow(d.Balance, amount); overflow {
			return fmt.Errorf("%w: domain %d", ErrBalanceOverflow, id)
		}
		return nil
	})
}

// Withdraw debits amount from the domain balance. It fails closed: nothing
// changes when the balance is short.
func (r *Registry) Withdraw(id uint64, amount *uint256.Int) error {
	return r.update(id, func(d *types.Domain) error {
		if d.Balance.Lt(amount) {
			return fmt.Errorf("%w: domain %d has %s, needs %s", ErrInsufficientBalance, id, d.Balance, amount)
		}
		d.Balance.Sub(d.Balance, amount)
		return nil
	})
}

// addBalance applies a signed change to a domain record in place.
func addBalance(id uint64, d *types.Domain, delta *big.Int) error {
	if delta == nil || delta.Sign() == 0 {
		return nil
	}
	mag, overflow := uint256.FromBig(new(big.Int).Abs(delta))
	if overflow {
		if delta.Sign() < 0 {
			return fmt.Errorf("%w: domain %d", ErrInsufficientBalance, id)
		}
		return fmt.Errorf("%w: domain %d", ErrBalanceOverflow, id)
	}
	if delta.Sign() < 0 {
		if d.Balance.Lt(mag) {
			return fmt.Errorf("%w: domain %d has %s, delta %s", ErrInsufficientBalance, id, d.Balance, delta)
		}
		d.Balance.Sub(d.Balance, mag)
		return nil
	}
	if _, overflow := d.Balance.AddOverflow(d.Balance, mag); overflow {
		return fmt.Errorf("%w: domain %d", ErrBalanceOverflow, id)
	}
	return nil
}
