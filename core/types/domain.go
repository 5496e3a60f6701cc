package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// Domain is the registry record of one rollup.
type Domain struct {
	// Owner may force-set the state root and verification key and transfer
	// ownership without a proof.
	Owner common.Address

	// VerificationKey is bound into the public input of every proof that
	// touches the domain.
	VerificationKey common.Hash

	StateRoot common.Hash
	Balance   *uint256.Int
}

// Copy returns a deep copy of d.
func (d *Domain) Copy() *Domain {
	cpy := *d
	cpy.Balance = new(uint256.Int)
	if d.Balance != nil {
		cpy.Balance.Set(d.Balance)
	}
	return &cpy
}

// EncodeDomain returns the storage encoding of a domain record.
func EncodeDomain(d *Domain) ([]byte, error) {
	cpy := d.Copy()
	return rlp.EncodeToBytes(cpy)
}

// DecodeDomain decodes a domain record.
func DecodeDomain(enc []byte) (*Domain, error) {
	var d Domain
	if err := rlp.DecodeBytes(enc, &d); err != nil {
		return nil, err
	}
	if d.Balance == nil {
		d.Balance = new(uint256.Int)
	}
	return &d, nil
}

// StateCommitment is one entry of a batch commitment: the new state root of
// a domain and the signed change of its balance.
type StateCommitment struct {
	DomainID         uint64
	NewRoot          common.Hash
	BalanceIncrement *big.Int
}

// RelayInfo identifies the account a relay acts for.
type RelayInfo struct {
	OriginalAddress common.Address
	OriginalDomain  uint64
}
