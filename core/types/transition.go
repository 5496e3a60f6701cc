package types

import (
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/eth2030/syncrollups/crypto"
)

var errNegativeZero = errors.New("types: negative zero balance delta")

// StateDelta is one domain's half of a transition. It applies only while
// the domain's live state root equals CurrentRoot.
type StateDelta struct {
	DomainID    uint64
	CurrentRoot common.Hash
	NewRoot     common.Hash

	// BalanceDelta is the signed change of the domain's native balance.
	// A nil delta is zero.
	BalanceDelta *big.Int
}

// Delta returns the balance delta, zero when unset.
func (d StateDelta) Delta() *big.Int {
	if d.BalanceDelta == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(d.BalanceDelta)
}

// stateDeltaRLP carries the balance delta as sign and magnitude, rlp only
// encodes non-negative integers.
type stateDeltaRLP struct {
	DomainID    uint64
	CurrentRoot common.Hash
	NewRoot     common.Hash
	Negative    bool
	Magnitude   *big.Int
}

// EncodeRLP implements rlp.Encoder.
func (d StateDelta) EncodeRLP(w io.Writer) error {
	delta := d.Delta()
	return rlp.Encode(w, &stateDeltaRLP{
		DomainID:    d.DomainID,
		CurrentRoot: d.CurrentRoot,
		NewRoot:     d.NewRoot,
		Negative:    delta.Sign() < 0,
		Magnitude:   delta.Abs(delta),
	})
}

// DecodeRLP implements rlp.Decoder.
func (d *StateDelta) DecodeRLP(s *rlp.Stream) error {
	var dec stateDeltaRLP
	if err := s.Decode(&dec); err != nil {
		return err
	}
	delta := new(big.Int).Set(dec.Magnitude)
	if dec.Negative {
		if delta.Sign() == 0 {
			return errNegativeZero
		}
		delta.Neg(delta)
	}
	*d = StateDelta{
		DomainID:     dec.DomainID,
		CurrentRoot:  dec.CurrentRoot,
		NewRoot:      dec.NewRoot,
		BalanceDelta: delta,
	}
	return nil
}

// Transition is a precomputed, proof-backed state change: if the action
// with fingerprint ActionHash occurs while every domain in Deltas is at its
// CurrentRoot, all deltas apply together and execution continues with
// NextAction.
type Transition struct {
	Deltas     []StateDelta
	ActionHash common.Hash
	NextAction Action
}

// Encode returns the canonical encoding of the transition.
func (t *Transition) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(t)
}

// DecodeTransition decodes a transition from its canonical encoding.
func DecodeTransition(enc []byte) (*Transition, error) {
	var t Transition
	if err := rlp.DecodeBytes(enc, &t); err != nil {
		return nil, fmt.Errorf("types: decode transition: %w", err)
	}
	return &t, nil
}

// Hash returns the keccak256 of the canonical encoding. The insertion time
// of a cached transition is not part of it.
func (t *Transition) Hash() common.Hash {
	enc, err := t.Encode()
	if err != nil {
		panic(fmt.Sprintf("types: transition encoding failed: %v", err))
	}
	return crypto.Keccak256Hash(enc)
}

// Domains returns the ids of the domains the transition touches, in delta
// order.
func (t *Transition) Domains() []uint64 {
	ids := make([]uint64, len(t.Deltas))
	for i, d := range t.Deltas {
		ids[i] = d.DomainID
	}
	return ids
}

// TransitionsHash hashes an ordered list of transitions. It is the digest
// clients commit to in the commit-reveal shield.
func TransitionsHash(ts []*Transition) common.Hash {
	hashes := make([]common.Hash, len(ts))
	for i, t := range ts {
		hashes[i] = t.Hash()
	}
	return crypto.HashList(hashes...)
}
