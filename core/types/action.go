// Package types defines the data structures shared by the cross-domain
// execution engine: actions, state deltas, precomputed transitions and
// domain records.
package types

import (
	"fmt"
	"io"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"github.com/eth2030/syncrollups/crypto"
)

// SettlementDomainID identifies the settlement layer itself. Registered
// rollup domains are numbered from 1.
const SettlementDomainID uint64 = 0

// ActionType tags the variant carried by an Action.
type ActionType uint8

const (
	ActionCall ActionType = iota
	ActionResult
	ActionTx
	ActionRevert
	ActionRevertContinue
)

// String returns the lowercase action type name.
func (t ActionType) String() string {
	switch t {
	case ActionCall:
		return "call"
	case ActionResult:
		return "result"
	case ActionTx:
		return "tx"
	case ActionRevert:
		return "revert"
	case ActionRevertContinue:
		return "revert_continue"
	default:
		return fmt.Sprintf("action(%d)", uint8(t))
	}
}

// ParseActionType is the inverse of ActionType.String.
func ParseActionType(s string) (ActionType, error) {
	for t := ActionCall; t <= ActionRevertContinue; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("types: unknown action type %q", s)
}

// Action is one step of a cross-domain call chain. Fields that do not apply
// to a variant are left zero; the zero values take part in the encoding, so
// constructors should be preferred over struct literals.
//
// Actions are values: they are never mutated once built, and every
// modification produces a new Action.
type Action struct {
	Type ActionType

	// DomainID is the destination domain of a Call, the domain a Tx is bound
	// to, or the domain a Revert/RevertContinue refers to.
	DomainID uint64

	Destination common.Address
	Value       *uint256.Int
	Data        []byte
	Failed      bool

	SourceAddress common.Address
	SourceDomain  uint64

	// Scope is the path of the call-tree node the action belongs to.
	Scope []uint64
}

// NewCall builds a Call action.
func NewCall(domainID uint64, dest common.Address, value *uint256.Int, data []byte, source common.Address, sourceDomain uint64, scope []uint64) Action {
	return Action{
		Type:          ActionCall,
		DomainID:      domainID,
		Destination:   dest,
		Value:         cloneValue(value),
		Data:          common.CopyBytes(data),
		SourceAddress: source,
		SourceDomain:  sourceDomain,
		Scope:         slices.Clone(scope),
	}
}

// NewResult builds a Result action for the given domain.
func NewResult(domainID uint64, failed bool, data []byte) Action {
	return Action{
		Type:     ActionResult,
		DomainID: domainID,
		Data:     common.CopyBytes(data),
		Failed:   failed,
	}
}

// NewTx builds a Tx action carrying a raw domain transaction.
func NewTx(domainID uint64, tx []byte) Action {
	return Action{
		Type:     ActionTx,
		DomainID: domainID,
		Data:     common.CopyBytes(tx),
	}
}

// NewRevert builds a Revert action for the domain at the given scope.
func NewRevert(domainID uint64, scope []uint64) Action {
	return Action{
		Type:     ActionRevert,
		DomainID: domainID,
		Scope:    slices.Clone(scope),
	}
}

// NewRevertContinue builds the marker used to fetch the action resuming
// execution after a reverted scope.
func NewRevertContinue(domainID uint64) Action {
	return Action{
		Type:     ActionRevertContinue,
		DomainID: domainID,
		Failed:   true,
	}
}

// Succeeded reports whether a is a Result that did not fail.
func (a Action) Succeeded() bool {
	return a.Type == ActionResult && !a.Failed
}

// CallValue returns the action value, zero when unset.
func (a Action) CallValue() *uint256.Int {
	if a.Value == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(a.Value)
}

// actionRLP is the canonical encoding layout of an Action.
type actionRLP struct {
	Type          uint8
	DomainID      uint64
	Destination   common.Address
	Value         *uint256.Int
	Data          []byte
	Failed        bool
	SourceAddress common.Address
	SourceDomain  uint64
	Scope         []uint64
}

func (a Action) toRLP() *actionRLP {
	scope := a.Scope
	if scope == nil {
		scope = []uint64{}
	}
	return &actionRLP{
		Type:          uint8(a.Type),
		DomainID:      a.DomainID,
		Destination:   a.Destination,
		Value:         a.CallValue(),
		Data:          a.Data,
		Failed:        a.Failed,
		SourceAddress: a.SourceAddress,
		SourceDomain:  a.SourceDomain,
		Scope:         scope,
	}
}

// EncodeRLP implements rlp.Encoder.
func (a Action) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, a.toRLP())
}

// DecodeRLP implements rlp.Decoder.
func (a *Action) DecodeRLP(s *rlp.Stream) error {
	var dec actionRLP
	if err := s.Decode(&dec); err != nil {
		return err
	}
	if ActionType(dec.Type) > ActionRevertContinue {
		return fmt.Errorf("types: invalid action type %d", dec.Type)
	}
	*a = Action{
		Type:          ActionType(dec.Type),
		DomainID:      dec.DomainID,
		Destination:   dec.Destination,
		Value:         dec.Value,
		Data:          dec.Data,
		Failed:        dec.Failed,
		SourceAddress: dec.SourceAddress,
		SourceDomain:  dec.SourceDomain,
		Scope:         dec.Scope,
	}
	return nil
}

// Encode returns the canonical encoding of the action.
func (a Action) Encode() []byte {
	enc, err := rlp.EncodeToBytes(a.toRLP())
	if err != nil {
		// Every field of actionRLP has a fixed rlp representation.
		panic(fmt.Sprintf("types: action encoding failed: %v", err))
	}
	return enc
}

// DecodeAction decodes an action from its canonical encoding.
func DecodeAction(enc []byte) (Action, error) {
	var a Action
	if err := rlp.DecodeBytes(enc, &a); err != nil {
		return Action{}, err
	}
	return a, nil
}

// Hash returns the action fingerprint, the keccak256 of its canonical
// encoding. Nil and empty byte slices and scopes encode alike.
func (a Action) Hash() common.Hash {
	return crypto.Keccak256Hash(a.Encode())
}

func cloneValue(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}
