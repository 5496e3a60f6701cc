package proofs

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	blst "github.com/supranational/blst/bindings/go"
)

// blsDST is the domain separation tag of the proof-of-possession scheme.
var blsDST = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_POP_")

// Key and signature sizes for the MinPk scheme.
const (
	BLSPubkeySize    = 48 // compressed G1
	BLSSignatureSize = 96 // compressed G2
)

var (
	ErrEmptyCommittee   = errors.New("proofs: committee has no members")
	ErrInvalidPublicKey = errors.New("proofs: invalid BLS public key")
)

// BLSCommitteeVerifier accepts a proof when it is the aggregate BLS
// signature of every committee member over the public input. It models a
// fixed attestation committee vouching for an off-chain prover's output.
type BLSCommitteeVerifier struct {
	members []*blst.P1Affine
}

// NewBLSCommitteeVerifier parses compressed G1 public keys.
func NewBLSCommitteeVerifier(pubkeys [][]byte) (*BLSCommitteeVerifier, error) {
	if len(pubkeys) == 0 {
		return nil, ErrEmptyCommittee
	}
	members := make([]*blst.P1Affine, len(pubkeys))
	for i, raw := range pubkeys {
		if len(raw) != BLSPubkeySize {
			return nil, fmt.Errorf("%w: member %d has %d bytes", ErrInvalidPublicKey, i, len(raw))
		}
		pk := new(blst.P1Affine).Uncompress(raw)
		if pk == nil || !pk.KeyValidate() {
			return nil, fmt.Errorf("%w: member %d", ErrInvalidPublicKey, i)
		}
		members[i] = pk
	}
	return &BLSCommitteeVerifier{members: members}, nil
}

// Size returns the number of committee members.
func (v *BLSCommitteeVerifier) Size() int { return len(v.members) }

// Verify implements Verifier.
func (v *BLSCommitteeVerifier) Verify(proof []byte, publicInput common.Hash) bool {
	if len(proof) != BLSSignatureSize {
		return false
	}
	sig := new(blst.P2Affine).Uncompress(proof)
	if sig == nil {
		return false
	}
	return sig.FastAggregateVerify(true, v.members, publicInput[:], blsDST)
}

// BLSSigner is one committee member's key, used by provers and tests.
type BLSSigner struct {
	sk *blst.SecretKey
	pk *blst.P1Affine
}

// NewBLSSigner derives a key from at least 32 bytes of input key material.
func NewBLSSigner(ikm []byte) (*BLSSigner, error) {
	if len(ikm) < 32 {
		return nil, errors.New("proofs: IKM must be at least 32 bytes")
	}
	sk := blst.KeyGen(ikm)
	if sk == nil {
		return nil, errors.New("proofs: BLS key generation failed")
	}
	return &BLSSigner{sk: sk, pk: new(blst.P1Affine).From(sk)}, nil
}

// PublicKey returns the compressed G1 public key.
func (s *BLSSigner) PublicKey() []byte {
	return s.pk.Compress()
}

// Sign signs a public input.
func (s *BLSSigner) Sign(publicInput common.Hash) []byte {
	return new(blst.P2Affine).Sign(s.sk, publicInput[:], blsDST).Compress()
}

// AggregateSignatures combines compressed member signatures into a proof.
func AggregateSignatures(sigs [][]byte) ([]byte, error) {
	if len(sigs) == 0 {
		return nil, errors.New("proofs: no signatures to aggregate")
	}
	points := make([]*blst.P2Affine, len(sigs))
	for i, raw := range sigs {
		points[i] = new(blst.P2Affine).Uncompress(raw)
		if points[i] == nil {
			return nil, fmt.Errorf("proofs: invalid signature %d", i)
		}
	}
	agg := new(blst.P2Aggregate)
	if !agg.Aggregate(points, true) {
		return nil, errors.New("proofs: signature aggregation failed")
	}
	return agg.ToAffine().Compress(), nil
}
