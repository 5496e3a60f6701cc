package proofs

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"

	"github.com/eth2030/syncrollups/crypto"
)

// hashProofDomain separates dev-mode proofs from any other keccak preimage.
var hashProofDomain = []byte("syncrollups/hash-proof/v1")

// HashVerifier is a development oracle: a proof is valid iff it equals
// keccak256(domain, key, publicInput). Anyone holding Key can produce
// proofs, so it only stands in for a prover that shares a secret with the
// settlement layer.
type HashVerifier struct {
	Key []byte
}

// NewHashVerifier returns a HashVerifier keyed with key.
func NewHashVerifier(key []byte) *HashVerifier {
	return &HashVerifier{Key: bytes.Clone(key)}
}

// Prove produces the proof HashVerifier accepts for publicInput.
func (v *HashVerifier) Prove(publicInput common.Hash) []byte {
	return crypto.Keccak256(hashProofDomain, v.Key, publicInput[:])
}

// Verify implements Verifier.
func (v *HashVerifier) Verify(proof []byte, publicInput common.Hash) bool {
	return bytes.Equal(proof, v.Prove(publicInput))
}
