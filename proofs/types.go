// Package proofs provides the proof oracles the engine consults before
// admitting state commitments or precomputed transitions. An oracle is a
// pure function of the proof bytes and the public input fingerprint.
package proofs

import "github.com/ethereum/go-ethereum/common"

// Verifier checks a succinct proof against a public input fingerprint.
// A false result is authoritative; callers never retry.
type Verifier interface {
	Verify(proof []byte, publicInput common.Hash) bool
}

// VerifierFunc adapts an ordinary function to the Verifier interface.
type VerifierFunc func(proof []byte, publicInput common.Hash) bool

// Verify calls f(proof, publicInput).
func (f VerifierFunc) Verify(proof []byte, publicInput common.Hash) bool {
	return f(proof, publicInput)
}
