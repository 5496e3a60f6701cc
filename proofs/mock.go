package proofs

import (
	"bytes"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MockVerifier is a test oracle with a fixed answer that records every
// public input it was asked about.
type MockVerifier struct {
	mu     sync.Mutex
	accept bool
	inputs []common.Hash
	proofs [][]byte
}

// NewMockVerifier returns a MockVerifier answering accept.
func NewMockVerifier(accept bool) *MockVerifier {
	return &MockVerifier{accept: accept}
}

// SetAccept changes the fixed answer.
func (m *MockVerifier) SetAccept(accept bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accept = accept
}

// Verify implements Verifier.
func (m *MockVerifier) Verify(proof []byte, publicInput common.Hash) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, publicInput)
	m.proofs = append(m.proofs, bytes.Clone(proof))
	return m.accept
}

// Calls returns how many times Verify was called.
func (m *MockVerifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inputs)
}

// LastInput returns the public input of the latest Verify call.
func (m *MockVerifier) LastInput() (common.Hash, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.inputs) == 0 {
		return common.Hash{}, false
	}
	return m.inputs[len(m.inputs)-1], true
}
