package rollup

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/eth2030/syncrollups/core/types"
	"github.com/eth2030/syncrollups/crypto"
)

// Domain separators of the two public-input kinds.
const (
	batchInputTag     byte = 0x00
	executionInputTag byte = 0x01
)

var (
	maxInt256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1))
	minInt256 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 255))
)

// int256Bytes returns the 32-byte two's complement encoding of x.
func int256Bytes(x *big.Int) ([]byte, error) {
	if x == nil {
		x = new(big.Int)
	}
	if x.Cmp(minInt256) < 0 || x.Cmp(maxInt256) > 0 {
		return nil, fmt.Errorf("%w: increment %s out of int256 range", ErrBalanceOverflow, x)
	}
	return math.U256Bytes(new(big.Int).Set(x)), nil
}

// sharedDataHash binds the blobs and the inline shared data of a batch.
func (e *Engine) sharedDataHash(blobCount uint64, sharedData []byte) (common.Hash, error) {
	blobs, err := e.host.BlobHashes(blobCount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrBlobNotAvailable, err)
	}
	if uint64(len(blobs)) != blobCount {
		return common.Hash{}, fmt.Errorf("%w: want %d blobs, have %d", ErrBlobNotAvailable, blobCount, len(blobs))
	}
	return crypto.HashList(append(blobs, crypto.Keccak256Hash(sharedData))...), nil
}

// batchPublicInput derives the statement a batch proof attests to. It binds
// the tick randomness, every commitment together with the live root and
// verification key of its domain, and the shared data.
func (e *Engine) batchPublicInput(commitments []types.StateCommitment, blobCount uint64, sharedData []byte) (common.Hash, error) {
	shared, err := e.sharedDataHash(blobCount, sharedData)
	if err != nil {
		return common.Hash{}, err
	}
	randomness := e.host.Randomness()
	parts := [][]byte{{batchInputTag}, randomness[:]}
	for _, c := range commitments {
		d, err := e.registry.Get(c.DomainID)
		if err != nil {
			return common.Hash{}, err
		}
		inc, err := int256Bytes(c.BalanceIncrement)
		if err != nil {
			return common.Hash{}, err
		}
		parts = append(parts,
			common.LeftPadBytes(new(big.Int).SetUint64(c.DomainID).Bytes(), 32),
			c.NewRoot.Bytes(),
			inc,
			d.StateRoot.Bytes(),
			d.VerificationKey.Bytes(),
		)
	}
	parts = append(parts, shared[:])
	return crypto.Keccak256Hash(parts...), nil
}

// executionPublicInput derives the statement a load proof attests to: every
// transition hash bound to the verification keys of the domains it touches.
func (e *Engine) executionPublicInput(ts []*types.Transition) (common.Hash, error) {
	parts := [][]byte{{executionInputTag}}
	for _, t := range ts {
		entry := [][]byte{t.Hash().Bytes()}
		for _, delta := range t.Deltas {
			d, err := e.registry.Get(delta.DomainID)
			if err != nil {
				return common.Hash{}, err
			}
			entry = append(entry, d.VerificationKey.Bytes())
		}
		parts = append(parts, crypto.Keccak256(entry...))
	}
	return crypto.Keccak256Hash(parts...), nil
}

// BatchPublicInput returns the public input a proof for PostBatch must
// attest to in the current tick.
func (e *Engine) BatchPublicInput(commitments []types.StateCommitment, blobCount uint64, sharedData []byte) (common.Hash, error) {
	return e.batchPublicInput(commitments, blobCount, sharedData)
}

// ExecutionPublicInput returns the public input a proof for LoadExecutions
// must attest to.
func (e *Engine) ExecutionPublicInput(ts []*types.Transition) (common.Hash, error) {
	return e.executionPublicInput(ts)
}

// PostBatch applies a proven batch of per-domain state commitments. The
// increments must sum to zero so that value only moves between domains, and
// no balance may go negative. The whole batch applies or nothing does.
func (e *Engine) PostBatch(commitments []types.StateCommitment, blobCount uint64, sharedData, proof []byte) error {
	if len(commitments) == 0 {
		return ErrEmptyBatch
	}
	err := e.atomic(func() error {
		if err := e.checkUpdate(updateBatch); err != nil {
			return err
		}
		input, err := e.batchPublicInput(commitments, blobCount, sharedData)
		if err != nil {
			return err
		}
		if !e.verifier.Verify(proof, input) {
			e.metrics.ProofsRejected.WithLabelValues("batch").Inc()
			return fmt.Errorf("%w: batch input %s", ErrInvalidProof, input)
		}
		sum := new(big.Int)
		for _, c := range commitments {
			if c.BalanceIncrement != nil {
				sum.Add(sum, c.BalanceIncrement)
			}
		}
		if sum.Sign() != 0 {
			return fmt.Errorf("%w: sum %s", ErrEtherIncrementsSumNotZero, sum)
		}
		for _, c := range commitments {
			err := e.registry.update(c.DomainID, func(d *types.Domain) error {
				d.StateRoot = c.NewRoot
				return addBalance(c.DomainID, d, c.BalanceIncrement)
			})
			if err != nil {
				return err
			}
		}
		return e.markUpdated(updateBatch)
	})
	if err != nil {
		return err
	}
	e.metrics.BatchesCommitted.Inc()
	e.log.Info("Committed batch", "domains", len(commitments), "blobs", blobCount, "tick", e.host.Tick())
	return nil
}

// LoadExecutions admits proven transitions into the execution cache, each
// keyed by the fingerprint of the action that triggers it. Roots are not
// checked here: a transition only becomes usable when live state reaches
// its expected roots.
func (e *Engine) LoadExecutions(ts []*types.Transition, proof []byte) error {
	if len(ts) == 0 {
		return ErrEmptyExecutions
	}
	err := e.atomic(func() error {
		if err := e.checkUpdate(updateExecution); err != nil {
			return err
		}
		input, err := e.executionPublicInput(ts)
		if err != nil {
			return err
		}
		if !e.verifier.Verify(proof, input) {
			e.metrics.ProofsRejected.WithLabelValues("load").Inc()
			return fmt.Errorf("%w: execution input %s", ErrInvalidProof, input)
		}
		for _, t := range ts {
			if _, err := e.cache.Insert(t.ActionHash, t); err != nil {
				return err
			}
		}
		return e.markUpdated(updateExecution)
	})
	if err != nil {
		return err
	}
	e.metrics.TransitionsLoaded.Add(float64(len(ts)))
	e.log.Info("Loaded transitions", "count", len(ts), "tick", e.host.Tick())
	return nil
}
