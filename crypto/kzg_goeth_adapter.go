// Blob commitments for batch data availability.
//
// Batches posted by rollup sequencers reference blobs by their versioned
// hash: sha256(KZG commitment) with the first byte replaced by the KZG
// version byte. Commitments are computed with crate-crypto/go-eth-kzg
// against the Ethereum ceremony SRS.
package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	goethkzg "github.com/crate-crypto/go-eth-kzg"
	"github.com/ethereum/go-ethereum/common"
)

// Blob and commitment sizes.
const (
	KZGBytesPerBlob       = 131072
	KZGBytesPerCommitment = 48

	// BlobCommitmentVersionKZG is the version byte of KZG versioned hashes.
	BlobCommitmentVersionKZG byte = 0x01
)

var ErrKZGInvalidBlobSize = errors.New("kzg: invalid blob size")

// BlobCommitter computes KZG commitments and versioned hashes for blobs.
type BlobCommitter struct {
	ctx *goethkzg.Context
}

var (
	defaultCommitterOnce sync.Once
	defaultCommitter     *BlobCommitter
	defaultCommitterErr  error
)

// NewBlobCommitter initializes a go-eth-kzg context with the embedded
// trusted setup. This takes a few seconds; prefer DefaultBlobCommitter.
func NewBlobCommitter() (*BlobCommitter, error) {
	ctx, err := goethkzg.NewContext4096Secure()
	if err != nil {
		return nil, fmt.Errorf("kzg: failed to initialize go-eth-kzg context: %w", err)
	}
	return &BlobCommitter{ctx: ctx}, nil
}

// DefaultBlobCommitter returns a process-wide committer, initializing it on
// first use.
func DefaultBlobCommitter() (*BlobCommitter, error) {
	defaultCommitterOnce.Do(func() {
		defaultCommitter, defaultCommitterErr = NewBlobCommitter()
	})
	return defaultCommitter, defaultCommitterErr
}

// Commit returns the KZG commitment of a blob. Every 32-byte field element
// must be a canonical BLS scalar.
func (c *BlobCommitter) Commit(blob []byte) ([KZGBytesPerCommitment]byte, error) {
	var out [KZGBytesPerCommitment]byte
	if len(blob) != KZGBytesPerBlob {
		return out, ErrKZGInvalidBlobSize
	}
	var b goethkzg.Blob
	copy(b[:], blob)

	comm, err := c.ctx.BlobToKZGCommitment(&b, 0)
	if err != nil {
		return out, fmt.Errorf("kzg: BlobToKZGCommitment failed: %w", err)
	}
	return [KZGBytesPerCommitment]byte(comm), nil
}

// VersionedHash commits to a blob and returns its versioned hash.
func (c *BlobCommitter) VersionedHash(blob []byte) (common.Hash, error) {
	comm, err := c.Commit(blob)
	if err != nil {
		return common.Hash{}, err
	}
	return KZGToVersionedHash(comm), nil
}

// KZGToVersionedHash converts a KZG commitment into its versioned hash.
func KZGToVersionedHash(commitment [KZGBytesPerCommitment]byte) common.Hash {
	h := sha256.Sum256(commitment[:])
	h[0] = BlobCommitmentVersionKZG
	return common.Hash(h)
}
