package crypto

import (
	"errors"
	"testing"
)

func TestKZGToVersionedHash(t *testing.T) {
	var commitment [KZGBytesPerCommitment]byte
	commitment[0] = 0xc0
	h := KZGToVersionedHash(commitment)
	if h[0] != 0x01 {
		t.Errorf("version byte = %#x, want 0x01", h[0])
	}
	other := commitment
	other[1] = 1
	if KZGToVersionedHash(other) == h {
		t.Error("different commitments produced the same versioned hash")
	}
}

func TestBlobCommitterRejectsBadSize(t *testing.T) {
	if testing.Short() {
		t.Skip("loads the KZG trusted setup")
	}
	c, err := DefaultBlobCommitter()
	if err != nil {
		t.Fatalf("DefaultBlobCommitter: %v", err)
	}
	if _, err := c.VersionedHash(make([]byte, 10)); !errors.Is(err, ErrKZGInvalidBlobSize) {
		t.Errorf("VersionedHash(short blob) error = %v, want %v", err, ErrKZGInvalidBlobSize)
	}
}

func TestBlobCommitterZeroBlob(t *testing.T) {
	if testing.Short() {
		t.Skip("loads the KZG trusted setup")
	}
	c, err := DefaultBlobCommitter()
	if err != nil {
		t.Fatalf("DefaultBlobCommitter: %v", err)
	}
	blob := make([]byte, KZGBytesPerBlob)
	commitment, err := c.Commit(blob)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	// the commitment to the zero polynomial is the point at infinity
	if commitment[0] != 0xc0 {
		t.Errorf("zero blob commitment prefix = %#x, want 0xc0", commitment[0])
	}
	h, err := c.VersionedHash(blob)
	if err != nil {
		t.Fatalf("VersionedHash: %v", err)
	}
	if h != KZGToVersionedHash(commitment) {
		t.Errorf("VersionedHash = %s, want %s", h, KZGToVersionedHash(commitment))
	}
}
