package crypto

import (
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Keccak256 calculates the Keccak-256 hash of the given data.
func Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// Keccak256Hash calculates Keccak-256 and returns it as a common.Hash.
func Keccak256Hash(data ...[]byte) common.Hash {
	return common.BytesToHash(Keccak256(data...))
}

// HashList hashes the concatenation of the given hashes. It is the packed
// form used to bind ordered lists of commitments into a single digest.
func HashList(hashes ...common.Hash) common.Hash {
	d := sha3.NewLegacyKeccak256()
	for i := range hashes {
		d.Write(hashes[i][:])
	}
	var h common.Hash
	d.Sum(h[:0])
	return h
}
