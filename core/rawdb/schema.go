package rawdb

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

// Key prefixes for the database schema.
var (
	// Domain registry
	domainPrefix   = []byte("d")           // d + id (8 bytes BE) -> domain RLP
	domainCountKey = []byte("DomainCount") // -> next domain id (8 bytes BE)

	// Execution cache
	cacheCountPrefix = []byte("n") // n + action hash -> entry count (8 bytes BE)
	cacheEntryPrefix = []byte("e") // e + action hash + index (8 bytes BE) -> snappy(transition RLP)
	cacheTickPrefix  = []byte("t") // t + action hash + index (8 bytes BE) -> insertion tick (8 bytes BE)

	// Authorized relays
	relayPrefix = []byte("p") // p + relay address -> relay info RLP

	// Same-tick exclusivity marker
	lastUpdateKey = []byte("LastUpdate") // -> last update RLP

	// Commit-reveal shield
	commitmentPrefix = []byte("c") // c + commitment -> commitment record RLP

	// Settlement host simulator
	hostBalancePrefix = []byte("a")        // a + address -> balance (32 bytes BE)
	hostStoragePrefix = []byte("s")        // s + address + slot -> value
	hostTickKey       = []byte("HostTick") // -> current tick (8 bytes BE)
)

func encodeUint64(n uint64) []byte {
	enc := make([]byte, 8)
	binary.BigEndian.PutUint64(enc, n)
	return enc
}

func decodeUint64(b []byte) (uint64, bool) {
	if len(b) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(b), true
}

func concat(parts ...[]byte) []byte {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// domainKey = domainPrefix + id
func domainKey(id uint64) []byte {
	return concat(domainPrefix, encodeUint64(id))
}

// cacheCountKey = cacheCountPrefix + action hash
func cacheCountKey(action common.Hash) []byte {
	return concat(cacheCountPrefix, action[:])
}

// cacheEntryKey = cacheEntryPrefix + action hash + index
func cacheEntryKey(action common.Hash, index uint64) []byte {
	return concat(cacheEntryPrefix, action[:], encodeUint64(index))
}

// cacheTickKey = cacheTickPrefix + action hash + index
func cacheTickKey(action common.Hash, index uint64) []byte {
	return concat(cacheTickPrefix, action[:], encodeUint64(index))
}

// relayKey = relayPrefix + address
func relayKey(addr common.Address) []byte {
	return concat(relayPrefix, addr[:])
}

// commitmentKey = commitmentPrefix + commitment
func commitmentKey(commitment common.Hash) []byte {
	return concat(commitmentPrefix, commitment[:])
}

// hostBalanceKey = hostBalancePrefix + address
func hostBalanceKey(addr common.Address) []byte {
	return concat(hostBalancePrefix, addr[:])
}

// hostStorageKey = hostStoragePrefix + address + slot
func hostStorageKey(addr common.Address, slot common.Hash) []byte {
	return concat(hostStoragePrefix, addr[:], slot[:])
}
