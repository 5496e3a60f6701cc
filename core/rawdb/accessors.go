package rawdb

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/golang/snappy"
	"github.com/holiman/uint256"

	"github.com/eth2030/syncrollups/core/types"
)

// --- Domain Accessors ---

// ReadDomain retrieves a domain record. Returns ErrNotFound if the domain
// was never created.
func ReadDomain(db KeyValueReader, id uint64) (*types.Domain, error) {
	data, err := db.Get(domainKey(id))
	if err != nil {
		return nil, err
	}
	return types.DecodeDomain(data)
}

// WriteDomain stores a domain record.
func WriteDomain(db KeyValueWriter, id uint64, d *types.Domain) error {
	enc, err := types.EncodeDomain(d)
	if err != nil {
		return fmt.Errorf("rawdb: encode domain %d: %w", id, err)
	}
	return db.Put(domainKey(id), enc)
}

// ReadDomainCount returns the number of ids handed out so far.
func ReadDomainCount(db KeyValueReader) (uint64, error) {
	return readUint64(db, domainCountKey)
}

// WriteDomainCount stores the number of ids handed out so far.
func WriteDomainCount(db KeyValueWriter, n uint64) error {
	return db.Put(domainCountKey, encodeUint64(n))
}

// --- Execution Cache Accessors ---

// ReadCacheCount returns the number of transitions stored for an action.
func ReadCacheCount(db KeyValueReader, action common.Hash) (uint64, error) {
	return readUint64(db, cacheCountKey(action))
}

// WriteCacheCount stores the number of transitions for an action. A zero
// count removes the key.
func WriteCacheCount(db KeyValueWriter, action common.Hash, n uint64) error {
	if n == 0 {
		return db.Delete(cacheCountKey(action))
	}
	return db.Put(cacheCountKey(action), encodeUint64(n))
}

// IterateCacheCounts calls fn for every action fingerprint holding at least
// one transition, in ascending fingerprint order. Iteration stops early when
// fn returns false.
func IterateCacheCounts(db Iteratee, fn func(action common.Hash, n uint64) bool) error {
	it := db.NewIterator(cacheCountPrefix)
	defer it.Release()

	for it.Next() {
		key := it.Key()
		if len(key) != len(cacheCountPrefix)+common.HashLength {
			continue
		}
		n, ok := decodeUint64(it.Value())
		if !ok {
			return fmt.Errorf("rawdb: malformed counter at %x", key)
		}
		if !fn(common.BytesToHash(key[len(cacheCountPrefix):]), n) {
			break
		}
	}
	return it.Error()
}

// ReadCacheEntry retrieves the raw (snappy-compressed) transition stored at
// index. The raw form is what moves during swap-removal.
func ReadCacheEntry(db KeyValueReader, action common.Hash, index uint64) ([]byte, error) {
	return db.Get(cacheEntryKey(action, index))
}

// DecodeCacheEntry decompresses and decodes a raw cache entry.
func DecodeCacheEntry(raw []byte) (*types.Transition, error) {
	enc, err := snappy.Decode(nil, raw)
	if err != nil {
		return nil, fmt.Errorf("rawdb: corrupt cache entry: %w", err)
	}
	return types.DecodeTransition(enc)
}

// WriteCacheEntry encodes, compresses and stores a transition at index.
func WriteCacheEntry(db KeyValueWriter, action common.Hash, index uint64, t *types.Transition) error {
	enc, err := t.Encode()
	if err != nil {
		return fmt.Errorf("rawdb: encode transition: %w", err)
	}
	return WriteRawCacheEntry(db, action, index, snappy.Encode(nil, enc))
}

// WriteRawCacheEntry stores an already compressed entry at index.
func WriteRawCacheEntry(db KeyValueWriter, action common.Hash, index uint64, raw []byte) error {
	return db.Put(cacheEntryKey(action, index), raw)
}

// DeleteCacheEntry removes the entry and its insertion tick at index.
func DeleteCacheEntry(db KeyValueWriter, action common.Hash, index uint64) error {
	if err := db.Delete(cacheEntryKey(action, index)); err != nil {
		return err
	}
	return db.Delete(cacheTickKey(action, index))
}

// ReadCacheEntryTick returns the tick at which the entry at index was
// inserted.
func ReadCacheEntryTick(db KeyValueReader, action common.Hash, index uint64) (uint64, error) {
	return readUint64(db, cacheTickKey(action, index))
}

// WriteCacheEntryTick records the insertion tick of the entry at index.
func WriteCacheEntryTick(db KeyValueWriter, action common.Hash, index uint64, tick uint64) error {
	return db.Put(cacheTickKey(action, index), encodeUint64(tick))
}

// --- Relay Accessors ---

// ReadRelay returns the info of an authorized relay.
func ReadRelay(db KeyValueReader, addr common.Address) (*types.RelayInfo, error) {
	data, err := db.Get(relayKey(addr))
	if err != nil {
		return nil, err
	}
	var info types.RelayInfo
	if err := rlp.DecodeBytes(data, &info); err != nil {
		return nil, fmt.Errorf("rawdb: decode relay %s: %w", addr, err)
	}
	return &info, nil
}

// HasRelay reports whether addr is an authorized relay.
func HasRelay(db KeyValueReader, addr common.Address) bool {
	ok, _ := db.Has(relayKey(addr))
	return ok
}

// WriteRelay authorizes a relay.
func WriteRelay(db KeyValueWriter, addr common.Address, info *types.RelayInfo) error {
	enc, err := rlp.EncodeToBytes(info)
	if err != nil {
		return err
	}
	return db.Put(relayKey(addr), enc)
}

// --- Last Update Accessors ---

// LastUpdate records the tick and kind of the latest state mutation.
type LastUpdate struct {
	Tick   uint64
	Source uint8
}

// ReadLastUpdate returns the last update marker, the zero marker if none
// was written yet.
func ReadLastUpdate(db KeyValueReader) (LastUpdate, error) {
	var lu LastUpdate
	data, err := db.Get(lastUpdateKey)
	if errors.Is(err, ErrNotFound) {
		return lu, nil
	}
	if err != nil {
		return lu, err
	}
	if err := rlp.DecodeBytes(data, &lu); err != nil {
		return lu, fmt.Errorf("rawdb: decode last update: %w", err)
	}
	return lu, nil
}

// WriteLastUpdate stores the last update marker.
func WriteLastUpdate(db KeyValueWriter, lu LastUpdate) error {
	enc, err := rlp.EncodeToBytes(&lu)
	if err != nil {
		return err
	}
	return db.Put(lastUpdateKey, enc)
}

// --- Commitment Accessors ---

// CommitmentRecord is a pending commit-reveal commitment.
type CommitmentRecord struct {
	Owner common.Address
	Tick  uint64
}

// ReadCommitment returns a pending commitment.
func ReadCommitment(db KeyValueReader, commitment common.Hash) (*CommitmentRecord, error) {
	data, err := db.Get(commitmentKey(commitment))
	if err != nil {
		return nil, err
	}
	var rec CommitmentRecord
	if err := rlp.DecodeBytes(data, &rec); err != nil {
		return nil, fmt.Errorf("rawdb: decode commitment: %w", err)
	}
	return &rec, nil
}

// WriteCommitment stores a pending commitment.
func WriteCommitment(db KeyValueWriter, commitment common.Hash, rec *CommitmentRecord) error {
	enc, err := rlp.EncodeToBytes(rec)
	if err != nil {
		return err
	}
	return db.Put(commitmentKey(commitment), enc)
}

// DeleteCommitment removes a commitment.
func DeleteCommitment(db KeyValueWriter, commitment common.Hash) error {
	return db.Delete(commitmentKey(commitment))
}

// --- Host Accessors ---

// ReadHostBalance returns the settlement-layer balance of an account, zero
// for unknown accounts.
func ReadHostBalance(db KeyValueReader, addr common.Address) (*uint256.Int, error) {
	data, err := db.Get(hostBalanceKey(addr))
	if errors.Is(err, ErrNotFound) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(data), nil
}

// WriteHostBalance stores the settlement-layer balance of an account.
func WriteHostBalance(db KeyValueWriter, addr common.Address, bal *uint256.Int) error {
	if bal.IsZero() {
		return db.Delete(hostBalanceKey(addr))
	}
	enc := bal.Bytes32()
	return db.Put(hostBalanceKey(addr), enc[:])
}

// ReadHostStorage returns a contract storage slot, the zero hash if unset.
func ReadHostStorage(db KeyValueReader, addr common.Address, slot common.Hash) (common.Hash, error) {
	data, err := db.Get(hostStorageKey(addr, slot))
	if errors.Is(err, ErrNotFound) {
		return common.Hash{}, nil
	}
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(data), nil
}

// WriteHostStorage stores a contract storage slot. Zero values are deleted.
func WriteHostStorage(db KeyValueWriter, addr common.Address, slot, value common.Hash) error {
	if value == (common.Hash{}) {
		return db.Delete(hostStorageKey(addr, slot))
	}
	return db.Put(hostStorageKey(addr, slot), value[:])
}

// ReadHostTick returns the persisted settlement-layer tick.
func ReadHostTick(db KeyValueReader) (uint64, error) {
	return readUint64(db, hostTickKey)
}

// WriteHostTick persists the settlement-layer tick.
func WriteHostTick(db KeyValueWriter, tick uint64) error {
	return db.Put(hostTickKey, encodeUint64(tick))
}

// readUint64 reads an 8-byte counter, treating a missing key as zero.
func readUint64(db KeyValueReader, key []byte) (uint64, error) {
	data, err := db.Get(key)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, ok := decodeUint64(data)
	if !ok {
		return 0, fmt.Errorf("rawdb: malformed counter at %x", key)
	}
	return n, nil
}
