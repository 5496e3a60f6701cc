package rawdb

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// minCache is the smallest block cache handed to pebble.
const minCache = 8 << 20

// PebbleDB is a persistent Database backed by cockroachdb/pebble.
type PebbleDB struct {
	db   *pebble.DB
	path string
}

// NewPebbleDB opens (creating if needed) a pebble database in dir.
// cacheSize is the block cache size in bytes.
func NewPebbleDB(dir string, cacheSize int64) (*PebbleDB, error) {
	return openPebble(dir, cacheSize, vfs.Default)
}

// NewMemPebbleDB opens a pebble database on an in-memory filesystem. Nothing
// survives Close.
func NewMemPebbleDB() (*PebbleDB, error) {
	return openPebble("", minCache, vfs.NewMem())
}

func openPebble(dir string, cacheSize int64, fs vfs.FS) (*PebbleDB, error) {
	if cacheSize < minCache {
		cacheSize = minCache
	}
	cache := pebble.NewCache(cacheSize)
	defer cache.Unref()

	db, err := pebble.Open(dir, &pebble.Options{
		Cache:        cache,
		MaxOpenFiles: 256,
		FS:           fs,
	})
	if err != nil {
		return nil, fmt.Errorf("rawdb: open pebble at %q: %w", dir, err)
	}
	return &PebbleDB{db: db, path: dir}, nil
}

// Path returns the directory the database lives in.
func (d *PebbleDB) Path() string { return d.path }

func (d *PebbleDB) Has(key []byte) (bool, error) {
	_, closer, err := d.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, closer.Close()
}

func (d *PebbleDB) Get(key []byte) ([]byte, error) {
	val, closer, err := d.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ret := bytes.Clone(val)
	if err := closer.Close(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (d *PebbleDB) Put(key, value []byte) error {
	return d.db.Set(key, value, pebble.Sync)
}

func (d *PebbleDB) Delete(key []byte) error {
	return d.db.Delete(key, pebble.Sync)
}

func (d *PebbleDB) Close() error {
	return d.db.Close()
}

// NewBatch creates a write batch committed with fsync.
func (d *PebbleDB) NewBatch() Batch {
	return &pebbleBatch{b: d.db.NewBatch()}
}

// NewIterator returns an iterator over the keys sharing prefix.
func (d *PebbleDB) NewIterator(prefix []byte) Iterator {
	iter, err := d.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return &pebbleIterator{err: err}
	}
	return &pebbleIterator{iter: iter}
}

// upperBound returns the smallest key greater than every key with the given
// prefix, or nil when no such key exists.
func upperBound(prefix []byte) []byte {
	limit := bytes.Clone(prefix)
	for i := len(limit) - 1; i >= 0; i-- {
		limit[i]++
		if limit[i] != 0 {
			return limit[:i+1]
		}
	}
	return nil
}

type pebbleBatch struct {
	b    *pebble.Batch
	size int
}

func (b *pebbleBatch) Put(key, value []byte) error {
	b.size += len(key) + len(value)
	return b.b.Set(key, value, nil)
}

func (b *pebbleBatch) Delete(key []byte) error {
	b.size += len(key)
	return b.b.Delete(key, nil)
}

func (b *pebbleBatch) ValueSize() int { return b.size }

func (b *pebbleBatch) Write() error {
	return b.b.Commit(pebble.Sync)
}

func (b *pebbleBatch) Reset() {
	b.b.Reset()
	b.size = 0
}

type pebbleIterator struct {
	iter  *pebble.Iterator
	moved bool
	err   error
}

func (it *pebbleIterator) Next() bool {
	if it.iter == nil {
		return false
	}
	if !it.moved {
		it.moved = true
		return it.iter.First()
	}
	return it.iter.Next()
}

func (it *pebbleIterator) Key() []byte {
	if it.iter == nil || !it.iter.Valid() {
		return nil
	}
	return it.iter.Key()
}

func (it *pebbleIterator) Value() []byte {
	if it.iter == nil || !it.iter.Valid() {
		return nil
	}
	return it.iter.Value()
}

func (it *pebbleIterator) Error() error {
	if it.err != nil {
		return it.err
	}
	if it.iter == nil {
		return nil
	}
	return it.iter.Error()
}

func (it *pebbleIterator) Release() {
	if it.iter != nil {
		it.iter.Close()
		it.iter = nil
	}
}
