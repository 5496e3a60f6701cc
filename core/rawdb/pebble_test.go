package rawdb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *PebbleDB {
	t.Helper()
	db, err := NewMemPebbleDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// countKeys returns the number of keys stored in db.
func countKeys(t *testing.T, db Iteratee) int {
	t.Helper()
	it := db.NewIterator(nil)
	defer it.Release()
	var n int
	for it.Next() {
		n++
	}
	require.NoError(t, it.Error())
	return n
}

func testDatabase(t *testing.T, db Database) {
	t.Helper()

	_, err := db.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)
	ok, err := db.Has([]byte("missing"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, db.Put([]byte("a1"), []byte("one")))
	require.NoError(t, db.Put([]byte("a2"), []byte("two")))
	require.NoError(t, db.Put([]byte("b1"), []byte("other")))

	v, err := db.Get([]byte("a1"))
	require.NoError(t, err)
	require.Equal(t, []byte("one"), v)

	batch := db.NewBatch()
	require.NoError(t, batch.Put([]byte("a3"), []byte("three")))
	require.NoError(t, batch.Delete([]byte("a1")))
	require.Positive(t, batch.ValueSize())
	_, err = db.Get([]byte("a3"))
	require.ErrorIs(t, err, ErrNotFound, "batches are invisible until written")
	require.NoError(t, batch.Write())

	it := db.NewIterator([]byte("a"))
	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.NoError(t, it.Error())
	it.Release()
	require.Equal(t, []string{"a2", "a3"}, keys)

	require.NoError(t, db.Delete([]byte("a2")))
	ok, err = db.Has([]byte("a2"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemPebbleDB(t *testing.T) {
	db := newTestDB(t)
	require.Empty(t, db.Path())
	testDatabase(t, db)
	require.Equal(t, 2, countKeys(t, db))

	other := newTestDB(t)
	require.Zero(t, countKeys(t, other), "in-memory databases do not share state")
}

func TestPebbleDB(t *testing.T) {
	dir := t.TempDir()
	db, err := NewPebbleDB(dir, 0)
	require.NoError(t, err)
	require.Equal(t, dir, db.Path())
	testDatabase(t, db)

	require.NoError(t, db.Put([]byte("persist"), []byte("yes")))
	require.NoError(t, db.Close())

	db, err = NewPebbleDB(dir, 0)
	require.NoError(t, err)
	defer db.Close()
	v, err := db.Get([]byte("persist"))
	require.NoError(t, err)
	require.Equal(t, []byte("yes"), v)
}

func TestUpperBound(t *testing.T) {
	require.Equal(t, []byte("b"), upperBound([]byte("a")))
	require.Equal(t, []byte{0x01}, upperBound([]byte{0x00, 0xff}))
	require.Nil(t, upperBound([]byte{0xff, 0xff}))
	require.Nil(t, upperBound(nil))
}
