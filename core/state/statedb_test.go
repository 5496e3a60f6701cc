package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eth2030/syncrollups/core/rawdb"
)

func newTestDB(t *testing.T) *rawdb.PebbleDB {
	t.Helper()
	db, err := rawdb.NewMemPebbleDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func get(t *testing.T, s *StateDB, key string) string {
	t.Helper()
	v, err := s.Get([]byte(key))
	if errors.Is(err, rawdb.ErrNotFound) {
		return ""
	}
	require.NoError(t, err)
	return string(v)
}

func TestOverlayReadsThrough(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Put([]byte("k"), []byte("disk")))
	s := New(db)

	require.Equal(t, "disk", get(t, s, "k"))
	require.NoError(t, s.Put([]byte("k"), []byte("mem")))
	require.Equal(t, "mem", get(t, s, "k"))
	require.NoError(t, s.Delete([]byte("k")))
	ok, err := s.Has([]byte("k"))
	require.NoError(t, err)
	require.False(t, ok)

	v, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("disk"), v, "nothing reaches the database before Commit")
}

func TestSnapshotRevert(t *testing.T) {
	s := New(newTestDB(t))
	require.NoError(t, s.Put([]byte("a"), []byte("1")))

	outer := s.Snapshot()
	require.NoError(t, s.Put([]byte("a"), []byte("2")))
	require.NoError(t, s.Put([]byte("b"), []byte("x")))

	inner := s.Snapshot()
	require.NoError(t, s.Delete([]byte("a")))

	require.NoError(t, s.RevertToSnapshot(inner))
	require.Equal(t, "2", get(t, s, "a"))

	require.NoError(t, s.RevertToSnapshot(outer))
	require.Equal(t, "1", get(t, s, "a"))
	require.Equal(t, "", get(t, s, "b"))

	require.ErrorIs(t, s.RevertToSnapshot(inner), ErrInvalidSnapshot, "later snapshots die with the revert")
}

func TestCommitAndDiscard(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Put([]byte("gone"), []byte("x")))
	s := New(db)

	require.NoError(t, s.Put([]byte("k"), []byte("v")))
	require.NoError(t, s.Delete([]byte("gone")))
	require.True(t, s.Dirty())
	require.NoError(t, s.Commit())
	require.False(t, s.Dirty())

	v, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)
	_, err = db.Get([]byte("gone"))
	require.ErrorIs(t, err, rawdb.ErrNotFound)

	require.NoError(t, s.Put([]byte("k"), []byte("w")))
	s.Discard()
	require.Equal(t, "v", get(t, s, "k"))
}

func TestAtomicNesting(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	boom := errors.New("boom")

	err := s.Atomic(func() error {
		require.NoError(t, s.Put([]byte("outer"), []byte("1")))
		require.Equal(t, 1, s.Depth())

		// a failed inner unit only undoes its own writes
		err := s.Atomic(func() error {
			require.NoError(t, s.Put([]byte("inner"), []byte("1")))
			return boom
		})
		require.ErrorIs(t, err, boom)
		require.Equal(t, "", get(t, s, "inner"))

		require.NoError(t, s.Atomic(func() error {
			return s.Put([]byte("kept"), []byte("1"))
		}))
		_, err = db.Get([]byte("kept"))
		require.ErrorIs(t, err, rawdb.ErrNotFound, "inner success stays provisional")
		return nil
	})
	require.NoError(t, err)
	require.Zero(t, s.Depth())
	require.False(t, s.Dirty())

	for _, k := range []string{"outer", "kept"} {
		ok, err := db.Has([]byte(k))
		require.NoError(t, err)
		require.True(t, ok, k)
	}
	ok, err := db.Has([]byte("inner"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAtomicFailureKeepsEarlierWrites(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	require.NoError(t, s.Put([]byte("before"), []byte("1")))

	err := s.Atomic(func() error {
		require.NoError(t, s.Put([]byte("during"), []byte("1")))
		return errors.New("fail")
	})
	require.Error(t, err)
	require.Equal(t, "1", get(t, s, "before"))
	require.Equal(t, "", get(t, s, "during"))
}
