// Package state provides the journaled state overlay every top-level
// operation runs against. Writes stay in memory until Commit flushes them to
// the backing database in one batch; Snapshot/RevertToSnapshot give nested
// call frames all-or-nothing semantics.
package state

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/eth2030/syncrollups/core/rawdb"
)

var ErrInvalidSnapshot = errors.New("state: invalid snapshot id")

type dirtyValue struct {
	value   []byte
	deleted bool
}

// StateDB is a write-back overlay on a rawdb.Database. It implements
// rawdb.KeyValueStore so the typed accessors in rawdb work against it.
//
// StateDB is not safe for concurrent use; the host serializes transactions.
type StateDB struct {
	db      rawdb.Database
	dirty   map[string]dirtyValue
	journal *journal

	depth int // nesting depth of Atomic units
}

// New creates an empty overlay on db.
func New(db rawdb.Database) *StateDB {
	return &StateDB{
		db:      db,
		dirty:   make(map[string]dirtyValue),
		journal: newJournal(),
	}
}

// Database returns the backing database.
func (s *StateDB) Database() rawdb.Database { return s.db }

func (s *StateDB) Has(key []byte) (bool, error) {
	if dv, ok := s.dirty[string(key)]; ok {
		return !dv.deleted, nil
	}
	return s.db.Has(key)
}

func (s *StateDB) Get(key []byte) ([]byte, error) {
	if dv, ok := s.dirty[string(key)]; ok {
		if dv.deleted {
			return nil, rawdb.ErrNotFound
		}
		return bytes.Clone(dv.value), nil
	}
	return s.db.Get(key)
}

func (s *StateDB) Put(key, value []byte) error {
	s.set(string(key), dirtyValue{value: bytes.Clone(value)})
	return nil
}

func (s *StateDB) Delete(key []byte) error {
	s.set(string(key), dirtyValue{deleted: true})
	return nil
}

func (s *StateDB) set(key string, dv dirtyValue) {
	prev, had := s.dirty[key]
	s.journal.append(writeChange{key: key, prev: prev, hadPrev: had})
	s.dirty[key] = dv
}

// Snapshot returns an identifier for the current revision of the overlay.
func (s *StateDB) Snapshot() int {
	return s.journal.snapshot()
}

// RevertToSnapshot undoes every write made since the snapshot was taken.
func (s *StateDB) RevertToSnapshot(id int) error {
	if !s.journal.revertToSnapshot(id, s) {
		return fmt.Errorf("%w: %d", ErrInvalidSnapshot, id)
	}
	return nil
}

// Atomic runs fn as one all-or-nothing unit. When fn fails every write it
// made is undone. Units nest: only the outermost one commits to the
// database, so an inner success stays provisional until its outermost unit
// succeeds too.
func (s *StateDB) Atomic(fn func() error) error {
	snap := s.Snapshot()
	s.depth++
	err := fn()
	s.depth--
	if err == nil && s.depth == 0 {
		err = s.Commit()
	}
	if err != nil {
		if rerr := s.RevertToSnapshot(snap); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	return nil
}

// Depth returns how many Atomic units are currently open.
func (s *StateDB) Depth() int { return s.depth }

// Dirty reports whether the overlay holds uncommitted writes.
func (s *StateDB) Dirty() bool {
	return len(s.dirty) > 0
}

// Commit writes the overlay to the database in a single batch and resets
// the journal. On failure the overlay is left intact.
func (s *StateDB) Commit() error {
	if len(s.dirty) == 0 {
		s.journal.reset()
		return nil
	}
	keys := make([]string, 0, len(s.dirty))
	for k := range s.dirty {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, strings.Compare)

	batch := s.db.NewBatch()
	for _, k := range keys {
		dv := s.dirty[k]
		var err error
		if dv.deleted {
			err = batch.Delete([]byte(k))
		} else {
			err = batch.Put([]byte(k), dv.value)
		}
		if err != nil {
			return fmt.Errorf("state: stage %x: %w", k, err)
		}
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	clear(s.dirty)
	s.journal.reset()
	return nil
}

// Discard drops every uncommitted write.
func (s *StateDB) Discard() {
	clear(s.dirty)
	s.journal.reset()
}
