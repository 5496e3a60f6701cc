package state

// journalEntry is a revertible overlay change.
type journalEntry interface {
	revert(s *StateDB)
}

// journal tracks overlay modifications for snapshot/revert.
type journal struct {
	entries   []journalEntry
	snapshots map[int]int // snapshot ID -> entry index
	nextID    int
}

func newJournal() *journal {
	return &journal{
		snapshots: make(map[int]int),
	}
}

func (j *journal) append(entry journalEntry) {
	j.entries = append(j.entries, entry)
}

func (j *journal) snapshot() int {
	id := j.nextID
	j.nextID++
	j.snapshots[id] = len(j.entries)
	return id
}

// revertToSnapshot undoes every change recorded after the snapshot and
// invalidates it together with all later snapshots. Unknown ids are ignored.
func (j *journal) revertToSnapshot(id int, s *StateDB) bool {
	idx, ok := j.snapshots[id]
	if !ok {
		return false
	}
	for i := len(j.entries) - 1; i >= idx; i-- {
		j.entries[i].revert(s)
	}
	j.entries = j.entries[:idx]

	for sid := range j.snapshots {
		if sid >= id {
			delete(j.snapshots, sid)
		}
	}
	return true
}

func (j *journal) reset() {
	j.entries = j.entries[:0]
	clear(j.snapshots)
}

// writeChange records the overlay slot a Put or Delete replaced.
type writeChange struct {
	key     string
	prev    dirtyValue
	hadPrev bool
}

func (ch writeChange) revert(s *StateDB) {
	if ch.hadPrev {
		s.dirty[ch.key] = ch.prev
	} else {
		delete(s.dirty, ch.key)
	}
}
