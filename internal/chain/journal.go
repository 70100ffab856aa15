package chain

// Journal records undo operations for every state mutation made during a call so a
// failed call can be rolled back to the state it started from.
type Journal struct {
	entries []func()
}

// Append registers an undo operation.
func (j *Journal) Append(undo func()) {
	j.entries = append(j.entries, undo)
}

// Snapshot returns an identifier for the current journal position.
func (j *Journal) Snapshot() int {
	return len(j.entries)
}

// RevertToSnapshot undoes every mutation recorded after the snapshot, newest first.
func (j *Journal) RevertToSnapshot(id int) {
	if id < 0 {
		id = 0
	}
	for i := len(j.entries) - 1; i >= id; i-- {
		j.entries[i]()
	}
	j.entries = j.entries[:id]
}

// Commit discards all recorded undo operations.
func (j *Journal) Commit() {
	j.entries = nil
}

// Len returns the number of recorded mutations.
func (j *Journal) Len() int {
	return len(j.entries)
}

// Set assigns value to *ptr and records the previous value.
func Set[T any](j *Journal, ptr *T, value T) {
	old := *ptr
	*ptr = value
	j.Append(func() { *ptr = old })
}

// SetMapValue assigns m[key] = value and records the previous entry, including its absence.
func SetMapValue[K comparable, V any](j *Journal, m map[K]V, key K, value V) {
	old, existed := m[key]
	m[key] = value
	j.Append(func() {
		if existed {
			m[key] = old
		} else {
			delete(m, key)
		}
	})
}
