package coordinator

import (
	"sort"
	"sync"

	"github.com/copybotio/copybot/internal/domain"
)

// positionEntry pairs one position with its own lock. Lifecycle transitions
// happen only while the entry lock is held.
type positionEntry struct {
	mu  sync.Mutex
	pos domain.Position
}

// PositionTable is the in-memory record of open copy-positions, keyed by
// domain.PositionID. The table mutex guards map membership only; each entry
// carries its own lock for lifecycle transitions, so supervising one
// position never blocks progress on another. An entry and its lock are
// always created and removed together, which keeps the lock map from
// growing without bound.
type PositionTable struct {
	mu      sync.Mutex
	entries map[string]*positionEntry
}

// NewPositionTable creates an empty table.
func NewPositionTable() *PositionTable {
	return &PositionTable{entries: make(map[string]*positionEntry)}
}

// Len returns the number of tracked positions.
func (t *PositionTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Get returns a copy of the position with the given id.
func (t *PositionTable) Get(id string) (domain.Position, bool) {
	t.mu.Lock()
	e, ok := t.entries[id]
	t.mu.Unlock()
	if !ok {
		return domain.Position{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pos, true
}

// Snapshot returns copies of all tracked positions, ordered by id. External
// readers only ever see these copies, never references into live state.
// Entries whose lock is held are mid-transition (an order is in flight) and
// are skipped rather than waited on, so a slow venue call never stalls
// status views or the supervision pass over the other positions.
func (t *PositionTable) Snapshot() []domain.Position {
	t.mu.Lock()
	entries := make([]*positionEntry, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, e)
	}
	t.mu.Unlock()

	out := make([]domain.Position, 0, len(entries))
	for _, e := range entries {
		if !e.mu.TryLock() {
			continue
		}
		out = append(out, e.pos)
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// lockNew installs a fresh locked entry for id. It fails when an entry for
// the id already exists, which is how duplicate open signals are rejected.
func (t *PositionTable) lockNew(id string) (*positionEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[id]; ok {
		return nil, false
	}
	e := &positionEntry{}
	e.mu.Lock() // uncontended: nobody else can see the entry yet
	t.entries[id] = e
	return e, true
}

// lockExisting acquires the entry lock for id. It returns false when the
// position is absent (already closed and removed). Because removal happens
// while the entry lock is held, acquisition re-checks that the locked entry
// is still the one installed in the table and retries otherwise.
func (t *PositionTable) lockExisting(id string) (*positionEntry, bool) {
	for {
		t.mu.Lock()
		e, ok := t.entries[id]
		t.mu.Unlock()
		if !ok {
			return nil, false
		}

		e.mu.Lock()

		t.mu.Lock()
		cur, ok := t.entries[id]
		t.mu.Unlock()
		if ok && cur == e {
			return e, true
		}
		// The entry was removed while we waited for its lock.
		e.mu.Unlock()
	}
}

// remove deletes the entry and its lock from the table. The caller must hold
// e.mu, so the position and its lock leave the table in the same guarded
// step; a concurrent lockExisting for the same id observes absence.
func (t *PositionTable) remove(id string) {
	t.mu.Lock()
	delete(t.entries, id)
	t.mu.Unlock()
}
