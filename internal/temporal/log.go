package temporal

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/btree"
)

// logEntry wraps a record with a global append counter so iteration
// order is stable within one snapshot.
type logEntry struct {
	rec ChangeRecord
	ord int64
}

func lessBySeq(a, b logEntry) bool {
	if a.rec.Seq != b.rec.Seq {
		return a.rec.Seq < b.rec.Seq
	}
	return a.ord < b.ord
}

func lessByTarget(a, b logEntry) bool {
	if a.rec.TargetID != b.rec.TargetID {
		return a.rec.TargetID < b.rec.TargetID
	}
	if a.rec.Seq != b.rec.Seq {
		return a.rec.Seq < b.rec.Seq
	}
	return a.ord < b.ord
}

// Log is the in-memory change-record log. It keeps two ordered
// indexes: one by snapshot sequence (for replay) and one by target ID
// (for history and blame). Safe for concurrent use.
type Log struct {
	mu        sync.RWMutex
	bySeq     *btree.BTreeG[logEntry]
	byTarget  *btree.BTreeG[logEntry]
	snapshots []Snapshot
	snapByRef map[string]Snapshot
	nextOrd   int64
}

var _ Store = (*Log)(nil)

// NewLog creates an empty change log.
func NewLog() *Log {
	return &Log{
		bySeq:     btree.NewBTreeG(lessBySeq),
		byTarget:  btree.NewBTreeG(lessByTarget),
		snapByRef: make(map[string]Snapshot),
	}
}

// AddSnapshot registers a new snapshot after all existing ones and
// returns it. An empty id gets a generated one; commitRef may be empty
// or a human ref (branch, tag) the snapshot is also findable under.
func (l *Log) AddSnapshot(id, commitRef string, at time.Time) Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	snap := Snapshot{
		ID:        id,
		CommitRef: commitRef,
		Seq:       int64(len(l.snapshots)) + 1,
		Time:      at,
	}
	l.snapshots = append(l.snapshots, snap)
	l.snapByRef[id] = snap
	if commitRef != "" {
		l.snapByRef[commitRef] = snap
	}
	return snap
}

// Append adds one change record. The record's Snapshot must name a
// registered snapshot; Seq is filled in from it. Appends that would
// break the per-id ordering invariant are rejected:
//
//   - at most one record per (target, snapshot)
//   - no second Added without an intervening Removed
func (l *Log) Append(rec ChangeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap, ok := l.snapByRef[rec.Snapshot]
	if !ok {
		return &SnapshotNotFoundError{Ref: rec.Snapshot}
	}
	rec.Seq = snap.Seq

	switch rec.Kind {
	case Added, Modified, Removed:
	default:
		return fmt.Errorf("invalid change kind %q", rec.Kind)
	}

	if last, ok := l.lastLocked(rec.TargetID); ok {
		if last.Seq == rec.Seq {
			return &InvariantError{
				TargetID: rec.TargetID,
				Reason:   fmt.Sprintf("duplicate record for snapshot %s", rec.Snapshot),
			}
		}
		if last.Seq > rec.Seq {
			return &InvariantError{
				TargetID: rec.TargetID,
				Reason:   "records must be appended in snapshot order",
			}
		}
		if rec.Kind == Added && last.Kind != Removed {
			return &InvariantError{
				TargetID: rec.TargetID,
				Reason:   "second Added without intervening Removed",
			}
		}
	}

	entry := logEntry{rec: rec, ord: l.nextOrd}
	l.nextOrd++
	l.bySeq.Set(entry)
	l.byTarget.Set(entry)
	return nil
}

// lastLocked returns the newest record for a target. Caller holds mu.
func (l *Log) lastLocked(targetID string) (ChangeRecord, bool) {
	var (
		found ChangeRecord
		ok    bool
	)
	l.byTarget.Ascend(logEntry{rec: ChangeRecord{TargetID: targetID}}, func(e logEntry) bool {
		if e.rec.TargetID != targetID {
			return false
		}
		found, ok = e.rec, true
		return true
	})
	return found, ok
}

// Records returns the change records for one target in ascending Seq
// order.
func (l *Log) Records(targetID string) []ChangeRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []ChangeRecord
	l.byTarget.Ascend(logEntry{rec: ChangeRecord{TargetID: targetID}}, func(e logEntry) bool {
		if e.rec.TargetID != targetID {
			return false
		}
		out = append(out, e.rec)
		return true
	})
	return out
}

// RecordsThrough returns every record with Seq <= seq in replay order.
func (l *Log) RecordsThrough(seq int64) []ChangeRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []ChangeRecord
	l.bySeq.Scan(func(e logEntry) bool {
		if e.rec.Seq > seq {
			return false
		}
		out = append(out, e.rec)
		return true
	})
	return out
}

// Snapshot looks up a snapshot by ID or registered commit ref.
func (l *Log) Snapshot(ref string) (Snapshot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	snap, ok := l.snapByRef[ref]
	return snap, ok
}

// Snapshots returns all snapshots in ascending Seq order.
func (l *Log) Snapshots() []Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Snapshot, len(l.snapshots))
	copy(out, l.snapshots)
	return out
}
