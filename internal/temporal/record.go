// Package temporal provides the time-scoped view layer over versioned
// graph snapshots: the change-record log, point-in-time reconstruction
// (AT), delta views (BETWEEN), and the HISTORY/BLAME readers.
package temporal

import (
	"time"

	"github.com/scrylang/scry/internal/graph"
)

// ChangeKind classifies one change record.
type ChangeKind string

const (
	Added    ChangeKind = "added"
	Modified ChangeKind = "modified"
	Removed  ChangeKind = "removed"
)

// TrackedAttrs are the attribute names blame reports on when a record
// does not name the attributes it changed.
var TrackedAttrs = []string{"signature", "body", "docstring", "file_path"}

// Snapshot is a named point-in-time graph version tied to a
// source-control commit. Seq totally orders snapshots.
type Snapshot struct {
	// ID is the snapshot identifier, normally the commit hash.
	ID string `json:"id"`

	// CommitRef is the human ref the snapshot was published under
	// (branch, tag), when known.
	CommitRef string `json:"commit_ref,omitempty"`

	// Seq is the monotonic ordering key assigned at registration.
	Seq int64 `json:"seq"`

	// Time is the snapshot (commit) time.
	Time time.Time `json:"time"`
}

// ChangeRecord is a per-id, per-snapshot delta. For a given TargetID,
// records form a total order by Seq with no two Added records without
// an intervening Removed.
type ChangeRecord struct {
	// TargetID is the node or edge ID the record applies to.
	TargetID string `json:"target_id"`

	// Snapshot is the ID of the snapshot the change belongs to.
	Snapshot string `json:"snapshot"`

	// Seq copies the snapshot's ordering key.
	Seq int64 `json:"seq"`

	// Kind is added/modified/removed.
	Kind ChangeKind `json:"kind"`

	// Attrs names the tracked attributes the change touched. Empty on
	// Added means the whole definition.
	Attrs []string `json:"attrs,omitempty"`

	// Node is the node state after the change; nil for Removed and for
	// edge records.
	Node *graph.Node `json:"node,omitempty"`

	// Edge is the edge state for edge records.
	Edge *graph.Edge `json:"edge,omitempty"`
}

// IsEdge reports whether the record describes an edge rather than a
// node.
func (r *ChangeRecord) IsEdge() bool {
	return r.Edge != nil || (r.Node == nil && r.Kind == Removed && isEdgeID(r.TargetID))
}

// EdgeID builds the conventional change-log ID for an edge.
func EdgeID(e *graph.Edge) string {
	return "edge:" + e.SourceID + "->" + e.TargetID + ":" + string(e.Type)
}

func isEdgeID(id string) bool {
	return len(id) > 5 && id[:5] == "edge:"
}

// Store is the read interface the temporal view adapter consumes. The
// bundled Log implements it; a persistent store may as well.
type Store interface {
	// Records returns the change records for one target ID in
	// ascending Seq order.
	Records(targetID string) []ChangeRecord

	// RecordsThrough returns every record with Seq <= seq in ascending
	// (Seq, append) order, for snapshot replay.
	RecordsThrough(seq int64) []ChangeRecord

	// Snapshot looks a snapshot up by ID or commit ref.
	Snapshot(ref string) (Snapshot, bool)

	// Snapshots returns all snapshots in ascending Seq order.
	Snapshots() []Snapshot
}
