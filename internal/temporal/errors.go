package temporal

import "fmt"

// SnapshotNotFoundError reports an AT/BETWEEN commit ref with no
// corresponding snapshot. Distinct from a missing node (NotFound) and
// from a structurally empty but valid result.
type SnapshotNotFoundError struct {
	Ref string
}

// Error implements the error interface.
func (e *SnapshotNotFoundError) Error() string {
	return fmt.Sprintf("no snapshot recorded for commit ref %q", e.Ref)
}

// InvariantError reports a change-record append that would break the
// per-id ordering invariant.
type InvariantError struct {
	TargetID string
	Reason   string
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	return fmt.Sprintf("change log invariant violated for %s: %s", e.TargetID, e.Reason)
}
