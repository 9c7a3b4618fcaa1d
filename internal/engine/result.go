package engine

import (
	"time"

	"github.com/scrylang/scry/internal/query"
	"github.com/scrylang/scry/internal/temporal"
)

// Result is the structured outcome of one query. Tabular kinds fill
// Columns/Rows; Path, Analyze, History and Blame fill their dedicated
// payloads. Values in rows are restricted to the same closed kind set
// as node properties.
type Result struct {
	// Kind echoes the executed query kind.
	Kind query.Kind `json:"kind"`

	// Columns and Rows hold tabular output.
	Columns []string `json:"columns,omitempty"`
	Rows    [][]any  `json:"rows,omitempty"`

	// RowCount is len(Rows) for tabular kinds, or the size of the
	// graph-shaped payload otherwise.
	RowCount int `json:"row_count"`

	// ExecutionTime is the wall time spent executing.
	ExecutionTime time.Duration `json:"execution_time"`

	// Path is set for PATH queries.
	Path *PathResult `json:"path,omitempty"`

	// Cycles is set for ANALYZE circular: each cycle starts at its
	// lexicographically smallest id and the list is sorted by that id.
	Cycles [][]string `json:"cycles,omitempty"`

	// History is set for HISTORY queries.
	History []temporal.HistoryEntry `json:"history,omitempty"`

	// Blame maps tracked attribute names to the most recent change
	// record that touched them.
	Blame map[string]temporal.ChangeRecord `json:"blame,omitempty"`
}

// PathResult is the payload of a PATH query. Found false with a nil
// Path means no path exists within the depth bound; it is a valid
// result, not an error.
type PathResult struct {
	Found bool     `json:"found"`
	Path  []string `json:"path"`
}
