package engine

import (
	"context"
	"time"

	"github.com/scrylang/scry/internal/graph"
	"github.com/scrylang/scry/internal/query"
	"github.com/scrylang/scry/internal/resolve"
)

// runPath finds the shortest directed path between two resolved nodes
// with breadth-first search. BFS guarantees minimal hop count; ties
// among equal-length paths go to the first-discovered one, which is
// deterministic because edges are iterated in insertion order.
//
// No path within the depth bound is a valid found=false result, never
// an error.
func (e *Engine) runPath(
	ctx context.Context,
	acc graph.Accessor,
	r *resolve.Resolver,
	stmt *query.PathStmt,
	scope execScope,
) (*Result, error) {
	start := time.Now()

	fromID, err := e.resolveRef(r, stmt.From, scope)
	if err != nil {
		return nil, err
	}
	toID, err := e.resolveRef(r, stmt.To, scope)
	if err != nil {
		return nil, err
	}

	if fromID == toID {
		return &Result{Path: &PathResult{Found: true, Path: []string{fromID}}, RowCount: 1}, nil
	}

	maxDepth := stmt.MaxDepth
	if maxDepth == 0 {
		maxDepth = e.opts.PathDepth
	}
	if maxDepth == 0 {
		maxDepth = query.DefaultPathDepth
	}

	parent := map[string]string{fromID: ""}
	frontier := []string{fromID}
	depth := 0

	for len(frontier) > 0 && depth < maxDepth {
		if err := checkCtx(ctx, start); err != nil {
			return nil, err
		}
		var next []string
		for _, id := range frontier {
			for _, ed := range acc.Edges(id, graph.DirOutgoing) {
				if _, seen := parent[ed.TargetID]; seen {
					continue
				}
				parent[ed.TargetID] = id
				if ed.TargetID == toID {
					path := rebuildPath(parent, toID)
					return &Result{
						Path:     &PathResult{Found: true, Path: path},
						RowCount: len(path),
					}, nil
				}
				next = append(next, ed.TargetID)
			}
		}
		frontier = next
		depth++
	}

	return &Result{Path: &PathResult{Found: false}}, nil
}

func rebuildPath(parent map[string]string, end string) []string {
	var rev []string
	for id := end; id != ""; id = parent[id] {
		rev = append(rev, id)
	}
	path := make([]string, len(rev))
	for i, id := range rev {
		path[len(rev)-1-i] = id
	}
	return path
}
