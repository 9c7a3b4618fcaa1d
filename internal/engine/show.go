package engine

import (
	"context"
	"time"

	"github.com/scrylang/scry/internal/graph"
	"github.com/scrylang/scry/internal/query"
	"github.com/scrylang/scry/internal/resolve"
)

var showColumns = []string{"depth", "id", "type", "name", "file_path"}

// runShow executes neighbor queries: single-hop dependency/dependent
// lookups, caller/callee lookups, and the transitive impact/ancestors
// closures. The start node itself is never part of the result.
func (e *Engine) runShow(
	ctx context.Context,
	acc graph.Accessor,
	r *resolve.Resolver,
	stmt *query.ShowStmt,
	scope execScope,
) (*Result, error) {
	start := time.Now()

	startID, err := e.resolveRef(r, stmt.Ref, scope)
	if err != nil {
		return nil, err
	}

	edgeTypes, err := parseEdgeTypes(stmt.EdgeTypes)
	if err != nil {
		return nil, err
	}

	var dir graph.Direction
	depth := stmt.Depth
	switch stmt.Kind {
	case query.ShowDependencies:
		dir = graph.DirOutgoing
	case query.ShowDependents:
		dir = graph.DirIncoming
	case query.ShowCallees:
		dir = graph.DirOutgoing
		edgeTypes = []graph.EdgeType{graph.EdgeCalls}
	case query.ShowCallers:
		dir = graph.DirIncoming
		edgeTypes = []graph.EdgeType{graph.EdgeCalls}
	case query.ShowImpact:
		dir = graph.DirOutgoing
		if depth == 0 {
			depth = -1 // unbounded
		}
	case query.ShowAncestors:
		dir = graph.DirIncoming
		if depth == 0 {
			depth = -1
		}
	default:
		return nil, execErrorf("unsupported SHOW kind %q", stmt.Kind)
	}
	if depth == 0 {
		depth = 1
	}

	visited, err := bfsClosure(ctx, acc, startID, dir, edgeTypes, depth, start)
	if err != nil {
		return nil, err
	}

	rows := make([][]any, 0, len(visited))
	for _, v := range visited {
		n := acc.GetNode(v.id)
		if n == nil {
			continue
		}
		rows = append(rows, []any{v.depth, n.ID, string(n.Type), n.Name, n.FilePath})
	}
	return &Result{Columns: showColumns, Rows: rows, RowCount: len(rows)}, nil
}

type visit struct {
	id    string
	depth int
}

// bfsClosure walks edges breadth-first from startID in one direction,
// up to maxDepth hops (negative = unbounded), returning visited nodes
// in discovery order excluding the start. Edges are iterated in
// insertion order so discovery order is deterministic.
func bfsClosure(
	ctx context.Context,
	acc graph.Accessor,
	startID string,
	dir graph.Direction,
	edgeTypes []graph.EdgeType,
	maxDepth int,
	started time.Time,
) ([]visit, error) {
	seen := map[string]bool{startID: true}
	frontier := []visit{{id: startID, depth: 0}}
	var out []visit

	for len(frontier) > 0 {
		if err := checkCtx(ctx, started); err != nil {
			return nil, err
		}
		cur := frontier[0]
		frontier = frontier[1:]
		if maxDepth >= 0 && cur.depth >= maxDepth {
			continue
		}
		for _, ed := range acc.Edges(cur.id, dir, edgeTypes...) {
			next := ed.TargetID
			if dir == graph.DirIncoming {
				next = ed.SourceID
			}
			if seen[next] {
				continue
			}
			seen[next] = true
			v := visit{id: next, depth: cur.depth + 1}
			out = append(out, v)
			frontier = append(frontier, v)
		}
	}
	return out, nil
}

// parseEdgeTypes validates the TYPE clause against the closed edge
// type set.
func parseEdgeTypes(names []string) ([]graph.EdgeType, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]graph.EdgeType, 0, len(names))
	for _, name := range names {
		t := graph.EdgeType(name)
		if !t.Valid() {
			return nil, execErrorf("unknown edge type %q (valid: contains, imports, calls, inherits)", name)
		}
		out = append(out, t)
	}
	return out, nil
}
