package engine

import (
	"context"
	"sort"
	"time"

	"github.com/scrylang/scry/internal/graph"
	"github.com/scrylang/scry/internal/query"
)

// runAnalyze detects circular dependencies with Tarjan's
// strongly-connected-component algorithm, restricted to the requested
// edge types. Output is deterministic on an unchanged graph: each
// cycle starts at its lexicographically smallest id and the cycle list
// is sorted by that starting id.
func (e *Engine) runAnalyze(ctx context.Context, acc graph.Accessor, stmt *query.AnalyzeStmt) (*Result, error) {
	start := time.Now()

	edgeTypes, err := parseEdgeTypes(stmt.EdgeTypes)
	if err != nil {
		return nil, err
	}

	adj := make(map[string][]string)
	selfLoop := make(map[string]bool)
	var order []string
	seen := make(map[string]bool)
	for _, ed := range acc.AllEdges(edgeTypes...) {
		if ed.SourceID == ed.TargetID {
			selfLoop[ed.SourceID] = true
		}
		adj[ed.SourceID] = append(adj[ed.SourceID], ed.TargetID)
		for _, id := range []string{ed.SourceID, ed.TargetID} {
			if !seen[id] {
				seen[id] = true
				order = append(order, id)
			}
		}
	}

	components, err := tarjan(ctx, order, adj, start)
	if err != nil {
		return nil, err
	}

	var cycles [][]string
	for _, comp := range components {
		if len(comp) == 1 && !selfLoop[comp[0]] {
			continue
		}
		cycles = append(cycles, orderCycle(comp, adj))
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })

	return &Result{Cycles: cycles, RowCount: len(cycles)}, nil
}

// tarjan computes strongly connected components iteratively (no
// recursion, so deep graphs cannot blow the stack). Roots are tried in
// the given order for determinism.
func tarjan(ctx context.Context, order []string, adj map[string][]string, started time.Time) ([][]string, error) {
	index := make(map[string]int)
	low := make(map[string]int)
	onStack := make(map[string]bool)
	var stack []string
	var components [][]string
	next := 0

	type frame struct {
		id   string
		edge int
	}

	for _, root := range order {
		if _, visited := index[root]; visited {
			continue
		}
		if err := checkCtx(ctx, started); err != nil {
			return nil, err
		}

		call := []frame{{id: root}}
		index[root] = next
		low[root] = next
		next++
		stack = append(stack, root)
		onStack[root] = true

		for len(call) > 0 {
			f := &call[len(call)-1]
			if f.edge < len(adj[f.id]) {
				target := adj[f.id][f.edge]
				f.edge++
				if _, visited := index[target]; !visited {
					index[target] = next
					low[target] = next
					next++
					stack = append(stack, target)
					onStack[target] = true
					call = append(call, frame{id: target})
				} else if onStack[target] {
					if index[target] < low[f.id] {
						low[f.id] = index[target]
					}
				}
				continue
			}

			// All edges explored: pop the frame, maybe emit an SCC.
			if low[f.id] == index[f.id] {
				var comp []string
				for {
					top := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[top] = false
					comp = append(comp, top)
					if top == f.id {
						break
					}
				}
				components = append(components, comp)
			}
			done := f.id
			call = call[:len(call)-1]
			if len(call) > 0 {
				parent := &call[len(call)-1]
				if low[done] < low[parent.id] {
					low[parent.id] = low[done]
				}
			}
		}
	}
	return components, nil
}

// orderCycle arranges a component as a cycle: starting from the
// lexicographically smallest id, repeatedly follow the first
// in-component edge to an unvisited member. Members unreachable by
// that greedy walk (dense components) are appended in sorted order, so
// the result is always deterministic.
func orderCycle(comp []string, adj map[string][]string) []string {
	members := make(map[string]bool, len(comp))
	for _, id := range comp {
		members[id] = true
	}
	sorted := append([]string{}, comp...)
	sort.Strings(sorted)

	cycle := make([]string, 0, len(comp))
	used := make(map[string]bool, len(comp))
	cur := sorted[0]
	for {
		cycle = append(cycle, cur)
		used[cur] = true
		advanced := false
		for _, target := range adj[cur] {
			if members[target] && !used[target] {
				cur = target
				advanced = true
				break
			}
		}
		if !advanced {
			break
		}
	}
	for _, id := range sorted {
		if !used[id] {
			cycle = append(cycle, id)
		}
	}
	return cycle
}
