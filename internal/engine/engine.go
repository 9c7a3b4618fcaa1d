// Package engine executes parsed Scry queries against a graph
// accessor.
//
// Execution is synchronous and read-only. The engine is safe for
// concurrent callers because every call pins the graph version
// published at its start; the accessor's snapshot-consistency
// guarantee (immutable versions, atomic publish) is load-bearing and
// assumed, not enforced here.
package engine

import (
	"context"
	"errors"
	"slices"
	"sort"
	"time"

	"github.com/scrylang/scry/internal/graph"
	"github.com/scrylang/scry/internal/query"
	"github.com/scrylang/scry/internal/resolve"
	"github.com/scrylang/scry/internal/temporal"
)

// GraphSource supplies the latest published graph version.
// *graph.VersionedStore satisfies it.
type GraphSource interface {
	Current() *graph.Graph
}

// Options configures engine-wide defaults.
type Options struct {
	// Timeout bounds each query; zero means no engine-imposed bound
	// (the caller's context deadline still applies).
	Timeout time.Duration

	// HistoryOrder is the default HISTORY ordering when the query does
	// not say ASC or DESC. Empty means newest first.
	HistoryOrder query.HistoryOrder

	// PathDepth is the PATH search bound when the query has no MAX
	// DEPTH clause. Zero means query.DefaultPathDepth.
	PathDepth int
}

// Engine dispatches queries by kind against the current or a
// temporally reconstructed graph view.
type Engine struct {
	graphs  GraphSource
	changes temporal.Store
	opts    Options
}

// New creates an engine. changes may be nil when no change log is
// available; temporal queries then fail with an execution error.
func New(graphs GraphSource, changes temporal.Store, opts Options) *Engine {
	return &Engine{graphs: graphs, changes: changes, opts: opts}
}

// ExecOption adjusts a single Execute call.
type ExecOption func(*execScope)

type execScope struct {
	typeHint graph.NodeType
}

// WithTypeHint restricts name-based reference resolution to one node
// type for this call.
func WithTypeHint(t graph.NodeType) ExecOption {
	return func(s *execScope) { s.typeHint = t }
}

// Execute parses and runs one query. Errors are the typed kinds of
// this package plus query.ParseError, query.UnknownEntityError and
// temporal.SnapshotNotFoundError; the engine stays usable for
// subsequent queries after any of them.
func (e *Engine) Execute(ctx context.Context, text string, opts ...ExecOption) (*Result, error) {
	start := time.Now()

	q, err := query.Parse(text)
	if err != nil {
		observeQuery("parse", "error", time.Since(start))
		return nil, err
	}

	var scope execScope
	for _, opt := range opts {
		opt(&scope)
	}

	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	res, err := e.run(ctx, q, scope)
	if err != nil {
		observeQuery(string(q.Kind), "error", time.Since(start))
		return nil, err
	}
	res.Kind = q.Kind
	res.ExecutionTime = time.Since(start)
	observeQuery(string(q.Kind), "ok", res.ExecutionTime)
	return res, nil
}

func (e *Engine) run(ctx context.Context, q *query.Query, scope execScope) (*Result, error) {
	// History and blame read the change log directly; a temporal
	// clause only bounds the records considered.
	switch q.Kind {
	case query.KindHistory:
		return e.runHistory(q, scope)
	case query.KindBlame:
		return e.runBlame(q, scope)
	}

	acc, delta, err := e.accessorFor(q.Temporal)
	if err != nil {
		return nil, err
	}
	res := resolve.New(acc)

	switch q.Kind {
	case query.KindSelect, query.KindFind:
		return e.runSelect(ctx, acc, delta, res, q.Select, scope)
	case query.KindShow:
		return e.runShow(ctx, acc, res, q.Show, scope)
	case query.KindPath:
		return e.runPath(ctx, acc, res, q.Path, scope)
	case query.KindAnalyze:
		return e.runAnalyze(ctx, acc, q.Analyze)
	default:
		return nil, execErrorf("unsupported query kind %q", q.Kind)
	}
}

// accessorFor selects the live graph or a temporal view. The second
// return is non-nil for BETWEEN queries and carries per-node change
// kinds for projection.
func (e *Engine) accessorFor(tc *query.TemporalClause) (graph.Accessor, *temporal.DeltaView, error) {
	if tc == nil {
		return e.graphs.Current(), nil, nil
	}
	if e.changes == nil {
		return nil, nil, execErrorf("temporal query requires a change log, none is configured")
	}
	switch tc.Kind {
	case query.TemporalAt:
		view, _, err := temporal.ViewAt(e.changes, tc.At)
		if err != nil {
			return nil, nil, err
		}
		return view, nil, nil
	case query.TemporalBetween:
		view, err := temporal.ViewBetween(e.changes, tc.At, tc.Until)
		if err != nil {
			return nil, nil, err
		}
		return view, view, nil
	default:
		return nil, nil, execErrorf("unsupported temporal clause %q", tc.Kind)
	}
}

// resolveRef resolves a reference and converts failures into typed
// errors, so an unresolved identifier can never surface as a silent
// empty result.
func (e *Engine) resolveRef(r *resolve.Resolver, ref string, scope execScope) (string, error) {
	res := r.Resolve(ref, scope.typeHint)
	switch res.Status {
	case resolve.StatusResolved:
		return res.NodeID, nil
	case resolve.StatusAmbiguous:
		return "", &AmbiguousError{Ref: ref, Candidates: res.Candidates}
	default:
		return "", &NotFoundError{Ref: ref}
	}
}

func checkCtx(ctx context.Context, start time.Time) error {
	select {
	case <-ctx.Done():
		return &TimeoutError{
			Elapsed:  time.Since(start),
			Canceled: errors.Is(ctx.Err(), context.Canceled),
		}
	default:
		return nil
	}
}

func entityNodeType(ent query.Entity) graph.NodeType {
	switch ent {
	case query.EntityFunctions:
		return graph.NodeFunction
	case query.EntityClasses:
		return graph.NodeClass
	case query.EntityModules:
		return graph.NodeModule
	case query.EntityEntities:
		return graph.NodeEntity
	case query.EntityExternal:
		return graph.NodeExternal
	}
	return ""
}

// defaultNodeColumns is the projection used when SELECT has no column
// list.
var defaultNodeColumns = []string{
	"id", "type", "name", "qualified_name",
	"file_path", "line_start", "line_end", "complexity",
}

var defaultEdgeColumns = []string{"source_id", "type", "target_id"}

func (e *Engine) runSelect(
	ctx context.Context,
	acc graph.Accessor,
	delta *temporal.DeltaView,
	r *resolve.Resolver,
	stmt *query.SelectStmt,
	scope execScope,
) (*Result, error) {
	start := time.Now()

	if stmt.Entity == query.EntityEdges {
		return e.runSelectEdges(ctx, acc, stmt, start)
	}

	pool := acc.Nodes(entityNodeType(stmt.Entity))

	// Resolve the relational predicate target before scanning:
	// FIND ... CALLING X must fail loudly when X does not resolve.
	var relTest func(*graph.Node) bool
	if stmt.Relation != nil {
		targetID, err := e.resolveRef(r, stmt.Relation.Ref, scope)
		if err != nil {
			return nil, err
		}
		relTest = relationTest(acc, stmt.Relation.Kind, targetID)
	}

	if err := validateAttrs(stmt, pool, delta != nil); err != nil {
		return nil, err
	}

	// Under a delta view the synthetic change column is addressable
	// like any node attribute.
	attrFor := func(n *graph.Node) attrFn { return n.Attr }
	if delta != nil {
		attrFor = func(n *graph.Node) attrFn {
			return func(name string) (any, bool) {
				if name == "change" {
					return string(delta.Change(n.ID)), true
				}
				return n.Attr(name)
			}
		}
	}

	var matched []*graph.Node
	for _, n := range pool {
		if err := checkCtx(ctx, start); err != nil {
			return nil, err
		}
		if relTest != nil && !relTest(n) {
			continue
		}
		if stmt.Where != nil {
			ok, err := evalExpr(stmt.Where, attrFor(n))
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		matched = append(matched, n)
	}

	sortNodes(matched, stmt.OrderBy, attrFor)
	if stmt.Limit >= 0 && len(matched) > stmt.Limit {
		matched = matched[:stmt.Limit]
	}

	columns := stmt.Columns
	if len(columns) == 0 {
		columns = defaultNodeColumns
	}
	if delta != nil && !slices.Contains(columns, "change") {
		columns = append([]string{"change"}, columns...)
	}

	rows := make([][]any, 0, len(matched))
	for _, n := range matched {
		attr := attrFor(n)
		row := make([]any, 0, len(columns))
		for _, col := range columns {
			val, _ := attr(col)
			row = append(row, val)
		}
		rows = append(rows, row)
	}

	return &Result{Columns: columns, Rows: rows, RowCount: len(rows)}, nil
}

func (e *Engine) runSelectEdges(ctx context.Context, acc graph.Accessor, stmt *query.SelectStmt, start time.Time) (*Result, error) {
	if stmt.Relation != nil {
		return nil, execErrorf("relational predicates do not apply to the edges entity")
	}
	pool := acc.AllEdges()

	if stmt.Where != nil {
		if err := validateEdgeAttrs(stmt.Where, pool); err != nil {
			return nil, err
		}
	}

	var matched []*graph.Edge
	for _, ed := range pool {
		if err := checkCtx(ctx, start); err != nil {
			return nil, err
		}
		if stmt.Where != nil {
			ok, err := evalExpr(stmt.Where, ed.Attr)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		matched = append(matched, ed)
	}

	if len(stmt.OrderBy) > 0 {
		keys := stmt.OrderBy
		sort.SliceStable(matched, func(i, j int) bool {
			for _, k := range keys {
				vi, _ := matched[i].Attr(k.Attr)
				vj, _ := matched[j].Attr(k.Attr)
				if vi == vj {
					continue
				}
				if k.Desc {
					return sortValueLess(vj, vi)
				}
				return sortValueLess(vi, vj)
			}
			return false
		})
	}
	if stmt.Limit >= 0 && len(matched) > stmt.Limit {
		matched = matched[:stmt.Limit]
	}

	columns := stmt.Columns
	if len(columns) == 0 {
		columns = defaultEdgeColumns
	}
	rows := make([][]any, 0, len(matched))
	for _, ed := range matched {
		row := make([]any, 0, len(columns))
		for _, col := range columns {
			val, _ := ed.Attr(col)
			row = append(row, val)
		}
		rows = append(rows, row)
	}
	return &Result{Columns: columns, Rows: rows, RowCount: len(rows)}, nil
}

// validateAttrs rejects WHERE/ORDER BY/projection attributes that are
// neither built-in nor present on any node in the scanned collection.
// deltaActive admits the synthetic change column of BETWEEN views.
func validateAttrs(stmt *query.SelectStmt, pool []*graph.Node, deltaActive bool) error {
	referenced := make(map[string]bool)
	if stmt.Where != nil {
		collectAttrs(stmt.Where, referenced)
	}
	for _, k := range stmt.OrderBy {
		referenced[k.Attr] = true
	}
	for _, c := range stmt.Columns {
		referenced[c] = true
	}
	if len(referenced) == 0 {
		return nil
	}

	builtin := make(map[string]bool, len(defaultNodeColumns))
	for _, c := range defaultNodeColumns {
		builtin[c] = true
	}
	if deltaActive {
		builtin["change"] = true
	}
	for attr := range referenced {
		if builtin[attr] {
			continue
		}
		known := false
		for _, n := range pool {
			if _, ok := n.Properties[attr]; ok {
				known = true
				break
			}
		}
		if !known {
			return execErrorf("unknown attribute %q", attr)
		}
	}
	return nil
}

func validateEdgeAttrs(expr query.Expr, pool []*graph.Edge) error {
	referenced := make(map[string]bool)
	collectAttrs(expr, referenced)
	for attr := range referenced {
		switch attr {
		case "source_id", "target_id", "type":
			continue
		}
		known := false
		for _, ed := range pool {
			if _, ok := ed.Properties[attr]; ok {
				known = true
				break
			}
		}
		if !known {
			return execErrorf("unknown edge attribute %q", attr)
		}
	}
	return nil
}

// relationTest builds the per-node predicate for FIND relational
// clauses against an already-resolved target.
func relationTest(acc graph.Accessor, kind query.RelationKind, targetID string) func(*graph.Node) bool {
	switch kind {
	case query.RelCalling:
		return func(n *graph.Node) bool {
			for _, ed := range acc.Edges(n.ID, graph.DirOutgoing, graph.EdgeCalls) {
				if ed.TargetID == targetID {
					return true
				}
			}
			return false
		}
	case query.RelImporting:
		return func(n *graph.Node) bool {
			for _, ed := range acc.Edges(n.ID, graph.DirOutgoing, graph.EdgeImports) {
				if ed.TargetID == targetID {
					return true
				}
			}
			return false
		}
	case query.RelImplementing:
		// Walk the inherits chain transitively; cycles are guarded.
		return func(n *graph.Node) bool {
			seen := map[string]bool{n.ID: true}
			frontier := []string{n.ID}
			for len(frontier) > 0 {
				id := frontier[0]
				frontier = frontier[1:]
				for _, ed := range acc.Edges(id, graph.DirOutgoing, graph.EdgeInherits) {
					if ed.TargetID == targetID {
						return true
					}
					if !seen[ed.TargetID] {
						seen[ed.TargetID] = true
						frontier = append(frontier, ed.TargetID)
					}
				}
			}
			return false
		}
	}
	return func(*graph.Node) bool { return false }
}

func sortNodes(nodes []*graph.Node, keys []query.OrderKey, attrFor func(*graph.Node) attrFn) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		for _, k := range keys {
			vi, _ := attrFor(nodes[i])(k.Attr)
			vj, _ := attrFor(nodes[j])(k.Attr)
			if vi == vj {
				continue
			}
			if k.Desc {
				return sortValueLess(vj, vi)
			}
			return sortValueLess(vi, vj)
		}
		return false
	})
}

func (e *Engine) runHistory(q *query.Query, scope execScope) (*Result, error) {
	if e.changes == nil {
		return nil, execErrorf("history requires a change log, none is configured")
	}
	targetID, err := e.resolveHistoric(q.History.Ref, scope)
	if err != nil {
		return nil, err
	}

	bounds, err := e.temporalBounds(q.Temporal)
	if err != nil {
		return nil, err
	}

	newestFirst := true
	switch {
	case q.History.Order != "":
		newestFirst = q.History.Order == query.OrderNewestFirst
	case e.opts.HistoryOrder != "":
		newestFirst = e.opts.HistoryOrder == query.OrderNewestFirst
	}

	entries := temporal.History(e.changes, targetID, q.History.Limit, newestFirst, bounds)
	return &Result{History: entries, RowCount: len(entries)}, nil
}

func (e *Engine) runBlame(q *query.Query, scope execScope) (*Result, error) {
	if e.changes == nil {
		return nil, execErrorf("blame requires a change log, none is configured")
	}
	targetID, err := e.resolveHistoric(q.Blame.Ref, scope)
	if err != nil {
		return nil, err
	}
	bounds, err := e.temporalBounds(q.Temporal)
	if err != nil {
		return nil, err
	}
	blame := temporal.Blame(e.changes, targetID, bounds)
	return &Result{Blame: blame, RowCount: len(blame)}, nil
}

// resolveHistoric resolves a reference for history/blame. Nodes that
// no longer exist in the live graph still resolve when the change log
// knows their canonical id.
func (e *Engine) resolveHistoric(ref string, scope execScope) (string, error) {
	r := resolve.New(e.graphs.Current())
	id, err := e.resolveRef(r, ref, scope)
	if err == nil {
		return id, nil
	}
	var nf *NotFoundError
	if errors.As(err, &nf) && len(e.changes.Records(ref)) > 0 {
		return ref, nil
	}
	return "", err
}

func (e *Engine) temporalBounds(tc *query.TemporalClause) (temporal.Bounds, error) {
	if tc == nil {
		return temporal.Bounds{}, nil
	}
	switch tc.Kind {
	case query.TemporalAt:
		snap, ok := e.changes.Snapshot(tc.At)
		if !ok {
			return temporal.Bounds{}, &temporal.SnapshotNotFoundError{Ref: tc.At}
		}
		return temporal.Bounds{MaxSeq: snap.Seq}, nil
	case query.TemporalBetween:
		lo, ok := e.changes.Snapshot(tc.At)
		if !ok {
			return temporal.Bounds{}, &temporal.SnapshotNotFoundError{Ref: tc.At}
		}
		hi, ok := e.changes.Snapshot(tc.Until)
		if !ok {
			return temporal.Bounds{}, &temporal.SnapshotNotFoundError{Ref: tc.Until}
		}
		if lo.Seq > hi.Seq {
			lo, hi = hi, lo
		}
		return temporal.Bounds{MinSeq: lo.Seq, MaxSeq: hi.Seq}, nil
	}
	return temporal.Bounds{}, nil
}
