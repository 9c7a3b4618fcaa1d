// Package resolve maps free-form user references onto canonical graph
// node IDs.
//
// Resolution is an explicit tri-state: Resolved, Ambiguous (with a
// capped candidate list), or NotFound. Callers choose their own policy
// for ambiguity; the resolver never auto-selects among multiple
// matches and never collapses a failed resolution into an empty
// result.
package resolve

import (
	"sort"
	"strings"

	"github.com/scrylang/scry/internal/graph"
)

// CandidateCap bounds the candidate list reported for an ambiguous
// reference.
const CandidateCap = 10

// Status is the outcome kind of a resolution attempt.
type Status int

const (
	// StatusResolved means exactly one node matched.
	StatusResolved Status = iota

	// StatusAmbiguous means more than one node matched in the winning
	// tier.
	StatusAmbiguous

	// StatusNotFound means no tier produced a match.
	StatusNotFound
)

// Resolution is the result of resolving one reference.
type Resolution struct {
	Status Status

	// NodeID is the canonical ID when Status is StatusResolved.
	NodeID string

	// Candidates holds up to CandidateCap node IDs when Status is
	// StatusAmbiguous, ranked by shorter qualified name first.
	Candidates []string
}

// Resolver resolves references against a graph accessor.
type Resolver struct {
	acc graph.Accessor
}

// New creates a resolver over the given accessor.
func New(acc graph.Accessor) *Resolver {
	return &Resolver{acc: acc}
}

// Resolve maps ref to a canonical node ID through ordered tiers:
//
//  1. exact ID match
//  2. exact name match
//  3. qualified-name suffix match
//  4. qualified-name substring match
//  5. module-path heuristic for path-looking refs
//
// The first tier with any match decides the outcome; matches are never
// merged across tiers. typeHint, when non-empty, restricts the node
// collection scanned by the name-based tiers.
func (r *Resolver) Resolve(ref string, typeHint graph.NodeType) Resolution {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Resolution{Status: StatusNotFound}
	}

	// Tier 1: exact ID. An already-canonical ID resolves to itself.
	if n := r.acc.GetNode(ref); n != nil {
		return Resolution{Status: StatusResolved, NodeID: n.ID}
	}

	pool := r.acc.Nodes(typeHint)

	tiers := []func(*graph.Node) bool{
		func(n *graph.Node) bool { return n.Name == ref },
		func(n *graph.Node) bool {
			return n.QualifiedName != "" && hasSuffixPart(n.QualifiedName, ref)
		},
		func(n *graph.Node) bool {
			return n.QualifiedName != "" && strings.Contains(n.QualifiedName, ref)
		},
	}
	for _, match := range tiers {
		if res, ok := collect(pool, match); ok {
			return res
		}
	}

	// Tier 5: a path-looking ref is tried as a module ID.
	if strings.ContainsAny(ref, "/\\") {
		if n := r.acc.GetNode(graph.NodeID(graph.NodeModule, ref)); n != nil {
			return Resolution{Status: StatusResolved, NodeID: n.ID}
		}
		if res, ok := collect(r.acc.Nodes(graph.NodeModule), func(n *graph.Node) bool {
			return n.FilePath == ref
		}); ok {
			return res
		}
	}

	return Resolution{Status: StatusNotFound}
}

// hasSuffixPart reports whether ref is a dotted-path suffix of
// qualified: "Foo.bar" matches "a.Foo.bar" but not "aFoo.bar".
func hasSuffixPart(qualified, ref string) bool {
	if qualified == ref {
		return true
	}
	return strings.HasSuffix(qualified, "."+ref)
}

// collect gathers tier matches into a Resolution. ok is false when the
// tier matched nothing, so resolution falls through to the next tier.
func collect(pool []*graph.Node, match func(*graph.Node) bool) (Resolution, bool) {
	var hits []*graph.Node
	for _, n := range pool {
		if match(n) {
			hits = append(hits, n)
		}
	}
	switch len(hits) {
	case 0:
		return Resolution{}, false
	case 1:
		return Resolution{Status: StatusResolved, NodeID: hits[0].ID}, true
	}

	// Rank by shorter qualified name, then ID for a stable order.
	sort.SliceStable(hits, func(i, j int) bool {
		li, lj := len(hits[i].QualifiedName), len(hits[j].QualifiedName)
		if li != lj {
			return li < lj
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > CandidateCap {
		hits = hits[:CandidateCap]
	}
	ids := make([]string, len(hits))
	for i, n := range hits {
		ids[i] = n.ID
	}
	return Resolution{Status: StatusAmbiguous, Candidates: ids}, true
}
