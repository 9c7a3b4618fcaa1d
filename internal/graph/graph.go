package graph

import (
	"fmt"
)

// Direction selects which edges of a node to follow.
type Direction string

const (
	DirOutgoing Direction = "outgoing"
	DirIncoming Direction = "incoming"
	DirBoth     Direction = "both"
)

// Accessor is the read interface the query engine executes against.
//
// Implementations must be immutable once handed to the engine: an
// in-flight query keeps traversing the version it started with while
// the update pipeline publishes newer versions elsewhere. This
// snapshot-consistency property is load-bearing; the engine performs
// no locking of its own.
type Accessor interface {
	// GetNode returns the node with the given ID, or nil.
	GetNode(id string) *Node

	// Nodes returns all nodes of the given type in insertion order.
	// An empty type returns every node.
	Nodes(t NodeType) []*Node

	// Edges returns the edges touching nodeID in the given direction,
	// in insertion order, optionally filtered by edge type.
	Edges(nodeID string, dir Direction, types ...EdgeType) []*Edge

	// AllEdges returns every edge in insertion order, optionally
	// filtered by edge type.
	AllEdges(types ...EdgeType) []*Edge
}

// Graph is an immutable snapshot of the code graph.
//
// Adjacency and node collections are kept as insertion-order slices so
// that traversal order — and therefore BFS tie-breaking and cycle
// output — is deterministic across runs on the same data.
type Graph struct {
	nodes   map[string]*Node
	order   []*Node
	byType  map[NodeType][]*Node
	edges   []*Edge
	out     map[string][]*Edge
	in      map[string][]*Edge
	version string
}

var _ Accessor = (*Graph)(nil)

// Version returns the identifier assigned at build time, if any.
func (g *Graph) Version() string { return g.version }

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.order) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// GetNode returns the node with the given ID, or nil.
func (g *Graph) GetNode(id string) *Node { return g.nodes[id] }

// Nodes returns all nodes of the given type in insertion order.
// An empty type returns every node.
func (g *Graph) Nodes(t NodeType) []*Node {
	if t == "" {
		return g.order
	}
	return g.byType[t]
}

// Edges returns the edges touching nodeID in the given direction, in
// insertion order, optionally filtered by type.
func (g *Graph) Edges(nodeID string, dir Direction, types ...EdgeType) []*Edge {
	var pool []*Edge
	switch dir {
	case DirOutgoing:
		pool = g.out[nodeID]
	case DirIncoming:
		pool = g.in[nodeID]
	case DirBoth:
		pool = append(append([]*Edge{}, g.out[nodeID]...), g.in[nodeID]...)
	}
	return filterEdges(pool, types)
}

// AllEdges returns every edge in insertion order, optionally filtered
// by type.
func (g *Graph) AllEdges(types ...EdgeType) []*Edge {
	return filterEdges(g.edges, types)
}

func filterEdges(pool []*Edge, types []EdgeType) []*Edge {
	if len(types) == 0 {
		return pool
	}
	out := make([]*Edge, 0, len(pool))
	for _, e := range pool {
		for _, t := range types {
			if e.Type == t {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// Builder accumulates nodes and edges and freezes them into a Graph.
//
// Build validates structural invariants: node types and property kinds
// are members of their closed sets, edge endpoints exist, and
// self-loops are permitted only for calls edges (recursion).
type Builder struct {
	nodes map[string]*Node
	order []*Node
	edges []*Edge
}

// NewBuilder creates an empty graph builder.
func NewBuilder() *Builder {
	return &Builder{nodes: make(map[string]*Node)}
}

// AddNode adds a node, replacing any previous node with the same ID
// while keeping its original position in insertion order.
func (b *Builder) AddNode(n *Node) error {
	if n.ID == "" {
		return fmt.Errorf("node has empty id")
	}
	if !n.Type.Valid() {
		return fmt.Errorf("node %s: invalid type %q", n.ID, n.Type)
	}
	if err := ValidateProperties(n.Properties); err != nil {
		return fmt.Errorf("node %s: %w", n.ID, err)
	}
	if old, ok := b.nodes[n.ID]; ok {
		for i, existing := range b.order {
			if existing == old {
				b.order[i] = n
				break
			}
		}
	} else {
		b.order = append(b.order, n)
	}
	b.nodes[n.ID] = n
	return nil
}

// AddEdge adds an edge. Endpoint existence is checked at Build time so
// edges may be added before their nodes.
func (b *Builder) AddEdge(e *Edge) error {
	if !e.Type.Valid() {
		return fmt.Errorf("edge %s->%s: invalid type %q", e.SourceID, e.TargetID, e.Type)
	}
	if e.SourceID == e.TargetID && e.Type != EdgeCalls {
		return fmt.Errorf("edge %s: self-loop only permitted for calls", e.SourceID)
	}
	if err := ValidateProperties(e.Properties); err != nil {
		return fmt.Errorf("edge %s->%s: %w", e.SourceID, e.TargetID, err)
	}
	b.edges = append(b.edges, e)
	return nil
}

// Build freezes the builder into an immutable Graph with the given
// version identifier. The builder must not be reused afterwards.
func (b *Builder) Build(version string) (*Graph, error) {
	g := &Graph{
		nodes:   b.nodes,
		order:   b.order,
		byType:  make(map[NodeType][]*Node),
		edges:   b.edges,
		out:     make(map[string][]*Edge),
		in:      make(map[string][]*Edge),
		version: version,
	}
	for _, n := range b.order {
		g.byType[n.Type] = append(g.byType[n.Type], n)
	}
	for _, e := range b.edges {
		if g.nodes[e.SourceID] == nil {
			return nil, fmt.Errorf("edge %s->%s: unknown source node", e.SourceID, e.TargetID)
		}
		if g.nodes[e.TargetID] == nil {
			return nil, fmt.Errorf("edge %s->%s: unknown target node", e.SourceID, e.TargetID)
		}
		g.out[e.SourceID] = append(g.out[e.SourceID], e)
		g.in[e.TargetID] = append(g.in[e.TargetID], e)
	}
	return g, nil
}
