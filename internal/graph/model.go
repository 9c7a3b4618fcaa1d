// Package graph provides the structural code-graph data model for Scry.
//
// It defines the node and edge types that represent code-level entities
// (modules, classes, functions, external symbols) and the relationships
// between them (contains, imports, calls, inherits), plus the immutable
// versioned Graph that queries execute against.
package graph

import (
	"fmt"
	"strings"
)

// NodeType represents the kind of a graph node.
type NodeType string

const (
	NodeModule   NodeType = "module"
	NodeClass    NodeType = "class"
	NodeFunction NodeType = "function"
	NodeEntity   NodeType = "entity"
	NodeExternal NodeType = "external"
)

// NodeTypes lists every valid node type in declaration order.
var NodeTypes = []NodeType{NodeModule, NodeClass, NodeFunction, NodeEntity, NodeExternal}

// Valid reports whether t is a member of the closed node-type set.
func (t NodeType) Valid() bool {
	switch t {
	case NodeModule, NodeClass, NodeFunction, NodeEntity, NodeExternal:
		return true
	}
	return false
}

// EdgeType represents the kind of relationship between graph nodes.
type EdgeType string

const (
	EdgeContains EdgeType = "contains"
	EdgeImports  EdgeType = "imports"
	EdgeCalls    EdgeType = "calls"
	EdgeInherits EdgeType = "inherits"
)

// Valid reports whether t is a member of the closed edge-type set.
func (t EdgeType) Valid() bool {
	switch t {
	case EdgeContains, EdgeImports, EdgeCalls, EdgeInherits:
		return true
	}
	return false
}

// Node represents a node in the code graph.
//
// ID is globally unique and stable across rebuilds of the same source
// entity; it is the join key for change history. The conventional format
// is kind-prefixed: "mod:path", "cls:path:Name", "fn:path:Name.method",
// "ext:qualified.name".
type Node struct {
	// ID is the canonical identifier for the node.
	ID string `json:"id"`

	// Type is the kind of the node.
	Type NodeType `json:"type"`

	// Name is the short name of the entity (e.g. function name).
	Name string `json:"name"`

	// QualifiedName is the fully qualified name (e.g. "pkg.Type.method").
	QualifiedName string `json:"qualified_name"`

	// FilePath is the path of the defining file. Empty for externals.
	FilePath string `json:"file_path,omitempty"`

	// StartLine and EndLine delimit the definition. Zero when unknown.
	StartLine int `json:"line_start,omitempty"`
	EndLine   int `json:"line_end,omitempty"`

	// Complexity is the cyclomatic complexity when the ingestion
	// pipeline computed one. Zero when absent.
	Complexity int `json:"complexity,omitempty"`

	// Properties holds additional attributes. Values are restricted to
	// the closed kind set enforced by ValidateProperties.
	Properties map[string]any `json:"properties,omitempty"`
}

// Edge represents a directed relationship between two nodes.
type Edge struct {
	// SourceID is the origin node ID.
	SourceID string `json:"source_id"`

	// TargetID is the destination node ID.
	TargetID string `json:"target_id"`

	// Type is the relationship kind.
	Type EdgeType `json:"type"`

	// Properties holds additional attributes, same kind set as nodes.
	Properties map[string]any `json:"properties,omitempty"`
}

// NodeID builds a canonical node ID from a kind prefix and path parts.
// Format: {prefix}:{part}:{part}...
func NodeID(t NodeType, parts ...string) string {
	prefix := map[NodeType]string{
		NodeModule:   "mod",
		NodeClass:    "cls",
		NodeFunction: "fn",
		NodeEntity:   "ent",
		NodeExternal: "ext",
	}[t]
	return prefix + ":" + strings.Join(parts, ":")
}

// ValidateProperties checks that every value in props belongs to the
// closed value-kind set: string, number, bool, ordered list, nested map.
// Lists and maps are validated recursively.
func ValidateProperties(props map[string]any) error {
	for key, val := range props {
		if err := validateValue(val); err != nil {
			return fmt.Errorf("property %q: %w", key, err)
		}
	}
	return nil
}

func validateValue(val any) error {
	switch v := val.(type) {
	case nil, string, bool,
		int, int32, int64, float32, float64:
		return nil
	case []any:
		for i, elem := range v {
			if err := validateValue(elem); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
		return nil
	case map[string]any:
		return ValidateProperties(v)
	default:
		return fmt.Errorf("unsupported value kind %T", val)
	}
}

// Attr returns the named attribute of an edge, looking first at the
// built-in fields and then at Properties.
func (e *Edge) Attr(name string) (any, bool) {
	switch name {
	case "source_id":
		return e.SourceID, true
	case "target_id":
		return e.TargetID, true
	case "type":
		return string(e.Type), true
	}
	if e.Properties != nil {
		if v, ok := e.Properties[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Attr returns the named attribute of a node, looking first at the
// built-in fields and then at Properties. The second return reports
// whether the attribute exists at all.
func (n *Node) Attr(name string) (any, bool) {
	switch name {
	case "id":
		return n.ID, true
	case "type":
		return string(n.Type), true
	case "name":
		return n.Name, true
	case "qualified_name":
		return n.QualifiedName, true
	case "file_path":
		return n.FilePath, true
	case "line_start":
		return n.StartLine, true
	case "line_end":
		return n.EndLine, true
	case "complexity":
		return n.Complexity, true
	}
	if n.Properties != nil {
		if v, ok := n.Properties[name]; ok {
			return v, true
		}
	}
	return nil, false
}
