// Package query provides the Scry query language: lexer, parser, and
// the query AST consumed by the execution engine.
//
// The surface is keyword-led and case-insensitive for keywords:
//
//	SELECT name, complexity FROM functions WHERE complexity > 10 ORDER BY complexity DESC LIMIT 5
//	FIND functions CALLING helper
//	SHOW dependencies OF Foo.bar DEPTH 2
//	PATH FROM Foo.bar TO helper MAX DEPTH 6
//	ANALYZE circular TYPE imports
//	HISTORY OF Foo.bar LIMIT 20
//	BLAME Foo.bar
//
// Every query kind accepts the temporal suffix `AT <ref>` or
// `BETWEEN <ref> AND <ref>`.
package query

// Kind identifies the query variant.
type Kind string

const (
	KindSelect  Kind = "select"
	KindFind    Kind = "find"
	KindShow    Kind = "show"
	KindPath    Kind = "path"
	KindAnalyze Kind = "analyze"
	KindHistory Kind = "history"
	KindBlame   Kind = "blame"
)

// Entity names a queryable node collection (or the edge table).
type Entity string

const (
	EntityFunctions Entity = "functions"
	EntityClasses   Entity = "classes"
	EntityModules   Entity = "modules"
	EntityEntities  Entity = "entities"
	EntityExternal  Entity = "external"
	EntityEdges     Entity = "edges"
)

// Entities is the closed set of valid entity names, in declaration order.
var Entities = []Entity{
	EntityFunctions, EntityClasses, EntityModules,
	EntityEntities, EntityExternal, EntityEdges,
}

// ValidEntity reports whether name is in the closed entity set.
func ValidEntity(name string) bool {
	for _, e := range Entities {
		if string(e) == name {
			return true
		}
	}
	return false
}

// DefaultPathDepth bounds PATH traversal when no MAX DEPTH is given.
const DefaultPathDepth = 6

// Query is the parsed form of one query. Exactly one variant field is
// set according to Kind; Temporal is shared by all kinds so new kinds
// gain temporal support without grammar growth.
//
// Queries are immutable once parsed and consumed exactly once.
type Query struct {
	Kind     Kind
	Select   *SelectStmt
	Show     *ShowStmt
	Path     *PathStmt
	Analyze  *AnalyzeStmt
	History  *HistoryStmt
	Blame    *BlameStmt
	Temporal *TemporalClause
}

// SelectStmt covers both SELECT and FIND: scan an entity collection,
// filter, order, limit, project.
type SelectStmt struct {
	// Columns to project. Empty means all default columns.
	Columns []string

	// Entity is the collection scanned.
	Entity Entity

	// Relation is the optional FIND relational predicate
	// (CALLING / IMPLEMENTING / IMPORTING <ref>).
	Relation *RelationPred

	// Where is the optional boolean filter expression.
	Where Expr

	// OrderBy lists sort keys applied before Limit.
	OrderBy []OrderKey

	// Limit caps the row count; negative means unlimited.
	Limit int
}

// RelationKind identifies a relational predicate.
type RelationKind string

const (
	RelCalling      RelationKind = "calling"
	RelImplementing RelationKind = "implementing"
	RelImporting    RelationKind = "importing"
)

// RelationPred is a relational predicate whose Ref is resolved at
// execution time through the reference resolver.
type RelationPred struct {
	Kind RelationKind
	Ref  string
}

// ShowKind identifies a neighbor query flavor.
type ShowKind string

const (
	ShowDependencies ShowKind = "dependencies" // outgoing
	ShowDependents   ShowKind = "dependents"   // incoming
	ShowCallers      ShowKind = "callers"      // incoming calls
	ShowCallees      ShowKind = "callees"      // outgoing calls
	ShowImpact       ShowKind = "impact"       // transitive outgoing
	ShowAncestors    ShowKind = "ancestors"    // transitive incoming
)

// ShowStmt is a neighbor lookup around a single resolved node.
type ShowStmt struct {
	Kind ShowKind
	Ref  string

	// Depth caps transitive traversal. Zero means single hop for the
	// plain kinds and unbounded for impact/ancestors.
	Depth int

	// EdgeTypes optionally restricts traversed edge types.
	EdgeTypes []string
}

// PathStmt asks for the shortest path between two resolved nodes.
type PathStmt struct {
	From string
	To   string

	// MaxDepth caps the search. Zero means no MAX DEPTH clause was
	// given; the engine substitutes its configured default.
	MaxDepth int
}

// AnalyzeStmt runs a whole-graph analysis. Circular is the only kind.
type AnalyzeStmt struct {
	Kind string // "circular"

	// EdgeTypes optionally restricts the edges considered.
	EdgeTypes []string
}

// HistoryOrder selects the record ordering for HISTORY results.
type HistoryOrder string

const (
	OrderNewestFirst HistoryOrder = "newest_first"
	OrderOldestFirst HistoryOrder = "oldest_first"
)

// HistoryStmt asks for the change records of one resolved node.
type HistoryStmt struct {
	Ref   string
	Limit int // negative means unlimited

	// Order overrides the configured default when non-empty
	// (ASC = oldest first, DESC = newest first).
	Order HistoryOrder
}

// BlameStmt asks which change last touched each tracked attribute.
type BlameStmt struct {
	Ref string
}

// TemporalKind distinguishes point-in-time from range clauses.
type TemporalKind string

const (
	TemporalAt      TemporalKind = "at"
	TemporalBetween TemporalKind = "between"
)

// TemporalClause scopes a query to a snapshot or a snapshot range.
type TemporalClause struct {
	Kind TemporalKind

	// At is the commit ref for AT clauses, and the lower bound for
	// BETWEEN clauses.
	At string

	// Until is the upper bound for BETWEEN clauses.
	Until string
}

// OrderKey is one ORDER BY sort key.
type OrderKey struct {
	Attr string
	Desc bool
}

// Expr is a boolean filter expression over node attributes.
type Expr interface {
	isExpr()
}

// LogicOp joins two sub-expressions.
type LogicOp string

const (
	OpAnd LogicOp = "and"
	OpOr  LogicOp = "or"
)

// BinaryExpr combines two expressions with AND/OR.
type BinaryExpr struct {
	Op    LogicOp
	Left  Expr
	Right Expr
}

func (*BinaryExpr) isExpr() {}

// CmpOp is a comparison operator.
type CmpOp string

const (
	CmpEq CmpOp = "="
	CmpNe CmpOp = "!="
	CmpLt CmpOp = "<"
	CmpLe CmpOp = "<="
	CmpGt CmpOp = ">"
	CmpGe CmpOp = ">="
)

// CompareExpr compares a node attribute against a literal.
type CompareExpr struct {
	Attr  string
	Op    CmpOp
	Value Literal
}

func (*CompareExpr) isExpr() {}

// LikeExpr matches a string attribute against a SQL-style pattern
// (% = any run, _ = any single character). Matching is
// case-insensitive.
type LikeExpr struct {
	Attr    string
	Pattern string
}

func (*LikeExpr) isExpr() {}

// Literal is a typed literal value from the query text.
type Literal struct {
	Str    string
	Num    float64
	Bool   bool
	IsStr  bool
	IsNum  bool
	IsBool bool
}

// StringLit builds a string literal.
func StringLit(s string) Literal { return Literal{Str: s, IsStr: true} }

// NumberLit builds a numeric literal.
func NumberLit(n float64) Literal { return Literal{Num: n, IsNum: true} }

// BoolLit builds a boolean literal.
func BoolLit(b bool) Literal { return Literal{Bool: b, IsBool: true} }
