package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestGraph(t *testing.T) *Graph {
	t.Helper()

	b := NewBuilder()
	require.NoError(t, b.AddNode(&Node{ID: "mod:a", Type: NodeModule, Name: "a", QualifiedName: "a"}))
	require.NoError(t, b.AddNode(&Node{ID: "cls:a:Foo", Type: NodeClass, Name: "Foo", QualifiedName: "a.Foo"}))
	require.NoError(t, b.AddNode(&Node{ID: "fn:a:Foo.bar", Type: NodeFunction, Name: "bar", QualifiedName: "a.Foo.bar"}))
	require.NoError(t, b.AddNode(&Node{ID: "fn:b:helper", Type: NodeFunction, Name: "helper", QualifiedName: "b.helper"}))
	require.NoError(t, b.AddEdge(&Edge{SourceID: "mod:a", TargetID: "cls:a:Foo", Type: EdgeContains}))
	require.NoError(t, b.AddEdge(&Edge{SourceID: "cls:a:Foo", TargetID: "fn:a:Foo.bar", Type: EdgeContains}))
	require.NoError(t, b.AddEdge(&Edge{SourceID: "fn:a:Foo.bar", TargetID: "fn:b:helper", Type: EdgeCalls}))

	g, err := b.Build("v1")
	require.NoError(t, err)
	return g
}

func TestBuilder_Build(t *testing.T) {
	t.Parallel()

	g := buildTestGraph(t)

	assert.Equal(t, 4, g.NodeCount())
	assert.Equal(t, 3, g.EdgeCount())
	assert.Equal(t, "v1", g.Version())
	assert.Equal(t, "Foo", g.GetNode("cls:a:Foo").Name)
	assert.Nil(t, g.GetNode("cls:a:Missing"))
}

func TestBuilder_ReplaceKeepsOrder(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	require.NoError(t, b.AddNode(&Node{ID: "mod:a", Type: NodeModule, Name: "a"}))
	require.NoError(t, b.AddNode(&Node{ID: "mod:b", Type: NodeModule, Name: "b"}))
	require.NoError(t, b.AddNode(&Node{ID: "mod:a", Type: NodeModule, Name: "a2"}))

	g, err := b.Build("")
	require.NoError(t, err)

	mods := g.Nodes(NodeModule)
	require.Len(t, mods, 2)
	assert.Equal(t, "a2", mods[0].Name)
	assert.Equal(t, "b", mods[1].Name)
}

func TestBuilder_RejectsInvalid(t *testing.T) {
	t.Parallel()

	t.Run("BadNodeType", func(t *testing.T) {
		t.Parallel()
		b := NewBuilder()
		err := b.AddNode(&Node{ID: "x", Type: "widget"})
		assert.Error(t, err)
	})

	t.Run("SelfLoopNonCalls", func(t *testing.T) {
		t.Parallel()
		b := NewBuilder()
		err := b.AddEdge(&Edge{SourceID: "mod:a", TargetID: "mod:a", Type: EdgeImports})
		assert.Error(t, err)
	})

	t.Run("SelfLoopCallsAllowed", func(t *testing.T) {
		t.Parallel()
		b := NewBuilder()
		require.NoError(t, b.AddNode(&Node{ID: "fn:a:rec", Type: NodeFunction, Name: "rec"}))
		require.NoError(t, b.AddEdge(&Edge{SourceID: "fn:a:rec", TargetID: "fn:a:rec", Type: EdgeCalls}))
		_, err := b.Build("")
		assert.NoError(t, err)
	})

	t.Run("DanglingEdge", func(t *testing.T) {
		t.Parallel()
		b := NewBuilder()
		require.NoError(t, b.AddNode(&Node{ID: "mod:a", Type: NodeModule, Name: "a"}))
		require.NoError(t, b.AddEdge(&Edge{SourceID: "mod:a", TargetID: "mod:gone", Type: EdgeImports}))
		_, err := b.Build("")
		assert.Error(t, err)
	})

	t.Run("BadPropertyKind", func(t *testing.T) {
		t.Parallel()
		b := NewBuilder()
		err := b.AddNode(&Node{
			ID: "mod:a", Type: NodeModule, Name: "a",
			Properties: map[string]any{"bad": make(chan int)},
		})
		assert.Error(t, err)
	})
}

func TestGraph_Edges(t *testing.T) {
	t.Parallel()

	g := buildTestGraph(t)

	out := g.Edges("fn:a:Foo.bar", DirOutgoing)
	require.Len(t, out, 1)
	assert.Equal(t, "fn:b:helper", out[0].TargetID)

	in := g.Edges("fn:b:helper", DirIncoming, EdgeCalls)
	require.Len(t, in, 1)
	assert.Equal(t, "fn:a:Foo.bar", in[0].SourceID)

	assert.Empty(t, g.Edges("fn:b:helper", DirIncoming, EdgeImports))
	assert.Len(t, g.Edges("cls:a:Foo", DirBoth), 2)
	assert.Len(t, g.AllEdges(), 3)
	assert.Len(t, g.AllEdges(EdgeContains), 2)
}

func TestNode_Attr(t *testing.T) {
	t.Parallel()

	n := &Node{
		ID: "fn:a:f", Type: NodeFunction, Name: "f", QualifiedName: "a.f",
		FilePath: "a.py", StartLine: 3, EndLine: 9, Complexity: 4,
		Properties: map[string]any{"visibility": "public"},
	}

	for name, want := range map[string]any{
		"id":             "fn:a:f",
		"type":           "function",
		"name":           "f",
		"qualified_name": "a.f",
		"file_path":      "a.py",
		"line_start":     3,
		"complexity":     4,
		"visibility":     "public",
	} {
		got, ok := n.Attr(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}

	_, ok := n.Attr("no_such_attr")
	assert.False(t, ok)
}

func TestNodeID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "mod:pkg/auth", NodeID(NodeModule, "pkg/auth"))
	assert.Equal(t, "fn:pkg/auth:Login.verify", NodeID(NodeFunction, "pkg/auth", "Login.verify"))
}

func TestVersionedStore_Publish(t *testing.T) {
	t.Parallel()

	store := NewVersionedStore(nil)
	first := store.Current()
	require.NotNil(t, first)
	assert.Equal(t, 0, first.NodeCount())

	g := buildTestGraph(t)
	store.Publish(g)

	assert.Same(t, g, store.Current())
	// The previously obtained handle is untouched by the publish.
	assert.Equal(t, 0, first.NodeCount())
}
