package resolve

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrylang/scry/internal/graph"
)

func testGraph(t *testing.T) *graph.Graph {
	t.Helper()

	b := graph.NewBuilder()
	nodes := []*graph.Node{
		{ID: "mod:pkg/auth", Type: graph.NodeModule, Name: "auth", QualifiedName: "pkg/auth", FilePath: "pkg/auth"},
		{ID: "cls:pkg/auth:Service", Type: graph.NodeClass, Name: "Service", QualifiedName: "pkg.auth.Service"},
		{ID: "cls:pkg/billing:Service", Type: graph.NodeClass, Name: "Service", QualifiedName: "pkg.billing.Service"},
		{ID: "cls:pkg/mail:Service", Type: graph.NodeClass, Name: "Service", QualifiedName: "pkg.mail.Service"},
		{ID: "fn:pkg/auth:Service.login", Type: graph.NodeFunction, Name: "login", QualifiedName: "pkg.auth.Service.login"},
		{ID: "fn:pkg/auth:helper", Type: graph.NodeFunction, Name: "helper", QualifiedName: "pkg.auth.helper"},
	}
	for _, n := range nodes {
		require.NoError(t, b.AddNode(n))
	}
	g, err := b.Build("v1")
	require.NoError(t, err)
	return g
}

func TestResolver_ExactID(t *testing.T) {
	t.Parallel()

	r := New(testGraph(t))
	res := r.Resolve("fn:pkg/auth:helper", "")
	assert.Equal(t, StatusResolved, res.Status)
	assert.Equal(t, "fn:pkg/auth:helper", res.NodeID)
}

func TestResolver_Idempotent(t *testing.T) {
	t.Parallel()

	r := New(testGraph(t))
	first := r.Resolve("helper", "")
	require.Equal(t, StatusResolved, first.Status)

	again := r.Resolve(first.NodeID, "")
	assert.Equal(t, StatusResolved, again.Status)
	assert.Equal(t, first.NodeID, again.NodeID)
}

func TestResolver_ExactName(t *testing.T) {
	t.Parallel()

	r := New(testGraph(t))
	res := r.Resolve("login", "")
	assert.Equal(t, StatusResolved, res.Status)
	assert.Equal(t, "fn:pkg/auth:Service.login", res.NodeID)
}

func TestResolver_SuffixMatch(t *testing.T) {
	t.Parallel()

	r := New(testGraph(t))
	res := r.Resolve("Service.login", "")
	assert.Equal(t, StatusResolved, res.Status)
	assert.Equal(t, "fn:pkg/auth:Service.login", res.NodeID)
}

func TestResolver_SubstringMatch(t *testing.T) {
	t.Parallel()

	r := New(testGraph(t))
	res := r.Resolve("auth.hel", "")
	assert.Equal(t, StatusResolved, res.Status)
	assert.Equal(t, "fn:pkg/auth:helper", res.NodeID)
}

func TestResolver_Ambiguous(t *testing.T) {
	t.Parallel()

	r := New(testGraph(t))
	res := r.Resolve("Service", "")
	assert.Equal(t, StatusAmbiguous, res.Status)
	assert.Len(t, res.Candidates, 3)
	// Ranked by shorter qualified name, then ID.
	assert.Equal(t, "cls:pkg/auth:Service", res.Candidates[0])
	assert.Equal(t, "cls:pkg/mail:Service", res.Candidates[1])
	assert.Equal(t, "cls:pkg/billing:Service", res.Candidates[2])
}

func TestResolver_CandidateCap(t *testing.T) {
	t.Parallel()

	b := graph.NewBuilder()
	for i := 0; i < CandidateCap+5; i++ {
		require.NoError(t, b.AddNode(&graph.Node{
			ID:            fmt.Sprintf("fn:m%02d:dup", i),
			Type:          graph.NodeFunction,
			Name:          "dup",
			QualifiedName: fmt.Sprintf("m%02d.dup", i),
		}))
	}
	g, err := b.Build("")
	require.NoError(t, err)

	res := New(g).Resolve("dup", "")
	assert.Equal(t, StatusAmbiguous, res.Status)
	assert.Len(t, res.Candidates, CandidateCap)
}

func TestResolver_TypeHint(t *testing.T) {
	t.Parallel()

	b := graph.NewBuilder()
	require.NoError(t, b.AddNode(&graph.Node{ID: "cls:a:Item", Type: graph.NodeClass, Name: "Item", QualifiedName: "a.Item"}))
	require.NoError(t, b.AddNode(&graph.Node{ID: "fn:a:Item", Type: graph.NodeFunction, Name: "Item", QualifiedName: "a.b.Item"}))
	g, err := b.Build("")
	require.NoError(t, err)

	r := New(g)
	assert.Equal(t, StatusAmbiguous, r.Resolve("Item", "").Status)

	res := r.Resolve("Item", graph.NodeClass)
	assert.Equal(t, StatusResolved, res.Status)
	assert.Equal(t, "cls:a:Item", res.NodeID)
}

func TestResolver_PathHeuristic(t *testing.T) {
	t.Parallel()

	r := New(testGraph(t))
	res := r.Resolve("pkg/auth", "")
	assert.Equal(t, StatusResolved, res.Status)
	assert.Equal(t, "mod:pkg/auth", res.NodeID)
}

func TestResolver_NotFound(t *testing.T) {
	t.Parallel()

	r := New(testGraph(t))
	assert.Equal(t, StatusNotFound, r.Resolve("no_such_symbol", "").Status)
	assert.Equal(t, StatusNotFound, r.Resolve("", "").Status)
	assert.Equal(t, StatusNotFound, r.Resolve("some/other/path", "").Status)
}

func TestResolver_TierDoesNotMerge(t *testing.T) {
	t.Parallel()

	// "helper" matches tier 2 exactly once even though it is also a
	// substring of other qualified names; the earlier tier wins alone.
	b := graph.NewBuilder()
	require.NoError(t, b.AddNode(&graph.Node{ID: "fn:a:helper", Type: graph.NodeFunction, Name: "helper", QualifiedName: "a.helper"}))
	require.NoError(t, b.AddNode(&graph.Node{ID: "fn:a:helperPool", Type: graph.NodeFunction, Name: "helperPool", QualifiedName: "a.helperPool"}))
	g, err := b.Build("")
	require.NoError(t, err)

	res := New(g).Resolve("helper", "")
	assert.Equal(t, StatusResolved, res.Status)
	assert.Equal(t, "fn:a:helper", res.NodeID)
}
