package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrylang/scry/internal/engine"
	"github.com/scrylang/scry/internal/graph"
	"github.com/scrylang/scry/internal/temporal"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	b := graph.NewBuilder()
	nodes := []*graph.Node{
		{ID: "mod:pay", Type: graph.NodeModule, Name: "pay", QualifiedName: "pay"},
		{ID: "fn:pay:charge", Type: graph.NodeFunction, Name: "charge", QualifiedName: "pay.charge", Complexity: 4},
		{ID: "fn:pay:refund", Type: graph.NodeFunction, Name: "refund", QualifiedName: "pay.refund", Complexity: 2},
	}
	for _, n := range nodes {
		require.NoError(t, b.AddNode(n))
	}
	require.NoError(t, b.AddEdge(&graph.Edge{SourceID: "fn:pay:refund", TargetID: "fn:pay:charge", Type: graph.EdgeCalls}))
	g, err := b.Build("test")
	require.NoError(t, err)

	chlog := temporal.NewLog()
	chlog.AddSnapshot("s1", "v1.0", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, chlog.Append(temporal.ChangeRecord{
		TargetID: "fn:pay:charge", Snapshot: "s1", Kind: temporal.Added,
		Node: nodes[1],
	}))

	store := graph.NewVersionedStore(g)
	eng := engine.New(store, chlog, engine.Options{})
	return NewServer(eng, store, chlog)
}

func TestListTools(t *testing.T) {
	t.Parallel()

	s := testServer(t)
	tools := s.ListTools()
	require.Len(t, tools, 4)

	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
		assert.NotEmpty(t, tool.Description)
		assert.NotNil(t, tool.InputSchema)
	}
	assert.Contains(t, names, "scry_query")
	assert.Contains(t, names, "scry_history")
	assert.Contains(t, names, "scry_blame")
	assert.Contains(t, names, "scry_snapshots")
}

func TestCallTool_Query(t *testing.T) {
	t.Parallel()

	s := testServer(t)

	out, err := s.CallTool(context.Background(), "scry_query", map[string]any{
		"query": "SELECT id FROM functions ORDER BY id",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "fn:pay:charge")
	assert.Contains(t, out, "fn:pay:refund")
}

func TestCallTool_QueryErrorIsText(t *testing.T) {
	t.Parallel()

	s := testServer(t)

	// Parse and resolution failures surface in the tool text, not as
	// protocol errors.
	out, err := s.CallTool(context.Background(), "scry_query", map[string]any{
		"query": "SELECT * FROM bogus_table",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Query failed")
	assert.Contains(t, out, "bogus_table")
}

func TestCallTool_History(t *testing.T) {
	t.Parallel()

	s := testServer(t)
	out, err := s.CallTool(context.Background(), "scry_history", map[string]any{
		"ref": "charge",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "added")
	assert.Contains(t, out, "s1")
}

func TestCallTool_Snapshots(t *testing.T) {
	t.Parallel()

	s := testServer(t)
	out, err := s.CallTool(context.Background(), "scry_snapshots", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "s1")
	assert.Contains(t, out, "v1.0")
}

func TestCallTool_Unknown(t *testing.T) {
	t.Parallel()

	s := testServer(t)
	_, err := s.CallTool(context.Background(), "scry_teleport", nil)
	assert.Error(t, err)
}

func TestReadResource(t *testing.T) {
	t.Parallel()

	s := testServer(t)

	overview, err := s.ReadResource(context.Background(), "scry://overview")
	require.NoError(t, err)
	assert.Contains(t, overview, "Nodes:** 3")

	schema, err := s.ReadResource(context.Background(), "scry://schema")
	require.NoError(t, err)
	assert.Contains(t, schema, "inherits")

	grammar, err := s.ReadResource(context.Background(), "scry://grammar")
	require.NoError(t, err)
	assert.Contains(t, grammar, "BETWEEN")

	_, err = s.ReadResource(context.Background(), "scry://nope")
	assert.Error(t, err)
}

func TestHandleRequest_Initialize(t *testing.T) {
	t.Parallel()

	s := testServer(t)
	resp := s.handleRequest(context.Background(), map[string]any{
		"jsonrpc": "2.0",
		"id":      float64(1),
		"method":  "initialize",
	})

	assert.Equal(t, "2.0", resp["jsonrpc"])
	result, ok := resp["result"].(map[string]any)
	require.True(t, ok)
	info, ok := result["serverInfo"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "scry", info["name"])
}

func TestHandleRequest_UnknownMethod(t *testing.T) {
	t.Parallel()

	s := testServer(t)
	resp := s.handleRequest(context.Background(), map[string]any{
		"id":     float64(2),
		"method": "shenanigans",
	})
	errObj, ok := resp["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, -32601, errObj["code"])
}

func TestRun_StdioRoundTrip(t *testing.T) {
	t.Parallel()

	s := testServer(t)

	var in bytes.Buffer
	reqs := []map[string]any{
		{"jsonrpc": "2.0", "id": 1, "method": "initialize"},
		{"jsonrpc": "2.0", "id": 2, "method": "tools/list"},
		{"jsonrpc": "2.0", "id": 3, "method": "tools/call", "params": map[string]any{
			"name":      "scry_query",
			"arguments": map[string]any{"query": "SELECT id FROM modules"},
		}},
	}
	for _, r := range reqs {
		data, err := json.Marshal(r)
		require.NoError(t, err)
		in.Write(data)
		in.WriteByte('\n')
	}

	var out bytes.Buffer
	require.NoError(t, s.Run(context.Background(), &in, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		var resp map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &resp))
		assert.NotContains(t, resp, "error")
	}
	assert.Contains(t, lines[2], "mod:pay")
}
