package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrylang/scry/internal/graph"
	"github.com/scrylang/scry/internal/temporal"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func testDump() *Dump {
	return &Dump{
		Version: "v7",
		Nodes: []*graph.Node{
			{ID: "mod:a", Type: graph.NodeModule, Name: "a", QualifiedName: "a"},
			{ID: "fn:a:run", Type: graph.NodeFunction, Name: "run", QualifiedName: "a.run", Complexity: 3},
		},
		Edges: []*graph.Edge{
			{SourceID: "mod:a", TargetID: "fn:a:run", Type: graph.EdgeContains},
		},
		Snapshots: []temporal.Snapshot{
			{ID: "s1", CommitRef: "v1.0", Seq: 1, Time: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)},
			{ID: "s2", Seq: 2, Time: time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)},
		},
		Changes: []temporal.ChangeRecord{
			{TargetID: "fn:a:run", Snapshot: "s1", Kind: temporal.Added,
				Node: &graph.Node{ID: "fn:a:run", Type: graph.NodeFunction, Name: "run", QualifiedName: "a.run"}},
			{TargetID: "fn:a:run", Snapshot: "s2", Kind: temporal.Modified, Attrs: []string{"body"},
				Node: &graph.Node{ID: "fn:a:run", Type: graph.NodeFunction, Name: "run", QualifiedName: "a.run", Complexity: 3}},
		},
	}
}

func TestDump_FileRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, WriteDumpFile(path, testDump()))

	got, err := ReadDumpFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v7", got.Version)
	require.Len(t, got.Nodes, 2)
	assert.Equal(t, "mod:a", got.Nodes[0].ID, "node order survives the round trip")
	assert.Len(t, got.Edges, 1)
	assert.Len(t, got.Changes, 2)
	assert.Equal(t, "v1.0", got.Snapshots[0].CommitRef)
}

func TestDump_ReadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := ReadDumpFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestDump_BuildGraph(t *testing.T) {
	t.Parallel()

	g, err := testDump().BuildGraph()
	require.NoError(t, err)
	assert.Equal(t, "v7", g.Version())
	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 1, g.EdgeCount())
	assert.NotNil(t, g.GetNode("fn:a:run"))
}

func TestDump_BuildGraphRejectsDanglingEdge(t *testing.T) {
	t.Parallel()

	d := testDump()
	d.Edges = append(d.Edges, &graph.Edge{SourceID: "mod:a", TargetID: "fn:ghost", Type: graph.EdgeCalls})
	_, err := d.BuildGraph()
	assert.Error(t, err)
}

func TestDump_BuildLog(t *testing.T) {
	t.Parallel()

	l, err := testDump().BuildLog()
	require.NoError(t, err)
	recs := l.Records("fn:a:run")
	require.Len(t, recs, 2)
	assert.Equal(t, temporal.Added, recs[0].Kind)
	assert.Equal(t, int64(2), recs[1].Seq)
}

func TestDump_BuildLogRejectsBrokenHistory(t *testing.T) {
	t.Parallel()

	d := testDump()
	// A second Added without a Removed in between must not replay.
	d.Changes[1].Kind = temporal.Added
	_, err := d.BuildLog()
	var ie *temporal.InvariantError
	assert.ErrorAs(t, err, &ie)
}

func TestDumpFromStore_Inverse(t *testing.T) {
	t.Parallel()

	src := testDump()
	g, err := src.BuildGraph()
	require.NoError(t, err)
	l, err := src.BuildLog()
	require.NoError(t, err)

	got := DumpFromStore(g, l)
	assert.Equal(t, src.Version, got.Version)
	assert.Len(t, got.Nodes, len(src.Nodes))
	assert.Len(t, got.Edges, len(src.Edges))
	assert.Len(t, got.Snapshots, len(src.Snapshots))
	assert.Len(t, got.Changes, len(src.Changes))
}

func TestBadgerStore_SaveLoad(t *testing.T) {
	t.Parallel()

	s, err := OpenBadger(t.TempDir(), false)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, testDump()))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v7", got.Version)
	require.Len(t, got.Nodes, 2)
	assert.Equal(t, "mod:a", got.Nodes[0].ID)
	assert.Len(t, got.Changes, 2)

	nodes, edges, snaps, changes, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, [4]int{2, 1, 2, 2}, [4]int{nodes, edges, snaps, changes})
}

func TestBadgerStore_SaveReplaces(t *testing.T) {
	t.Parallel()

	s, err := OpenBadger(t.TempDir(), false)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, testDump()))

	small := &Dump{Nodes: []*graph.Node{
		{ID: "mod:z", Type: graph.NodeModule, Name: "z", QualifiedName: "z"},
	}}
	require.NoError(t, s.Save(ctx, small))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got.Nodes, 1)
	assert.Empty(t, got.Changes)
}

func TestBadgerStore_AppendChanges(t *testing.T) {
	t.Parallel()

	s, err := OpenBadger(t.TempDir(), false)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, testDump()))

	snap := temporal.Snapshot{ID: "s3", Seq: 3, Time: time.Date(2026, 4, 3, 0, 0, 0, 0, time.UTC)}
	recs := []temporal.ChangeRecord{
		{TargetID: "fn:a:run", Snapshot: "s3", Kind: temporal.Removed},
	}
	require.NoError(t, s.AppendChanges(ctx, snap, recs))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got.Snapshots, 3)
	require.Len(t, got.Changes, 3)
	assert.Equal(t, temporal.Removed, got.Changes[2].Kind)
}

func TestBadgerStore_LoadEmpty(t *testing.T) {
	t.Parallel()

	s, err := OpenBadger(t.TempDir(), false)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got.Nodes)
	assert.Empty(t, got.Version)
}

func TestWatchDump_Republishes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "graph.json")

	empty, err := graph.NewBuilder().Build("empty")
	require.NoError(t, err)
	store := graph.NewVersionedStore(empty)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- WatchDump(ctx, path, store, nil, nil)
	}()

	// Give the watcher time to register before the first write.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, WriteDumpFile(path, testDump()))

	require.Eventually(t, func() bool {
		return store.Current().Version() == "v7"
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatchDump_BadDumpKeepsCurrent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "graph.json")

	empty, err := graph.NewBuilder().Build("stable")
	require.NoError(t, err)
	store := graph.NewVersionedStore(empty)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = WatchDump(ctx, path, store, nil, nil) }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, writeFile(path, "{not json"))

	// The broken dump is rejected and the published graph stays put.
	time.Sleep(2 * debounceWindow)
	assert.Equal(t, "stable", store.Current().Version())
}
