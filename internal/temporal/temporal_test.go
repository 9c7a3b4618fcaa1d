package temporal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrylang/scry/internal/graph"
)

func node(id, name string) *graph.Node {
	return &graph.Node{ID: id, Type: graph.NodeFunction, Name: name, QualifiedName: name}
}

// seedLog builds three snapshots:
//
//	s1: fn:a added
//	s2: fn:a modified (signature), fn:b added, edge a->b added
//	s3: fn:b removed, edge a->b removed
func seedLog(t *testing.T) *Log {
	t.Helper()

	l := NewLog()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	l.AddSnapshot("s1", "v1.0", base)
	l.AddSnapshot("s2", "", base.Add(time.Hour))
	l.AddSnapshot("s3", "main", base.Add(2*time.Hour))

	edge := &graph.Edge{SourceID: "fn:a", TargetID: "fn:b", Type: graph.EdgeCalls}
	recs := []ChangeRecord{
		{TargetID: "fn:a", Snapshot: "s1", Kind: Added, Node: node("fn:a", "a")},
		{TargetID: "fn:a", Snapshot: "s2", Kind: Modified, Attrs: []string{"signature"}, Node: node("fn:a", "a")},
		{TargetID: "fn:b", Snapshot: "s2", Kind: Added, Node: node("fn:b", "b")},
		{TargetID: EdgeID(edge), Snapshot: "s2", Kind: Added, Edge: edge},
		{TargetID: "fn:b", Snapshot: "s3", Kind: Removed},
		{TargetID: EdgeID(edge), Snapshot: "s3", Kind: Removed},
	}
	for _, rec := range recs {
		require.NoError(t, l.Append(rec))
	}
	return l
}

func TestLog_AppendInvariants(t *testing.T) {
	t.Parallel()

	l := NewLog()
	l.AddSnapshot("s1", "", time.Now())
	l.AddSnapshot("s2", "", time.Now())

	require.NoError(t, l.Append(ChangeRecord{TargetID: "x", Snapshot: "s1", Kind: Added, Node: node("x", "x")}))

	t.Run("DuplicateSnapshot", func(t *testing.T) {
		err := l.Append(ChangeRecord{TargetID: "x", Snapshot: "s1", Kind: Modified})
		var ie *InvariantError
		assert.ErrorAs(t, err, &ie)
	})

	t.Run("DoubleAdded", func(t *testing.T) {
		err := l.Append(ChangeRecord{TargetID: "x", Snapshot: "s2", Kind: Added, Node: node("x", "x")})
		var ie *InvariantError
		assert.ErrorAs(t, err, &ie)
	})

	t.Run("UnknownSnapshot", func(t *testing.T) {
		err := l.Append(ChangeRecord{TargetID: "y", Snapshot: "nope", Kind: Added})
		var se *SnapshotNotFoundError
		assert.ErrorAs(t, err, &se)
	})

	t.Run("AddedAfterRemoved", func(t *testing.T) {
		l2 := NewLog()
		l2.AddSnapshot("a", "", time.Now())
		l2.AddSnapshot("b", "", time.Now())
		l2.AddSnapshot("c", "", time.Now())
		require.NoError(t, l2.Append(ChangeRecord{TargetID: "x", Snapshot: "a", Kind: Added, Node: node("x", "x")}))
		require.NoError(t, l2.Append(ChangeRecord{TargetID: "x", Snapshot: "b", Kind: Removed}))
		assert.NoError(t, l2.Append(ChangeRecord{TargetID: "x", Snapshot: "c", Kind: Added, Node: node("x", "x")}))
	})
}

func TestViewAt(t *testing.T) {
	t.Parallel()

	l := seedLog(t)

	t.Run("BeforeNodeExists", func(t *testing.T) {
		t.Parallel()
		g, snap, err := ViewAt(l, "s1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), snap.Seq)
		assert.NotNil(t, g.GetNode("fn:a"))
		assert.Nil(t, g.GetNode("fn:b"), "fn:b is added after s1")
		assert.Zero(t, g.EdgeCount())
	})

	t.Run("MidRange", func(t *testing.T) {
		t.Parallel()
		g, _, err := ViewAt(l, "s2")
		require.NoError(t, err)
		assert.NotNil(t, g.GetNode("fn:a"))
		assert.NotNil(t, g.GetNode("fn:b"))
		assert.Equal(t, 1, g.EdgeCount())
	})

	t.Run("AfterRemoval", func(t *testing.T) {
		t.Parallel()
		g, _, err := ViewAt(l, "s3")
		require.NoError(t, err)
		assert.NotNil(t, g.GetNode("fn:a"))
		assert.Nil(t, g.GetNode("fn:b"))
		assert.Zero(t, g.EdgeCount())
	})

	t.Run("ByCommitRef", func(t *testing.T) {
		t.Parallel()
		_, snap, err := ViewAt(l, "v1.0")
		require.NoError(t, err)
		assert.Equal(t, "s1", snap.ID)
	})

	t.Run("SnapshotNotFound", func(t *testing.T) {
		t.Parallel()
		_, _, err := ViewAt(l, "deadbeef")
		var se *SnapshotNotFoundError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "deadbeef", se.Ref)
	})
}

func TestViewBetween(t *testing.T) {
	t.Parallel()

	l := seedLog(t)

	t.Run("AddAndModify", func(t *testing.T) {
		t.Parallel()
		v, err := ViewBetween(l, "s1", "s2")
		require.NoError(t, err)
		assert.Equal(t, Modified, v.Change("fn:a"))
		assert.Equal(t, Added, v.Change("fn:b"))
		assert.Len(t, v.Nodes(""), 2)
	})

	t.Run("Removal", func(t *testing.T) {
		t.Parallel()
		v, err := ViewBetween(l, "s2", "s3")
		require.NoError(t, err)
		assert.Equal(t, Removed, v.Change("fn:b"))
		assert.Empty(t, v.Change("fn:a"), "fn:a unchanged in range")
		assert.Nil(t, v.GetNode("fn:a"), "unchanged nodes are outside the working set")
		require.NotNil(t, v.GetNode("fn:b"))
	})

	t.Run("BoundsOrderNormalized", func(t *testing.T) {
		t.Parallel()
		v, err := ViewBetween(l, "s2", "s1")
		require.NoError(t, err)
		assert.Equal(t, Added, v.Change("fn:b"))
	})

	t.Run("RemovedNodeEdges", func(t *testing.T) {
		t.Parallel()
		v, err := ViewBetween(l, "s2", "s3")
		require.NoError(t, err)
		edges := v.Edges("fn:b", graph.DirIncoming)
		require.Len(t, edges, 1)
		assert.Equal(t, "fn:a", edges[0].SourceID)
	})
}

func TestHistory(t *testing.T) {
	t.Parallel()

	l := seedLog(t)

	t.Run("OldestFirst", func(t *testing.T) {
		t.Parallel()
		entries := History(l, "fn:b", -1, false, Bounds{})
		require.Len(t, entries, 2)
		assert.Equal(t, Added, entries[0].Record.Kind)
		assert.Equal(t, Removed, entries[1].Record.Kind)
		assert.Less(t, entries[0].Snapshot.Seq, entries[1].Snapshot.Seq)
	})

	t.Run("NewestFirst", func(t *testing.T) {
		t.Parallel()
		entries := History(l, "fn:b", -1, true, Bounds{})
		require.Len(t, entries, 2)
		assert.Equal(t, Removed, entries[0].Record.Kind)
	})

	t.Run("Limit", func(t *testing.T) {
		t.Parallel()
		entries := History(l, "fn:a", 1, true, Bounds{})
		require.Len(t, entries, 1)
		assert.Equal(t, Modified, entries[0].Record.Kind)
	})

	t.Run("Bounds", func(t *testing.T) {
		t.Parallel()
		entries := History(l, "fn:a", -1, false, Bounds{MaxSeq: 1})
		require.Len(t, entries, 1)
		assert.Equal(t, Added, entries[0].Record.Kind)
	})

	t.Run("SnapshotOrderStrictlyMonotonic", func(t *testing.T) {
		t.Parallel()
		entries := History(l, "fn:a", -1, false, Bounds{})
		for i := 1; i < len(entries); i++ {
			assert.Greater(t, entries[i].Snapshot.Seq, entries[i-1].Snapshot.Seq)
		}
	})
}

func TestBlame(t *testing.T) {
	t.Parallel()

	l := seedLog(t)

	t.Run("Unbounded", func(t *testing.T) {
		t.Parallel()
		blame := Blame(l, "fn:a", Bounds{})

		// signature was last touched by the s2 modification; everything
		// else still blames the s1 addition.
		require.Contains(t, blame, "signature")
		assert.Equal(t, Modified, blame["signature"].Kind)
		assert.Equal(t, "s2", blame["signature"].Snapshot)
		assert.Equal(t, Added, blame["body"].Kind)
		assert.Equal(t, "s1", blame["body"].Snapshot)
	})

	t.Run("Bounded", func(t *testing.T) {
		t.Parallel()
		blame := Blame(l, "fn:a", Bounds{MaxSeq: 1})

		// Records past the bound are invisible: signature blames the
		// s1 addition, not the s2 modification.
		require.Contains(t, blame, "signature")
		assert.Equal(t, Added, blame["signature"].Kind)
		assert.Equal(t, "s1", blame["signature"].Snapshot)
	})
}
