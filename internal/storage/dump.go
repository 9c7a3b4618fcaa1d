// Package storage provides persistence for Scry: the JSON graph-dump
// codec produced by ingestion tooling, a BadgerDB store for graph and
// change-log data, and a file watcher that republishes the graph when
// a dump changes on disk.
package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/scrylang/scry/internal/graph"
	"github.com/scrylang/scry/internal/temporal"
)

// Dump is the interchange format for a full graph plus its change
// history. Nodes, edges, snapshots and changes are ordered: slice
// position is insertion order and must be preserved.
type Dump struct {
	Version   string                  `json:"version,omitempty"`
	Nodes     []*graph.Node           `json:"nodes"`
	Edges     []*graph.Edge           `json:"edges"`
	Snapshots []temporal.Snapshot     `json:"snapshots,omitempty"`
	Changes   []temporal.ChangeRecord `json:"changes,omitempty"`
}

// ReadDump decodes a dump from r.
func ReadDump(r io.Reader) (*Dump, error) {
	var d Dump
	dec := json.NewDecoder(r)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("decoding dump: %w", err)
	}
	return &d, nil
}

// ReadDumpFile decodes a dump from the file at path.
func ReadDumpFile(path string) (*Dump, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dump: %w", err)
	}
	defer f.Close()
	return ReadDump(f)
}

// WriteDumpFile encodes the dump as indented JSON at path.
func WriteDumpFile(path string, d *Dump) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating dump: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		f.Close()
		return fmt.Errorf("encoding dump: %w", err)
	}
	return f.Close()
}

// BuildGraph validates the dump's nodes and edges and freezes them
// into an immutable graph.
func (d *Dump) BuildGraph() (*graph.Graph, error) {
	b := graph.NewBuilder()
	for _, n := range d.Nodes {
		if err := b.AddNode(n); err != nil {
			return nil, err
		}
	}
	for _, e := range d.Edges {
		if err := b.AddEdge(e); err != nil {
			return nil, err
		}
	}
	return b.Build(d.Version)
}

// BuildLog replays the dump's snapshots and change records into a
// fresh change log. Ordering invariants are enforced on replay, so a
// hand-edited dump with out-of-order records is rejected.
func (d *Dump) BuildLog() (*temporal.Log, error) {
	l := temporal.NewLog()
	for _, snap := range d.Snapshots {
		l.AddSnapshot(snap.ID, snap.CommitRef, snap.Time)
	}
	for _, rec := range d.Changes {
		if err := l.Append(rec); err != nil {
			return nil, fmt.Errorf("replaying change for %s: %w", rec.TargetID, err)
		}
	}
	return l, nil
}

// DumpFromStore rebuilds a dump from a live graph and change log, the
// inverse of BuildGraph/BuildLog.
func DumpFromStore(g *graph.Graph, store temporal.Store) *Dump {
	d := &Dump{Version: g.Version()}
	d.Nodes = append(d.Nodes, g.Nodes("")...)
	d.Edges = append(d.Edges, g.AllEdges()...)
	if store != nil {
		d.Snapshots = store.Snapshots()
		if len(d.Snapshots) > 0 {
			last := d.Snapshots[len(d.Snapshots)-1]
			d.Changes = store.RecordsThrough(last.Seq)
		}
	}
	return d
}
