package graph

import (
	"sync/atomic"
)

// VersionedStore holds the currently published graph version.
//
// The update pipeline builds a new Graph off to the side and publishes
// it with a single atomic pointer swap. Readers that obtained the
// previous version keep using it untouched; new queries pick up the
// latest. This is the single-writer/multiple-reader discipline the
// engine depends on.
type VersionedStore struct {
	current atomic.Pointer[Graph]
}

// NewVersionedStore creates a store publishing the given initial graph.
// A nil initial graph publishes an empty one.
func NewVersionedStore(initial *Graph) *VersionedStore {
	s := &VersionedStore{}
	if initial == nil {
		initial, _ = NewBuilder().Build("")
	}
	s.current.Store(initial)
	return s
}

// Current returns the latest published graph.
func (s *VersionedStore) Current() *Graph {
	return s.current.Load()
}

// Publish atomically replaces the current graph.
func (s *VersionedStore) Publish(g *Graph) {
	s.current.Store(g)
}
