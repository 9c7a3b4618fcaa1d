package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/scrylang/scry/internal/graph"
	"github.com/scrylang/scry/internal/temporal"
)

// Key prefixes. Nodes, edges and changes carry a zero-padded ordinal
// in the key so badger's lexicographic iteration yields insertion
// order back.
const (
	keyVersion     = "m:version"
	prefixNode     = "n:"
	prefixEdge     = "e:"
	prefixSnapshot = "s:"
	prefixChange   = "c:"
)

// BadgerStore persists graph dumps in a BadgerDB database.
type BadgerStore struct {
	db *badger.DB
	mu sync.RWMutex
}

// OpenBadger opens or creates the database at path.
func OpenBadger(path string, readOnly bool) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithLoggingLevel(badger.ERROR)
	if readOnly {
		opts = opts.WithReadOnly(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger DB: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close releases all resources held by the store.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Save replaces the stored contents with the given dump.
func (s *BadgerStore) Save(ctx context.Context, d *Dump) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("clearing store: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	if err := wb.Set([]byte(keyVersion), []byte(d.Version)); err != nil {
		return fmt.Errorf("setting version: %w", err)
	}
	for i, n := range d.Nodes {
		if err := setJSON(wb, ordKey(prefixNode, i), n); err != nil {
			return fmt.Errorf("node %s: %w", n.ID, err)
		}
	}
	for i, e := range d.Edges {
		if err := setJSON(wb, ordKey(prefixEdge, i), e); err != nil {
			return fmt.Errorf("edge %s->%s: %w", e.SourceID, e.TargetID, err)
		}
	}
	for i, snap := range d.Snapshots {
		if err := setJSON(wb, ordKey(prefixSnapshot, i), snap); err != nil {
			return fmt.Errorf("snapshot %s: %w", snap.ID, err)
		}
	}
	for i, rec := range d.Changes {
		if err := setJSON(wb, ordKey(prefixChange, i), rec); err != nil {
			return fmt.Errorf("change %s: %w", rec.TargetID, err)
		}
	}
	return wb.Flush()
}

// Load reads the stored dump back.
func (s *BadgerStore) Load(ctx context.Context) (*Dump, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := &Dump{}
	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	if item, err := txn.Get([]byte(keyVersion)); err == nil {
		_ = item.Value(func(val []byte) error {
			d.Version = string(val)
			return nil
		})
	} else if err != badger.ErrKeyNotFound {
		return nil, fmt.Errorf("getting version: %w", err)
	}

	if err := scanJSON(txn, prefixNode, func(n *graph.Node) {
		d.Nodes = append(d.Nodes, n)
	}); err != nil {
		return nil, err
	}
	if err := scanJSON(txn, prefixEdge, func(e *graph.Edge) {
		d.Edges = append(d.Edges, e)
	}); err != nil {
		return nil, err
	}
	if err := scanJSON(txn, prefixSnapshot, func(snap *temporal.Snapshot) {
		d.Snapshots = append(d.Snapshots, *snap)
	}); err != nil {
		return nil, err
	}
	if err := scanJSON(txn, prefixChange, func(rec *temporal.ChangeRecord) {
		d.Changes = append(d.Changes, *rec)
	}); err != nil {
		return nil, err
	}
	return d, nil
}

// AppendChanges persists a new snapshot and its change records without
// rewriting the rest of the store.
func (s *BadgerStore) AppendChanges(ctx context.Context, snap temporal.Snapshot, recs []temporal.ChangeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapCount, err := s.countPrefix(prefixSnapshot)
	if err != nil {
		return err
	}
	changeCount, err := s.countPrefix(prefixChange)
	if err != nil {
		return err
	}

	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	if err := txn.Set(ordKey(prefixSnapshot, snapCount), data); err != nil {
		return fmt.Errorf("setting snapshot: %w", err)
	}
	for i, rec := range recs {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshaling change: %w", err)
		}
		if err := txn.Set(ordKey(prefixChange, changeCount+i), data); err != nil {
			return fmt.Errorf("setting change: %w", err)
		}
	}
	return txn.Commit()
}

// Stats reports stored element counts.
func (s *BadgerStore) Stats() (nodes, edges, snapshots, changes int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if nodes, err = s.countPrefix(prefixNode); err != nil {
		return
	}
	if edges, err = s.countPrefix(prefixEdge); err != nil {
		return
	}
	if snapshots, err = s.countPrefix(prefixSnapshot); err != nil {
		return
	}
	changes, err = s.countPrefix(prefixChange)
	return
}

func (s *BadgerStore) countPrefix(prefix string) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func ordKey(prefix string, i int) []byte {
	return []byte(fmt.Sprintf("%s%012d", prefix, i))
}

func setJSON(wb *badger.WriteBatch, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling: %w", err)
	}
	return wb.Set(key, data)
}

func scanJSON[T any](txn *badger.Txn, prefix string, emit func(*T)) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		var v T
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		}); err != nil {
			return fmt.Errorf("unmarshaling %s record: %w", prefix, err)
		}
		emit(&v)
	}
	return nil
}
