package temporal

// HistoryEntry is one change record annotated with its snapshot
// metadata.
type HistoryEntry struct {
	Record   ChangeRecord
	Snapshot Snapshot
}

// Bounds restricts history to a snapshot sequence range. Zero values
// mean unbounded.
type Bounds struct {
	MinSeq int64 // exclusive
	MaxSeq int64 // inclusive
}

// History returns the change records of one target, annotated with
// snapshot metadata, newest-first when newestFirst is set, truncated
// to limit (negative = unlimited).
func History(store Store, targetID string, limit int, newestFirst bool, bounds Bounds) []HistoryEntry {
	recs := store.Records(targetID)

	var entries []HistoryEntry
	for _, rec := range recs {
		if bounds.MinSeq > 0 && rec.Seq <= bounds.MinSeq {
			continue
		}
		if bounds.MaxSeq > 0 && rec.Seq > bounds.MaxSeq {
			continue
		}
		snap, _ := store.Snapshot(rec.Snapshot)
		entries = append(entries, HistoryEntry{Record: rec, Snapshot: snap})
	}

	if newestFirst {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}
	if limit >= 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// Blame scans a target's history and keeps, per tracked attribute, the
// most recent record within bounds that changed it. An Added record
// with no explicit attribute list counts as touching every tracked
// attribute.
func Blame(store Store, targetID string, bounds Bounds) map[string]ChangeRecord {
	out := make(map[string]ChangeRecord)
	for _, rec := range store.Records(targetID) {
		if bounds.MinSeq > 0 && rec.Seq <= bounds.MinSeq {
			continue
		}
		if bounds.MaxSeq > 0 && rec.Seq > bounds.MaxSeq {
			continue
		}
		attrs := rec.Attrs
		if len(attrs) == 0 && rec.Kind == Added {
			attrs = TrackedAttrs
		}
		for _, attr := range attrs {
			out[attr] = rec
		}
	}
	return out
}
