package cmd

import (
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/scrylang/scry/internal/temporal"
)

// changeFeed is a temporal.Store whose backing log can be swapped
// atomically, so watch mode can republish the change history together
// with the graph while queries keep the log they started with.
type changeFeed struct {
	cur atomic.Pointer[temporal.Log]
}

var _ temporal.Store = (*changeFeed)(nil)

func newChangeFeed(l *temporal.Log) *changeFeed {
	f := &changeFeed{}
	f.cur.Store(l)
	return f
}

func (f *changeFeed) swap(l *temporal.Log) { f.cur.Store(l) }

func (f *changeFeed) Records(targetID string) []temporal.ChangeRecord {
	return f.cur.Load().Records(targetID)
}

func (f *changeFeed) RecordsThrough(seq int64) []temporal.ChangeRecord {
	return f.cur.Load().RecordsThrough(seq)
}

func (f *changeFeed) Snapshot(ref string) (temporal.Snapshot, bool) {
	return f.cur.Load().Snapshot(ref)
}

func (f *changeFeed) Snapshots() []temporal.Snapshot {
	return f.cur.Load().Snapshots()
}

// newLogger builds a text slog handler on stderr at the configured
// level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
