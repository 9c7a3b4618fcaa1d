package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/scrylang/scry/internal/graph"
	"github.com/scrylang/scry/internal/temporal"
)

// debounceWindow batches rapid successive writes (editors and
// ingestion pipelines write dumps in several syscalls) into one
// reload.
const debounceWindow = 500 * time.Millisecond

// WatchDump monitors a graph dump file and republishes the graph each
// time the file changes. The store's current graph is swapped
// atomically, so in-flight queries keep their version. onReload, when
// non-nil, receives the rebuilt change log after each publish.
//
// Blocks until the context is cancelled.
func WatchDump(
	ctx context.Context,
	path string,
	store *graph.VersionedStore,
	logger *slog.Logger,
	onReload func(*temporal.Log),
) error {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving dump path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: atomic saves replace the
	// inode and a file watch would go stale after the first write.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	debounce := time.NewTimer(debounceWindow)
	debounce.Stop()

	logger.Info("watching dump", "path", abs)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			debounce.Reset(debounceWindow)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)

		case <-debounce.C:
			if err := reloadDump(abs, store, logger, onReload); err != nil {
				logger.Error("reload failed", "path", abs, "error", err)
			}
		}
	}
}

func reloadDump(
	path string,
	store *graph.VersionedStore,
	logger *slog.Logger,
	onReload func(*temporal.Log),
) error {
	d, err := ReadDumpFile(path)
	if err != nil {
		return err
	}
	g, err := d.BuildGraph()
	if err != nil {
		return err
	}
	chlog, err := d.BuildLog()
	if err != nil {
		return err
	}

	store.Publish(g)
	if onReload != nil {
		onReload(chlog)
	}
	logger.Info("graph republished",
		"version", g.Version(),
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"snapshots", len(d.Snapshots))
	return nil
}
