package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/eldridge/lorevault/internal/record"
	"github.com/eldridge/lorevault/internal/world"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, ref record.Ref)

// Watch starts an fsnotify watcher on the world root and processes file
// change events until ctx is cancelled, so records hand-edited outside the
// tool stay searchable. It calls cb (if non-nil) after each successful index
// mutation.
//
// New category directories created at runtime are automatically added to the
// watch list. Rename events trigger a reconciliation pass that removes stale
// index entries whose files no longer exist on disk.
func Watch(ctx context.Context, db *DB, w *world.World, logger *slog.Logger, cb EventCallback) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	recordsRoot := filepath.Join(w.Root(), "records")
	if err := os.MkdirAll(recordsRoot, 0o755); err != nil {
		return err
	}
	if err := addDirsRecursive(watcher, recordsRoot); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", recordsRoot))

	// reconcileTimer is used to debounce rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcileAfterRename(db, w, logger, cb)

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			// --- Handle new directories: add to watcher ---
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(watcher, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					// Index any record files already in the new directory.
					indexNewDir(db, w, absPath, logger, cb)
					continue
				}
			}

			rel, relErr := filepath.Rel(w.Root(), absPath)
			if relErr != nil {
				continue
			}
			ref, ok := refFromPath(filepath.ToSlash(rel))
			if !ok {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				st := w.Store(ref.Category)
				sum, sumErr := st.Summarize(ref.ID)
				if sumErr != nil {
					logger.Warn("watcher: summarize failed",
						slog.String("ref", ref.String()),
						slog.String("error", sumErr.Error()))
					continue
				}
				if idxErr := IndexRecord(db, st, sum); idxErr != nil {
					logger.Warn("watcher: index failed",
						slog.String("ref", ref.String()),
						slog.String("error", idxErr.Error()))
					continue
				}
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "created"
				}
				logger.Debug("watcher: indexed", slog.String("ref", ref.String()), slog.String("op", kind))
				if cb != nil {
					cb(kind, ref)
				}

			case ev.Op&fsnotify.Remove != 0:
				if delErr := db.DeleteRecord(ref.Category, ref.ID); delErr != nil {
					logger.Warn("watcher: delete failed",
						slog.String("ref", ref.String()),
						slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("ref", ref.String()))
				if cb != nil {
					cb("deleted", ref)
				}

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only. The new
				// path will arrive as a separate Create event (if it
				// stays within a watched dir). We delete the old entry
				// immediately and schedule a short reconciliation pass
				// to catch any stragglers.
				if delErr := db.DeleteRecord(ref.Category, ref.ID); delErr != nil {
					logger.Warn("watcher: rename delete failed",
						slog.String("ref", ref.String()),
						slog.String("error", delErr.Error()))
				} else {
					logger.Debug("watcher: rename old deleted", slog.String("ref", ref.String()))
					if cb != nil {
						cb("deleted", ref)
					}
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// refFromPath maps a world-relative path to a record reference. Only
// records/<category>/<id>.md qualifies; image directories and templates are
// not index entries.
func refFromPath(rel string) (record.Ref, bool) {
	parts := strings.Split(rel, "/")
	if len(parts) != 3 || parts[0] != "records" || !strings.HasSuffix(parts[2], ".md") {
		return record.Ref{}, false
	}
	return record.Ref{
		Category: parts[1],
		ID:       strings.TrimSuffix(parts[2], ".md"),
	}, true
}

// reconcileAfterRename does a lightweight sync using batch lookups:
// finds index entries without a corresponding file on disk and removes them,
// and finds on-disk files that are not indexed and indexes them.
func reconcileAfterRename(db *DB, w *world.World, logger *slog.Logger, cb EventCallback) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[record.Ref]string)
	for _, category := range w.Categories() {
		summaries, listErr := w.Store(category).List()
		if listErr != nil {
			logger.Warn("reconcile: list failed",
				slog.String("category", category),
				slog.String("error", listErr.Error()))
			continue
		}
		for _, sum := range summaries {
			disk[record.Ref{Category: category, ID: sum.ID}] = sum.Checksum
		}
	}

	for ref := range checksums {
		if _, ok := disk[ref]; !ok {
			if delErr := db.DeleteRecord(ref.Category, ref.ID); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("ref", ref.String()))
				if cb != nil {
					cb("deleted", ref)
				}
			}
		}
	}

	for ref, cs := range disk {
		if checksums[ref] == cs {
			continue
		}
		st := w.Store(ref.Category)
		sum, sumErr := st.Summarize(ref.ID)
		if sumErr != nil {
			continue
		}
		if idxErr := IndexRecord(db, st, sum); idxErr == nil {
			logger.Debug("reconcile: indexed new", slog.String("ref", ref.String()))
			if cb != nil {
				cb("created", ref)
			}
		}
	}
}

// indexNewDir indexes any record files found in a newly created directory.
func indexNewDir(db *DB, w *world.World, dirPath string, logger *slog.Logger, cb EventCallback) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(w.Root(), path)
		if relErr != nil {
			return nil
		}
		ref, ok := refFromPath(filepath.ToSlash(rel))
		if !ok {
			return nil
		}
		st := w.Store(ref.Category)
		sum, sumErr := st.Summarize(ref.ID)
		if sumErr != nil {
			return nil
		}
		if idxErr := IndexRecord(db, st, sum); idxErr == nil {
			logger.Debug("watcher: indexed from new dir", slog.String("ref", ref.String()))
			if cb != nil {
				cb("created", ref)
			}
		}
		return nil
	})
}

// addDirsRecursive adds dir and every subdirectory to the watcher, skipping
// image attachment directories.
func addDirsRecursive(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == "images" {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
