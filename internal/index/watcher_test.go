package index_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/eldridge/lorevault/internal/index"
	"github.com/eldridge/lorevault/internal/record"
	"github.com/eldridge/lorevault/internal/testutil"
	"github.com/eldridge/lorevault/internal/world"
)

// watcherTestEnv sets up a world with a characters category and a DB.
func watcherTestEnv(t *testing.T) (string, *world.World, *index.DB) {
	t.Helper()
	root, w := testutil.TestWorld(t, map[string]string{
		"characters": testutil.CharacterTemplate,
		"places":     "# {name}\n\n## Description\n\n{description|multiline}\n",
	})
	if err := os.MkdirAll(filepath.Join(root, "records", "characters"), 0o755); err != nil {
		t.Fatal(err)
	}
	return root, w, testutil.TestDB(t)
}

func writeRecordFile(t *testing.T, root, category, id, name string) {
	t.Helper()
	doc := fmt.Sprintf("---\nschema_version: \"1.0\"\n---\n\n# %s\n", name)
	path := filepath.Join(root, "records", category, id+".md")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	root, w, db := watcherTestEnv(t)
	logger := quietLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	go index.Watch(ctx, db, w, logger, func(kind string, ref record.Ref) {
		mu.Lock()
		events = append(events, kind+":"+ref.String())
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	writeRecordFile(t, root, "characters", "new_guy", "New Guy")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("characters", "new_guy")
		return cs != ""
	}, "new record not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:characters/new_guy" {
				return true
			}
		}
		return false
	}, "expected created:characters/new_guy callback")
}

func TestWatcher_NewCategoryDirWatched(t *testing.T) {
	root, w, db := watcherTestEnv(t)
	logger := quietLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go index.Watch(ctx, db, w, logger, nil)

	time.Sleep(100 * time.Millisecond)

	// The places category dir does not exist yet; the watcher should pick
	// it up when it appears.
	if err := os.MkdirAll(filepath.Join(root, "records", "places"), 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	writeRecordFile(t, root, "places", "silverhold", "Silverhold")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("places", "silverhold")
		return cs != ""
	}, "record in new category dir not indexed by watcher")
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	root, w, db := watcherTestEnv(t)
	logger := quietLogger()

	writeRecordFile(t, root, "characters", "doomed", "Doomed")
	if err := index.Sync(db, w, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	cs, _ := db.GetChecksum("characters", "doomed")
	if cs == "" {
		t.Fatal("precondition: record should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go index.Watch(ctx, db, w, logger, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(root, "records", "characters", "doomed.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("characters", "doomed")
		return cs == ""
	}, "deleted record still in index")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	root, w, db := watcherTestEnv(t)
	logger := quietLogger()

	writeRecordFile(t, root, "characters", "old_name", "Rename Me")
	if err := index.Sync(db, w, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go index.Watch(ctx, db, w, logger, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(
		filepath.Join(root, "records", "characters", "old_name.md"),
		filepath.Join(root, "records", "characters", "renamed.md"),
	)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		oldCS, _ := db.GetChecksum("characters", "old_name")
		newCS, _ := db.GetChecksum("characters", "renamed")
		return oldCS == "" && newCS != ""
	}, "rename reconciliation failed: old id should be removed and new id indexed")
}
