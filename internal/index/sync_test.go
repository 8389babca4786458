package index_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/eldridge/lorevault/internal/index"
	"github.com/eldridge/lorevault/internal/record"
	"github.com/eldridge/lorevault/internal/world"
)

const syncedCharacter = `---
schema_version: "1.0"
---

# Elira Dawnsong

## Tags

hero, mage

## Biography

A wandering mage searching for the sunblade.

## Allies

[[characters/bren_coldiron]]
`

func TestSyncIndexesWorld(t *testing.T) {
	root, w, db := watcherTestEnv(t)
	logger := quietLogger()

	path := filepath.Join(root, "records", "characters", "elira.md")
	if err := os.WriteFile(path, []byte(syncedCharacter), 0o644); err != nil {
		t.Fatal(err)
	}
	writeRecordFile(t, root, "characters", "bren_coldiron", "Bren Coldiron")

	if err := index.Sync(db, w, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	rows, total, err := db.ListRecords("characters", 100, 0, "", "")
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if total != 2 || len(rows) != 2 {
		t.Fatalf("total = %d, len = %d, want 2/2", total, len(rows))
	}

	// Link fields feed the backlinks table.
	bl, err := db.Backlinks(record.Ref{Category: "characters", ID: "bren_coldiron"})
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(bl) != 1 || bl[0].ID != "elira" {
		t.Errorf("backlinks = %+v, want one from elira", bl)
	}

	// Multiline content is searchable.
	results, err := db.Search("sunblade", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "elira" {
		t.Errorf("search results = %+v, want elira", results)
	}
}

func TestSyncRemovesStale(t *testing.T) {
	root, w, db := watcherTestEnv(t)
	logger := quietLogger()

	writeRecordFile(t, root, "characters", "fleeting", "Fleeting")
	if err := index.Sync(db, w, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if cs, _ := db.GetChecksum("characters", "fleeting"); cs == "" {
		t.Fatal("precondition: record should be indexed")
	}

	_ = os.Remove(filepath.Join(root, "records", "characters", "fleeting.md"))
	if err := index.Sync(db, w, logger); err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if cs, _ := db.GetChecksum("characters", "fleeting"); cs != "" {
		t.Errorf("stale record still indexed with checksum %q", cs)
	}
}

func TestSyncIndexesTemplateLessCategory(t *testing.T) {
	root, w, db := watcherTestEnv(t)
	logger := quietLogger()

	// The category exists only as a records directory, no template file.
	// It resolves through the fallback schema.
	if err := os.MkdirAll(filepath.Join(root, "records", "monsters"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeRecordFile(t, root, "monsters", "goblin", "Goblin")

	if err := index.Sync(db, w, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if cs, _ := db.GetChecksum("monsters", "goblin"); cs == "" {
		t.Fatal("record in template-less category not indexed")
	}

	// A fresh open of the same world must see the category too, or the
	// stale-removal pass would purge a record whose file still exists.
	reopened, err := world.Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := index.Sync(db, reopened, logger); err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if cs, _ := db.GetChecksum("monsters", "goblin"); cs == "" {
		t.Error("Sync purged a record whose file still exists on disk")
	}
}

func TestSyncSkipsUnchanged(t *testing.T) {
	root, w, db := watcherTestEnv(t)
	logger := quietLogger()

	writeRecordFile(t, root, "characters", "steady", "Steady")
	if err := index.Sync(db, w, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	before, _ := db.GetChecksum("characters", "steady")

	if err := index.Sync(db, w, logger); err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	after, _ := db.GetChecksum("characters", "steady")
	if before != after {
		t.Errorf("checksum changed across no-op syncs: %q vs %q", before, after)
	}

	// A content change produces a new checksum on the next sync.
	if err := os.WriteFile(filepath.Join(root, "records", "characters", "steady.md"),
		[]byte("---\nschema_version: \"1.0\"\n---\n\n# Steady Renamed\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := index.Sync(db, w, logger); err != nil {
		t.Fatalf("third Sync: %v", err)
	}
	changed, _ := db.GetChecksum("characters", "steady")
	if changed == after {
		t.Error("checksum should change after edit")
	}
}
