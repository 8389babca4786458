// Package testutil provides shared test helpers for setting up worlds and databases.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/eldridge/lorevault/internal/index"
	"github.com/eldridge/lorevault/internal/world"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "lorevault-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestWorld creates a temporary world directory with the given templates
// (category name to template markdown) and opens it.
func TestWorld(t *testing.T, templates map[string]string) (string, *world.World) {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "world.yaml"), []byte("name: Testland\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "templates"), 0o755); err != nil {
		t.Fatal(err)
	}
	for category, md := range templates {
		if err := os.WriteFile(filepath.Join(root, "templates", category+".md"), []byte(md), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	w, err := world.Open(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, w
}

// CharacterTemplate is a small template used across package tests.
const CharacterTemplate = `# {name}

![portrait]

## Tags

{tags|tags}

## Biography

{biography|multiline}

## Allies

{allies|link|target=characters}
`
