package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eldridge/lorevault/internal/apperr"
	"github.com/eldridge/lorevault/internal/record"
	"github.com/eldridge/lorevault/internal/schema"
	"github.com/eldridge/lorevault/internal/storage"
)

const storeTemplate = `# {name}

## Tags

{tags|tags}

## Portrait

{portrait|mimage}
`

func newTestStore(t *testing.T) (*Store, storage.Provider) {
	t.Helper()
	provider, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s, err := schema.Parse([]byte(storeTemplate))
	if err != nil {
		t.Fatal(err)
	}
	return New(provider, "characters", s), provider
}

func newNamed(t *testing.T, st *Store, name string) *record.Record {
	t.Helper()
	rec := record.New("characters", st.Schema())
	rec.Values["name"] = record.NewText(schema.TypeText, name)
	return rec
}

func TestCreateDerivesSlug(t *testing.T) {
	st, _ := newTestStore(t)

	id, err := st.Create(newNamed(t, st, "Elira Dawnsworn!"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != "elira_dawnsworn" {
		t.Errorf("id = %q, want elira_dawnsworn", id)
	}

	loaded, err := st.Load(id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := loaded.Name(st.Schema()); got != "Elira Dawnsworn!" {
		t.Errorf("name = %q", got)
	}
}

func TestCreateCollisionSuffix(t *testing.T) {
	st, _ := newTestStore(t)

	for i, want := range []string{"elira", "elira_2", "elira_3"} {
		id, err := st.Create(newNamed(t, st, "Elira"))
		if err != nil {
			t.Fatalf("Create #%d: %v", i, err)
		}
		if id != want {
			t.Errorf("id #%d = %q, want %q", i, id, want)
		}
	}
}

func TestSaveKeepsIDOnRename(t *testing.T) {
	st, _ := newTestStore(t)

	id, err := st.Create(newNamed(t, st, "Elira"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	rec, err := st.Load(id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rec.Values["name"] = record.NewText(schema.TypeText, "Elira the Renamed")
	if err := st.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	again, err := st.Load(id)
	if err != nil {
		t.Fatalf("Load after rename: %v", err)
	}
	if got := again.Name(st.Schema()); got != "Elira the Renamed" {
		t.Errorf("name = %q", got)
	}
}

func TestLoadNotFound(t *testing.T) {
	st, _ := newTestStore(t)
	if _, err := st.Load("nobody"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDuplicateCopiesImages(t *testing.T) {
	st, provider := newTestStore(t)

	rec := newNamed(t, st, "Elira")
	rec.Values["portrait"] = record.NewImage(schema.TypeMainImage,
		"records/characters/images/elira/portrait.png")
	if _, err := st.Create(rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := provider.Write("records/characters/images/elira/portrait.png", []byte("png")); err != nil {
		t.Fatalf("write image: %v", err)
	}

	dup, err := st.Duplicate(context.Background(), "elira")
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	if dup.ID != "elira_2" {
		t.Errorf("dup id = %q", dup.ID)
	}

	if got := dup.Values["portrait"].Image; !strings.Contains(got, "images/elira_2/") {
		t.Errorf("portrait path not rewritten: %q", got)
	}
	if !provider.Exists("records/characters/images/elira_2/portrait.png") {
		t.Error("image file not copied")
	}

	// The persisted copy carries the rewritten path too.
	loaded, err := st.Load("elira_2")
	if err != nil {
		t.Fatalf("Load dup: %v", err)
	}
	if got := loaded.Values["portrait"].Image; !strings.Contains(got, "images/elira_2/") {
		t.Errorf("saved portrait path = %q", got)
	}
}

func TestDuplicateCancelledRollsBack(t *testing.T) {
	st, provider := newTestStore(t)

	rec := newNamed(t, st, "Elira")
	rec.Values["portrait"] = record.NewImage(schema.TypeMainImage,
		"records/characters/images/elira/portrait.png")
	if _, err := st.Create(rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := provider.Write("records/characters/images/elira/portrait.png", []byte("png")); err != nil {
		t.Fatalf("write image: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := st.Duplicate(ctx, "elira"); err == nil {
		t.Fatal("Duplicate with cancelled ctx succeeded")
	}
	if st.Exists("elira_2") {
		t.Error("record written despite failed image copy")
	}
	if provider.Exists("records/characters/images/elira_2") {
		t.Error("image directory left behind")
	}
}

func TestDuplicateWithoutImages(t *testing.T) {
	st, _ := newTestStore(t)
	if _, err := st.Create(newNamed(t, st, "Elira")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	dup, err := st.Duplicate(context.Background(), "elira")
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	if dup.ID != "elira_2" {
		t.Errorf("dup id = %q", dup.ID)
	}
}

func TestDeleteRemovesImages(t *testing.T) {
	st, provider := newTestStore(t)

	if _, err := st.Create(newNamed(t, st, "Elira")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := provider.Write("records/characters/images/elira/portrait.png", []byte("png")); err != nil {
		t.Fatalf("write image: %v", err)
	}

	if err := st.Delete("elira"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if st.Exists("elira") {
		t.Error("record still present")
	}
	if provider.Exists("records/characters/images/elira") {
		t.Error("image directory still present")
	}

	if err := st.Delete("elira"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestListSkipsCorruptRecords(t *testing.T) {
	st, provider := newTestStore(t)

	if _, err := st.Create(newNamed(t, st, "Elira")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := provider.Write(filepath.ToSlash("records/characters/broken.md"),
		[]byte("---\nname: [broken\n---\n")); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	sums, err := st.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(sums) != 1 || sums[0].ID != "elira" {
		t.Errorf("summaries = %+v, want only elira", sums)
	}
	if sums[0].Name != "Elira" {
		t.Errorf("summary name = %q", sums[0].Name)
	}
}

func TestSlugify(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Elira Dawnsworn", "elira_dawnsworn"},
		{"  The  Silver   Order  ", "the__silver___order"},
		{"Ærøskøbing!!!", "rskbing"},
		{"日本", "record"},
		{"", "record"},
		{"already-safe_slug", "already-safe_slug"},
	}
	for _, c := range cases {
		if got := Slugify(c.in); got != c.want {
			t.Errorf("Slugify(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
