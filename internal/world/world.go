// Package world aggregates the record stores and schemas of one project
// directory and answers category-level queries.
package world

import (
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/eldridge/lorevault/internal/apperr"
	"github.com/eldridge/lorevault/internal/schema"
	"github.com/eldridge/lorevault/internal/storage"
	"github.com/eldridge/lorevault/internal/store"
)

// Sort orders accepted by Search.
const (
	SortByName     = "name"
	SortByModified = "modified"
)

// Query filters a category listing. Both filters apply conjunctively when
// given: case-insensitive substring match on name, exact tag membership.
type Query struct {
	Text string
	Tag  string
}

// World owns the schemas and record stores of one open project.
type World struct {
	root     string
	name     string
	provider storage.Provider

	mu      sync.Mutex
	schemas map[string]*schema.Schema
	stores  map[string]*store.Store
	raw     map[string]string // raw template documents by category
}

// worldMeta is the world.yaml root metadata file.
type worldMeta struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Description string `yaml:"description"`
}

// Open opens an existing world directory. The layout must contain world.yaml
// and a templates/ directory; each templates/<category>.md binds a category
// to its schema. A template that fails to parse disables only that
// category's custom schema (the built-in fallback applies); it never takes
// the whole world down.
func Open(root string) (*World, error) {
	provider, err := storage.NewFS(root)
	if err != nil {
		return nil, &apperr.InvalidWorldError{Root: root, Missing: "root directory"}
	}

	metaRaw, err := provider.Read("world.yaml")
	if err != nil {
		return nil, &apperr.InvalidWorldError{Root: root, Missing: "world.yaml"}
	}
	var meta worldMeta
	if err := yaml.Unmarshal(metaRaw, &meta); err != nil {
		return nil, &apperr.InvalidWorldError{Root: root, Missing: "valid world.yaml"}
	}
	if meta.Name == "" {
		meta.Name = path.Base(root)
	}

	if !provider.Exists("templates") {
		return nil, &apperr.InvalidWorldError{Root: root, Missing: "templates/"}
	}

	w := &World{
		root:     root,
		name:     meta.Name,
		provider: provider,
		schemas:  make(map[string]*schema.Schema),
		stores:   make(map[string]*store.Store),
		raw:      make(map[string]string),
	}

	files, err := provider.List("templates")
	if err != nil {
		return nil, fmt.Errorf("world: list templates: %w", err)
	}
	for _, info := range files {
		category := strings.TrimSuffix(path.Base(info.Path), ".md")
		data, err := provider.Read(info.Path)
		if err != nil {
			slog.Warn("world: read template failed",
				slog.String("category", category),
				slog.String("error", err.Error()))
			continue
		}
		s, err := schema.Parse(data)
		if err != nil {
			slog.Warn("world: template parse failed, using fallback schema",
				slog.String("category", category),
				slog.String("error", err.Error()))
			continue
		}
		w.schemas[category] = s
		w.raw[category] = string(data)
	}

	return w, nil
}

// Name returns the project name from world.yaml.
func (w *World) Name() string {
	return w.name
}

// Root returns the world root path.
func (w *World) Root() string {
	return w.root
}

// Provider exposes the world's file-system provider.
func (w *World) Provider() storage.Provider {
	return w.provider
}

// Categories returns every known category, sorted: those with a template
// file plus those that exist only as a records/<category>/ directory, so a
// hand-created category with no template is still listed, synced, and
// searchable under its fallback schema.
func (w *World) Categories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	set := make(map[string]struct{}, len(w.schemas))
	for c := range w.schemas {
		set[c] = struct{}{}
	}
	dirs, err := w.provider.Dirs("records")
	if err != nil {
		slog.Warn("world: list record dirs failed", slog.String("error", err.Error()))
	}
	for _, d := range dirs {
		set[d] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Schema returns the schema bound to category, falling back to the built-in
// or generic schema for categories without a template file.
func (w *World) Schema(category string) *schema.Schema {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.schemaLocked(category)
}

func (w *World) schemaLocked(category string) *schema.Schema {
	if s, ok := w.schemas[category]; ok {
		return s
	}
	s := schema.Fallback(category)
	w.schemas[category] = s
	return s
}

// TemplateMarkdown returns the raw template document for category, the
// built-in document when no file exists, or false for generic fallbacks.
func (w *World) TemplateMarkdown(category string) (string, bool) {
	w.mu.Lock()
	raw, ok := w.raw[category]
	w.mu.Unlock()
	if ok {
		return raw, true
	}
	return schema.BuiltinMarkdown(category)
}

// Store returns the record store for category, creating it on first use.
// Unknown categories (for example dangling link targets) get a store over an
// empty directory rather than an error.
func (w *World) Store(category string) *store.Store {
	w.mu.Lock()
	defer w.mu.Unlock()
	if st, ok := w.stores[category]; ok {
		return st
	}
	st := store.New(w.provider, category, w.schemaLocked(category))
	w.stores[category] = st
	return st
}

// Resolver returns a link resolver over this world's stores.
func (w *World) Resolver() *Resolver {
	return &Resolver{world: w}
}

// Search filters a category's records by name substring and tag membership,
// both case-insensitive, and sorts by name (default, ascending) or by
// modification time (most recent first).
func (w *World) Search(category string, q Query, sortBy string) ([]store.Summary, error) {
	summaries, err := w.Store(category).List()
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(q.Text)
	out := summaries[:0]
	for _, s := range summaries {
		if needle != "" && !strings.Contains(strings.ToLower(s.Name), needle) {
			continue
		}
		if q.Tag != "" && !hasTag(s.Tags, q.Tag) {
			continue
		}
		out = append(out, s)
	}

	switch sortBy {
	case SortByModified:
		sort.SliceStable(out, func(i, j int) bool { return out[i].ModifiedAt.After(out[j].ModifiedAt) })
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
		})
	}
	return out, nil
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
