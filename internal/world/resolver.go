package world

import (
	"github.com/eldridge/lorevault/internal/record"
	"github.com/eldridge/lorevault/internal/schema"
)

// Resolution is the outcome of resolving a link reference.
type Resolution struct {
	Exists      bool   `json:"exists"`
	DisplayName string `json:"display_name"`
}

// Resolver resolves link-field references across the world's stores. A link
// is a lookup key, never an ownership edge, so resolution is lazy and a
// dangling reference is an expected, recoverable state.
type Resolver struct {
	world *World
}

// Resolve looks up ref in its category's store. A missing category or record
// yields Exists=false with the raw id as display fallback; Resolve never
// fails, since the referenced record may simply have been deleted.
func (r *Resolver) Resolve(ref record.Ref) Resolution {
	st := r.world.Store(ref.Category)
	rec, err := st.Load(ref.ID)
	if err != nil {
		return Resolution{Exists: false, DisplayName: ref.ID}
	}
	return Resolution{Exists: true, DisplayName: rec.Name(st.Schema())}
}

// Backlinks scans every category whose schema declares a link field able to
// target ref's category and returns the records that reference ref.
func (r *Resolver) Backlinks(ref record.Ref) ([]record.Ref, error) {
	var out []record.Ref
	for _, category := range r.world.Categories() {
		s := r.world.Schema(category)
		linkFields := s.LinkFieldsTargeting(ref.Category)
		if len(linkFields) == 0 {
			continue
		}
		st := r.world.Store(category)
		summaries, err := st.List()
		if err != nil {
			return nil, err
		}
		for _, sum := range summaries {
			rec, err := st.Load(sum.ID)
			if err != nil {
				continue
			}
			if referencesRef(rec, linkFields, ref) {
				out = append(out, record.Ref{Category: category, ID: sum.ID})
			}
		}
	}
	return out, nil
}

func referencesRef(rec *record.Record, linkFields []schema.Field, ref record.Ref) bool {
	for _, f := range linkFields {
		v, ok := rec.Values[f.Key]
		if !ok {
			continue
		}
		for _, l := range v.Links {
			if l == ref {
				return true
			}
		}
	}
	return false
}
