package record

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eldridge/lorevault/internal/apperr"
	"github.com/eldridge/lorevault/internal/schema"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	imageRe    = regexp.MustCompile(`!\[[^\]]*\]\(([^)]+)\)`)
)

type section struct {
	heading string
	lines   []string
}

// Decode parses a record document against a schema.
//
// A malformed metadata header is a *apperr.DecodeError; individual field
// decode failures are not. A value that cannot be parsed for its declared
// type falls back to absent, so a single hand-edited bad field never
// prevents loading the rest of the record. Sections whose heading matches no
// schema field are kept as orphans. The caller fills in Category and ID.
func Decode(data []byte, s *schema.Schema) (*Record, error) {
	meta, body, err := splitHeader(data)
	if err != nil {
		return nil, err
	}

	r := &Record{
		Meta:   meta,
		Values: make(map[string]Value, len(s.Fields)),
	}
	if meta != nil {
		if v, ok := meta["schema_version"]; ok {
			r.SchemaVersion = toString(v)
		}
	}

	byKey := make(map[string]schema.Field, len(s.Fields))
	byLabel := make(map[string]schema.Field, len(s.Fields))
	for _, f := range s.Fields {
		byKey[f.Key] = f
		byLabel[strings.ToLower(f.Label)] = f
	}

	var sections []section
	var cur *section
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)

		if trimmed == schema.PortraitMarkerLine {
			continue
		}
		if strings.HasPrefix(trimmed, "## ") {
			sections = append(sections, section{heading: strings.TrimSpace(trimmed[3:])})
			cur = &sections[len(sections)-1]
			continue
		}
		// Legacy H1 title carries the name field's value.
		if strings.HasPrefix(trimmed, "# ") && cur == nil {
			if f, ok := byKey["name"]; ok {
				r.Values[f.Key] = NewText(f.Type, strings.TrimSpace(trimmed[2:]))
			}
			continue
		}
		if cur != nil {
			cur.lines = append(cur.lines, line)
		}
	}

	for _, sec := range sections {
		f, ok := matchField(sec.heading, byKey, byLabel)
		if ok {
			if _, taken := r.Values[f.Key]; !taken {
				r.Values[f.Key] = decodeValue(f, trimBlank(sec.lines))
				continue
			}
			// A second section for the same field is kept as an orphan so
			// no hand-edited content is lost.
		}
		r.Orphans = append(r.Orphans, Orphan{
			Heading: sec.heading,
			Body:    strings.Join(trimBlank(sec.lines), "\n"),
		})
	}

	// Schema fields with no section decode as empty.
	for _, f := range s.Fields {
		if _, ok := r.Values[f.Key]; !ok {
			r.Values[f.Key] = Value{Kind: f.Type}
		}
	}

	return r, nil
}

// Encode renders a record back to a document, using the schema as layout
// guide: metadata header first, then one section per schema field in schema
// order with the portrait marker at its recorded position, then orphan
// sections in their original order. Encode is the inverse of Decode up to
// incidental whitespace.
func Encode(r *Record, s *schema.Schema) []byte {
	var b bytes.Buffer

	meta := make(map[string]any, len(r.Meta)+1)
	for k, v := range r.Meta {
		meta[k] = v
	}
	if r.SchemaVersion != "" {
		meta["schema_version"] = r.SchemaVersion
	}
	if len(meta) > 0 {
		out, err := yaml.Marshal(meta)
		if err == nil {
			b.WriteString("---\n")
			b.Write(out)
			b.WriteString("---\n\n")
		}
	}

	for i, f := range s.Fields {
		if s.PortraitMarker == i {
			b.WriteString(schema.PortraitMarkerLine + "\n\n")
		}
		b.WriteString("## " + f.Label + "\n")
		if body := encodeValue(f, r.Values[f.Key]); body != "" {
			b.WriteString(body + "\n")
		}
		b.WriteString("\n")
	}
	if s.PortraitMarker == len(s.Fields) {
		b.WriteString(schema.PortraitMarkerLine + "\n\n")
	}

	for _, o := range r.Orphans {
		b.WriteString("## " + o.Heading + "\n")
		if o.Body != "" {
			b.WriteString(o.Body + "\n")
		}
		b.WriteString("\n")
	}

	return b.Bytes()
}

// matchField resolves a section heading to a schema field, either by
// normalized key ("Combat Style" → combat_style) or by display label.
func matchField(heading string, byKey, byLabel map[string]schema.Field) (schema.Field, bool) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(heading)), " ", "_")
	if f, ok := byKey[norm]; ok {
		return f, true
	}
	if f, ok := byLabel[strings.ToLower(strings.TrimSpace(heading))]; ok {
		return f, true
	}
	return schema.Field{}, false
}

func decodeValue(f schema.Field, lines []string) Value {
	body := strings.Join(lines, "\n")
	switch f.Type {
	case schema.TypeTags:
		return NewTags(strings.Split(body, ","))
	case schema.TypeNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(body), 64)
		if err != nil {
			// Hand-edited non-numeric content decodes as absent.
			return AbsentNumber()
		}
		return NewNumber(n)
	case schema.TypeImage, schema.TypeMainImage:
		if m := imageRe.FindStringSubmatch(body); m != nil {
			return NewImage(f.Type, m[1])
		}
		return NewImage(f.Type, "")
	case schema.TypeLink:
		var refs []Ref
		for _, m := range wikilinkRe.FindAllStringSubmatch(body, -1) {
			target := m[1]
			if i := strings.Index(target, "|"); i >= 0 {
				target = target[:i]
			}
			target = strings.TrimSpace(target)
			if ref, ok := ParseRef(target); ok {
				refs = append(refs, ref)
				continue
			}
			// Bare id: unambiguous when the field targets one category.
			if target != "" && len(f.Targets) == 1 {
				refs = append(refs, Ref{Category: f.Targets[0], ID: target})
			}
		}
		return NewLinks(refs)
	default:
		return NewText(f.Type, body)
	}
}

func encodeValue(f schema.Field, v Value) string {
	switch f.Type {
	case schema.TypeTags:
		return strings.Join(v.Tags, ", ")
	case schema.TypeNumber:
		if v.Number == nil {
			return ""
		}
		return strconv.FormatFloat(*v.Number, 'f', -1, 64)
	case schema.TypeImage, schema.TypeMainImage:
		if v.Image == "" {
			return ""
		}
		return "![" + f.Key + "](" + v.Image + ")"
	case schema.TypeLink:
		targets := make([]string, len(v.Links))
		for i, ref := range v.Links {
			targets[i] = "[[" + ref.String() + "]]"
		}
		return strings.Join(targets, "\n")
	default:
		return v.Text
	}
}

// splitHeader separates the YAML metadata header from the body. Unlike
// template parsing, a header that is present but malformed is a hard error:
// it indicates structural corruption the user must address.
func splitHeader(data []byte) (map[string]any, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, "", &apperr.DecodeError{Msg: "unterminated metadata header"}
	}

	var meta map[string]any
	if err := yaml.Unmarshal(rest[:idx], &meta); err != nil {
		return nil, "", &apperr.DecodeError{Msg: "malformed metadata header: " + err.Error()}
	}

	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")
	return meta, body, nil
}

// trimBlank drops leading and trailing blank lines from a section body.
func trimBlank(lines []string) []string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[start:end]
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}
