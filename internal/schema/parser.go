package schema

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eldridge/lorevault/internal/apperr"
)

// PortraitMarkerLine is the legacy standalone marker placed between sections.
const PortraitMarkerLine = "![portrait]"

var placeholderRe = regexp.MustCompile(`\{(\w+(?:\|[^{}]*)?)\}`)

// Parse parses a template document into a Schema.
//
// The document is a YAML frontmatter header (name, author, version,
// description) followed by heading-delimited sections, each containing one
// field placeholder of the form {key}, {key|type} or {key|type|mod|mod...}.
// Unknown modifier names are preserved and ignored rather than rejected, so
// templates written for newer versions still load (lenient policy). Parse
// fails with *apperr.ParseError on a duplicate key, an unrecognized type, or
// a second mimage field.
func Parse(data []byte) (*Schema, error) {
	fm, body := SplitFrontmatter(data)

	s := &Schema{
		Name:           stringValue(fm, "name", "Unnamed"),
		Author:         stringValue(fm, "author", "Unknown"),
		Version:        stringValue(fm, "version", "1.0"),
		Description:    stringValue(fm, "description", ""),
		PortraitMarker: -1,
	}

	seen := make(map[string]int)
	var label string
	mainImages := 0

	for i, line := range strings.Split(body, "\n") {
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)

		if trimmed == PortraitMarkerLine {
			s.PortraitMarker = len(s.Fields)
			label = ""
			continue
		}

		if strings.HasPrefix(trimmed, "## ") {
			label = strings.TrimSpace(trimmed[3:])
			continue
		}

		// Legacy title form: "# {name}" declares the required name field.
		if strings.HasPrefix(trimmed, "# ") && strings.Contains(trimmed, "{name}") {
			if _, dup := seen["name"]; dup {
				return nil, &apperr.ParseError{Line: lineNo, Msg: `duplicate field key "name"`}
			}
			seen["name"] = lineNo
			s.Fields = append(s.Fields, Field{
				Key: "name", Label: "Name", Type: TypeText, Required: true,
				Order: len(s.Fields),
			})
			label = ""
			continue
		}

		m := placeholderRe.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}

		f, err := parsePlaceholder(m[1], lineNo)
		if err != nil {
			return nil, err
		}

		// Image fields stand on their own; other types need a section
		// heading to supply a display label.
		switch {
		case f.Type.ImageBearing():
			if label == "" {
				label = titleCase(f.Key)
			}
		case label == "":
			continue
		}

		if _, dup := seen[f.Key]; dup {
			return nil, &apperr.ParseError{Line: lineNo, Msg: "duplicate field key " + strconv.Quote(f.Key)}
		}
		seen[f.Key] = lineNo

		if f.Type == TypeMainImage {
			mainImages++
			if mainImages > 1 {
				return nil, &apperr.ParseError{Line: lineNo, Msg: "more than one mimage field"}
			}
		}

		f.Label = label
		f.Order = len(s.Fields)
		s.Fields = append(s.Fields, f)
		label = ""
	}

	return s, nil
}

// parsePlaceholder parses the inside of {...}: key, optional type, modifiers.
// The first part after the key is the type unless it reads as a modifier, so
// the {name|required} shorthand keeps working with the text default.
func parsePlaceholder(raw string, lineNo int) (Field, error) {
	parts := strings.Split(raw, "|")
	f := Field{Key: parts[0], Type: TypeText}

	mods := parts[1:]
	if len(mods) > 0 {
		first := strings.TrimSpace(mods[0])
		switch {
		case first == "", isModifier(first):
			// Type omitted; defaults to text.
		case FieldType(first).Valid():
			f.Type = FieldType(first)
			mods = mods[1:]
		default:
			return Field{}, &apperr.ParseError{Line: lineNo, Msg: "unknown field type " + strconv.Quote(first)}
		}
	}

	for _, part := range mods {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, hasValue := strings.Cut(part, "=")
		switch {
		case !hasValue && name == "required":
			f.Required = true
		case hasValue && name == "w":
			if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
				f.Width = n
			}
		case hasValue && name == "h":
			if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
				f.Height = n
			}
		case hasValue && (name == "target" || name == "link"):
			for _, cat := range strings.Split(value, ",") {
				if cat = strings.TrimSpace(cat); cat != "" {
					f.Targets = append(f.Targets, cat)
				}
			}
		default:
			// Unknown modifier: preserved, never a failure.
			if f.Extra == nil {
				f.Extra = make(map[string]string)
			}
			f.Extra[name] = value
		}
	}

	return f, nil
}

// isModifier reports whether a placeholder part reads as a modifier rather
// than a type name.
func isModifier(part string) bool {
	return part == "required" || strings.Contains(part, "=")
}

// SplitFrontmatter separates the YAML frontmatter header (between leading
// --- delimiters) from the document body. If no frontmatter is found, or the
// YAML is invalid, the entire content is body.
func SplitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data)
	}
	return fm, body
}

func stringValue(fm map[string]any, key, fallback string) string {
	if fm == nil {
		return fallback
	}
	switch v := fm[key].(type) {
	case string:
		if v != "" {
			return v
		}
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return fallback
}

// titleCase derives a display label from a field key: "combat_style" →
// "Combat Style".
func titleCase(key string) string {
	words := strings.Split(strings.ReplaceAll(key, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
