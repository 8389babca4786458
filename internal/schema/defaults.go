package schema

// Built-in templates used as fallbacks for categories that ship without a
// template file. They double as the reference examples of the template DSL.
var builtinTemplates = map[string]string{
	"characters": `---
name: Default Character
author: Lorevault
version: "1.0"
description: Standard character template with all default fields
---
## Name
{name|required}
![portrait]
## Summary
{summary|multiline}
## Description
{description|multiline}
## Traits
{traits|multiline}
## History
{history|multiline}
## Relationships
{relationships|link|target=characters,factions}
## Tags
{tags|tags}
`,
	"locations": `---
name: Default Location
author: Lorevault
version: "1.0"
description: Standard location template
---
## Name
{name|required}
## Map
{map|mimage|w=400|h=300}
## Overview
{overview|multiline}
## Region
{region}
## Population
{population|number}
## Notable Residents
{notable_residents|link|target=characters}
## Tags
{tags|tags}
`,
	"timeline": `---
name: Default Timeline Event
author: Lorevault
version: "1.0"
description: Standard timeline event template
---
## Name
{name|required}
## Year
{year|number}
## Summary
{summary|multiline}
## Participants
{participants|link|target=characters,factions}
## Location
{location|link|target=locations}
## Tags
{tags|tags}
`,
	"codex": `---
name: Default Codex Entry
author: Lorevault
version: "1.0"
description: Standard codex entry template
---
## Name
{name|required}
## Entry
{entry|multiline}
## Related
{related|link|target=characters,locations,factions}
## Tags
{tags|tags}
`,
	"factions": `---
name: Default Faction
author: Lorevault
version: "1.0"
description: Standard faction template
---
## Name
{name|required}
## Sigil
{sigil|image|w=200|h=200}
## Creed
{creed|multiline}
## Leader
{leader|link|target=characters}
## Seat
{seat|link|target=locations}
## Members
{members|link|target=characters}
## Tags
{tags|tags}
`,
}

// Builtin returns the parsed built-in schema for category, if one exists.
func Builtin(category string) (*Schema, bool) {
	raw, ok := builtinTemplates[category]
	if !ok {
		return nil, false
	}
	s, err := Parse([]byte(raw))
	if err != nil {
		// Built-ins are covered by tests; an error here is a programming bug.
		panic("schema: invalid built-in template for " + category + ": " + err.Error())
	}
	return s, true
}

// BuiltinMarkdown returns the raw built-in template document for category.
func BuiltinMarkdown(category string) (string, bool) {
	raw, ok := builtinTemplates[category]
	return raw, ok
}

// BuiltinCategories lists the categories that ship with a built-in template.
func BuiltinCategories() []string {
	return []string{"characters", "locations", "timeline", "codex", "factions"}
}

const genericTemplate = `---
name: Generic Entry
author: Lorevault
version: "1.0"
description: Minimal fallback for categories without a template
---
## Name
{name|required}
## Notes
{notes|multiline}
## Tags
{tags|tags}
`

// Fallback returns the schema used for a category with no template file:
// the built-in one when it exists, otherwise a minimal generic schema.
// Unknown categories referenced by link targets resolve through this, so a
// dangling target never fails template parsing.
func Fallback(category string) *Schema {
	if s, ok := Builtin(category); ok {
		return s
	}
	s, err := Parse([]byte(genericTemplate))
	if err != nil {
		panic("schema: invalid generic template: " + err.Error())
	}
	return s
}
