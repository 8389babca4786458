package mcpserver

// RecordFormatContract describes the canonical Markdown record format that
// LLM consumers should follow when creating or updating records.
const RecordFormatContract = `# Lorevault Record Format Contract

Every record stored in Lorevault is a Markdown document that MUST follow
this structure. The fields of a record are defined by its category's
template (fetch it with the get_template tool).

## Structure

` + "```" + `markdown
---
tags:                               # OPTIONAL frontmatter metadata
  - tag-one
schema_version: 1                   # OPTIONAL - written automatically
---

## Field Label

Field value as plain Markdown text.

## Another Field

More text.
` + "```" + `

## Rules

1. **Each schema field is a ` + "`" + `## ` + "`" + ` section.** The heading is the field's label
   (or its key with underscores as spaces); the section body is the value.
2. **Tags fields** hold a comma-separated list: ` + "`" + `hero, mage, northern` + "`" + `.
   Duplicates are removed case-insensitively.
3. **Number fields** hold a single decimal number. Anything that does not
   parse as a number is treated as absent.
4. **Link fields** use wikilinks with an explicit category:
   ` + "`" + `[[characters/elira_dawnsworn]]` + "`" + `, one per line. ` + "`" + `[[target|alias]]` + "`" + ` keeps
   the target and drops the alias. When the field targets exactly one
   category the bare id ` + "`" + `[[elira_dawnsworn]]` + "`" + ` is also accepted.
5. **Image fields** use image markup with a world-relative path:
   ` + "`" + `![portrait](records/characters/images/elira_dawnsworn/portrait.png)` + "`" + `.
   Upload images first via the upload_image tool; it returns the path.
6. **Unknown sections are preserved.** Headings that match no schema field
   survive edits untouched, so free-form notes are safe to add.
7. **Record ids** are derived from the name: lowercase, spaces become
   underscores, only ` + "`" + `a-z 0-9 _ -` + "`" + ` survive. Ids never change after creation.
8. **Encoding** is UTF-8 with a trailing newline.

## Example

` + "```" + `markdown
---
schema_version: 1
---

## Name

Elira Dawnsworn

## Tags

hero, mage

## Biography

Raised in the archives of [[locations/silver_city]], Elira joined
[[factions/silver_order]] at sixteen.

## Portrait

![portrait](records/characters/images/elira_dawnsworn/portrait.png)
` + "```" + `
`
