package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/eldridge/lorevault/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	_, w := testutil.TestWorld(t, map[string]string{
		"characters": testutil.CharacterTemplate,
	})
	db := testutil.TestDB(t)
	return New(w, db)
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go doesn't expose a direct "call tool" test helper, so we invoke
	// the tool handler functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_records":
		result, err = srv.searchRecords(ctx, req)
	case "read_record":
		result, err = srv.readRecord(ctx, req)
	case "create_record":
		result, err = srv.createRecord(ctx, req)
	case "get_record_contract":
		result, err = srv.getRecordContract(ctx, req)
	case "get_template":
		result, err = srv.getTemplate(ctx, req)
	case "list_categories":
		result, err = srv.listCategories(ctx, req)
	case "list_records":
		result, err = srv.listRecords(ctx, req)
	case "get_backlinks":
		result, err = srv.getBacklinks(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

const testSubjectDoc = `---
schema_version: "1.0"
---

# Test Subject

## Biography

A character created over MCP.
`

func TestCreateAndReadRecord(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "create_record", map[string]interface{}{
		"category": "characters",
		"name":     "Test Subject",
		"content":  testSubjectDoc,
	})
	text := resultText(r)
	if text != "created: characters/test_subject" {
		t.Errorf("create result = %q", text)
	}

	r = callTool(t, srv, "read_record", map[string]interface{}{
		"category": "characters",
		"id":       "test_subject",
	})
	text = resultText(r)
	if !strings.Contains(text, "# Test Subject") {
		t.Errorf("read result missing name heading: %q", text)
	}
	if !strings.Contains(text, "A character created over MCP.") {
		t.Errorf("read result missing biography: %q", text)
	}
}

func TestReadRecordMissing(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "read_record", map[string]interface{}{
		"category": "characters",
		"id":       "nope",
	})
	if !r.IsError {
		t.Error("expected error for missing record")
	}
}

func TestCreateRecordInvalidContent(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "create_record", map[string]interface{}{
		"category": "characters",
		"name":     "Broken",
		"content":  "---\n: not yaml\n---\n\n# Broken\n",
	})
	if !r.IsError {
		t.Error("expected error for malformed frontmatter")
	}
}

func TestListCategories(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "list_categories", map[string]interface{}{})
	if resultText(r) != "characters" {
		t.Errorf("categories = %q", resultText(r))
	}
}

func TestListRecords(t *testing.T) {
	srv := testServer(t)
	_ = callTool(t, srv, "create_record", map[string]interface{}{
		"category": "characters",
		"name":     "Test Subject",
		"content":  testSubjectDoc,
	})

	r := callTool(t, srv, "list_records", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, "characters/test_subject\tTest Subject") {
		t.Errorf("list = %q", text)
	}
}

func TestGetTemplate(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_template", map[string]interface{}{"category": "characters"})
	if !strings.Contains(resultText(r), "{tags|tags}") {
		t.Errorf("template = %q", resultText(r))
	}
}

func TestGetRecordContract(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_record_contract", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, "[[") || !strings.Contains(text, "## ") {
		t.Errorf("contract looks incomplete: %q", text)
	}
}

func TestSearchRecords(t *testing.T) {
	srv := testServer(t)
	_ = callTool(t, srv, "create_record", map[string]interface{}{
		"category": "characters",
		"name":     "Test Subject",
		"content":  testSubjectDoc,
	})

	r := callTool(t, srv, "search_records", map[string]interface{}{"query": "MCP"})
	if !strings.Contains(resultText(r), "test_subject") {
		t.Errorf("search = %q", resultText(r))
	}
}

func TestGetBacklinks(t *testing.T) {
	srv := testServer(t)
	_ = callTool(t, srv, "create_record", map[string]interface{}{
		"category": "characters",
		"name":     "Linker",
		"content": `---
schema_version: "1.0"
---

# Linker

## Allies

[[characters/bren_coldiron]]
`,
	})

	r := callTool(t, srv, "get_backlinks", map[string]interface{}{
		"category": "characters",
		"id":       "bren_coldiron",
	})
	if resultText(r) != "characters/linker" {
		t.Errorf("backlinks = %q, want characters/linker", resultText(r))
	}

	r = callTool(t, srv, "get_backlinks", map[string]interface{}{
		"category": "characters",
		"id":       "unlinked",
	})
	if resultText(r) != "no backlinks found" {
		t.Errorf("no-backlink result = %q", resultText(r))
	}
}
