// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Lorevault tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/eldridge/lorevault/internal/index"
	"github.com/eldridge/lorevault/internal/record"
	"github.com/eldridge/lorevault/internal/world"
)

// Server wraps the MCP server with Lorevault tools.
type Server struct {
	mcp   *server.MCPServer
	world *world.World
	db    *index.DB
}

// New creates a new MCP server with all Lorevault tools registered.
func New(w *world.World, db *index.DB) *Server {
	s := &Server{world: w, db: db}

	s.mcp = server.NewMCPServer(
		"Lorevault",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_records",
		mcp.WithDescription("Full-text search through record names, field values and tags."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchRecords)

	s.mcp.AddTool(mcp.NewTool("read_record",
		mcp.WithDescription("Read the full Markdown document of a record."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Record category (e.g. characters)")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Record id (e.g. elira_dawnsworn)")),
	), s.readRecord)

	s.mcp.AddTool(mcp.NewTool("create_record",
		mcp.WithDescription("Create a new record in a category. "+
			"Content MUST follow the record format for that category "+
			"(YAML frontmatter, '## ' field sections, [[category/id]] links). "+
			"Read the contract first via the get_record_contract tool or the "+
			"lorevault://record-format resource, and fetch the category template "+
			"with get_template."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category for the new record")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Display name; the record id is derived from it")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown document following the record format contract")),
	), s.createRecord)

	s.mcp.AddTool(mcp.NewTool("get_record_contract",
		mcp.WithDescription("Returns the canonical Lorevault record format contract. "+
			"Call this before creating or updating records to ensure correct structure."),
	), s.getRecordContract)

	s.mcp.AddTool(mcp.NewTool("get_template",
		mcp.WithDescription("Returns the template document for a category, listing its fields and placeholders."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category name")),
	), s.getTemplate)

	s.mcp.AddTool(mcp.NewTool("list_categories",
		mcp.WithDescription("List the record categories of the open world."),
	), s.listCategories)

	s.mcp.AddTool(mcp.NewTool("list_records",
		mcp.WithDescription("List all records in a category, or in every category."),
		mcp.WithString("category", mcp.Description("Optional category to list (empty for all)")),
	), s.listRecords)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all records that link to the specified record."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Target record category")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Target record id")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("upload_image",
		mcp.WithDescription("Download an image from a URL or data URI into a record's image "+
			"directory. Returns the world-relative path ready to paste into an image field."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Record category")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Record id the image belongs to")),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or base64 data URI")),
		mcp.WithString("filename", mcp.Description("Optional filename; derived from the URL when empty")),
	), s.uploadImage)

	// Resource: record format contract.
	s.mcp.AddResource(
		mcp.NewResource("lorevault://record-format", "Record Format Contract",
			mcp.WithResourceDescription("Canonical Markdown record format that all records must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRecordFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.db.Search(query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	st := s.world.Store(category)
	rec, err := st.Load(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s/%s", category, id)), nil
	}
	return mcp.NewToolResultText(string(record.Encode(rec, st.Schema()))), nil
}

func (s *Server) createRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	st := s.world.Store(category)
	sc := st.Schema()
	rec, err := record.Decode([]byte(content), sc)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid record document: %v", err)), nil
	}
	rec.Category = category
	if nf, ok := sc.NameField(); ok && rec.Name(sc) == "" {
		rec.Values[nf.Key] = record.NewText(nf.Type, name)
	}
	id, err := st.Create(rec)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	// Index the new record.
	if sum, sumErr := st.Summarize(id); sumErr == nil {
		_ = index.IndexRecord(s.db, st, sum)
	}

	return mcp.NewToolResultText(fmt.Sprintf("created: %s/%s", category, id)), nil
}

func (s *Server) getTemplate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	md, _ := s.world.TemplateMarkdown(category)
	return mcp.NewToolResultText(md), nil
}

func (s *Server) listCategories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(strings.Join(s.world.Categories(), "\n")), nil
}

func (s *Server) listRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category := ""
	if c, err := req.RequireString("category"); err == nil {
		category = c
	}

	cats := s.world.Categories()
	if category != "" {
		cats = []string{category}
	}

	var lines []string
	for _, c := range cats {
		sums, err := s.world.Store(c).List()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		for _, sum := range sums {
			lines = append(lines, fmt.Sprintf("%s/%s\t%s", c, sum.ID, sum.Name))
		}
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getRecordContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RecordFormatContract), nil
}

func (s *Server) readRecordFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "lorevault://record-format",
			MIMEType: "text/markdown",
			Text:     RecordFormatContract,
		},
	}, nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.db.Backlinks(record.Ref{Category: category, ID: id})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	var lines []string
	for _, ref := range bl {
		lines = append(lines, ref.String())
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}
