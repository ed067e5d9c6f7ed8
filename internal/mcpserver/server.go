// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Insightarium tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tmnance/insightarium/internal/ingest"
	"github.com/tmnance/insightarium/internal/models"
	"github.com/tmnance/insightarium/internal/store"
)

// Server wraps the MCP server with Insightarium tools.
type Server struct {
	mcp *server.MCPServer
	svc *ingest.Service
}

// New creates a new MCP server with all Insightarium tools registered.
func New(svc *ingest.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Insightarium",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("save_item",
		mcp.WithDescription("Save a piece of content (post, article, pasted text) to the "+
			"collection. Duplicates of already saved posts are detected by platform ID or "+
			"URL and reported instead of stored twice. Read the get_item_contract tool or "+
			"the insightarium://candidate-format resource for the expected fields."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Origin platform: x, linkedin, reddit, url, or raw")),
		mcp.WithString("external_id", mcp.Description("Platform-native post ID (derived from URL when omitted)")),
		mcp.WithString("url", mcp.Description("Canonical URL of the content")),
		mcp.WithString("content", mcp.Description("Body text (fetched from the URL when omitted)")),
		mcp.WithString("author", mcp.Description("Author handle or display name")),
		mcp.WithBoolean("auto_tag", mcp.Description("Score and attach topic tags after saving")),
	), s.saveItem)

	s.mcp.AddTool(mcp.NewTool("classify_items",
		mcp.WithDescription("Dry-run classification of a batch of candidate items as "+
			"new, changed, or duplicate without persisting anything. Items are judged "+
			"against the stored collection and against earlier items in the same batch."),
		mcp.WithString("items", mcp.Required(), mcp.Description("JSON array of candidate items per the candidate format contract")),
	), s.classifyItems)

	s.mcp.AddTool(mcp.NewTool("list_items",
		mcp.WithDescription("List saved items, newest first."),
		mcp.WithString("source", mcp.Description("Optional source filter: x, linkedin, reddit, url, or raw")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of items to return (default 50)")),
	), s.listItems)

	s.mcp.AddTool(mcp.NewTool("get_item",
		mcp.WithDescription("Read a saved item with its tag associations."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item ID")),
	), s.getItem)

	s.mcp.AddTool(mcp.NewTool("score_tags",
		mcp.WithDescription("Score arbitrary content against the tag catalog and return "+
			"ranked topic matches with confidence values. Nothing is stored."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Text to score")),
	), s.scoreTags)

	s.mcp.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List the active tag catalog with keywords per tag."),
	), s.listTags)

	s.mcp.AddTool(mcp.NewTool("get_item_contract",
		mcp.WithDescription("Returns the canonical candidate item contract. "+
			"Call this before saving items to ensure correct structure."),
	), s.getItemContract)

	// Resource: candidate format contract.
	s.mcp.AddResource(
		mcp.NewResource("insightarium://candidate-format", "Candidate Item Contract",
			mcp.WithResourceDescription("Canonical JSON shape for items saved through the MCP tools."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	// Resource: active tag catalog.
	s.mcp.AddResource(
		mcp.NewResource("insightarium://tag-catalog", "Tag Catalog",
			mcp.WithResourceDescription("Active tag catalog with keywords per tag."),
			mcp.WithMIMEType("application/json"),
		),
		s.readCatalogResource,
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

// optionalString returns the argument value when present, else "".
func optionalString(req mcp.CallToolRequest, key string) string {
	if v, err := req.RequireString(key); err == nil {
		return v
	}
	return ""
}

func argMap(req mcp.CallToolRequest) map[string]any {
	if m, ok := req.Params.Arguments.(map[string]any); ok {
		return m
	}
	return nil
}

func boolArg(req mcp.CallToolRequest, key string) bool {
	if v, ok := argMap(req)[key].(bool); ok {
		return v
	}
	return false
}

func intArg(req mcp.CallToolRequest, key string) int {
	if v, ok := argMap(req)[key].(float64); ok {
		return int(v)
	}
	return 0
}

func (s *Server) saveItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	cand := models.CandidateItem{
		Source:     source,
		ExternalID: optionalString(req, "external_id"),
		URL:        optionalString(req, "url"),
		Content:    optionalString(req, "content"),
		Author:     optionalString(req, "author"),
	}

	res, err := s.svc.Ingest(ctx, cand, ingest.Options{
		FetchContent: cand.Content == "" && cand.URL != "",
		AutoTag:      boolArg(req, "auto_tag"),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) classifyItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("items")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var cands []models.CandidateItem
	if err := json.Unmarshal([]byte(raw), &cands); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("items must be a JSON array of candidate items: %v", err)), nil
	}

	type classification struct {
		Index      int                  `json:"index"`
		Status     ingest.Status        `json:"status,omitempty"`
		ExistingID string               `json:"existing_id,omitempty"`
		Changes    []ingest.FieldChange `json:"changes,omitempty"`
		Error      string               `json:"error,omitempty"`
	}

	results := s.svc.Classifier().ClassifyBatch(cands)
	out := make([]classification, 0, len(results))
	for _, r := range results {
		c := classification{Index: r.Index}
		if r.Err != nil {
			c.Error = r.Err.Error()
		} else {
			c.Status = r.Decision.Status
			c.Changes = r.Decision.Changes
			if r.Decision.Existing != nil {
				c.ExistingID = r.Decision.Existing.ID
			}
		}
		out = append(out, c)
	}

	data, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) listItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, total, err := s.svc.Items(store.ItemFilter{
		Source: optionalString(req, "source"),
		Limit:  intArg(req, "limit"),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, _ := json.MarshalIndent(map[string]any{
		"items": items,
		"total": total,
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	item, err := s.svc.Item(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}

	out, _ := json.MarshalIndent(item, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) scoreTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	matches := s.svc.Scorer().Score(content)
	if len(matches) == 0 {
		return mcp.NewToolResultText("no tags matched"), nil
	}

	out, _ := json.MarshalIndent(matches, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(s.svc.Scorer().Catalog(), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getItemContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(CandidateFormatContract), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "insightarium://candidate-format",
			MIMEType: "text/markdown",
			Text:     CandidateFormatContract,
		},
	}, nil
}

func (s *Server) readCatalogResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	out, err := json.MarshalIndent(s.svc.Scorer().Catalog(), "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "insightarium://tag-catalog",
			MIMEType: "application/json",
			Text:     string(out),
		},
	}, nil
}
