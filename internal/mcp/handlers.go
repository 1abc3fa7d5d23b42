package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/murmur/internal/config"
	"github.com/hpungsan/murmur/internal/errors"
	"github.com/hpungsan/murmur/internal/export"
	"github.com/hpungsan/murmur/internal/note"
	"github.com/hpungsan/murmur/internal/pipeline"
	"github.com/hpungsan/murmur/internal/session"
	"github.com/hpungsan/murmur/internal/store"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	store *store.Store
	coord *session.Coordinator
	cfg   *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(st *store.Store, coord *session.Coordinator, cfg *config.Config) *Handlers {
	return &Handlers{store: st, coord: coord, cfg: cfg}
}

// decode unmarshals MCP request arguments into a typed struct.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	args := req.GetArguments()
	b, err := json.Marshal(args)
	if err != nil {
		return result, fmt.Errorf("marshal args: %w", err)
	}
	if err := json.Unmarshal(b, &result); err != nil {
		return result, fmt.Errorf("unmarshal args: %w", err)
	}
	return result, nil
}

// Request types for each tool

// FetchRequest represents the arguments for fetch.
type FetchRequest struct {
	ID string `json:"id"`
}

// SearchRequest represents the arguments for search.
type SearchRequest struct {
	Query string `json:"query,omitempty"`
}

// DeleteRequest represents the arguments for delete.
type DeleteRequest struct {
	ID string `json:"id"`
}

// ExportRequest represents the arguments for export.
type ExportRequest struct {
	ID     string `json:"id,omitempty"`
	Format string `json:"format,omitempty"`
}

// IngestRequest represents the arguments for ingest.
type IngestRequest struct {
	Paths []string `json:"paths"`
}

// noteSummary is the list/search result shape.
type noteSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Timestamp int64  `json:"timestamp"`
	WordCount int    `json:"wordCount"`
}

func summarize(notes []note.Note) []noteSummary {
	out := make([]noteSummary, 0, len(notes))
	for _, n := range notes {
		out = append(out, noteSummary{
			ID:        n.ID,
			Title:     n.Title,
			Timestamp: n.CreatedAt,
			WordCount: n.WordCount(),
		})
	}
	return out
}

// Handler implementations

// HandleList handles the list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(map[string]any{
		"notes": summarize(h.store.All()),
		"count": h.store.Len(),
	})
}

// HandleFetch handles the fetch tool call.
func (h *Handlers) HandleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FetchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	n, ok := h.store.Get(input.ID)
	if !ok {
		return errorResult(errors.NewNotFound(input.ID)), nil
	}
	return successResult(n)
}

// HandleSearch handles the search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	matches := h.store.Search(input.Query)
	return successResult(map[string]any{
		"notes": summarize(matches),
		"count": len(matches),
	})
}

// HandleDelete handles the delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	if err := h.coord.Delete(ctx, input.ID); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"deleted": true, "id": input.ID})
}

// HandleExport handles the export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if input.Format == "" {
		input.Format = string(export.FormatMarkdown)
	}
	format, err := export.ParseFormat(input.Format)
	if err != nil {
		return errorResult(err), nil
	}

	var (
		data []byte
		name string
	)
	if input.ID == "" {
		data, name, err = export.RenderAll(h.store.All(), format)
	} else {
		n, ok := h.store.Get(input.ID)
		if !ok {
			return errorResult(errors.NewNotFound(input.ID)), nil
		}
		data, name, err = export.Render(n, format)
	}
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{
		"filename": name,
		"content":  string(data),
	})
}

// HandleIngest handles the ingest tool call.
func (h *Handlers) HandleIngest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IngestRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if len(input.Paths) == 0 {
		return errorResult(errors.NewInvalidRequest("paths is required")), nil
	}

	files := make([]pipeline.File, 0, len(input.Paths))
	for _, path := range input.Paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return errorResult(errors.NewInvalidRequest(fmt.Sprintf("read %s: %v", path, err))), nil
		}
		files = append(files, pipeline.File{
			Name:     filepath.Base(path),
			Bytes:    data,
			MIMEType: mimeTypeOf(path),
		})
	}

	if _, err := h.coord.NewNote(); err != nil {
		return errorResult(err), nil
	}
	result, err := h.coord.Ingest(ctx, files, nil)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{
		"id":      h.coord.Active().ID,
		"title":   result.Title,
		"skipped": result.Skipped,
	})
}

// mimeTypeOf guesses the audio MIME type from the file extension.
func mimeTypeOf(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if mErr, ok := err.(*errors.MurmurError); ok {
		errorObj := map[string]any{
			"code":    mErr.Code,
			"message": mErr.Message,
			"status":  mErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths
		if mErr.Code != errors.ErrInternal && mErr.Details != nil {
			errorObj["details"] = mErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
