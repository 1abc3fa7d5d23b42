package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Tool definitions

var listToolDef = mcp.NewTool("note_list",
	mcp.WithDescription("List all voice notes, newest first. Returns summaries without full text."),
)

var fetchToolDef = mcp.NewTool("note_fetch",
	mcp.WithDescription("Fetch a single voice note by ID, including raw transcription and polished text."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Note ID"),
	),
)

var searchToolDef = mcp.NewTool("note_search",
	mcp.WithDescription("Search notes by substring across title, raw transcription, and polished text. Case-insensitive. An empty query returns all notes."),
	mcp.WithString("query",
		mcp.Description("Search text"),
	),
)

var deleteToolDef = mcp.NewTool("note_delete",
	mcp.WithDescription("Delete a voice note by ID."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Note ID"),
	),
)

var exportToolDef = mcp.NewTool("note_export",
	mcp.WithDescription("Export a note (or all notes when no ID is given) as markdown, txt, or json."),
	mcp.WithString("id",
		mcp.Description("Note ID; omit to export every note"),
	),
	mcp.WithString("format",
		mcp.Description("Export format: markdown, txt, or json (default markdown)"),
	),
)

var ingestToolDef = mcp.NewTool("note_ingest",
	mcp.WithDescription("Transcribe and polish audio files from disk into a new note. Accepts one or more file paths."),
	mcp.WithArray("paths",
		mcp.Required(),
		mcp.Description("Absolute paths to audio files"),
		mcp.Items(map[string]any{"type": "string"}),
	),
)
