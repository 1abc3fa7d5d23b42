package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/murmur/internal/config"
	"github.com/hpungsan/murmur/internal/kv"
	"github.com/hpungsan/murmur/internal/note"
	"github.com/hpungsan/murmur/internal/pipeline"
	"github.com/hpungsan/murmur/internal/session"
	"github.com/hpungsan/murmur/internal/store"
)

// mcpModel returns canned output for ingest tests.
type mcpModel struct{}

func (mcpModel) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	return "dictated reminder about the demo", nil
}

func (mcpModel) Polish(ctx context.Context, raw string) (string, error) {
	return "# Demo Reminder\n\nDictated reminder about the demo.", nil
}

// testSetup creates a temporary store and handlers for testing.
func testSetup(t *testing.T) *Handlers {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	slots, err := kv.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init kv store: %v", err)
	}
	t.Cleanup(func() { slots.Close() })

	st := store.New(slots, logger)
	if err := st.Load(context.Background()); err != nil {
		t.Fatalf("failed to load store: %v", err)
	}

	cfg := config.DefaultConfig()
	runner := pipeline.NewRunner(mcpModel{}, logger, cfg.MaxUploadBytes, note.DefaultTitleOptions(), time.Minute)

	coord, err := session.New(st, runner, nil, logger)
	if err != nil {
		t.Fatalf("failed to create coordinator: %v", err)
	}

	return NewHandlers(st, coord, cfg)
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

// seedNote persists a note and returns its ID.
func seedNote(t *testing.T, h *Handlers, title, polished string) string {
	t.Helper()
	n, err := note.New()
	if err != nil {
		t.Fatalf("note.New: %v", err)
	}
	n.Title = title
	n.RawTranscription = "raw " + title
	n.PolishedNote = polished
	if err := h.store.Upsert(context.Background(), *n); err != nil {
		t.Fatalf("seed note %q: %v", title, err)
	}
	return n.ID
}

func TestHandleList(t *testing.T) {
	h := testSetup(t)
	ctx := context.Background()

	seedNote(t, h, "First", "first body")
	seedNote(t, h, "Second", "second body")

	result, err := h.HandleList(ctx, makeRequest(nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractText(result))
	}

	var payload struct {
		Notes []noteSummary `json:"notes"`
		Count int           `json:"count"`
	}
	decodePayload(t, result, &payload)

	if payload.Count != 2 {
		t.Errorf("count = %d, want 2", payload.Count)
	}
	// Newest first
	if len(payload.Notes) != 2 || payload.Notes[0].Title != "Second" {
		t.Errorf("unexpected ordering: %+v", payload.Notes)
	}
}

func TestHandleFetch(t *testing.T) {
	h := testSetup(t)
	ctx := context.Background()
	id := seedNote(t, h, "Fetch Me", "the full text")

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
	}{
		{
			name:      "fetch existing note",
			args:      map[string]any{"id": id},
			wantError: false,
		},
		{
			name:      "fetch missing note",
			args:      map[string]any{"id": "NONEXISTENT"},
			wantError: true,
			errorCode: "NOT_FOUND",
		},
		{
			name:      "fetch without id",
			args:      map[string]any{},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleFetch(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if tt.wantError {
				if !result.IsError {
					t.Errorf("expected error result, got success")
				}
				if tt.errorCode != "" {
					assertErrorCode(t, result, tt.errorCode)
				}
				return
			}
			if result.IsError {
				t.Fatalf("expected success, got error: %v", extractText(result))
			}

			var n note.Note
			decodePayload(t, result, &n)
			if n.PolishedNote != "the full text" {
				t.Errorf("polished = %q", n.PolishedNote)
			}
		})
	}
}

func TestHandleSearch(t *testing.T) {
	h := testSetup(t)
	ctx := context.Background()

	seedNote(t, h, "Grocery Run", "buy milk")
	seedNote(t, h, "Meeting", "quarterly plans")

	tests := []struct {
		name      string
		query     string
		wantCount int
	}{
		{"matching query", "grocery", 1},
		{"no matches", "zebra", 0},
		{"empty query returns all", "", 2},
		{"matches raw transcription", "raw meeting", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleSearch(ctx, makeRequest(map[string]any{"query": tt.query}))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if result.IsError {
				t.Fatalf("expected success, got error: %v", extractText(result))
			}

			var payload struct {
				Count int `json:"count"`
			}
			decodePayload(t, result, &payload)
			if payload.Count != tt.wantCount {
				t.Errorf("count = %d, want %d", payload.Count, tt.wantCount)
			}
		})
	}
}

func TestHandleDelete(t *testing.T) {
	h := testSetup(t)
	ctx := context.Background()
	id := seedNote(t, h, "Doomed", "going away")

	result, err := h.HandleDelete(ctx, makeRequest(map[string]any{"id": id}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractText(result))
	}
	if _, ok := h.store.Get(id); ok {
		t.Error("expected note removed from store")
	}

	// Deleting again reports NOT_FOUND
	result, err = h.HandleDelete(ctx, makeRequest(map[string]any{"id": id}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !result.IsError {
		t.Error("expected error result for missing note")
	}
	assertErrorCode(t, result, "NOT_FOUND")
}

func TestHandleExport(t *testing.T) {
	h := testSetup(t)
	ctx := context.Background()
	id := seedNote(t, h, "Export Me", "body text")

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
		contains  string
	}{
		{
			name:     "single note markdown",
			args:     map[string]any{"id": id, "format": "markdown"},
			contains: "# Export Me",
		},
		{
			name:     "default format is markdown",
			args:     map[string]any{"id": id},
			contains: "# Export Me",
		},
		{
			name:     "all notes json",
			args:     map[string]any{"format": "json"},
			contains: "\"Export Me\"",
		},
		{
			name:      "unknown format",
			args:      map[string]any{"id": id, "format": "docx"},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "missing note",
			args:      map[string]any{"id": "NONEXISTENT"},
			wantError: true,
			errorCode: "NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleExport(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if tt.wantError {
				if !result.IsError {
					t.Errorf("expected error result, got success")
				}
				assertErrorCode(t, result, tt.errorCode)
				return
			}
			if result.IsError {
				t.Fatalf("expected success, got error: %v", extractText(result))
			}

			var payload struct {
				Filename string `json:"filename"`
				Content  string `json:"content"`
			}
			decodePayload(t, result, &payload)
			if payload.Filename == "" {
				t.Error("expected a suggested filename")
			}
			if !strings.Contains(payload.Content, tt.contains) {
				t.Errorf("content missing %q:\n%s", tt.contains, payload.Content)
			}
		})
	}
}

func TestHandleIngest(t *testing.T) {
	h := testSetup(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "memo.wav")
	if err := os.WriteFile(path, []byte("fake-wav-bytes"), 0600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	result, err := h.HandleIngest(ctx, makeRequest(map[string]any{"paths": []any{path}}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractText(result))
	}

	var payload struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	decodePayload(t, result, &payload)
	if payload.Title != "Demo Reminder" {
		t.Errorf("title = %q, want %q", payload.Title, "Demo Reminder")
	}

	n, ok := h.store.Get(payload.ID)
	if !ok {
		t.Fatal("expected ingested note in store")
	}
	if n.RawTranscription != "dictated reminder about the demo" {
		t.Errorf("raw = %q", n.RawTranscription)
	}
}

func TestHandleIngest_BadPath(t *testing.T) {
	h := testSetup(t)
	ctx := context.Background()

	result, err := h.HandleIngest(ctx, makeRequest(map[string]any{"paths": []any{"/no/such/file.wav"}}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result")
	}
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestValidateDisabledTools(t *testing.T) {
	unknown := ValidateDisabledTools([]string{"note_list", "bogus_tool"})
	if len(unknown) != 1 || unknown[0] != "bogus_tool" {
		t.Errorf("unknown = %v, want [bogus_tool]", unknown)
	}
}

func TestNewServerSkipsDisabledTools(t *testing.T) {
	h := testSetup(t)

	cfg := config.DefaultConfig()
	cfg.DisabledTools = []string{"note_delete"}

	s := NewServer(h.store, h.coord, cfg, "test")
	if s == nil {
		t.Fatal("expected a server")
	}
}

// decodePayload unmarshals a success result's JSON text content.
func decodePayload(t *testing.T, result *mcp.CallToolResult, v any) {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatal("content is not TextContent")
	}
	if err := json.Unmarshal([]byte(text.Text), v); err != nil {
		t.Fatalf("failed to unmarshal payload: %v", err)
	}
}

// assertErrorCode verifies the error payload carries the expected code.
func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if len(result.Content) == 0 {
		t.Errorf("no content in error result")
		return
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Errorf("content is not TextContent")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Errorf("failed to unmarshal error payload: %v", err)
		return
	}

	errorObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Errorf("no error object in payload")
		return
	}

	code, ok := errorObj["code"].(string)
	if !ok {
		t.Errorf("no code in error object")
		return
	}
	if code != expectedCode {
		t.Errorf("error code = %q, want %q", code, expectedCode)
	}
}

// extractText returns the first text content of a result for diagnostics.
func extractText(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}
	return text.Text
}
