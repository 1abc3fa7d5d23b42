package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hpungsan/murmur/internal/config"
	"github.com/hpungsan/murmur/internal/kv"
	"github.com/hpungsan/murmur/internal/note"
	"github.com/hpungsan/murmur/internal/pipeline"
	"github.com/hpungsan/murmur/internal/session"
	"github.com/hpungsan/murmur/internal/store"
)

// cliModel returns canned output for ingest tests.
type cliModel struct{}

func (cliModel) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	return "spoken input from the file", nil
}

func (cliModel) Polish(ctx context.Context, raw string) (string, error) {
	return "# File Notes\n\nSpoken input from the file.", nil
}

// setupEnv creates a temporary store-backed environment for testing.
func setupEnv(t *testing.T) *appEnv {
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
	runner := pipeline.NewRunner(cliModel{}, logger, cfg.MaxUploadBytes, note.DefaultTitleOptions(), time.Minute)

	coord, err := session.New(st, runner, nil, logger)
	if err != nil {
		t.Fatalf("failed to create coordinator: %v", err)
	}

	return &appEnv{store: st, coord: coord, cfg: cfg, logger: logger}
}

// seedNote persists a note and returns its ID.
func seedNote(t *testing.T, env *appEnv, title, polished string) string {
	t.Helper()
	n, err := note.New()
	if err != nil {
		t.Fatalf("note.New: %v", err)
	}
	n.Title = title
	n.RawTranscription = "raw " + title
	n.PolishedNote = polished
	if err := env.store.Upsert(context.Background(), *n); err != nil {
		t.Fatalf("seed note %q: %v", title, err)
	}
	return n.ID
}

// runApp runs the CLI with captured stdout.
func runApp(t *testing.T, env *appEnv, args ...string) (string, error) {
	t.Helper()

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := newCLIApp(env).Run(append([]string{"murmur"}, args...))

	w.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	os.Stdout = oldStdout

	return buf.String(), err
}

func TestCLINew(t *testing.T) {
	env := setupEnv(t)

	out, err := runApp(t, env, "new")
	if err != nil {
		t.Fatalf("new command failed: %v", err)
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if resp.ID == "" {
		t.Error("expected a note id")
	}
	// Empty note is not persisted
	if env.store.Len() != 0 {
		t.Errorf("store.Len() = %d, want 0", env.store.Len())
	}
}

func TestCLIList(t *testing.T) {
	env := setupEnv(t)
	seedNote(t, env, "First", "a")
	seedNote(t, env, "Second", "b")

	out, err := runApp(t, env, "list")
	if err != nil {
		t.Fatalf("list command failed: %v", err)
	}

	var resp struct {
		Notes []noteSummary `json:"notes"`
		Count int           `json:"count"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if resp.Count != 2 {
		t.Errorf("count = %d, want 2", resp.Count)
	}
	if len(resp.Notes) != 2 || resp.Notes[0].Title != "Second" {
		t.Errorf("unexpected ordering: %+v", resp.Notes)
	}
}

func TestCLISearch(t *testing.T) {
	env := setupEnv(t)
	seedNote(t, env, "Grocery Run", "buy milk")
	seedNote(t, env, "Meeting", "quarterly plans")

	out, err := runApp(t, env, "search", "grocery")
	if err != nil {
		t.Fatalf("search command failed: %v", err)
	}

	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if resp.Count != 1 {
		t.Errorf("count = %d, want 1", resp.Count)
	}
}

func TestCLIShow(t *testing.T) {
	env := setupEnv(t)
	id := seedNote(t, env, "Show Me", "full body")

	out, err := runApp(t, env, "show", id)
	if err != nil {
		t.Fatalf("show command failed: %v", err)
	}

	var n note.Note
	if err := json.Unmarshal([]byte(out), &n); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if n.PolishedNote != "full body" {
		t.Errorf("polished = %q", n.PolishedNote)
	}
}

func TestCLIShowMissing(t *testing.T) {
	env := setupEnv(t)

	_, err := runApp(t, env, "show", "NONEXISTENT")
	if err == nil {
		t.Fatal("expected error for missing note")
	}
	if !strings.Contains(err.Error(), "NOT_FOUND") {
		t.Errorf("error = %v, want NOT_FOUND", err)
	}
}

func TestCLIDelete(t *testing.T) {
	env := setupEnv(t)
	id := seedNote(t, env, "Doomed", "going away")

	if _, err := runApp(t, env, "delete", id); err != nil {
		t.Fatalf("delete command failed: %v", err)
	}
	if _, ok := env.store.Get(id); ok {
		t.Error("expected note removed from store")
	}
}

func TestCLIPurge(t *testing.T) {
	env := setupEnv(t)
	seedNote(t, env, "One", "a")
	seedNote(t, env, "Two", "b")

	// Without --confirm nothing is deleted
	if _, err := runApp(t, env, "purge"); err == nil {
		t.Fatal("expected error without --confirm")
	}
	if env.store.Len() != 2 {
		t.Fatalf("store.Len() = %d, want 2", env.store.Len())
	}

	out, err := runApp(t, env, "purge", "--confirm")
	if err != nil {
		t.Fatalf("purge command failed: %v", err)
	}
	var resp struct {
		Purged int `json:"purged"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if resp.Purged != 2 {
		t.Errorf("purged = %d, want 2", resp.Purged)
	}
	if env.store.Len() != 0 {
		t.Errorf("store.Len() = %d, want 0", env.store.Len())
	}
}

func TestCLIIngest(t *testing.T) {
	env := setupEnv(t)

	path := filepath.Join(t.TempDir(), "memo.wav")
	if err := os.WriteFile(path, []byte("fake-wav-bytes"), 0600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	out, err := runApp(t, env, "ingest", path)
	if err != nil {
		t.Fatalf("ingest command failed: %v", err)
	}

	var n note.Note
	if err := json.Unmarshal([]byte(out), &n); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if n.Title != "File Notes" {
		t.Errorf("title = %q, want %q", n.Title, "File Notes")
	}
	if env.store.Len() != 1 {
		t.Errorf("store.Len() = %d, want 1", env.store.Len())
	}
}

func TestCLIExport(t *testing.T) {
	env := setupEnv(t)
	id := seedNote(t, env, "Export Me", "body text")

	outPath := filepath.Join(t.TempDir(), "note.md")
	out, err := runApp(t, env, "export", "--output", outPath, id)
	if err != nil {
		t.Fatalf("export command failed: %v", err)
	}

	var resp struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if resp.Path != outPath {
		t.Errorf("path = %q, want %q", resp.Path, outPath)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.HasPrefix(string(data), "# Export Me") {
		t.Errorf("export content = %q", data)
	}
}

func TestCLITheme(t *testing.T) {
	env := setupEnv(t)

	out, err := runApp(t, env, "theme")
	if err != nil {
		t.Fatalf("theme command failed: %v", err)
	}
	if !strings.Contains(out, `"dark"`) {
		t.Errorf("default theme output = %q", out)
	}

	if _, err := runApp(t, env, "theme", "light"); err != nil {
		t.Fatalf("set theme failed: %v", err)
	}
	if got := env.store.Theme(context.Background()); got != store.ThemeLight {
		t.Errorf("theme = %q, want %q", got, store.ThemeLight)
	}

	if _, err := runApp(t, env, "theme", "sepia"); err == nil {
		t.Error("expected error for unknown theme")
	}
}

func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{"no args", []string{"murmur"}, false},
		{"known command", []string{"murmur", "list"}, true},
		{"record command", []string{"murmur", "record"}, true},
		{"help flag", []string{"murmur", "--help"}, true},
		{"version flag", []string{"murmur", "-v"}, true},
		{"unknown arg", []string{"murmur", "bogus"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			os.Args = tt.args
			defer func() { os.Args = oldArgs }()

			if got := isCLIMode(); got != tt.expected {
				t.Errorf("isCLIMode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{"no args", []string{"murmur"}, false},
		{"help flag", []string{"murmur", "--help"}, true},
		{"help command", []string{"murmur", "help"}, true},
		{"version flag", []string{"murmur", "--version"}, true},
		{"regular command", []string{"murmur", "list"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			os.Args = tt.args
			defer func() { os.Args = oldArgs }()

			if got := isHelpOrVersion(); got != tt.expected {
				t.Errorf("isHelpOrVersion() = %v, want %v", got, tt.expected)
			}
		})
	}
}
