package export

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/hpungsan/murmur/internal/note"
)

func sampleNote() note.Note {
	return note.Note{
		ID:               "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		Title:            "Grocery Run",
		RawTranscription: "so I need milk and eggs",
		PolishedNote:     "# Grocery Run\n\n- Milk\n- Eggs",
		CreatedAt:        1788264000000, // 2026-09-01 12:00 UTC
	}
}

func TestParseFormat(t *testing.T) {
	cases := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"markdown", FormatMarkdown, false},
		{"TXT", FormatText, false},
		{" json ", FormatJSON, false},
		{"pdf", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := ParseFormat(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseFormat(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFormat(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRenderJSONRoundTrips(t *testing.T) {
	n := sampleNote()
	n.DurationMS = 4200

	data, name, err := Render(n, FormatJSON)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasSuffix(name, ".json") {
		t.Errorf("filename %q missing .json extension", name)
	}

	var back note.Note
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal exported JSON: %v", err)
	}
	if !reflect.DeepEqual(n, back) {
		t.Errorf("round-trip mismatch:\n got %+v\nwant %+v", back, n)
	}
}

func TestRenderMarkdown(t *testing.T) {
	data, name, err := Render(sampleNote(), FormatMarkdown)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := string(data)
	if !strings.HasPrefix(out, "# Grocery Run\n") {
		t.Errorf("missing title heading:\n%s", out)
	}
	if !strings.Contains(out, "- Milk\n- Eggs") {
		t.Errorf("missing polished body:\n%s", out)
	}
	if !strings.Contains(out, "## Raw Transcription\n\nso I need milk and eggs") {
		t.Errorf("missing raw section:\n%s", out)
	}
	if name != "grocery-run-2026-09-01.md" {
		t.Errorf("filename = %q", name)
	}
}

func TestRenderText(t *testing.T) {
	data, name, err := Render(sampleNote(), FormatText)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := string(data)
	if !strings.HasPrefix(out, "Grocery Run\n") {
		t.Errorf("missing title line:\n%s", out)
	}
	if !strings.Contains(out, "--- Raw Transcription ---") {
		t.Errorf("missing raw divider:\n%s", out)
	}
	if !strings.HasSuffix(name, ".txt") {
		t.Errorf("filename = %q", name)
	}
}

func TestRenderUntitled(t *testing.T) {
	n := sampleNote()
	n.Title = ""

	data, name, err := Render(n, FormatMarkdown)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasPrefix(string(data), "# Untitled Note\n") {
		t.Errorf("expected placeholder title:\n%s", data)
	}
	if !strings.HasPrefix(name, "untitled-note-") {
		t.Errorf("filename = %q", name)
	}
}

func TestRenderAllJSON(t *testing.T) {
	a := sampleNote()
	b := sampleNote()
	b.ID = "01BX5ZZKBKACTAV9WEVGEMMVS0"
	b.Title = "Second"

	data, name, err := RenderAll([]note.Note{a, b}, FormatJSON)
	if err != nil {
		t.Fatalf("RenderAll: %v", err)
	}
	var back []note.Note
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(back) != 2 || back[1].Title != "Second" {
		t.Errorf("unexpected collection: %+v", back)
	}
	if !strings.HasPrefix(name, "all-notes-") {
		t.Errorf("filename = %q", name)
	}
}

func TestRenderAllEmptyJSON(t *testing.T) {
	data, _, err := RenderAll(nil, FormatJSON)
	if err != nil {
		t.Fatalf("RenderAll: %v", err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("expected empty array, got %q", data)
	}
}

func TestRenderAllMarkdownSeparators(t *testing.T) {
	a := sampleNote()
	b := sampleNote()
	b.Title = "Second"

	data, _, err := RenderAll([]note.Note{a, b}, FormatMarkdown)
	if err != nil {
		t.Fatalf("RenderAll: %v", err)
	}
	if strings.Count(string(data), "\n\n---\n\n") != 1 {
		t.Errorf("expected one separator:\n%s", data)
	}
}

func TestSanitizeTitle(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Grocery Run", "grocery-run"},
		{"Hello, World!", "hello-world"},
		{"  spaced  out  ", "spaced-out"},
		{"///", ""},
		{"Ünïcödé", "n-c-d"},
	}
	for _, tc := range cases {
		if got := sanitizeTitle(tc.in); got != tc.want {
			t.Errorf("sanitizeTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
