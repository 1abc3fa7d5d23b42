// Package export renders notes into downloadable byte sequences with
// suggested filenames. The templates are fixed; the data contract is the
// note record itself.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/murmur/internal/errors"
	"github.com/hpungsan/murmur/internal/note"
)

// Format selects the export encoding.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
	FormatJSON     Format = "json"
)

// ParseFormat validates a user-supplied format selector.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatMarkdown:
		return FormatMarkdown, nil
	case FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", errors.NewInvalidRequest(fmt.Sprintf("unknown export format %q (markdown|txt|json)", s))
	}
}

// Extension returns the filename extension for a format.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return "md"
	case FormatJSON:
		return "json"
	default:
		return "txt"
	}
}

// Render produces the export bytes and suggested filename for one note.
// JSON is the pretty-printed note record verbatim; markdown and txt
// interpolate title, date, polished text, and raw transcription into a
// fixed template.
func Render(n note.Note, format Format) ([]byte, string, error) {
	name := Filename(n, format)

	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(n, "", "  ")
		if err != nil {
			return nil, "", errors.NewInternal(err)
		}
		return data, name, nil
	case FormatMarkdown, FormatText:
		return renderTemplate(n, format), name, nil
	default:
		return nil, "", errors.NewInvalidRequest(fmt.Sprintf("unknown export format %q", format))
	}
}

// RenderAll applies the per-note template across a collection, or emits
// one JSON array for the json format.
func RenderAll(notes []note.Note, format Format) ([]byte, string, error) {
	stamp := time.Now().Format("2006-01-02")
	name := fmt.Sprintf("all-notes-%s.%s", stamp, format.Extension())

	if format == FormatJSON {
		if notes == nil {
			notes = []note.Note{}
		}
		data, err := json.MarshalIndent(notes, "", "  ")
		if err != nil {
			return nil, "", errors.NewInternal(err)
		}
		return data, name, nil
	}

	var buf bytes.Buffer
	for i, n := range notes {
		if i > 0 {
			buf.WriteString("\n\n---\n\n")
		}
		buf.Write(renderTemplate(n, format))
	}
	return buf.Bytes(), name, nil
}

// renderTemplate fills the fixed markdown/txt template.
func renderTemplate(n note.Note, format Format) []byte {
	title := strings.TrimSpace(n.Title)
	if title == "" {
		title = "Untitled Note"
	}
	date := time.UnixMilli(n.CreatedAt).Format("January 2, 2006 3:04 PM")

	var buf bytes.Buffer
	if format == FormatMarkdown {
		fmt.Fprintf(&buf, "# %s\n\n", title)
		fmt.Fprintf(&buf, "*%s*\n\n", date)
		if strings.TrimSpace(n.PolishedNote) != "" {
			fmt.Fprintf(&buf, "%s\n\n", strings.TrimSpace(n.PolishedNote))
		}
		if strings.TrimSpace(n.RawTranscription) != "" {
			fmt.Fprintf(&buf, "## Raw Transcription\n\n%s\n", strings.TrimSpace(n.RawTranscription))
		}
	} else {
		fmt.Fprintf(&buf, "%s\n%s\n\n", title, date)
		if strings.TrimSpace(n.PolishedNote) != "" {
			fmt.Fprintf(&buf, "%s\n\n", strings.TrimSpace(n.PolishedNote))
		}
		if strings.TrimSpace(n.RawTranscription) != "" {
			fmt.Fprintf(&buf, "--- Raw Transcription ---\n\n%s\n", strings.TrimSpace(n.RawTranscription))
		}
	}
	return buf.Bytes()
}

// Filename builds the suggested download name: sanitized lower-cased
// title plus the note's ISO creation date.
func Filename(n note.Note, format Format) string {
	title := sanitizeTitle(n.Title)
	if title == "" {
		title = "untitled-note"
	}
	date := time.UnixMilli(n.CreatedAt).Format("2006-01-02")
	return fmt.Sprintf("%s-%s.%s", title, date, format.Extension())
}

// sanitizeTitle lower-cases the title and replaces every run of
// non-alphanumeric characters with a single dash.
func sanitizeTitle(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('-')
		}
	}
	out := b.String()

	// Collapse multiple dashes
	for strings.Contains(out, "--") {
		out = strings.ReplaceAll(out, "--", "-")
	}
	return strings.Trim(out, "-")
}
