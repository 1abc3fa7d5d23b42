package note

import (
	"strings"
	"unicode/utf8"
)

// TitleOptions controls the fallback title heuristic. The thresholds are
// deliberately configuration, not constants.
type TitleOptions struct {
	// MinChars rejects fallback candidates whose trimmed length does not
	// exceed this value.
	MinChars int

	// MaxChars is the maximum display length before the candidate is
	// truncated with an ellipsis.
	MaxChars int
}

// DefaultTitleOptions returns the stock thresholds.
func DefaultTitleOptions() TitleOptions {
	return TitleOptions{MinChars: 3, MaxChars: 60}
}

// markupCutset covers the leading markdown decorations stripped from
// fallback title candidates.
const markupCutset = "#*-_`>[]() \t"

// ExtractTitle derives a title from polished markdown text.
//
// The first line beginning with a heading marker wins, marker stripped.
// Otherwise the first non-empty line with leading markup stripped is used,
// truncated to opts.MaxChars, provided its trimmed length exceeds
// opts.MinChars. Returns "" when no line qualifies.
func ExtractTitle(polished string, opts TitleOptions) string {
	if opts.MaxChars <= 0 {
		opts = DefaultTitleOptions()
	}

	lines := strings.Split(polished, "\n")
	for _, line := range lines {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "#") {
			title := strings.TrimSpace(strings.TrimLeft(t, "# "))
			if title != "" {
				return title
			}
		}
	}

	for _, line := range lines {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		candidate := strings.TrimSpace(strings.TrimLeft(t, markupCutset))
		if utf8.RuneCountInString(candidate) <= opts.MinChars {
			continue
		}
		return truncateTitle(candidate, opts.MaxChars)
	}

	return ""
}

// truncateTitle trims a candidate to maxChars runes, appending an ellipsis
// when anything was cut.
func truncateTitle(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return strings.TrimSpace(string(runes[:maxChars])) + "..."
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}

// countWords counts whitespace-separated tokens.
func countWords(s string) int {
	return len(strings.Fields(s))
}
