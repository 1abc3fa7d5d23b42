package note

// Note represents one persisted voice note. Fields mirror the on-disk
// record stored in the "notes" slot.
type Note struct {
	// ID is a ULID that uniquely identifies this note. Assigned at
	// creation, immutable afterwards.
	ID string `json:"id"`

	// Title is the human-readable title, derived from the polished text
	// unless the note has none yet.
	Title string `json:"title"`

	// RawTranscription is the unpolished transcript text. Batch ingests
	// append to it before a single polishing pass.
	RawTranscription string `json:"rawTranscription"`

	// PolishedNote is the markdown-flavored formatted text. It may lag
	// RawTranscription while a pipeline run is in flight.
	PolishedNote string `json:"polishedNote"`

	// CreatedAt is the Unix millisecond timestamp when the note was
	// created. Immutable; used for ordering and export filenames.
	CreatedAt int64 `json:"timestamp"`

	// DurationMS is the recorded audio duration in milliseconds, zero for
	// file ingests.
	DurationMS int64 `json:"duration,omitempty"`
}

// HasContent reports whether the note qualifies for persistence. Empty
// notes are never written to the collection.
func (n *Note) HasContent() bool {
	return n != nil && (trimmed(n.RawTranscription) != "" || trimmed(n.PolishedNote) != "")
}

// WordCount recomputes the word count from the current text rather than
// trusting a stored value. Polished text wins when present.
func (n *Note) WordCount() int {
	text := n.PolishedNote
	if trimmed(text) == "" {
		text = n.RawTranscription
	}
	return countWords(text)
}
