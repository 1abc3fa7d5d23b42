// Package store owns the persisted note collection. The in-memory
// collection and the durable "notes" slot are kept identical: every
// mutating operation flushes before it returns, then notifies listeners.
package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/hpungsan/murmur/internal/kv"
	"github.com/hpungsan/murmur/internal/note"
)

// Slot names in the durable store.
const (
	NotesSlot = "notes"
	ThemeSlot = "theme"
)

// Listener is invoked after every successful mutation, once the collection
// and the durable slot agree. Used by presentation surfaces to refresh.
type Listener func()

// Store is the note collection plus its persistence binding.
type Store struct {
	slots  *kv.Store
	logger *slog.Logger

	mu        sync.RWMutex
	notes     []note.Note
	listeners []Listener
}

// New creates a Store over the given slot store. Call Load before use.
func New(slots *kv.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{slots: slots, logger: logger}
}

// Subscribe registers a refresh listener.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Load deserializes the collection from the notes slot. A missing or
// corrupt slot yields an empty collection; Load never fails for that.
func (s *Store) Load(ctx context.Context) error {
	data, ok, err := s.slots.Get(ctx, NotesSlot)
	if err != nil {
		return err
	}

	var notes []note.Note
	if ok {
		if err := json.Unmarshal(data, &notes); err != nil {
			// Corrupt persisted data is treated as absence, not a fatal
			// error. The slot is locally controlled.
			s.logger.Warn("notes slot unreadable, starting empty", "error", err)
			notes = nil
		}
	}

	s.mu.Lock()
	s.notes = notes
	s.mu.Unlock()
	return nil
}

// Flush serializes the full collection to the notes slot.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.RLock()
	notes := s.notes
	if notes == nil {
		notes = []note.Note{}
	}
	data, err := json.Marshal(notes)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	return s.slots.Put(ctx, NotesSlot, data)
}

// Upsert inserts or replaces a note. A note without content is skipped
// entirely; the collection and slot are untouched. Existing notes are
// replaced in place, preserving position; new notes go to the front.
func (s *Store) Upsert(ctx context.Context, n note.Note) error {
	if !n.HasContent() {
		return nil
	}

	s.mu.Lock()
	replaced := false
	for i := range s.notes {
		if s.notes[i].ID == n.ID {
			s.notes[i] = n
			replaced = true
			break
		}
	}
	if !replaced {
		s.notes = append([]note.Note{n}, s.notes...)
	}
	s.mu.Unlock()

	if err := s.Flush(ctx); err != nil {
		return err
	}
	s.notify()
	return nil
}

// Delete removes a note by id. Returns whether it was present. The slot is
// flushed either way so the two views cannot diverge.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	found := false
	for i := range s.notes {
		if s.notes[i].ID == id {
			s.notes = append(s.notes[:i], s.notes[i+1:]...)
			found = true
			break
		}
	}
	s.mu.Unlock()

	if err := s.Flush(ctx); err != nil {
		return found, err
	}
	s.notify()
	return found, nil
}

// Clear empties the entire collection. Confirmation is the caller's job.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.notes = nil
	s.mu.Unlock()

	if err := s.Flush(ctx); err != nil {
		return err
	}
	s.notify()
	return nil
}

// Get returns a note by id.
func (s *Store) Get(id string) (note.Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.notes {
		if s.notes[i].ID == id {
			return s.notes[i], true
		}
	}
	return note.Note{}, false
}

// All returns a snapshot of the collection in its persisted order.
func (s *Store) All() []note.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]note.Note, len(s.notes))
	copy(out, s.notes)
	return out
}

// Len returns the collection size.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notes)
}

// Search matches query as a case-insensitive substring of title, raw
// transcription, or polished text. An empty or whitespace query returns
// the full collection in its existing order.
func (s *Store) Search(query string) []note.Note {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.All()
	}
	needle := strings.ToLower(query)

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]note.Note, 0)
	for i := range s.notes {
		n := &s.notes[i]
		if strings.Contains(strings.ToLower(n.Title), needle) ||
			strings.Contains(strings.ToLower(n.RawTranscription), needle) ||
			strings.Contains(strings.ToLower(n.PolishedNote), needle) {
			out = append(out, *n)
		}
	}
	return out
}

// notify fires listeners outside the collection lock.
func (s *Store) notify() {
	s.mu.RLock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, l := range listeners {
		l()
	}
}
