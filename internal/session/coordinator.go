// Package session owns the single active note and the rule for switching
// it. Every pipeline run captures the coordinator's generation at start;
// results arriving after the active note changed are dropped rather than
// overwriting the new note.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hpungsan/murmur/internal/capture"
	"github.com/hpungsan/murmur/internal/errors"
	"github.com/hpungsan/murmur/internal/note"
	"github.com/hpungsan/murmur/internal/pipeline"
	"github.com/hpungsan/murmur/internal/store"
)

// Coordinator tracks the active note and ties capture, pipeline, and
// store together for one editing surface.
type Coordinator struct {
	logger  *slog.Logger
	store   *store.Store
	runner  *pipeline.Runner
	capture *capture.Session

	mu         sync.Mutex
	active     note.Note
	generation uint64
	listeners  []func()
}

// New creates a coordinator with a fresh empty active note.
func New(st *store.Store, runner *pipeline.Runner, capSess *capture.Session, logger *slog.Logger) (*Coordinator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fresh, err := note.New()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &Coordinator{
		logger:  logger,
		store:   st,
		runner:  runner,
		capture: capSess,
		active:  *fresh,
	}, nil
}

// Subscribe registers a listener fired whenever the active note changes.
func (c *Coordinator) Subscribe(l func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Active returns a snapshot of the active note.
func (c *Coordinator) Active() note.Note {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Generation returns the current generation tag.
func (c *Coordinator) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// NewNote abandons whatever is in flight and swaps in a fresh empty
// active note. A recording in progress is force-stopped and its audio
// discarded without running the pipeline. In-flight pipeline runs keep
// their old generation and are dropped when they try to commit.
func (c *Coordinator) NewNote() (note.Note, error) {
	if c.capture != nil && c.capture.IsRecording() {
		c.capture.Discard()
	}

	fresh, err := note.New()
	if err != nil {
		return note.Note{}, errors.NewInternal(err)
	}

	c.mu.Lock()
	c.active = *fresh
	c.generation++
	c.mu.Unlock()

	c.refresh()
	return *fresh, nil
}

// Select swaps the active note to an existing persisted note. A missing
// id is a no-op.
func (c *Coordinator) Select(id string) bool {
	n, ok := c.store.Get(id)
	if !ok {
		return false
	}

	c.mu.Lock()
	c.active = n
	c.generation++
	c.mu.Unlock()

	c.refresh()
	return true
}

// AfterDelete restores the invariant that an active note always exists:
// deleting the active note yields a fresh empty one.
func (c *Coordinator) AfterDelete(id string) error {
	c.mu.Lock()
	wasActive := c.active.ID == id
	c.mu.Unlock()

	if !wasActive {
		return nil
	}
	_, err := c.NewNote()
	return err
}

// Delete removes a note from the store and repairs the active reference.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	found, err := c.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return errors.NewNotFound(id)
	}
	return c.AfterDelete(id)
}

// Record begins a capture attempt for the active note.
func (c *Coordinator) Record(ctx context.Context) error {
	if c.capture == nil {
		return errors.NewInputAccessFailed(nil)
	}
	return c.capture.Start(ctx)
}

// StopAndProcess finalizes the recording and runs the pipeline against
// the active note. Stopping when not recording is a no-op.
func (c *Coordinator) StopAndProcess(ctx context.Context, status func(string)) (pipeline.Result, error) {
	if c.capture == nil {
		return pipeline.Result{}, errors.NewInputAccessFailed(nil)
	}

	clip, err := c.capture.Stop()
	if err != nil {
		return pipeline.Result{}, err
	}
	if len(clip.Bytes) == 0 {
		// Idempotent stop on a session that was not recording.
		return pipeline.Result{}, nil
	}
	clip = capture.WrapWAV(clip)

	c.mu.Lock()
	c.active.DurationMS = clip.Duration.Milliseconds()
	c.mu.Unlock()

	return c.Ingest(ctx, []pipeline.File{
		{Name: "recording.wav", Bytes: clip.Bytes, MIMEType: clip.MIMEType},
	}, status)
}

// Ingest runs the pipeline over the given files, committing results to
// the active note unless it changes mid-run.
func (c *Coordinator) Ingest(ctx context.Context, files []pipeline.File, status func(string)) (pipeline.Result, error) {
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	return c.runner.Run(ctx, files, pipeline.Hooks{
		Status:         status,
		CommitRaw:      func(ctx context.Context, raw string) bool { return c.commitRaw(ctx, gen, raw) },
		CommitPolished: func(ctx context.Context, polished, title string) bool { return c.commitPolished(ctx, gen, polished, title) },
	})
}

// commitRaw writes the raw transcript into the active note when the run
// is still current, then persists.
func (c *Coordinator) commitRaw(ctx context.Context, gen uint64, raw string) bool {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return false
	}
	c.active.RawTranscription = raw
	n := c.active
	c.mu.Unlock()

	if err := c.store.Upsert(ctx, n); err != nil {
		c.logger.Warn("persist after transcription failed", "note", n.ID, "error", err)
	}
	c.refresh()
	return true
}

// commitPolished writes the polished text and title when still current.
func (c *Coordinator) commitPolished(ctx context.Context, gen uint64, polished, title string) bool {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return false
	}
	c.active.PolishedNote = polished
	if title != "" {
		c.active.Title = title
	}
	n := c.active
	c.mu.Unlock()

	if err := c.store.Upsert(ctx, n); err != nil {
		c.logger.Warn("persist after polishing failed", "note", n.ID, "error", err)
	}
	c.refresh()
	return true
}

// refresh fires active-note listeners outside the lock.
func (c *Coordinator) refresh() {
	c.mu.Lock()
	listeners := make([]func(), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, l := range listeners {
		l()
	}
}
