// Package pipeline runs the audio-to-note sequence: transcribe each input,
// concatenate, polish once, extract a title, and commit through the
// caller's hooks. Stage failures are converted to taxonomy errors at the
// stage boundary and never retried.
package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hpungsan/murmur/internal/errors"
	"github.com/hpungsan/murmur/internal/note"
)

// Transcriber converts an audio payload into plain text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Polisher formats a raw transcript into markdown-flavored text.
type Polisher interface {
	Polish(ctx context.Context, raw string) (string, error)
}

// Model is the external collaborator behind both stages.
type Model interface {
	Transcriber
	Polisher
}

// File is one audio input to a run.
type File struct {
	Name     string
	Bytes    []byte
	MIMEType string
}

// Hooks let the session coordinator observe and commit a run. Both commit
// hooks return false when the result is stale (the active note changed
// since the run started); a stale run stops silently.
type Hooks struct {
	// Status receives short stage-specific progress messages. Optional.
	Status func(msg string)

	// CommitRaw stores the concatenated raw transcription.
	CommitRaw func(ctx context.Context, raw string) bool

	// CommitPolished stores the polished text and derived title.
	CommitPolished func(ctx context.Context, polished, title string) bool
}

// Result summarizes one completed run.
type Result struct {
	Raw      string
	Polished string
	Title    string

	// Skipped lists files excluded for exceeding the size threshold.
	Skipped []string

	// Stale is set when a commit hook rejected the run's results.
	Stale bool
}

// Runner executes pipeline runs against one model.
type Runner struct {
	model     Model
	logger    *slog.Logger
	maxBytes  int64
	titleOpts note.TitleOptions
	timeout   time.Duration
}

// NewRunner constructs a Runner. maxBytes bounds per-file input size;
// timeout bounds each model call (0 = none).
func NewRunner(model Model, logger *slog.Logger, maxBytes int64, titleOpts note.TitleOptions, timeout time.Duration) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		model:     model,
		logger:    logger,
		maxBytes:  maxBytes,
		titleOpts: titleOpts,
		timeout:   timeout,
	}
}

// Run executes one full pipeline run over the given files.
//
// Oversized files are excluded before any model call; when every file is
// excluded the run fails with FILE_TOO_LARGE and the network is never
// touched. Files are transcribed sequentially in input order; transcripts
// are concatenated, each prefixed with its filename when more than one
// file is in the batch, and polished in a single pass. A polish failure
// is reported after the raw transcript has already been committed.
func (r *Runner) Run(ctx context.Context, files []File, hooks Hooks) (Result, error) {
	var result Result

	if len(files) == 0 {
		return result, errors.NewInvalidRequest("no audio input provided")
	}

	valid := make([]File, 0, len(files))
	var tooLarge *errors.MurmurError
	for _, f := range files {
		if r.maxBytes > 0 && int64(len(f.Bytes)) > r.maxBytes {
			r.logger.Warn("file exceeds size threshold, excluded from batch",
				"file", f.Name, "bytes", len(f.Bytes), "max", r.maxBytes)
			result.Skipped = append(result.Skipped, f.Name)
			tooLarge = errors.NewFileTooLarge(f.Name, r.maxBytes, int64(len(f.Bytes)))
			continue
		}
		valid = append(valid, f)
	}
	if len(valid) == 0 {
		return result, tooLarge
	}

	transcripts := make([]string, 0, len(valid))
	names := make([]string, 0, len(valid))
	for i, f := range valid {
		r.status(hooks, fmt.Sprintf("Transcribing %s (%d/%d)...", f.Name, i+1, len(valid)))

		text, err := r.transcribeOne(ctx, f)
		if err != nil {
			if len(valid) == 1 {
				return result, err
			}
			// A failing file loses its contribution; the batch continues.
			r.logger.Warn("transcription failed for batch file", "file", f.Name, "error", err)
			continue
		}
		transcripts = append(transcripts, text)
		names = append(names, f.Name)
	}

	if len(transcripts) == 0 {
		return result, errors.NewNoTranscriptions()
	}

	result.Raw = joinTranscripts(names, transcripts, len(valid) > 1)

	if hooks.CommitRaw != nil && !hooks.CommitRaw(ctx, result.Raw) {
		result.Stale = true
		r.logger.Info("raw transcript dropped, active note changed")
		return result, nil
	}

	r.status(hooks, "Polishing note...")
	polished, err := r.polish(ctx, result.Raw)
	if err != nil {
		return result, err
	}
	result.Polished = polished
	result.Title = note.ExtractTitle(polished, r.titleOpts)

	if hooks.CommitPolished != nil && !hooks.CommitPolished(ctx, result.Polished, result.Title) {
		result.Stale = true
		r.logger.Info("polished note dropped, active note changed")
		return result, nil
	}

	r.status(hooks, "Note ready")
	return result, nil
}

// transcribeOne runs the transcription stage for a single file.
func (r *Runner) transcribeOne(ctx context.Context, f File) (string, error) {
	callCtx, cancel := r.stageContext(ctx)
	defer cancel()

	text, err := r.model.Transcribe(callCtx, f.Bytes, f.MIMEType)
	if err != nil {
		if isDeadline(err) {
			return "", errors.NewTimeout("transcription")
		}
		return "", errors.NewInternal(fmt.Errorf("transcribe %s: %w", f.Name, err))
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.NewTranscriptionEmpty()
	}
	return strings.TrimSpace(text), nil
}

// polish runs the single polishing pass over the concatenated text.
func (r *Runner) polish(ctx context.Context, raw string) (string, error) {
	callCtx, cancel := r.stageContext(ctx)
	defer cancel()

	polished, err := r.model.Polish(callCtx, raw)
	if err != nil {
		if isDeadline(err) {
			return "", errors.NewTimeout("polishing")
		}
		return "", errors.NewInternal(fmt.Errorf("polish: %w", err))
	}
	if strings.TrimSpace(polished) == "" {
		return "", errors.NewPolishingEmpty()
	}
	return strings.TrimSpace(polished), nil
}

// stageContext derives the per-call deadline when one is configured.
func (r *Runner) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *Runner) status(hooks Hooks, msg string) {
	if hooks.Status != nil {
		hooks.Status(msg)
	}
}

// joinTranscripts concatenates per-file transcripts in input order. The
// filename header appears only for multi-file batches.
func joinTranscripts(names, transcripts []string, multi bool) string {
	if !multi && len(transcripts) == 1 {
		return transcripts[0]
	}
	sections := make([]string, len(transcripts))
	for i := range transcripts {
		sections[i] = fmt.Sprintf("--- Transcription for %s ---\n\n%s", names[i], transcripts[i])
	}
	return strings.Join(sections, "\n\n")
}

func isDeadline(err error) bool {
	return stderrors.Is(err, context.DeadlineExceeded)
}
