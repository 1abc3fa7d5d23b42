// Package capture manages one recording attempt: acquiring an audio input
// stream, buffering encoded chunks, and finalizing them into a single clip.
package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hpungsan/murmur/internal/errors"
)

// Options are the input-stream preferences passed to a Source. The
// fallback request disables signal processing that some devices reject.
type Options struct {
	Device           string
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// DefaultOptions requests the processed stream most devices prefer.
func DefaultOptions(device string) Options {
	return Options{
		Device:           device,
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
	}
}

// FallbackOptions is the retry configuration used when the default
// request fails.
func FallbackOptions(device string) Options {
	return Options{Device: device}
}

// Stream is one live audio input delivering encoded chunks until stopped.
type Stream interface {
	// Chunks yields encoded fragments in arrival order. The channel is
	// closed by Stop.
	Chunks() <-chan []byte
	// MIMEType is the negotiated encoding of the chunks.
	MIMEType() string
	// Stop releases the underlying input. Safe to call more than once.
	Stop() error
}

// Source acquires audio input streams. PermissionError distinguishes a
// refused request from a device failure.
type Source interface {
	Start(ctx context.Context, opts Options) (Stream, error)
}

// PermissionError marks a Source failure as an access refusal rather than
// a device problem.
type PermissionError struct{ Err error }

func (e *PermissionError) Error() string { return e.Err.Error() }
func (e *PermissionError) Unwrap() error { return e.Err }

// Clip is one finalized recording.
type Clip struct {
	Bytes    []byte
	MIMEType string
	Duration time.Duration
}

// Session owns one recording attempt. It never outlives the attempt:
// chunks are discarded on finalize or on error.
type Session struct {
	source Source
	device string
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	stream    Stream
	chunks    [][]byte
	startedAt time.Time
	drained   chan struct{}
}

// NewSession creates an idle session over the given source.
func NewSession(source Source, device string, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		source: source,
		device: device,
		logger: logger,
		state:  StateIdle,
	}
}

// State returns the current capture state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsRecording reports whether the session is buffering chunks.
func (s *Session) IsRecording() bool {
	return s.State() == StateRecording
}

// StartedAt returns when recording began; zero when not recording.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// transition applies one FSM event under the session lock.
func (s *Session) transition(event Event) error {
	next, err := Transition(s.state, event)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

// Start acquires the input stream and begins buffering. The default
// options are tried first; on failure the fallback options (echo
// cancellation, noise suppression, and auto gain disabled) are retried
// once. Failures are classified as access-denied or device errors and
// leave the session reset to idle.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if err := s.transition(EventRequest); err != nil {
		s.mu.Unlock()
		return errors.NewInvalidRequest(err.Error())
	}
	s.mu.Unlock()

	stream, err := s.source.Start(ctx, DefaultOptions(s.device))
	if err != nil {
		if _, denied := asPermissionError(err); denied {
			s.failAndReset()
			return errors.NewInputAccessDenied(err)
		}
		s.logger.Warn("default capture options rejected, retrying without processing", "error", err)
		stream, err = s.source.Start(ctx, FallbackOptions(s.device))
	}
	if err != nil {
		s.failAndReset()
		if _, denied := asPermissionError(err); denied {
			return errors.NewInputAccessDenied(err)
		}
		return errors.NewInputAccessFailed(err)
	}

	s.mu.Lock()
	if err := s.transition(EventGranted); err != nil {
		s.mu.Unlock()
		_ = stream.Stop()
		return errors.NewInternal(err)
	}
	s.stream = stream
	s.chunks = nil
	s.startedAt = time.Now()
	s.drained = make(chan struct{})
	s.mu.Unlock()

	go s.buffer(stream)
	return nil
}

// buffer accumulates chunks until the stream's channel closes.
func (s *Session) buffer(stream Stream) {
	for chunk := range stream.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		s.mu.Lock()
		s.chunks = append(s.chunks, chunk)
		s.mu.Unlock()
	}
	s.mu.Lock()
	drained := s.drained
	s.mu.Unlock()
	if drained != nil {
		close(drained)
	}
}

// Stop finalizes the recording: the stream is released, buffered chunks
// are concatenated into one clip tagged with the negotiated encoding, and
// the session returns to idle. Zero buffered chunks is an explicit
// empty-capture error, not a zero-length clip. Stopping a session that is
// not recording is a no-op.
func (s *Session) Stop() (Clip, error) {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return Clip{}, nil
	}
	if err := s.transition(EventStop); err != nil {
		s.mu.Unlock()
		return Clip{}, errors.NewInternal(err)
	}
	stream := s.stream
	drained := s.drained
	startedAt := s.startedAt
	s.mu.Unlock()

	_ = stream.Stop()
	if drained != nil {
		<-drained
	}

	s.mu.Lock()
	chunks := s.chunks
	s.chunks = nil
	s.stream = nil
	s.startedAt = time.Time{}
	s.drained = nil
	_ = s.transition(EventFinalized)
	s.mu.Unlock()

	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	if total == 0 {
		return Clip{}, errors.NewEmptyCapture()
	}

	buf := make([]byte, 0, total)
	for _, c := range chunks {
		buf = append(buf, c...)
	}

	return Clip{
		Bytes:    buf,
		MIMEType: stream.MIMEType(),
		Duration: time.Since(startedAt),
	}, nil
}

// Discard releases the stream and drops buffered audio without producing
// a clip. No-op unless recording.
func (s *Session) Discard() {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return
	}
	_ = s.transition(EventStop)
	stream := s.stream
	drained := s.drained
	s.mu.Unlock()

	if stream != nil {
		_ = stream.Stop()
	}
	if drained != nil {
		<-drained
	}

	s.mu.Lock()
	s.chunks = nil
	s.stream = nil
	s.startedAt = time.Time{}
	s.drained = nil
	_ = s.transition(EventFinalized)
	s.mu.Unlock()
}

// failAndReset moves through error back to idle, releasing anything held.
func (s *Session) failAndReset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.transition(EventFail)
	_ = s.transition(EventReset)
	s.chunks = nil
	s.stream = nil
	s.startedAt = time.Time{}
	s.drained = nil
}

func asPermissionError(err error) (*PermissionError, bool) {
	for err != nil {
		if pe, ok := err.(*PermissionError); ok {
			return pe, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}
