package capture

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	// 20ms @ 16kHz mono s16.
	pulseChunkBytes = 640

	sampleRate = 16000
	channels   = 1
)

// MIMEPCM16 tags raw little-endian 16-bit PCM chunks from the Pulse
// source. Wrap with WAV before handing clips to the model.
const MIMEPCM16 = "audio/l16;rate=16000;channels=1"

// PulseSource captures microphone audio from a PulseAudio server.
type PulseSource struct{}

// Start opens a 16kHz mono s16 record stream on the requested device, or
// the default source when Options.Device is empty.
func (PulseSource) Start(ctx context.Context, opts Options) (Stream, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("murmur"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}

	source, err := resolveSource(client, opts.Device)
	if err != nil {
		client.Close()
		return nil, err
	}

	ps := &pulseStream{
		client: client,
		chunks: make(chan []byte, 128),
	}

	writer := pulse.NewWriter(writerFunc(ps.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(sampleRate),
		pulse.RecordBufferFragmentSize(pulseChunkBytes),
		pulse.RecordMediaName("murmur note"),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	ps.stream = stream
	stream.Start()

	go func() {
		<-ctx.Done()
		_ = ps.Stop()
	}()

	return ps, nil
}

// resolveSource picks the named source, or the server default.
func resolveSource(client *pulse.Client, device string) (*pulse.Source, error) {
	device = strings.TrimSpace(device)
	if device == "" || device == "default" {
		source, err := client.DefaultSource()
		if err != nil {
			return nil, fmt.Errorf("read default source: %w", err)
		}
		return source, nil
	}
	source, err := client.SourceByID(device)
	if err != nil {
		return nil, fmt.Errorf("resolve source %q: %w", device, err)
	}
	return source, nil
}

// pulseStream adapts one Pulse record stream to the Stream interface.
type pulseStream struct {
	client *pulse.Client
	stream *pulse.RecordStream

	chunks chan []byte

	mu       sync.Mutex
	pending  []byte
	stopped  bool
	inflight sync.WaitGroup
}

func (s *pulseStream) Chunks() <-chan []byte { return s.chunks }

func (s *pulseStream) MIMEType() string { return MIMEPCM16 }

// Stop halts the stream, flushes residual PCM, and closes Chunks exactly once.
func (s *pulseStream) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	if s.stream != nil {
		s.stream.Stop()
		s.stream.Close()
	}
	if s.client != nil {
		s.client.Close()
	}

	s.inflight.Wait()

	s.mu.Lock()
	pending := append([]byte(nil), s.pending...)
	s.pending = nil
	s.mu.Unlock()

	if len(pending) > 0 {
		select {
		case s.chunks <- pending:
		default:
		}
	}

	close(s.chunks)
	return nil
}

// onPCM receives raw Pulse frames and emits fixed-size slices to s.chunks.
func (s *pulseStream) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return len(buffer), nil
	}
	s.inflight.Add(1)
	s.pending = append(s.pending, buffer...)

	var out [][]byte
	for len(s.pending) >= pulseChunkBytes {
		chunk := make([]byte, pulseChunkBytes)
		copy(chunk, s.pending[:pulseChunkBytes])
		s.pending = s.pending[pulseChunkBytes:]
		out = append(out, chunk)
	}
	s.mu.Unlock()

	for _, chunk := range out {
		select {
		case s.chunks <- chunk:
		default:
			// Consumer fell behind; drop rather than block the Pulse callback.
		}
	}

	s.inflight.Done()
	return len(buffer), nil
}

// writerFunc adapts a function to pulse's writer interface.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
