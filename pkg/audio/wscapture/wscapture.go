// Package wscapture implements [audio.CaptureSource] over a WebSocket stream.
//
// A browser or native client connects to the server, negotiates a codec via
// the Sec-WebSocket-Protocol header ("opus" or "pcm"), and streams binary
// audio messages. Opus packets are decoded to 48 kHz PCM; PCM messages are
// taken as little-endian 16-bit mono at 48 kHz. The source maintains a
// rolling analysis window for Frame and accumulates raw PCM for Chunk.
package wscapture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"layeh.com/gopus"

	"github.com/quastler/openfloor/pkg/audio"
)

// Codec identifies the wire format of incoming binary messages.
type Codec string

const (
	// CodecOpus expects one Opus packet per binary message.
	CodecOpus Codec = "opus"

	// CodecPCM expects raw little-endian 16-bit PCM per binary message.
	CodecPCM Codec = "pcm"
)

const (
	sampleRate = 48000

	// opusFrameSize is the number of samples per channel in a 20 ms packet
	// at 48 kHz, the frame size WebRTC-style clients emit.
	opusFrameSize = 960

	// defaultFFTSize yields 512 spectrum bins, enough to resolve the speech
	// band at 48 kHz.
	defaultFFTSize = 1024
)

// Option configures a [Source].
type Option func(*Source)

// WithCodec sets the expected wire format. Default: [CodecOpus].
func WithCodec(c Codec) Option {
	return func(s *Source) {
		s.codec = c
	}
}

// WithChannels sets the channel count of the incoming audio. Interleaved
// channels are downmixed for analysis. Default: 1.
func WithChannels(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.channels = n
		}
	}
}

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(s *Source) {
		s.log = log
	}
}

// WithControl installs a handler for text messages received on the same
// connection. Clients use the text channel for control traffic (playback
// state, for example) alongside the binary audio stream. The handler runs on
// the read loop goroutine, so it must not block. Default: text messages are
// dropped.
func WithControl(fn func(msg []byte)) Option {
	return func(s *Source) {
		s.onControl = fn
	}
}

// Source adapts one accepted WebSocket connection into an
// [audio.CaptureSource]. Create it with [Accept] or [New].
type Source struct {
	conn      *websocket.Conn
	codec     Codec
	channels  int
	log       *slog.Logger
	onControl func([]byte)

	analyzer *audio.SpectrumAnalyzer
	dec      *gopus.Decoder

	mu      sync.Mutex
	window  []float64 // rolling unit samples for spectral analysis
	pending []byte    // raw PCM accumulated since the last Chunk
	readErr error

	started  bool
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// Compile-time interface assertion.
var _ audio.CaptureSource = (*Source)(nil)

// Accept upgrades an HTTP request to a WebSocket and wraps it in a [Source].
// The codec is taken from the negotiated subprotocol when the client offers
// one; options may still override it.
func Accept(w http.ResponseWriter, r *http.Request, opts ...Option) (*Source, error) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{string(CodecOpus), string(CodecPCM)},
	})
	if err != nil {
		return nil, fmt.Errorf("wscapture: accept: %w", err)
	}

	codec := CodecOpus
	if p := conn.Subprotocol(); p != "" {
		codec = Codec(p)
	}
	src, err := New(conn, append([]Option{WithCodec(codec)}, opts...)...)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "capture setup failed")
		return nil, err
	}
	return src, nil
}

// New wraps an already-established WebSocket connection.
func New(conn *websocket.Conn, opts ...Option) (*Source, error) {
	s := &Source{
		conn:     conn,
		codec:    CodecOpus,
		channels: 1,
		log:      slog.Default(),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.codec != CodecOpus && s.codec != CodecPCM {
		return nil, fmt.Errorf("wscapture: unsupported codec %q", s.codec)
	}

	analyzer, err := audio.NewSpectrumAnalyzer(defaultFFTSize)
	if err != nil {
		return nil, fmt.Errorf("wscapture: analyzer: %w", err)
	}
	s.analyzer = analyzer

	if s.codec == CodecOpus {
		dec, err := gopus.NewDecoder(sampleRate, s.channels)
		if err != nil {
			return nil, fmt.Errorf("wscapture: create opus decoder: %w", err)
		}
		s.dec = dec
	}
	return s, nil
}

// Start begins reading audio messages from the connection.
func (s *Source) Start(ctx context.Context) error {
	if s.started {
		return errors.New("wscapture: already started")
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	go s.readLoop(ctx)
	return nil
}

// Stop cancels the read loop and closes the connection. Safe to call more
// than once.
func (s *Source) Stop() error {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.conn.Close(websocket.StatusNormalClosure, "capture stopped")
		if s.started {
			<-s.done
		}
	})
	return nil
}

// Frame returns the analysis frame for the most recent window of samples.
// Before any audio has arrived it returns a zero frame.
func (s *Source) Frame() audio.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.window) == 0 {
		return audio.Frame{SampleRate: sampleRate}
	}
	samples := make([]float64, len(s.window))
	copy(samples, s.window)
	return audio.Frame{
		Samples:    samples,
		Spectrum:   s.analyzer.Magnitudes(s.window),
		SampleRate: sampleRate,
	}
}

// Chunk drains the raw PCM accumulated since the previous call.
func (s *Source) Chunk() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.pending
	s.pending = nil
	return p
}

// ContentType reports the MIME type of Chunk bytes. Opus input is decoded,
// so chunks are always PCM.
func (s *Source) ContentType() string {
	return fmt.Sprintf("audio/pcm;rate=%d", sampleRate)
}

// Err returns the error that ended the read loop, if any. A normal client
// close yields nil.
func (s *Source) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readErr
}

// Done is closed when the read loop exits, which happens when the client
// disconnects or Stop is called.
func (s *Source) Done() <-chan struct{} {
	return s.done
}

// SendText writes a text message to the client. The connection serializes
// concurrent writes, so this is safe to call from any goroutine.
func (s *Source) SendText(ctx context.Context, data []byte) error {
	if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("wscapture: send text: %w", err)
	}
	return nil
}

// SendBinary writes a binary message to the client.
func (s *Source) SendBinary(ctx context.Context, data []byte) error {
	if err := s.conn.Write(ctx, websocket.MessageBinary, data); err != nil {
		return fmt.Errorf("wscapture: send binary: %w", err)
	}
	return nil
}

// readLoop receives binary audio messages until the connection closes.
func (s *Source) readLoop(ctx context.Context) {
	defer close(s.done)

	for {
		typ, data, err := s.conn.Read(ctx)
		if err != nil {
			s.recordReadErr(err)
			return
		}
		if typ != websocket.MessageBinary {
			if typ == websocket.MessageText && s.onControl != nil {
				s.onControl(data)
			}
			continue
		}

		pcm := data
		if s.codec == CodecOpus {
			decoded, err := s.dec.Decode(data, opusFrameSize, false)
			if err != nil {
				s.log.Warn("dropping undecodable opus packet", "error", err)
				continue
			}
			pcm = audio.Int16sToBytes(decoded)
		}
		s.ingest(pcm)
	}
}

// ingest appends decoded PCM to the chunk buffer and the analysis window.
func (s *Source) ingest(pcm []byte) {
	unit := audio.UnitSamplesFromPCM16(pcm, s.channels)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = append(s.pending, pcm...)
	s.window = append(s.window, unit...)
	if over := len(s.window) - defaultFFTSize; over > 0 {
		s.window = s.window[over:]
	}
}

// recordReadErr stores the loop-ending error unless it was a clean shutdown.
func (s *Source) recordReadErr(err error) {
	if errors.Is(err, context.Canceled) ||
		websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
		websocket.CloseStatus(err) == websocket.StatusGoingAway {
		return
	}
	s.mu.Lock()
	s.readErr = err
	s.mu.Unlock()
}
