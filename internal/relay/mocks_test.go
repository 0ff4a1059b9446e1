package relay

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/eleven-am/voice-relay/internal/completion"
	"github.com/eleven-am/voice-relay/internal/transcription"
	"github.com/eleven-am/voice-relay/internal/transport"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// waitFor polls until cond reports true or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for: %s", msg)
}

type readEvent struct {
	frame transport.Frame
	err   error
}

// mockConn records everything sent to the client and feeds inbound frames
// from a queue.
type mockConn struct {
	events chan readEvent

	mu           sync.Mutex
	texts        []string
	audio        [][]byte
	closed       bool
	sendTextErr  error
	sendAudioErr error
}

func newMockConn() *mockConn {
	return &mockConn{events: make(chan readEvent, 32)}
}

func (c *mockConn) SendText(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendTextErr != nil {
		return c.sendTextErr
	}
	c.texts = append(c.texts, text)
	return nil
}

func (c *mockConn) SendAudio(_ context.Context, audio []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendAudioErr != nil {
		return c.sendAudioErr
	}
	buf := make([]byte, len(audio))
	copy(buf, audio)
	c.audio = append(c.audio, buf)
	return nil
}

func (c *mockConn) ReadFrame() (transport.Frame, error) {
	evt, ok := <-c.events
	if !ok {
		return transport.Frame{}, transport.ErrConnectionClosed
	}
	return evt.frame, evt.err
}

func (c *mockConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	return nil
}

func (c *mockConn) sentTexts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.texts))
	copy(out, c.texts)
	return out
}

func (c *mockConn) sentAudio() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.audio))
	copy(out, c.audio)
	return out
}

func (c *mockConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// mockTranscriber records forwarded audio chunks.
type mockTranscriber struct {
	mu      sync.Mutex
	chunks  [][]byte
	closed  bool
	sendErr error
}

func (m *mockTranscriber) SendAudio(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	m.chunks = append(m.chunks, buf)
	return nil
}

func (m *mockTranscriber) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockTranscriber) chunkCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chunks)
}

func (m *mockTranscriber) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// mockStreamer replays a fixed chunk sequence for every prompt.
type mockStreamer struct {
	chunks  []completion.Chunk
	openErr error

	mu      sync.Mutex
	prompts []string
}

func (m *mockStreamer) Stream(_ context.Context, prompt string) (<-chan completion.Chunk, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.openErr != nil {
		return nil, m.openErr
	}

	ch := make(chan completion.Chunk, len(m.chunks))
	for _, c := range m.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (m *mockStreamer) seenPrompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// mockSynth returns canned audio and records every synthesized segment.
type mockSynth struct {
	audio  []byte
	err    error
	onCall func()

	mu    sync.Mutex
	texts []string
}

func (m *mockSynth) Synthesize(_ context.Context, text string) ([]byte, error) {
	if m.onCall != nil {
		m.onCall()
	}
	m.mu.Lock()
	m.texts = append(m.texts, text)
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	return m.audio, nil
}

func (m *mockSynth) segments() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.texts))
	copy(out, m.texts)
	return out
}

// captureSTTFactory returns a factory that hands out the given transcriber
// and exposes the callbacks the session registered.
func captureSTTFactory(stt *mockTranscriber) (STTFactory, *transcription.Callbacks) {
	captured := &transcription.Callbacks{}
	factory := func(_ context.Context, _ transcription.Config, _ transcription.SessionOptions, cb transcription.Callbacks, _ *slog.Logger) (transcription.Transcriber, error) {
		*captured = cb
		return stt, nil
	}
	return factory, captured
}
