package relay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/eleven-am/voice-relay/internal/synthesis"
	"github.com/eleven-am/voice-relay/internal/transport"
)

// Speaker turns finished text segments into audio frames on the client
// connection. Stop suppresses delivery of results that have not been sent
// yet, including results already in flight; stale audio arriving after Stop
// is dropped, never sent.
type Speaker struct {
	synth synthesis.Synthesizer
	conn  transport.Connection
	log   *slog.Logger

	mu      sync.Mutex
	stopped bool
	stopCh  chan struct{}
}

func NewSpeaker(synth synthesis.Synthesizer, conn transport.Connection, log *slog.Logger) *Speaker {
	if log == nil {
		log = slog.Default()
	}
	return &Speaker{
		synth:  synth,
		conn:   conn,
		log:    log,
		stopCh: make(chan struct{}),
	}
}

// Speak synthesizes one segment and relays the audio frame. Provider
// failures are contained here: the segment is logged and skipped, and a
// zero-length payload is never forwarded.
func (sp *Speaker) Speak(ctx context.Context, text string) {
	if sp.Stopped() {
		return
	}

	audio, err := sp.synth.Synthesize(ctx, text)
	if err != nil {
		sp.log.Error("synthesis failed, segment dropped", "error", err, "text_len", len(text))
		return
	}
	if len(audio) == 0 {
		sp.log.Warn("synthesis returned empty payload, nothing to send", "text_len", len(text))
		return
	}

	if sp.Stopped() {
		sp.log.Debug("dropping synthesized audio for stopped connection", "bytes", len(audio))
		return
	}

	if err := sp.conn.SendAudio(ctx, audio); err != nil {
		sp.log.Error("failed to send synthesized audio", "error", err)
	}
}

// Stop sets the connection's cancellation signal. Safe to call twice.
func (sp *Speaker) Stop() {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if sp.stopped {
		return
	}
	sp.stopped = true
	close(sp.stopCh)
}

func (sp *Speaker) Stopped() bool {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.stopped
}

// Done is closed once the speaker has been stopped.
func (sp *Speaker) Done() <-chan struct{} {
	return sp.stopCh
}
