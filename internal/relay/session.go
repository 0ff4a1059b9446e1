package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/eleven-am/voice-relay/internal/completion"
	"github.com/eleven-am/voice-relay/internal/media"
	"github.com/eleven-am/voice-relay/internal/synthesis"
	"github.com/eleven-am/voice-relay/internal/transcription"
	"github.com/eleven-am/voice-relay/internal/transport"
)

// State is the connection lifecycle phase.
type State string

const (
	StateOpen      State = "open"
	StateStreaming State = "streaming"
	StateClosing   State = "closing"
	StateClosed    State = "closed"
)

const (
	taskQueueSize  = 64
	audioQueueSize = 256
	finalQueueSize = 8
)

// STTFactory opens a live recognition session. Overridable so tests can
// substitute an in-memory transcriber.
type STTFactory func(ctx context.Context, cfg transcription.Config, opts transcription.SessionOptions, cb transcription.Callbacks, log *slog.Logger) (transcription.Transcriber, error)

func defaultSTTFactory(ctx context.Context, cfg transcription.Config, opts transcription.SessionOptions, cb transcription.Callbacks, log *slog.Logger) (transcription.Transcriber, error) {
	return transcription.New(ctx, cfg, opts, cb, log)
}

type Config struct {
	STTConfig  transcription.Config
	STTOptions transcription.SessionOptions
	STTFactory STTFactory
	LLM        completion.Streamer
	Synth      synthesis.Synthesizer
	Media      *media.Store
}

// Session is the per-connection aggregate: one live recognition session, one
// speaker, one serialized response orchestration, and the task queue that
// bridges provider callbacks into connection-owned state.
//
// Provider callbacks arrive on the SDK's goroutine and only ever enqueue
// work; all connection-owned mutable state is touched from the session's own
// goroutines.
type Session struct {
	sessionID string

	conn    transport.Connection
	stt     transcription.Transcriber
	speaker *Speaker
	orch    *Orchestrator
	store   *media.Store

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *slog.Logger

	tasks   chan func()
	audioIn chan []byte
	finals  chan string

	mu    sync.Mutex
	state State
}

// New constructs the session and opens the recognition session. A provider
// rejection is fatal: the session transitions straight to closed and the
// error propagates to the caller.
func New(conn transport.Connection, cfg Config, log *slog.Logger) (*Session, error) {
	if log == nil {
		log = slog.Default()
	}

	sessionID := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		sessionID: sessionID,
		conn:      conn,
		store:     cfg.Media,
		ctx:       ctx,
		cancel:    cancel,
		log:       log.With("session_id", sessionID),
		tasks:     make(chan func(), taskQueueSize),
		audioIn:   make(chan []byte, audioQueueSize),
		finals:    make(chan string, finalQueueSize),
		state:     StateOpen,
	}

	s.speaker = NewSpeaker(cfg.Synth, conn, s.log)
	s.orch = NewOrchestrator(cfg.LLM, conn, s.speaker, s.log)

	factory := cfg.STTFactory
	if factory == nil {
		factory = defaultSTTFactory
	}

	stt, err := factory(ctx, cfg.STTConfig, cfg.STTOptions, transcription.Callbacks{
		OnTranscript: s.onTranscript,
		OnError:      s.onSTTError,
	}, s.log)
	if err != nil {
		cancel()
		s.setState(StateClosed)
		return nil, fmt.Errorf("relay: open recognition session: %w", err)
	}
	s.stt = stt

	s.wg.Add(3)
	go s.taskLoop()
	go s.audioLoop()
	go s.respondLoop()

	s.setState(StateStreaming)
	return s, nil
}

func (s *Session) SessionID() string {
	return s.sessionID
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Run consumes inbound frames until the channel closes or fails, then tears
// the session down. It is the connection-handling loop and must run on its
// own goroutine.
func (s *Session) Run() {
	defer func() {
		if err := s.Close(); err != nil {
			s.log.Error("session teardown failed", "error", err)
		}
	}()

	for {
		frame, err := s.conn.ReadFrame()
		if err != nil {
			switch {
			case errors.Is(err, transport.ErrUnknownFrameType):
				s.log.Warn("protocol violation, frame ignored", "error", err)
				continue
			case errors.Is(err, transport.ErrEmptyFrame):
				s.log.Warn("empty frame ignored")
				continue
			case errors.Is(err, transport.ErrConnectionClosed):
				s.log.Info("client disconnected")
				return
			default:
				s.log.Error("frame read failed", "error", err)
				return
			}
		}

		s.dispatch(frame)
	}
}

// dispatch routes one inbound frame by its type tag. Audio is handed to the
// forwarding goroutine through a buffered channel so the reader never blocks
// on the recognition transport.
func (s *Session) dispatch(frame transport.Frame) {
	switch frame.Type {
	case transport.FrameText:
		s.persist(media.KindText, frame.Payload)
	case transport.FrameVideo:
		s.persist(media.KindVideo, frame.Payload)
	case transport.FrameAudio:
		s.persist(media.KindAudio, frame.Payload)
		select {
		case s.audioIn <- frame.Payload:
		case <-s.ctx.Done():
		default:
			s.log.Warn("audio queue full, chunk dropped", "bytes", len(frame.Payload))
		}
	}
}

func (s *Session) persist(kind media.Kind, data []byte) {
	if s.store == nil {
		return
	}
	if err := s.store.Append(kind, data); err != nil {
		s.log.Error("failed to persist media", "kind", string(kind), "error", err)
	}
}

// onTranscript is invoked on the provider's goroutine. It only schedules:
// every event yields a client notification; final non-blank events
// additionally enter the serialized orchestration queue.
func (s *Session) onTranscript(evt transcription.TranscriptEvent) {
	s.schedule(func() { s.notifyTranscript(evt) })

	if evt.IsFinal && strings.TrimSpace(evt.Text) != "" {
		s.schedule(func() { s.enqueueFinal(evt.Text) })
	}
}

// onSTTError is invoked on the provider's goroutine; contained locally.
func (s *Session) onSTTError(err error) {
	s.log.Error("recognition error", "error", err)
}

// schedule hands work to the session task loop. It never blocks and never
// panics after close; a failed enqueue is logged and dropped so the provider
// callback goroutine is unaffected.
func (s *Session) schedule(task func()) {
	select {
	case <-s.ctx.Done():
		s.log.Debug("task dropped, session closed")
		return
	default:
	}

	select {
	case s.tasks <- task:
	default:
		s.log.Warn("task queue full, event dropped")
	}
}

func (s *Session) taskLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case task := <-s.tasks:
			task()
		}
	}
}

func (s *Session) audioLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case chunk := <-s.audioIn:
			if err := s.stt.SendAudio(chunk); err != nil {
				s.log.Error("failed to forward audio chunk", "error", err)
			}
		}
	}
}

// respondLoop serializes response orchestration: one final transcript runs
// to completion before the next starts.
func (s *Session) respondLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case transcript := <-s.finals:
			s.orch.Respond(s.ctx, transcript)
		}
	}
}

func (s *Session) notifyTranscript(evt transcription.TranscriptEvent) {
	data, err := json.Marshal(transport.NewTranscriptNotice(evt.Text, evt.IsFinal))
	if err != nil {
		s.log.Error("failed to marshal transcript notice", "error", err)
		return
	}
	if err := s.conn.SendText(s.ctx, string(data)); err != nil {
		s.log.Error("failed to send transcript notice", "error", err)
	}
}

func (s *Session) enqueueFinal(transcript string) {
	select {
	case s.finals <- transcript:
	default:
		s.log.Warn("response queue full, transcript dropped", "text", transcript)
	}
}

// Close tears the session down: stop the speaker, cancel the task graph,
// close the recognition session, close the channel. Every release step runs
// even when an earlier one fails, and calling Close twice is safe.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosing || s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosing
	s.mu.Unlock()

	s.speaker.Stop()
	s.cancel()

	if err := s.stt.Close(); err != nil {
		s.log.Error("failed to close recognition session", "error", err)
	}

	s.wg.Wait()

	err := s.conn.Close()
	s.setState(StateClosed)
	s.log.Info("session closed")
	return err
}
