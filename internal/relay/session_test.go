package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/eleven-am/voice-relay/internal/transcription"
	"github.com/eleven-am/voice-relay/internal/transport"
)

func newTestSession(t *testing.T, conn *mockConn, llm *mockStreamer, synth *mockSynth) (*Session, *mockTranscriber, *transcription.Callbacks) {
	t.Helper()

	stt := &mockTranscriber{}
	factory, cb := captureSTTFactory(stt)

	s, err := New(conn, Config{
		STTFactory: factory,
		LLM:        llm,
		Synth:      synth,
	}, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s, stt, cb
}

func TestSession_NewOpensRecognition(t *testing.T) {
	conn := newMockConn()
	s, _, cb := newTestSession(t, conn, &mockStreamer{}, &mockSynth{})
	defer s.Close()

	if s.SessionID() == "" {
		t.Error("session should carry an identifier")
	}
	if s.State() != StateStreaming {
		t.Errorf("expected streaming state, got %s", s.State())
	}
	if cb.OnTranscript == nil || cb.OnError == nil {
		t.Error("recognition callbacks were not registered")
	}
}

func TestSession_NewFactoryErrorIsFatal(t *testing.T) {
	factory := func(_ context.Context, _ transcription.Config, _ transcription.SessionOptions, _ transcription.Callbacks, _ *slog.Logger) (transcription.Transcriber, error) {
		return nil, errors.New("unauthorized")
	}

	_, err := New(newMockConn(), Config{
		STTFactory: factory,
		LLM:        &mockStreamer{},
		Synth:      &mockSynth{},
	}, testLogger())
	if err == nil {
		t.Fatal("expected error when the recognition session is rejected")
	}
	if !strings.Contains(err.Error(), "unauthorized") {
		t.Errorf("expected provider error in chain, got %v", err)
	}
}

func TestSession_AudioForwardedToRecognition(t *testing.T) {
	conn := newMockConn()
	s, stt, _ := newTestSession(t, conn, &mockStreamer{}, &mockSynth{})
	defer s.Close()

	go s.Run()

	conn.events <- readEvent{frame: transport.Frame{Type: transport.FrameAudio, Payload: []byte{1, 2, 3}}}
	conn.events <- readEvent{frame: transport.Frame{Type: transport.FrameAudio, Payload: []byte{4, 5}}}

	waitFor(t, func() bool { return stt.chunkCount() == 2 }, "audio chunks forwarded")
}

func TestSession_PartialTranscriptNotifiesClient(t *testing.T) {
	conn := newMockConn()
	llm := &mockStreamer{}
	s, _, cb := newTestSession(t, conn, llm, &mockSynth{})
	defer s.Close()

	cb.OnTranscript(transcription.TranscriptEvent{Text: "Hel", IsFinal: false})

	waitFor(t, func() bool { return len(conn.sentTexts()) == 1 }, "partial notice sent")

	var notice transport.TranscriptNotice
	if err := json.Unmarshal([]byte(conn.sentTexts()[0]), &notice); err != nil {
		t.Fatalf("notice is not valid JSON: %v", err)
	}
	if notice.Type != "transcript" || notice.Text != "Hel" || notice.IsFinal {
		t.Errorf("unexpected notice: %+v", notice)
	}

	// A partial transcript never starts a response.
	if got := llm.seenPrompts(); len(got) != 0 {
		t.Errorf("partial transcript must not reach the model, got %v", got)
	}
}

func TestSession_FinalTranscriptDrivesResponse(t *testing.T) {
	conn := newMockConn()
	llm := &mockStreamer{chunks: chunks("Hi", " there", ".")}
	synth := &mockSynth{audio: []byte("mp3-bytes")}
	s, _, cb := newTestSession(t, conn, llm, synth)
	defer s.Close()

	cb.OnTranscript(transcription.TranscriptEvent{Text: "Hello world.", IsFinal: true})

	// One final notice, then the three tokens.
	waitFor(t, func() bool { return len(conn.sentTexts()) == 4 }, "notice and tokens sent")

	texts := conn.sentTexts()
	var notice transport.TranscriptNotice
	if err := json.Unmarshal([]byte(texts[0]), &notice); err != nil {
		t.Fatalf("first frame should be the notice: %v", err)
	}
	if !notice.IsFinal || notice.Text != "Hello world." {
		t.Errorf("unexpected final notice: %+v", notice)
	}
	if texts[1] != "Hi" || texts[2] != " there" || texts[3] != "." {
		t.Errorf("tokens out of order: %v", texts[1:])
	}

	if got := llm.seenPrompts(); len(got) != 1 || got[0] != "Hello world." {
		t.Errorf("expected one model call with the transcript, got %v", got)
	}

	waitFor(t, func() bool { return len(conn.sentAudio()) == 1 }, "synthesized audio sent")
	if got := synth.segments(); len(got) != 1 || got[0] != "Hi there." {
		t.Errorf("expected exactly one synthesis of the full reply, got %v", got)
	}
	if string(conn.sentAudio()[0]) != "mp3-bytes" {
		t.Errorf("audio payload mismatch: %q", conn.sentAudio()[0])
	}
}

func TestSession_BlankFinalIgnored(t *testing.T) {
	conn := newMockConn()
	llm := &mockStreamer{chunks: chunks("never.")}
	s, _, cb := newTestSession(t, conn, llm, &mockSynth{})
	defer s.Close()

	cb.OnTranscript(transcription.TranscriptEvent{Text: "   ", IsFinal: true})

	// The notice still goes out, but no response starts.
	waitFor(t, func() bool { return len(conn.sentTexts()) == 1 }, "blank notice sent")
	if got := llm.seenPrompts(); len(got) != 0 {
		t.Errorf("blank final must not reach the model, got %v", got)
	}
}

func TestSession_UnknownFrameDoesNotKillSession(t *testing.T) {
	conn := newMockConn()
	s, stt, _ := newTestSession(t, conn, &mockStreamer{}, &mockSynth{})
	defer s.Close()

	go s.Run()

	conn.events <- readEvent{err: fmt.Errorf("%w: tag 9", transport.ErrUnknownFrameType)}
	conn.events <- readEvent{frame: transport.Frame{Type: transport.FrameAudio, Payload: []byte{7}}}

	waitFor(t, func() bool { return stt.chunkCount() == 1 }, "session survived the bad frame")
}

func TestSession_DisconnectTearsDown(t *testing.T) {
	conn := newMockConn()
	s, stt, _ := newTestSession(t, conn, &mockStreamer{}, &mockSynth{})

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()

	_ = conn.Close()
	<-done

	if s.State() != StateClosed {
		t.Errorf("expected closed state, got %s", s.State())
	}
	if !stt.isClosed() {
		t.Error("recognition session should be closed on teardown")
	}
	if !s.speaker.Stopped() {
		t.Error("speaker should be stopped on teardown")
	}
}

func TestSession_CloseIdempotent(t *testing.T) {
	conn := newMockConn()
	s, _, _ := newTestSession(t, conn, &mockStreamer{}, &mockSynth{})

	if err := s.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
	if s.State() != StateClosed {
		t.Errorf("expected closed state, got %s", s.State())
	}
	if !conn.isClosed() {
		t.Error("connection should be closed")
	}
}

func TestSession_CallbacksAfterCloseAreDropped(t *testing.T) {
	conn := newMockConn()
	llm := &mockStreamer{chunks: chunks("late.")}
	s, _, cb := newTestSession(t, conn, llm, &mockSynth{})

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Stale provider events after teardown must neither panic nor produce
	// frames.
	cb.OnTranscript(transcription.TranscriptEvent{Text: "ghost", IsFinal: true})

	if got := llm.seenPrompts(); len(got) != 0 {
		t.Errorf("post-close transcript must not start a response, got %v", got)
	}
}
