package relay

import (
	"log/slog"
	"sync"

	"github.com/eleven-am/voice-relay/internal/completion"
	"github.com/eleven-am/voice-relay/internal/media"
	"github.com/eleven-am/voice-relay/internal/synthesis"
	"github.com/eleven-am/voice-relay/internal/transcription"
	"github.com/eleven-am/voice-relay/internal/transport"
)

// Manager owns the table of active sessions, keyed by the identifier issued
// at accept time. Insert on open, remove on close; no session is reachable
// from another connection.
type Manager struct {
	cfg Config
	log *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

type ManagerConfig struct {
	STTConfig  transcription.Config
	STTOptions transcription.SessionOptions
	STTFactory STTFactory
	LLM        completion.Streamer
	Synth      synthesis.Synthesizer
	Media      *media.Store
	Log        *slog.Logger
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	return &Manager{
		cfg: Config{
			STTConfig:  cfg.STTConfig,
			STTOptions: cfg.STTOptions,
			STTFactory: cfg.STTFactory,
			LLM:        cfg.LLM,
			Synth:      cfg.Synth,
			Media:      cfg.Media,
		},
		log:      cfg.Log.With("component", "relay_manager"),
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) CreateSession(conn transport.Connection) (*Session, error) {
	session, err := New(conn, m.cfg, m.log)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[session.SessionID()] = session
	m.mu.Unlock()

	m.log.Info("relay session created", "session_id", session.SessionID())
	return session, nil
}

func (m *Manager) GetSession(sessionID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[sessionID]
	return session, ok
}

func (m *Manager) RemoveSession(sessionID string) {
	m.mu.Lock()
	session, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()

	if session != nil {
		if err := session.Close(); err != nil {
			m.log.Error("failed to close session", "session_id", sessionID, "error", err)
		}
		m.log.Info("relay session removed", "session_id", sessionID)
	}
}

func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) SessionIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

func (m *Manager) Close() error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		if err := s.Close(); err != nil {
			m.log.Error("failed to close session", "session_id", s.SessionID(), "error", err)
		}
	}
	return nil
}
