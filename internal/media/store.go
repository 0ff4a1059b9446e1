package media

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Kind names one of the append-only raw media logs.
type Kind string

const (
	KindText  Kind = "text"
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

var logNames = map[Kind]string{
	KindText:  filepath.Join("text", "chat.txt"),
	KindVideo: filepath.Join("video", "stream.h264"),
	KindAudio: filepath.Join("audio", "stream.aac"),
}

// Store appends raw inbound media to per-kind log files under a data
// directory. Files are opened lazily and shared across connections.
type Store struct {
	dir string

	mu    sync.Mutex
	files map[Kind]*os.File
}

func NewStore(dir string) (*Store, error) {
	for _, name := range logNames {
		if err := os.MkdirAll(filepath.Join(dir, filepath.Dir(name)), 0o755); err != nil {
			return nil, fmt.Errorf("media: create dir: %w", err)
		}
	}
	return &Store{dir: dir, files: make(map[Kind]*os.File)}, nil
}

// Append writes one payload to the log for kind. Text payloads get a
// trailing newline so the chat log stays line-oriented.
func (s *Store) Append(kind Kind, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.file(kind)
	if err != nil {
		return err
	}

	if kind == KindText {
		buf := make([]byte, 0, len(data)+1)
		buf = append(buf, data...)
		data = append(buf, '\n')
	}

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("media: append %s: %w", kind, err)
	}
	return nil
}

func (s *Store) file(kind Kind) (*os.File, error) {
	if f, ok := s.files[kind]; ok {
		return f, nil
	}

	name, ok := logNames[kind]
	if !ok {
		return nil, fmt.Errorf("media: unknown kind %q", kind)
	}

	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("media: open %s: %w", kind, err)
	}
	s.files[kind] = f
	return f, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for kind, f := range s.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.files, kind)
	}
	return firstErr
}
