package transcription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces"
	listen "github.com/deepgram/deepgram-go-sdk/pkg/client/listen"
)

// Client owns one live Deepgram recognition session. Transcript events are
// delivered by the SDK on its own goroutine through the registered receiver.
type Client struct {
	log *slog.Logger

	mu   sync.Mutex
	conn *listen.WSCallback
}

// New dials the provider and starts the live session. A rejected session is
// fatal to the owning connection, so the error is returned rather than
// retried here.
func New(ctx context.Context, cfg Config, opts SessionOptions, cb Callbacks, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.APIKey == "" {
		return nil, errors.New("transcription: api key must not be empty")
	}

	clientOptions := interfaces.ClientOptions{
		APIKey:          cfg.APIKey,
		EnableKeepAlive: true,
	}

	tOptions := interfaces.LiveTranscriptionOptions{
		Model:          opts.Model,
		Language:       opts.Language,
		InterimResults: opts.InterimResults,
		Punctuate:      opts.Punctuate,
	}

	receiver := &liveReceiver{cb: cb, log: log}

	conn, err := listen.NewWebSocketUsingCallback(ctx, cfg.APIKey, &clientOptions, &tOptions, receiver)
	if err != nil {
		return nil, fmt.Errorf("transcription: open session: %w", err)
	}

	if !conn.Connect() {
		return nil, errors.New("transcription: provider rejected session")
	}

	log.Info("transcription session started", "model", opts.Model, "language", opts.Language)

	return &Client{log: log, conn: conn}, nil
}

// SendAudio forwards one raw audio chunk to the open session.
func (c *Client) SendAudio(data []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return errors.New("transcription: session not open")
	}
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("transcription: write audio: %w", err)
	}
	return nil
}

// Close requests graceful termination of the session. The handle is always
// released; calling Close twice is safe.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	conn.Stop()
	c.log.Debug("transcription session closed")
	return nil
}

// liveReceiver bridges the SDK callback surface to Callbacks. Every method
// runs on the SDK goroutine; failures are contained so the provider never
// observes a downstream panic or error.
type liveReceiver struct {
	cb  Callbacks
	log *slog.Logger
}

func (r *liveReceiver) Open(or *msginterfaces.OpenResponse) error {
	r.log.Info("transcription connection opened")
	return nil
}

func (r *liveReceiver) Message(mr *msginterfaces.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}

	text := mr.Channel.Alternatives[0].Transcript
	if text == "" {
		return nil
	}

	if r.cb.OnTranscript != nil {
		r.cb.OnTranscript(TranscriptEvent{
			Text:    text,
			IsFinal: mr.SpeechFinal,
		})
	}
	return nil
}

func (r *liveReceiver) Metadata(md *msginterfaces.MetadataResponse) error {
	return nil
}

func (r *liveReceiver) SpeechStarted(ssr *msginterfaces.SpeechStartedResponse) error {
	return nil
}

func (r *liveReceiver) UtteranceEnd(ur *msginterfaces.UtteranceEndResponse) error {
	return nil
}

func (r *liveReceiver) Close(cr *msginterfaces.CloseResponse) error {
	r.log.Info("transcription connection closed")
	return nil
}

func (r *liveReceiver) Error(er *msginterfaces.ErrorResponse) error {
	if r.cb.OnError != nil {
		r.cb.OnError(fmt.Errorf("transcription: provider error: %s", er.Description))
	}
	return nil
}

func (r *liveReceiver) UnhandledEvent(byData []byte) error {
	r.log.Debug("transcription unhandled event", "bytes", len(byData))
	return nil
}
