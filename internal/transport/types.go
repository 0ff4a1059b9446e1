package transport

import "context"

// Connection is the duplex channel between client and server. Sends are safe
// for concurrent use; ReadFrame must only be called from one goroutine.
type Connection interface {
	SendText(ctx context.Context, text string) error
	SendAudio(ctx context.Context, audio []byte) error
	ReadFrame() (Frame, error)
	Close() error
}

// TranscriptNotice is the JSON payload relayed to the client for every
// transcript event, partial or final.
type TranscriptNotice struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

func NewTranscriptNotice(text string, isFinal bool) TranscriptNotice {
	return TranscriptNotice{
		Type:    "transcript",
		Text:    text,
		IsFinal: isFinal,
	}
}
