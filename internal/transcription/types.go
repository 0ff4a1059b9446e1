package transcription

// TranscriptEvent is one push event from the recognition provider. Events
// arrive on the provider's own goroutine and are immutable once constructed.
type TranscriptEvent struct {
	Text    string
	IsFinal bool
}

// Callbacks are invoked from the provider's execution context. Handlers must
// not block and must not touch connection-owned mutable state directly.
type Callbacks struct {
	OnTranscript func(event TranscriptEvent)
	OnError      func(error)
}

type Config struct {
	APIKey string
}

// SessionOptions are the fixed recognition parameters for one live session.
type SessionOptions struct {
	Model          string
	Language       string
	InterimResults bool
	Punctuate      bool
}

func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		Model:          "nova-2",
		Language:       "en-US",
		InterimResults: true,
		Punctuate:      true,
	}
}
