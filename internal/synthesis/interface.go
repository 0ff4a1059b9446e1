package synthesis

import "context"

// Synthesizer turns one finished text segment into a complete audio payload
// with a single non-streaming request.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
