package completion

import "context"

// Streamer produces a lazy, finite, non-restartable sequence of text deltas
// for a single-turn prompt.
type Streamer interface {
	Stream(ctx context.Context, prompt string) (<-chan Chunk, error)
}
