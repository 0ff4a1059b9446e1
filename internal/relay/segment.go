package relay

import "strings"

// segmentMaxLength is the accumulated-length threshold past which a segment
// is flushed to synthesis even without a sentence terminator.
const segmentMaxLength = 100

// SegmentBuffer accumulates streamed tokens between two synthesis flush
// points. It is owned by a single orchestration goroutine per connection;
// methods are not safe for concurrent use.
type SegmentBuffer struct {
	buf strings.Builder
}

// Append adds one token and reports whether the accumulated text is ready
// for synthesis: the token carried a sentence terminator, or the buffer grew
// past the length threshold.
func (b *SegmentBuffer) Append(token string) bool {
	b.buf.WriteString(token)
	return strings.ContainsAny(token, ".!?") || b.buf.Len() > segmentMaxLength
}

// Flush returns the accumulated text and clears the buffer.
func (b *SegmentBuffer) Flush() string {
	text := b.buf.String()
	b.buf.Reset()
	return text
}

func (b *SegmentBuffer) Len() int {
	return b.buf.Len()
}
