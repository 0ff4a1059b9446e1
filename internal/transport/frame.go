package transport

import (
	"errors"
	"fmt"
)

// FrameType is the one-byte tag leading every duplex-channel message.
type FrameType byte

const (
	FrameText  FrameType = 0
	FrameVideo FrameType = 1
	FrameAudio FrameType = 2

	// FrameSynthesizedAudio tags outbound synthesized speech payloads.
	FrameSynthesizedAudio FrameType = 3
)

var (
	ErrEmptyFrame       = errors.New("empty frame")
	ErrUnknownFrameType = errors.New("unknown frame type")
	ErrConnectionClosed = errors.New("connection closed")
)

func (t FrameType) String() string {
	switch t {
	case FrameText:
		return "text"
	case FrameVideo:
		return "video"
	case FrameAudio:
		return "audio"
	case FrameSynthesizedAudio:
		return "synthesized_audio"
	}
	return fmt.Sprintf("unknown(%d)", byte(t))
}

// Frame is one inbound duplex-channel message: a type tag and its payload.
// Frame boundaries are message boundaries of the underlying transport; there
// is no length prefix.
type Frame struct {
	Type    FrameType
	Payload []byte
}

// DecodeFrame splits a raw message into tag and payload. Unrecognized tags
// are a protocol violation reported as ErrUnknownFrameType.
func DecodeFrame(data []byte) (Frame, error) {
	if len(data) == 0 {
		return Frame{}, ErrEmptyFrame
	}

	t := FrameType(data[0])
	switch t {
	case FrameText, FrameVideo, FrameAudio:
	default:
		return Frame{}, fmt.Errorf("%w: tag %d", ErrUnknownFrameType, data[0])
	}

	return Frame{Type: t, Payload: data[1:]}, nil
}

// EncodeAudioFrame prefixes synthesized speech bytes with the outbound
// audio tag.
func EncodeAudioFrame(audio []byte) []byte {
	out := make([]byte, 0, len(audio)+1)
	out = append(out, byte(FrameSynthesizedAudio))
	return append(out, audio...)
}
