package relay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eleven-am/voice-relay/internal/completion"
	"github.com/eleven-am/voice-relay/internal/transport"
)

// Orchestrator converts one finalized transcript into a fully delivered
// response: live token relay to the client plus segment-by-segment speech.
type Orchestrator struct {
	llm     completion.Streamer
	conn    transport.Connection
	speaker *Speaker
	log     *slog.Logger
}

func NewOrchestrator(llm completion.Streamer, conn transport.Connection, speaker *Speaker, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		llm:     llm,
		conn:    conn,
		speaker: speaker,
		log:     log,
	}
}

// Respond drives the model reply for one transcript. Failures are logged and
// surfaced to the client as a single error frame; the connection stays open
// for subsequent transcripts.
func (o *Orchestrator) Respond(ctx context.Context, transcript string) {
	o.log.Info("responding to transcript", "text", transcript)

	if err := o.respond(ctx, transcript); err != nil {
		o.log.Error("response orchestration failed", "error", err)
		if sendErr := o.conn.SendText(ctx, fmt.Sprintf("Error: %v", err)); sendErr != nil {
			o.log.Error("failed to send error frame", "error", sendErr)
		}
	}
}

func (o *Orchestrator) respond(ctx context.Context, transcript string) error {
	stream, err := o.llm.Stream(ctx, transcript)
	if err != nil {
		return err
	}

	var segment SegmentBuffer
	for chunk := range stream {
		if chunk.Err != nil {
			return chunk.Err
		}
		if chunk.Text == "" {
			continue
		}

		// Tokens reach the client in emission order before segmentation
		// decides anything.
		if err := o.conn.SendText(ctx, chunk.Text); err != nil {
			return fmt.Errorf("relay token: %w", err)
		}

		if segment.Append(chunk.Text) {
			o.speaker.Speak(ctx, segment.Flush())
		}
	}

	if segment.Len() > 0 {
		o.speaker.Speak(ctx, segment.Flush())
	}
	return nil
}
