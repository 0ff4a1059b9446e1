package completion

import (
	"context"
	"errors"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const defaultModel = "gpt-4o-mini"

// Client implements Streamer using the OpenAI chat completions API.
type Client struct {
	client oai.Client
	model  string
}

func New(cfg Config, opts ...option.RequestOption) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("completion: api key must not be empty")
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	return &Client{
		client: oai.NewClient(append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, opts...)...),
		model:  model,
	}, nil
}

// Stream opens a streaming completion with the prompt as sole input. No
// conversation history is carried across turns.
func (c *Client) Stream(ctx context.Context, prompt string) (<-chan Chunk, error) {
	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.UserMessage(prompt),
		},
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("completion: start stream: %w", err)
	}

	ch := make(chan Chunk, 32)
	go func() {
		defer close(ch)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}

			select {
			case ch <- Chunk{Text: delta}:
			case <-ctx.Done():
				return
			}
		}

		if err := stream.Err(); err != nil {
			select {
			case ch <- Chunk{Err: fmt.Errorf("completion: stream: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}
