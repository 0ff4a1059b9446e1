package synthesis

import (
	"context"
	"errors"
	"fmt"
	"io"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	defaultModel = "tts-1"
	defaultVoice = "shimmer"
)

// Client implements Synthesizer using the OpenAI speech API. Responses are
// MP3-encoded.
type Client struct {
	client oai.Client
	model  string
	voice  string
}

func New(cfg Config, opts ...option.RequestOption) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("synthesis: api key must not be empty")
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	voice := cfg.Voice
	if voice == "" {
		voice = defaultVoice
	}

	return &Client{
		client: oai.NewClient(append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, opts...)...),
		model:  model,
		voice:  voice,
	}, nil
}

// Synthesize issues one blocking speech request and returns the full result.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	res, err := c.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(c.model),
		Voice:          oai.AudioSpeechNewParamsVoice(c.voice),
		Input:          text,
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesis: speech request: %w", err)
	}
	defer res.Body.Close()

	audio, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("synthesis: read audio: %w", err)
	}
	return audio, nil
}
