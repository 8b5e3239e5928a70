package groq

import (
	"context"
	"fmt"
	"iter"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/sweetpotato0/reasonchain/chain"
	errorspkg "github.com/sweetpotato0/reasonchain/errors"
	"github.com/sweetpotato0/reasonchain/message"
)

// groqBaseURL is Groq's OpenAI-compatible API surface, which lets the
// official OpenAI SDK drive it directly.
const groqBaseURL = "https://api.groq.com/openai/v1"

// Config holds Groq provider configuration
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
	TopP        float64
}

// DefaultConfig returns default Groq configuration. The sampling parameters
// are fixed for answer synthesis: temperature 0.7, 1024 max tokens, top_p 1.
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:      apiKey,
		Model:       "llama-3.3-70b-specdec",
		MaxTokens:   1024,
		Temperature: 0.7,
		TopP:        1,
	}
}

// WithBaseURL set BaseURL.
func (cfg *Config) WithBaseURL(url string) *Config {
	cfg.BaseURL = url
	return cfg
}

// WithModel set model.
func (cfg *Config) WithModel(model string) *Config {
	cfg.Model = model
	return cfg
}

// Provider implements the chain.Synthesizer interface for Groq using the
// official OpenAI SDK pointed at Groq's endpoint.
type Provider struct {
	config *Config
	client openai.Client
}

// New creates a new Groq provider
func New(config *Config) *Provider {
	if config == nil {
		config = DefaultConfig("")
	}
	if config.Model == "" {
		config.Model = "llama-3.3-70b-specdec"
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = groqBaseURL
	}
	client := openai.NewClient(
		option.WithAPIKey(config.APIKey),
		option.WithBaseURL(baseURL),
	)

	return &Provider{
		config: config,
		client: client,
	}
}

// Name identifies the provider in user-facing error messages.
func (p *Provider) Name() string {
	return "Groq"
}

// SynthesizeStream implements chain.Synthesizer. It yields one delta chunk
// per streamed event and a final Completed message carrying the accumulated
// answer.
func (p *Provider) SynthesizeStream(ctx context.Context, req *chain.SynthesizeRequest) iter.Seq2[*message.Message, error] {
	return func(yield func(*message.Message, error) bool) {
		if req == nil {
			yield(nil, fmt.Errorf("synthesize request cannot be nil"))
			return
		}
		if p.config.APIKey == "" {
			yield(nil, fmt.Errorf("Groq API key not configured: %w", errorspkg.ErrMissingCredential))
			return
		}

		params := openai.ChatCompletionNewParams{
			Messages:    encodeMessages(req.Messages),
			Model:       openai.ChatModel(p.config.Model),
			Temperature: param.NewOpt(p.config.Temperature),
			MaxTokens:   param.NewOpt(p.config.MaxTokens),
			TopP:        param.NewOpt(p.config.TopP),
		}

		stream := p.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		finalMsg := message.NewMessage(message.RoleAssistant, "")

		for stream.Next() {
			event := stream.Current()
			if len(event.Choices) == 0 {
				continue
			}

			if content := event.Choices[0].Delta.Content; content != "" {
				finalMsg.AppendText(content)
				chunk := message.NewMessage(message.RoleAssistant, content)
				if !yield(chunk, nil) {
					return
				}
			}
		}

		if err := stream.Err(); err != nil {
			yield(nil, fmt.Errorf("Groq streaming error: %w: %v", errorspkg.ErrProvider, err))
			return
		}

		finalMsg.Completed = true
		yield(finalMsg, nil)
	}
}

func encodeMessages(msgs []*message.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case message.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Text()))
		case message.RoleUser:
			out = append(out, openai.UserMessage(msg.Text()))
		case message.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Text()))
		}
	}
	return out
}
