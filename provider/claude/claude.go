package claude

import (
	"context"
	"fmt"
	"iter"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"github.com/sweetpotato0/reasonchain/chain"
	errorspkg "github.com/sweetpotato0/reasonchain/errors"
	"github.com/sweetpotato0/reasonchain/message"
)

// Config holds Claude provider configuration
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int64
	Temperature float64
}

// DefaultConfig returns default Claude configuration
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:      apiKey,
		Model:       "claude-3-5-sonnet-20241022",
		MaxTokens:   1024,
		Temperature: 0.7,
	}
}

// Provider implements the chain.Synthesizer interface for Claude, kept as a
// drop-in alternative to the Groq synthesizer.
type Provider struct {
	config *Config
	client anthropic.Client
}

// New creates a new Claude provider using the official SDK
func New(config *Config) *Provider {
	if config == nil {
		config = DefaultConfig("")
	}
	if config.Model == "" {
		config.Model = "claude-3-5-sonnet-20241022"
	}

	options := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
	}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}

	client := anthropic.NewClient(options...)

	return &Provider{
		config: config,
		client: client,
	}
}

// Name identifies the provider in user-facing error messages.
func (p *Provider) Name() string {
	return "Claude"
}

// SynthesizeStream implements chain.Synthesizer. It yields one delta chunk
// per text_delta event and a final Completed message carrying the
// accumulated answer.
func (p *Provider) SynthesizeStream(ctx context.Context, req *chain.SynthesizeRequest) iter.Seq2[*message.Message, error] {
	return func(yield func(*message.Message, error) bool) {
		if req == nil {
			yield(nil, fmt.Errorf("synthesize request cannot be nil"))
			return
		}
		if p.config.APIKey == "" {
			yield(nil, fmt.Errorf("Claude API key not configured: %w", errorspkg.ErrMissingCredential))
			return
		}

		// Claude keeps system prompts out of the conversation turns.
		var systemText string
		conversationMessages := make([]anthropic.MessageParam, 0, len(req.Messages))
		for _, msg := range req.Messages {
			switch msg.Role {
			case message.RoleSystem:
				if systemText != "" {
					systemText += "\n"
				}
				systemText += msg.Text()
			case message.RoleUser:
				conversationMessages = append(conversationMessages,
					anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Text())))
			case message.RoleAssistant:
				conversationMessages = append(conversationMessages,
					anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Text())))
			}
		}

		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(p.config.Model),
			Messages:  conversationMessages,
			MaxTokens: p.config.MaxTokens,
		}
		if systemText != "" {
			params.System = []anthropic.TextBlockParam{
				{Text: systemText},
			}
		}
		if p.config.Temperature > 0 {
			params.Temperature = param.NewOpt(p.config.Temperature)
		}

		stream := p.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		finalMsg := message.NewMessage(message.RoleAssistant, "")

		for stream.Next() {
			event := stream.Current()

			switch event.Type {
			case "content_block_delta":
				contentDelta := event.AsContentBlockDelta()
				if contentDelta.Delta.Type == "text_delta" && contentDelta.Delta.Text != "" {
					finalMsg.AppendText(contentDelta.Delta.Text)
					chunk := message.NewMessage(message.RoleAssistant, contentDelta.Delta.Text)
					if !yield(chunk, nil) {
						return
					}
				}
			case "message_stop":
				// End of stream; the final message is emitted below.
			}
		}

		if err := stream.Err(); err != nil {
			yield(nil, fmt.Errorf("Claude streaming error: %w: %v", errorspkg.ErrProvider, err))
			return
		}

		finalMsg.Completed = true
		yield(finalMsg, nil)
	}
}
