package deepseek

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	errorspkg "github.com/sweetpotato0/reasonchain/errors"
)

const deepseekAPIURL = "https://api.deepseek.com/chat/completions"

// doneSentinel is the literal end-of-stream marker on the event stream.
const doneSentinel = "[DONE]"

// systemPrompt is sent ahead of the user question on every request.
const systemPrompt = "You are a helpful assistant."

// Config holds DeepSeek provider configuration
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// HTTPClient overrides the default client; mainly useful for tests.
	HTTPClient *http.Client
}

// DefaultConfig returns default DeepSeek configuration
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey: apiKey,
		Model:  "deepseek-reasoner",
	}
}

// Provider extracts reasoning traces from the DeepSeek streaming API. The
// request caps generated answer tokens at 1: only the reasoning_content
// deltas are wanted, not the model's final answer.
type Provider struct {
	config *Config
	client *http.Client
}

// New creates a new DeepSeek provider
func New(config *Config) *Provider {
	if config == nil {
		config = DefaultConfig("")
	}
	if config.Model == "" {
		config.Model = "deepseek-reasoner"
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	return &Provider{
		config: config,
		client: client,
	}
}

// Name identifies the provider in user-facing error messages.
func (p *Provider) Name() string {
	return "DeepSeek"
}

// chatMessage represents a message in DeepSeek API format
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest represents a DeepSeek streaming completion request
type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	Stream    bool          `json:"stream"`
	MaxTokens int           `json:"max_tokens"`
}

// streamChunk is one JSON-encoded incremental update on the event stream
type streamChunk struct {
	Choices []struct {
		Delta struct {
			ReasoningContent string `json:"reasoning_content"`
		} `json:"delta"`
	} `json:"choices"`
}

// apiError represents an error payload from the DeepSeek API
type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Reason issues a streaming completion request and returns the concatenation
// of all reasoning_content fragments, joined by single spaces. The credential
// is checked before any network I/O.
func (p *Provider) Reason(ctx context.Context, question string) (string, error) {
	if p.config.APIKey == "" {
		return "", fmt.Errorf("DeepSeek API key not configured: %w", errorspkg.ErrMissingCredential)
	}

	payload := chatRequest{
		Model: p.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: question},
		},
		Stream:    true,
		MaxTokens: 1,
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := p.config.BaseURL
	if url == "" {
		url = deepseekAPIURL
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w: %v", errorspkg.ErrTransport, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return "", decodeAPIError(httpResp)
	}

	return CollectReasoning(httpResp.Body)
}

// CollectReasoning consumes a text/event-stream body line by line and
// accumulates the reasoning_content field of each event. Malformed lines are
// skipped (decode errors only); a read failure on the stream itself is a
// transport fault.
func CollectReasoning(r io.Reader) (string, error) {
	var fragments []string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "data: "))
		if line == "" || line == doneSentinel {
			continue
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			// Skip malformed unit, continue with the rest of the stream.
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.ReasoningContent; content != "" {
			fragments = append(fragments, content)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading event stream: %w: %v", errorspkg.ErrTransport, err)
	}

	return strings.Join(fragments, " "), nil
}

// decodeAPIError converts a non-200 response into a provider fault, keeping
// the upstream message when the body is a well-formed error payload.
func decodeAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("DeepSeek API error (status %d): %w", resp.StatusCode, errorspkg.ErrTransport)
	}

	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("DeepSeek API error: %s: %w", apiErr.Error.Message, errorspkg.ErrProvider)
	}
	return fmt.Errorf("DeepSeek API error (status %d): %s: %w", resp.StatusCode, string(body), errorspkg.ErrProvider)
}
