package enhance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"

	// maxErrorBody bounds how much of an error response is kept in the error text.
	maxErrorBody = 512
)

const systemPrompt = "You are an experienced web designer. You improve the visual design " +
	"of existing pages without changing their text content or their links."

// OpenAIClient enhances clones through an OpenAI-compatible chat-completions API.
type OpenAIClient struct {
	client  *http.Client
	logger  *slog.Logger
	baseURL string
	apiKey  string
	model   string
}

// ClientOption configures an OpenAIClient.
type ClientOption func(*OpenAIClient)

// WithBaseURL sets the API root, for example "http://localhost:8000/v1".
func WithBaseURL(baseURL string) ClientOption {
	return func(c *OpenAIClient) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithModel sets the chat model name.
func WithModel(model string) ClientOption {
	return func(c *OpenAIClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *OpenAIClient) {
		if client != nil {
			c.client = client
		}
	}
}

// WithLogger sets the client's logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *OpenAIClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewOpenAIClient creates a client authenticating with apiKey.
func NewOpenAIClient(apiKey string, opts ...ClientOption) *OpenAIClient {
	c := &OpenAIClient{
		client:  &http.Client{Timeout: 120 * time.Second},
		logger:  slog.Default(),
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		model:   defaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Enhance sends the truncated page and stylesheet to the model and parses
// the fenced blocks out of its answer.
func (c *OpenAIClient) Enhance(ctx context.Context, in Input) (Output, error) {
	if c.apiKey == "" {
		return Output{}, ErrMissingAPIKey
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildPrompt(in)},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return Output{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Output{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Debug("sending enhancement request",
		"url", in.URL,
		"model", c.model,
		"payload_size", len(payload))

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return Output{}, fmt.Errorf("enhancement request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // best effort error detail
		return Output{}, fmt.Errorf("%w: %d: %s", ErrAPIStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return Output{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(chat.Choices) == 0 || strings.TrimSpace(chat.Choices[0].Message.Content) == "" {
		return Output{}, ErrEmptyResponse
	}

	c.logger.Debug("enhancement response received",
		"duration", time.Since(start),
		"tokens", chat.Usage.TotalTokens,
		"finish_reason", chat.Choices[0].FinishReason)

	return ParseResponse(chat.Choices[0].Message.Content)
}

// BuildPrompt renders the user message for in. Page and stylesheet are cut
// to SnippetLength characters each.
func BuildPrompt(in Input) string {
	var b strings.Builder
	b.WriteString("Improve the design of this cloned web page")
	if in.URL != "" {
		b.WriteString(" (")
		b.WriteString(in.URL)
		b.WriteString(")")
	}
	b.WriteString(".\nKeep every link and asset path unchanged.\n")
	b.WriteString("Answer with the complete page in a ```html code block and the stylesheet in a ```css code block.\n\n")
	b.WriteString("HTML:\n")
	b.WriteString(Truncate(in.HTML, SnippetLength))
	b.WriteString("\n\nCSS:\n")
	if in.CSS == "" {
		b.WriteString("(none)")
	} else {
		b.WriteString(Truncate(in.CSS, SnippetLength))
	}
	b.WriteString("\n")
	return b.String()
}
