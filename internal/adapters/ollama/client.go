// Package ollama provides an adapter for a local Ollama instance.
// It implements both profiling, by sending the lyrics through /api/chat in
// JSON mode, and embedding through /api/embed.
package ollama

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/vibereco/internal/adapters/llm"
	"github.com/ewilliams-labs/vibereco/internal/core/domain"
	"github.com/ewilliams-labs/vibereco/internal/core/ports"
	"github.com/ewilliams-labs/vibereco/internal/metrics"
)

const (
	defaultBaseURL    = "http://localhost:11434"
	defaultChatModel  = "deepseek-r1:8b"
	defaultEmbedModel = "nomic-embed-text"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	chatModel  string
	embedModel string
}

var (
	_ ports.ProfileAnalyzer = (*Client)(nil)
	_ ports.Embedder        = (*Client)(nil)
)

type Option func(*Client)

func WithChatModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.chatModel = model
		}
	}
}

func WithEmbedModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.embedModel = model
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

func NewClient(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		chatModel:  defaultChatModel,
		embedModel: defaultEmbedModel,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) AnalyzeProfile(ctx context.Context, title, artist, lyrics string) (*domain.Profile, error) {
	payload := chatRequest{
		Model:  c.chatModel,
		Stream: false,
		Format: "json",
		Messages: []chatMessage{
			{Role: "system", Content: llm.SystemPrompt},
			{Role: "user", Content: llm.UserMessage(title, artist, lyrics)},
		},
	}

	var parsed chatResponse
	if err := c.post(ctx, "/api/chat", payload, &parsed); err != nil {
		return nil, err
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("ollama: %s: %w", parsed.Error, domain.ErrTransientAPI)
	}
	if strings.TrimSpace(parsed.Message.Content) == "" {
		return nil, fmt.Errorf("ollama: empty response: %w", domain.ErrMalformedResponse)
	}

	profile, err := llm.ParseProfile(parsed.Message.Content)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	return profile, nil
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var parsed embedResponse
	if err := c.post(ctx, "/api/embed", embedRequest{Model: c.embedModel, Input: text}, &parsed); err != nil {
		return nil, err
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("ollama: %s: %w", parsed.Error, domain.ErrTransientAPI)
	}
	if len(parsed.Embeddings) == 0 || len(parsed.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama: empty embedding: %w", domain.ErrMalformedResponse)
	}
	return parsed.Embeddings[0], nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveExternal("ollama", start, err) }()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: request failed: %v: %w", err, domain.ErrTransientAPI)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// Ollama answers 404 when the model has not been pulled.
		return fmt.Errorf("ollama: model not available: %w", domain.ErrFatal)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ollama: unexpected status %d: %w", resp.StatusCode, domain.ErrTransientAPI)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ollama: decode response: %v: %w", err, domain.ErrMalformedResponse)
	}
	return nil
}
