package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ewilliams-labs/vibereco/internal/adapters/llm"
	"github.com/ewilliams-labs/vibereco/internal/core/domain"
	"github.com/ewilliams-labs/vibereco/internal/core/ports"
)

// Profiler asks a chat-completion model for a song's profile.
type Profiler struct {
	client
}

var _ ports.ProfileAnalyzer = (*Profiler)(nil)

// NewProfiler builds a profiler. provider names the backend in errors and
// metrics ("openrouter" or "openai").
func NewProfiler(httpClient *http.Client, baseURL, apiKey, model, provider string) *Profiler {
	if provider == "" {
		provider = "openai"
	}
	return &Profiler{client: newClient(httpClient, baseURL, apiKey, model, provider)}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

func (p *Profiler) AnalyzeProfile(ctx context.Context, title, artist, lyrics string) (*domain.Profile, error) {
	payload := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: llm.SystemPrompt},
			{Role: "user", Content: llm.UserMessage(title, artist, lyrics)},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	var resp chatResponse
	if err := p.postJSON(ctx, "/chat/completions", payload, &resp); err != nil {
		return nil, err
	}
	// OpenRouter reports upstream failures inside a 200 body.
	if resp.Error != nil {
		return nil, fmt.Errorf("%s adapter: %s: %w", p.provider, resp.Error.Message, domain.ErrTransientAPI)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("%s adapter: empty completion: %w", p.provider, domain.ErrMalformedResponse)
	}

	profile, err := llm.ParseProfile(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("%s adapter: %w", p.provider, err)
	}
	return profile, nil
}
