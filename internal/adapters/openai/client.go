// Package openai talks to OpenAI-compatible HTTP APIs. OpenRouter serves the
// same /chat/completions contract, so the profiler covers both; the embedder
// uses /embeddings.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/vibereco/internal/core/domain"
	"github.com/ewilliams-labs/vibereco/internal/metrics"
)

type client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	provider   string
}

func newClient(httpClient *http.Client, baseURL, apiKey, model, provider string) client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		provider:   provider,
	}
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// postJSON sends payload and decodes a 2xx body into out. Auth failures are
// fatal for the whole run; everything else on the wire is transient.
func (c client) postJSON(ctx context.Context, path string, payload, out any) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveExternal(c.provider, start, err) }()

	if c.apiKey == "" {
		return fmt.Errorf("%s adapter: missing API key: %w", c.provider, domain.ErrFatal)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s adapter: marshal request: %w", c.provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s adapter: build request: %w", c.provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s adapter: request failed: %v: %w", c.provider, err, domain.ErrTransientAPI)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s adapter: status %d: %w", c.provider, resp.StatusCode, domain.ErrFatal)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%s adapter: status %d: %w", c.provider, resp.StatusCode, domain.ErrTransientAPI)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s adapter: decode response: %v: %w", c.provider, err, domain.ErrMalformedResponse)
	}
	return nil
}
