// Package genius fetches song lyrics through the Genius search API and the
// public song page.
package genius

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/vibereco/internal/core/domain"
	"github.com/ewilliams-labs/vibereco/internal/core/ports"
	"github.com/ewilliams-labs/vibereco/internal/metrics"
)

const defaultBaseURL = "https://api.genius.com"

// Client is the primary lyrics provider.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

var _ ports.LyricsProvider = (*Client)(nil)

// NewClient builds a Genius client. token is the API access token.
func NewClient(httpClient *http.Client, baseURL, token string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

func (c *Client) Name() string { return "genius" }

type searchResponse struct {
	Response struct {
		Hits []struct {
			Type   string `json:"type"`
			Result struct {
				ID            int    `json:"id"`
				Title         string `json:"title"`
				URL           string `json:"url"`
				PrimaryArtist struct {
					Name string `json:"name"`
				} `json:"primary_artist"`
			} `json:"result"`
		} `json:"hits"`
	} `json:"response"`
}

// Lyrics searches for the song and scrapes its lyrics page. Section headers
// such as "[Chorus]" are removed.
func (c *Client) Lyrics(ctx context.Context, title, artist string) (string, error) {
	if c.token == "" {
		return "", fmt.Errorf("genius adapter: missing access token: %w", domain.ErrFatal)
	}

	start := time.Now()
	text, err := c.lyrics(ctx, title, artist)
	metrics.ObserveExternal("genius", start, err)
	return text, err
}

func (c *Client) lyrics(ctx context.Context, title, artist string) (string, error) {
	pageURL, err := c.findSong(ctx, title, artist)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("genius adapter: build page request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("genius adapter: page request: %v: %w", err, domain.ErrTransientAPI)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("genius adapter: page %s: %w", pageURL, domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("genius adapter: page status %d: %w", resp.StatusCode, domain.ErrTransientAPI)
	}

	text, err := extractLyrics(resp.Body)
	if err != nil {
		return "", fmt.Errorf("genius adapter: parse page: %v: %w", err, domain.ErrMalformedResponse)
	}
	if text == "" {
		return "", fmt.Errorf("genius adapter: empty lyrics for %q: %w", title, domain.ErrNotFound)
	}
	return text, nil
}

func (c *Client) findSong(ctx context.Context, title, artist string) (string, error) {
	params := url.Values{}
	params.Set("q", strings.TrimSpace(title+" "+artist))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("genius adapter: build search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("genius adapter: search request: %v: %w", err, domain.ErrTransientAPI)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("genius adapter: search status %d: %w", resp.StatusCode, domain.ErrTransientAPI)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("genius adapter: decode search: %v: %w", err, domain.ErrMalformedResponse)
	}

	wantArtist := strings.ToLower(strings.TrimSpace(artist))
	for _, hit := range body.Response.Hits {
		if hit.Type != "song" || hit.Result.URL == "" {
			continue
		}
		got := strings.ToLower(strings.TrimSpace(hit.Result.PrimaryArtist.Name))
		if wantArtist == "" {
			return hit.Result.URL, nil
		}
		if got == "" {
			continue
		}
		if strings.Contains(got, wantArtist) || strings.Contains(wantArtist, got) {
			return hit.Result.URL, nil
		}
	}
	return "", fmt.Errorf("genius adapter: no song hit for %q by %q: %w", title, artist, domain.ErrNotFound)
}
