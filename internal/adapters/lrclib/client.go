// Package lrclib is the secondary lyrics provider, backed by the public
// LRCLIB search API.
package lrclib

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

const (
	defaultBaseURL = "https://lrclib.net"
	userAgent      = "vibereco (https://github.com/ewilliams-labs/vibereco)"
)

type Client struct {
	httpClient *http.Client
	baseURL    string
}

var _ ports.LyricsProvider = (*Client)(nil)

func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{httpClient: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *Client) Name() string { return "lrclib" }

type record struct {
	ID           int    `json:"id"`
	TrackName    string `json:"trackName"`
	ArtistName   string `json:"artistName"`
	Instrumental bool   `json:"instrumental"`
	PlainLyrics  string `json:"plainLyrics"`
}

// Lyrics returns the plain lyrics of the first matching record that has any.
func (c *Client) Lyrics(ctx context.Context, title, artist string) (string, error) {
	start := time.Now()
	text, err := c.lyrics(ctx, title, artist)
	metrics.ObserveExternal("lrclib", start, err)
	return text, err
}

func (c *Client) lyrics(ctx context.Context, title, artist string) (string, error) {
	params := url.Values{}
	params.Set("track_name", title)
	if artist != "" {
		params.Set("artist_name", artist)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/search?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("lrclib adapter: build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("lrclib adapter: request: %v: %w", err, domain.ErrTransientAPI)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("lrclib adapter: %q: %w", title, domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("lrclib adapter: status %d: %w", resp.StatusCode, domain.ErrTransientAPI)
	}

	var records []record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return "", fmt.Errorf("lrclib adapter: decode: %v: %w", err, domain.ErrMalformedResponse)
	}

	for _, r := range records {
		if r.Instrumental {
			continue
		}
		if text := strings.TrimSpace(r.PlainLyrics); text != "" {
			return text, nil
		}
	}
	return "", fmt.Errorf("lrclib adapter: no lyrics for %q by %q: %w", title, artist, domain.ErrNotFound)
}
