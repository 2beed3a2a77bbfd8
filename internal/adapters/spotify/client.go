// Package spotify resolves a free-text query to a seed track and returns the
// catalog's own recommendations for it.
package spotify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ewilliams-labs/vibereco/internal/core/domain"
	"github.com/ewilliams-labs/vibereco/internal/core/ports"
	"github.com/ewilliams-labs/vibereco/internal/logging"
	"github.com/ewilliams-labs/vibereco/internal/metrics"
)

const (
	defaultBaseURL = "https://api.spotify.com/v1"
	searchLimit    = 5
	// The recommendations endpoint caps limit at 100.
	maxRecommendations = 100
)

// Client talks to the Spotify Web API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	market      string
	maxRetries  int
	baseBackoff time.Duration
}

var _ ports.CatalogProvider = (*Client)(nil)

// Option customises a Client.
type Option func(*Client)

// WithMarket sets the ISO country code sent with every request.
func WithMarket(market string) Option {
	return func(c *Client) { c.market = market }
}

// WithRetry enables retries on 429 and 5xx. maxRetries counts attempts, so
// 1 means a single call with no retry.
func WithRetry(maxRetries int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.baseBackoff = backoff
	}
}

// NewClient wraps an HTTP client that already authenticates requests.
func NewClient(httpClient *http.Client, baseURL string, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxRetries: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Credentials holds the client-credentials grant parameters.
type Credentials struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Timeout      time.Duration
}

// NewAuthenticatedClient builds a Client whose requests carry an app token
// obtained through the OAuth2 client-credentials flow.
func NewAuthenticatedClient(ctx context.Context, creds Credentials, baseURL string, opts ...Option) *Client {
	cc := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     creds.TokenURL,
	}
	httpClient := cc.Client(ctx)
	if creds.Timeout > 0 {
		httpClient.Timeout = creds.Timeout
	}
	return NewClient(httpClient, baseURL, opts...)
}

// FetchCandidates searches for the query, rejects it when the best hit is an
// artist, and returns the seed track followed by up to limit-1
// recommendations in the order Spotify ranks them.
func (c *Client) FetchCandidates(ctx context.Context, query string, limit int) ([]domain.Track, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("spotify adapter: empty query: %w", ports.ErrNoSongs)
	}
	if limit < 1 {
		limit = 1
	}
	log := logging.Component("spotify")

	res, err := c.search(ctx, query)
	if err != nil {
		return nil, err
	}

	if artist, ok := resolvesToArtist(query, res.Tracks.Items, res.Artists.Items); ok {
		log.Warn().Str("query", query).Str("artist", artist.Name).Msg("query resolved to an artist, not a song")
		return nil, fmt.Errorf("spotify adapter: %w", ports.NotASongError{Query: query, ResultType: "artist", Name: artist.Name})
	}
	if len(res.Tracks.Items) == 0 {
		return nil, fmt.Errorf("spotify adapter: no results for %q: %w", query, ports.ErrNoSongs)
	}

	seed := res.Tracks.Items[0]
	if seed.ID == "" {
		return nil, fmt.Errorf("spotify adapter: top result for %q has no id: %w", query, ports.ErrNoSongs)
	}
	log.Debug().Str("query", query).Str("seed", seed.Name).Str("id", seed.ID).Msg("seed resolved")

	tracks := []domain.Track{seed.toDomain()}
	if limit == 1 {
		return tracks, nil
	}

	recs, err := c.recommendations(ctx, seed.ID, limit-1)
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		if len(tracks) == limit {
			break
		}
		if r.ID == "" || r.ID == seed.ID {
			continue
		}
		tracks = append(tracks, r.toDomain())
	}
	return tracks, nil
}

func (c *Client) search(ctx context.Context, query string) (searchResponse, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track,artist")
	params.Set("limit", strconv.Itoa(searchLimit))
	if c.market != "" {
		params.Set("market", c.market)
	}

	var out searchResponse
	if err := c.getJSON(ctx, "/search", params, &out); err != nil {
		return searchResponse{}, fmt.Errorf("spotify adapter: search: %w", err)
	}
	return out, nil
}

func (c *Client) recommendations(ctx context.Context, seedID string, n int) ([]spotifyTrack, error) {
	params := url.Values{}
	params.Set("seed_tracks", seedID)
	params.Set("limit", strconv.Itoa(min(n+1, maxRecommendations)))
	if c.market != "" {
		params.Set("market", c.market)
	}

	var out recommendationsResponse
	if err := c.getJSON(ctx, "/recommendations", params, &out); err != nil {
		return nil, fmt.Errorf("spotify adapter: recommendations: %w", err)
	}
	return out.Tracks, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, dst any) error {
	u := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := c.doRequestWithRetry(req)
	metrics.ObserveExternal("spotify", start, err)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrTransientAPI)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode: %v: %w", err, domain.ErrMalformedResponse)
	}
	return nil
}
