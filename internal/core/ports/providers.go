package ports

import (
	"context"

	"github.com/ewilliams-labs/vibereco/internal/core/domain"
)

// LyricsProvider looks up the lyrics text of one song. Implementations
// return an error wrapping domain.ErrNotFound when the provider has no match.
type LyricsProvider interface {
	Name() string
	Lyrics(ctx context.Context, title, artist string) (string, error)
}

// ProfileAnalyzer asks an LLM for the emotional and semantic profile of a
// song. Unparseable output is reported as domain.ErrMalformedResponse.
type ProfileAnalyzer interface {
	AnalyzeProfile(ctx context.Context, title, artist, lyrics string) (*domain.Profile, error)
}

// Embedder turns a vibe text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
