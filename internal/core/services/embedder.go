package services

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/vibereco/internal/core/domain"
	"github.com/ewilliams-labs/vibereco/internal/core/ports"
	"github.com/ewilliams-labs/vibereco/internal/logging"
	"github.com/ewilliams-labs/vibereco/internal/metrics"
)

// EmbedStage vectorises the vibe text of profiled tracks.
type EmbedStage struct {
	embedder ports.Embedder
	log      zerolog.Logger
}

func NewEmbedStage(embedder ports.Embedder) *EmbedStage {
	return &EmbedStage{embedder: embedder, log: logging.Component("embedder")}
}

// Embed sets Embedding on tracks that have a profile-derived vibe text.
// Fallback-template tracks stay unembedded so they never enter the index.
func (e *EmbedStage) Embed(ctx context.Context, tracks []domain.Track) []domain.Track {
	var fatal error
	for i := range tracks {
		t := &tracks[i]
		t.Embedding = nil
		if t.Profile == nil || t.VibeText == "" {
			continue
		}
		if fatal != nil {
			t.AddIssue(domain.StageEmbed, fatal)
			metrics.RecordStage(string(domain.StageEmbed), "skipped", 1)
			continue
		}
		if err := ctx.Err(); err != nil {
			t.AddIssue(domain.StageEmbed, err)
			continue
		}

		vec, err := e.embedder.Embed(ctx, t.VibeText)
		if err != nil {
			t.AddIssue(domain.StageEmbed, err)
			e.log.Warn().Err(err).Str("track", t.Label()).Msg("embedding failed")
			metrics.RecordStage(string(domain.StageEmbed), string(domain.KindOf(err)), 1)
			if domain.KindOf(err) == domain.KindFatal {
				fatal = err
			}
			continue
		}
		t.Embedding = vec
		metrics.RecordStage(string(domain.StageEmbed), "ok", 1)
	}
	return tracks
}
