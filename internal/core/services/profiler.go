package services

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/vibereco/internal/core/domain"
	"github.com/ewilliams-labs/vibereco/internal/core/ports"
	"github.com/ewilliams-labs/vibereco/internal/logging"
	"github.com/ewilliams-labs/vibereco/internal/metrics"
)

// Profiler attaches an LLM profile to every track that has lyrics.
type Profiler struct {
	analyzer ports.ProfileAnalyzer
	log      zerolog.Logger
}

func NewProfiler(analyzer ports.ProfileAnalyzer) *Profiler {
	return &Profiler{analyzer: analyzer, log: logging.Component("profiler")}
}

// Analyze returns nil and logs a warning when the model's answer is unusable.
func (p *Profiler) Analyze(ctx context.Context, title, artist, lyrics string) *domain.Profile {
	profile, err := p.analyzer.AnalyzeProfile(ctx, title, artist, lyrics)
	if err != nil {
		p.log.Warn().Err(err).Str("title", title).Str("artist", artist).Msg("profile unavailable")
		return nil
	}
	return profile
}

// ProfileTracks analyses tracks whose lyrics were found; others keep a nil
// profile. A fatal error (bad credentials, missing model) stops further calls
// and marks the remaining tracks with the same issue.
func (p *Profiler) ProfileTracks(ctx context.Context, tracks []domain.Track) []domain.Track {
	var fatal error
	for i := range tracks {
		t := &tracks[i]
		t.Profile = nil
		if !t.HasLyrics() {
			continue
		}
		if fatal != nil {
			t.AddIssue(domain.StageProfile, fatal)
			metrics.RecordStage(string(domain.StageProfile), "skipped", 1)
			continue
		}
		if err := ctx.Err(); err != nil {
			t.AddIssue(domain.StageProfile, err)
			continue
		}

		profile, err := p.analyzer.AnalyzeProfile(ctx, t.Title, t.Artist, t.Lyrics)
		if err != nil {
			t.AddIssue(domain.StageProfile, err)
			p.log.Warn().Err(err).Str("track", t.Label()).Str("kind", string(domain.KindOf(err))).Msg("profile unavailable")
			metrics.RecordStage(string(domain.StageProfile), string(domain.KindOf(err)), 1)
			if domain.KindOf(err) == domain.KindFatal {
				fatal = err
			}
			continue
		}
		t.Profile = profile
		metrics.RecordStage(string(domain.StageProfile), "ok", 1)
	}
	return tracks
}
