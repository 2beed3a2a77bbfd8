package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/vibereco/internal/core/domain"
	"github.com/ewilliams-labs/vibereco/internal/core/ports"
	"github.com/ewilliams-labs/vibereco/internal/logging"
	"github.com/ewilliams-labs/vibereco/internal/metrics"
)

// LyricsFetcher fills Lyrics, LyricsStatus and LyricsSource on each track.
type LyricsFetcher struct {
	primary   ports.LyricsProvider
	secondary ports.LyricsProvider
	pause     time.Duration
	sleep     func(context.Context, time.Duration) error
	log       zerolog.Logger
}

// NewLyricsFetcher builds a fetcher. secondary may be nil. pause is applied
// once after each batch.
func NewLyricsFetcher(primary, secondary ports.LyricsProvider, pause time.Duration) *LyricsFetcher {
	return &LyricsFetcher{
		primary:   primary,
		secondary: secondary,
		pause:     pause,
		sleep:     sleepContext,
		log:       logging.Component("lyrics"),
	}
}

// Fetch mutates tracks in place and returns the same slice. Provider errors
// are recorded as issues and never returned.
func (f *LyricsFetcher) Fetch(ctx context.Context, tracks []domain.Track) []domain.Track {
	for i := range tracks {
		f.fetchOne(ctx, &tracks[i])
		metrics.RecordStage(string(domain.StageLyrics), string(tracks[i].LyricsStatus), 1)
	}
	if len(tracks) > 0 && f.pause > 0 {
		_ = f.sleep(ctx, f.pause)
	}
	return tracks
}

func (f *LyricsFetcher) fetchOne(ctx context.Context, t *domain.Track) {
	t.Lyrics = ""
	failed := false

	attempts := []struct {
		provider ports.LyricsProvider
		source   domain.LyricsSource
		title    string
	}{
		{f.primary, domain.SourcePrimary, t.Title},
		{f.secondary, domain.SourceSecondary, domain.CleanTitle(t.Title)},
	}

	for _, a := range attempts {
		if a.provider == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			t.AddIssue(domain.StageLyrics, err)
			failed = true
			break
		}

		text, err := a.provider.Lyrics(ctx, a.title, t.Artist)
		text = strings.TrimSpace(text)
		if err == nil && text != "" {
			t.Lyrics = text
			t.LyricsStatus = domain.LyricsFound
			t.LyricsSource = a.source
			f.log.Debug().Str("track", t.Label()).Str("provider", a.provider.Name()).Msg("lyrics found")
			return
		}

		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			failed = true
			t.AddIssue(domain.StageLyrics, err)
			f.log.Warn().Err(err).Str("track", t.Label()).Str("provider", a.provider.Name()).Msg("lyrics lookup failed")
		}
	}

	t.LyricsSource = domain.SourceNone
	if failed {
		t.LyricsStatus = domain.LyricsError
	} else {
		t.LyricsStatus = domain.LyricsNotFound
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
