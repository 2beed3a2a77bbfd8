package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/vibereco/internal/core/domain"
	"github.com/ewilliams-labs/vibereco/internal/core/ports"
	"github.com/ewilliams-labs/vibereco/internal/logging"
	"github.com/ewilliams-labs/vibereco/internal/metrics"
)

const (
	msgNoSongs      = "no songs found"
	msgNotEnough    = "not enough songs with embeddings"
	msgCancelled    = "cancelled"
	defaultNeighbor = 5
)

// Orchestrator runs one query through every stage in order:
// search, lyrics, profile, vibe text, embed, index build, kNN.
type Orchestrator struct {
	catalog   ports.CatalogProvider
	lyrics    *LyricsFetcher
	profiler  *Profiler
	embedder  *EmbedStage
	indexes   ports.IndexBuilder
	neighbors int
	progress  func(string)
	artifacts ports.ArtifactSink
	store     ports.TrackRepository
	log       zerolog.Logger
}

type OrchestratorOption func(*Orchestrator)

// WithProgress replaces the default stdout progress printer.
func WithProgress(fn func(string)) OrchestratorOption {
	return func(o *Orchestrator) {
		if fn != nil {
			o.progress = fn
		}
	}
}

// WithNeighbors sets how many ranked neighbours a run returns.
func WithNeighbors(k int) OrchestratorOption {
	return func(o *Orchestrator) {
		if k > 0 {
			o.neighbors = k
		}
	}
}

// WithArtifacts snapshots the track list after every stage.
func WithArtifacts(sink ports.ArtifactSink) OrchestratorOption {
	return func(o *Orchestrator) { o.artifacts = sink }
}

// WithTrackStore saves embedded tracks for the static catalog.
func WithTrackStore(store ports.TrackRepository) OrchestratorOption {
	return func(o *Orchestrator) { o.store = store }
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(
	catalog ports.CatalogProvider,
	lyrics *LyricsFetcher,
	profiler *Profiler,
	embedder *EmbedStage,
	indexes ports.IndexBuilder,
	opts ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		catalog:   catalog,
		lyrics:    lyrics,
		profiler:  profiler,
		embedder:  embedder,
		indexes:   indexes,
		neighbors: defaultNeighbor,
		progress:  func(msg string) { fmt.Println(msg) },
		log:       logging.Component("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run never returns an error. A failed run comes back with OK=false, the
// stage it stopped at, a diagnostic message, and nil fields for every stage
// it did not reach.
func (o *Orchestrator) Run(ctx context.Context, query string, limit int) (res *domain.RunResult) {
	start := time.Now()
	res = &domain.RunResult{Query: query}
	log := o.log.With().Str("query", query).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("stage", string(res.Stage)).Msg("pipeline panicked")
			res.OK = false
			res.Message = fmt.Sprintf("internal error during %s: %v", res.Stage, r)
		}
		outcome := "ok"
		if !res.OK {
			outcome = outcomeOf(res.Message)
		}
		metrics.PipelineRuns.WithLabelValues(outcome).Inc()
		metrics.PipelineDuration.Observe(time.Since(start).Seconds())
		log.Info().Bool("ok", res.OK).Str("stage", string(res.Stage)).Dur("took", time.Since(start)).Msg("pipeline finished")
	}()

	// search
	res.Stage = domain.StageSearch
	o.say("[1/7] Searching the catalog for %q", query)
	tracks, err := o.catalog.FetchCandidates(ctx, query, limit)
	if err != nil || len(tracks) == 0 {
		res.Message = fmt.Sprintf("%s for %q", msgNoSongs, query)
		if err != nil {
			res.Message += ": " + err.Error()
			log.Warn().Err(err).Msg("catalog returned no candidates")
		}
		o.say("%s", res.Message)
		return res
	}
	metrics.RecordStage(string(domain.StageSearch), "ok", len(tracks))
	res.CatalogTracks = domain.CloneTracks(tracks)
	o.say("  %d candidates, seed: %s", len(tracks), tracks[0].Label())
	o.snapshot(ctx, domain.StageSearch, tracks)
	if o.cancelled(ctx, res, tracks) {
		return res
	}

	// lyrics
	res.Stage = domain.StageLyrics
	o.say("[2/7] Fetching lyrics")
	tracks = o.lyrics.Fetch(ctx, tracks)
	o.say("  lyrics found for %d/%d tracks", countTracks(tracks, domain.Track.HasLyrics), len(tracks))
	o.snapshot(ctx, domain.StageLyrics, tracks)
	if o.cancelled(ctx, res, tracks) {
		return res
	}

	// profile
	res.Stage = domain.StageProfile
	o.say("[3/7] Analysing lyrics")
	tracks = o.profiler.ProfileTracks(ctx, tracks)
	o.say("  %d profiles", countTracks(tracks, func(t domain.Track) bool { return t.Profile != nil }))
	o.snapshot(ctx, domain.StageProfile, tracks)
	if o.cancelled(ctx, res, tracks) {
		return res
	}

	// vibe text
	res.Stage = domain.StageVibeText
	o.say("[4/7] Composing vibe texts")
	for i := range tracks {
		tracks[i].VibeText = domain.ComposeVibeText(tracks[i])
	}
	metrics.RecordStage(string(domain.StageVibeText), "ok", len(tracks))
	o.snapshot(ctx, domain.StageVibeText, tracks)

	// embed
	res.Stage = domain.StageEmbed
	o.say("[5/7] Embedding vibe texts")
	tracks = o.embedder.Embed(ctx, tracks)
	o.snapshot(ctx, domain.StageEmbed, tracks)
	o.persist(ctx, tracks)
	if o.cancelled(ctx, res, tracks) {
		return res
	}

	// index build
	res.Stage = domain.StageIndexBuild
	res.Tracks = tracks
	indexed := make([]int, 0, len(tracks))
	vectors := make([][]float32, 0, len(tracks))
	for i, t := range tracks {
		if t.HasEmbedding() {
			indexed = append(indexed, i)
			// Builders may normalise in place; keep the raw vectors on the tracks.
			vectors = append(vectors, slices.Clone(t.Embedding))
		}
	}
	o.say("[6/7] Building index from %d/%d embedded tracks", len(indexed), len(tracks))
	if len(indexed) < 2 {
		res.Message = fmt.Sprintf("%s (%d, need at least 2)", msgNotEnough, len(indexed))
		o.say("%s", res.Message)
		return res
	}
	idx, err := o.indexes.Build(ctx, vectors)
	if err != nil {
		res.Message = "index build failed: " + err.Error()
		log.Error().Err(err).Msg("index build failed")
		o.say("%s", res.Message)
		return res
	}
	res.Indexed = indexed

	// knn
	res.Stage = domain.StageKNN
	seed := tracks[indexed[0]]
	k := min(o.neighbors, len(indexed)-1)
	o.say("[7/7] Ranking %d neighbours of %s", k, seed.Label())
	scores, positions, err := idx.Search(ctx, seed.Embedding, k)
	if err != nil {
		res.Message = "similarity search failed: " + err.Error()
		log.Error().Err(err).Msg("similarity search failed")
		o.say("%s", res.Message)
		return res
	}
	res.Scores = scores
	res.Positions = positions

	res.Ranked = make([]domain.Neighbor, 0, k)
	for i, pos := range positions {
		if pos == 0 {
			continue
		}
		if len(res.Ranked) == k {
			break
		}
		trackPos := indexed[pos]
		res.Ranked = append(res.Ranked, domain.Neighbor{
			Position: trackPos,
			Score:    scores[i],
			Track:    tracks[trackPos],
		})
	}

	res.OK = true
	for i, n := range res.Ranked {
		o.say("  %d. %s (%.3f)", i+1, n.Track.Label(), n.Score)
	}
	return res
}

func (o *Orchestrator) say(format string, args ...any) {
	o.progress(fmt.Sprintf(format, args...))
}

func (o *Orchestrator) snapshot(ctx context.Context, stage domain.Stage, tracks []domain.Track) {
	if o.artifacts == nil {
		return
	}
	if err := o.artifacts.WriteStage(ctx, stage, tracks); err != nil {
		o.log.Warn().Err(err).Str("stage", string(stage)).Msg("artifact not written")
	}
}

func (o *Orchestrator) persist(ctx context.Context, tracks []domain.Track) {
	if o.store == nil {
		return
	}
	keep := make([]domain.Track, 0, len(tracks))
	for _, t := range tracks {
		if t.ExternalID != "" && t.HasEmbedding() {
			keep = append(keep, t)
		}
	}
	if len(keep) == 0 {
		return
	}
	if err := o.store.SaveTracks(ctx, keep); err != nil {
		o.log.Warn().Err(err).Int("tracks", len(keep)).Msg("catalog store not updated")
	}
}

// cancelled ends the run when the caller's context is done.
func (o *Orchestrator) cancelled(ctx context.Context, res *domain.RunResult, tracks []domain.Track) bool {
	err := ctx.Err()
	if err == nil {
		return false
	}
	res.Tracks = tracks
	res.Message = msgCancelled + ": " + err.Error()
	o.say("%s", res.Message)
	return true
}

func outcomeOf(message string) string {
	switch {
	case strings.HasPrefix(message, msgNoSongs):
		return "no_songs"
	case strings.HasPrefix(message, msgNotEnough):
		return "not_enough_embeddings"
	case strings.HasPrefix(message, msgCancelled):
		return "cancelled"
	default:
		return "error"
	}
}

func countTracks(tracks []domain.Track, pred func(domain.Track) bool) int {
	n := 0
	for _, t := range tracks {
		if pred(t) {
			n++
		}
	}
	return n
}
