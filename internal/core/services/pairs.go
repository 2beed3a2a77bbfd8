package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/vibereco/internal/core/domain"
	"github.com/ewilliams-labs/vibereco/internal/core/ports"
	"github.com/ewilliams-labs/vibereco/internal/logging"
)

// Runner runs the full pipeline for one query. *Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, query string, limit int) *domain.RunResult
}

var _ Runner = (*Orchestrator)(nil)

// PairGenerator pre-computes catalog/reranked playlist pairs for the
// benchmark seeds so blind tests can be served without live API calls.
type PairGenerator struct {
	runner Runner
	repo   ports.PairsRepository
	now    func() time.Time
	log    zerolog.Logger
}

func NewPairGenerator(runner Runner, repo ports.PairsRepository) *PairGenerator {
	return &PairGenerator{
		runner: runner,
		repo:   repo,
		now:    time.Now,
		log:    logging.Component("pairs"),
	}
}

// Generate resumes from the saved document: seeds that already have a pair
// are skipped, failed ones (nil) are retried. The document is saved after
// every processed seed.
func (g *PairGenerator) Generate(ctx context.Context, seeds []domain.BenchmarkSeed, limit int) (*domain.PairsFile, error) {
	doc, err := g.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load pairs: %w", err)
	}
	if doc == nil {
		doc = domain.NewPairsFile(seeds, g.now().UTC())
	} else {
		g.log.Info().Int("done", len(doc.Playlists)).Msg("resuming pair generation")
	}

	for _, seed := range seeds {
		if doc.Done(seed) {
			g.log.Info().Str("seed", seed.Title).Msg("already processed, skipping")
			continue
		}
		if err := ctx.Err(); err != nil {
			return doc, err
		}

		res := g.runner.Run(ctx, seed.Query, limit)
		pair := domain.PairFromRun(res, limit)
		doc.Playlists[seed.Key()] = pair
		if pair == nil {
			g.log.Warn().Str("seed", seed.Title).Str("reason", res.Message).Msg("no pair for seed")
		} else {
			g.log.Info().Str("seed", seed.Title).
				Int("catalog", len(pair.Catalog)).
				Int("reranked", len(pair.Reranked)).
				Msg("pair generated")
		}

		doc.LastUpdated = g.now().UTC()
		if err := g.repo.Save(ctx, doc); err != nil {
			return doc, fmt.Errorf("service: failed to save pairs: %w", err)
		}
	}
	return doc, nil
}
