package services

import (
	"context"
	"fmt"
	"maps"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/vibereco/internal/core/domain"
	"github.com/ewilliams-labs/vibereco/internal/core/ports"
	"github.com/ewilliams-labs/vibereco/internal/logging"
	"github.com/ewilliams-labs/vibereco/internal/metrics"
)

// ABTestManager hides which ordering is which behind the labels A and B,
// records the rater's choice, and aggregates results.
type ABTestManager struct {
	votes ports.VoteRepository

	mu  sync.Mutex // guards rng
	rng *rand.Rand

	now   func() time.Time
	newID func() string
	log   zerolog.Logger
}

type ABTestOption func(*ABTestManager)

// WithRand makes label assignment reproducible.
func WithRand(rng *rand.Rand) ABTestOption {
	return func(m *ABTestManager) {
		if rng != nil {
			m.rng = rng
		}
	}
}

func WithClock(now func() time.Time) ABTestOption {
	return func(m *ABTestManager) {
		if now != nil {
			m.now = now
		}
	}
}

func NewABTestManager(votes ports.VoteRepository, opts ...ABTestOption) *ABTestManager {
	m := &ABTestManager{
		votes: votes,
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:   time.Now,
		newID: uuid.NewString,
		log:   logging.Component("abtest"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PrepareBlindTest flips a fair coin per call to decide whether A is the
// catalog ordering or the reranked one.
func (m *ABTestManager) PrepareBlindTest(seedQuery string, catalog, reranked []domain.Track) domain.BlindSetup {
	m.mu.Lock()
	catalogIsA := m.rng.IntN(2) == 0
	m.mu.Unlock()

	setup := domain.BlindSetup{
		TestID:    m.newID(),
		SeedQuery: seedQuery,
		CreatedAt: m.now().UTC(),
	}
	if catalogIsA {
		setup.A, setup.B = catalog, reranked
		setup.Mapping = map[domain.Label]domain.Source{domain.LabelA: domain.SourceCatalog, domain.LabelB: domain.SourceReranked}
	} else {
		setup.A, setup.B = reranked, catalog
		setup.Mapping = map[domain.Label]domain.Source{domain.LabelA: domain.SourceReranked, domain.LabelB: domain.SourceCatalog}
	}
	return setup
}

// SaveVote appends one record. An empty seedQuery falls back to the setup's.
func (m *ABTestManager) SaveVote(ctx context.Context, setup domain.BlindSetup, chosen domain.Label, scores domain.Scores, seedQuery string) (domain.ABTestRecord, error) {
	if !chosen.Valid() {
		return domain.ABTestRecord{}, fmt.Errorf("%w: label %q", domain.ErrInvalidVote, chosen)
	}
	if err := scores.Validate(); err != nil {
		return domain.ABTestRecord{}, err
	}
	winner, ok := setup.Mapping[chosen]
	if !ok {
		return domain.ABTestRecord{}, fmt.Errorf("%w: setup %s has no mapping for %q", domain.ErrInvalidVote, setup.TestID, chosen)
	}
	if seedQuery == "" {
		seedQuery = setup.SeedQuery
	}

	rec := domain.ABTestRecord{
		TestID:       setup.TestID,
		Timestamp:    m.now().UTC(),
		SeedQuery:    seedQuery,
		ChosenLabel:  chosen,
		WinnerSource: winner,
		Scores:       maps.Clone(scores),
		Mapping:      maps.Clone(setup.Mapping),
	}
	if err := m.votes.Append(ctx, rec); err != nil {
		return domain.ABTestRecord{}, fmt.Errorf("service: failed to save vote: %w", err)
	}
	metrics.Votes.WithLabelValues(string(winner)).Inc()
	m.log.Info().Str("test_id", rec.TestID).Str("winner", string(winner)).Msg("vote recorded")
	return rec, nil
}

// GetStats returns nil when no votes have been recorded.
func (m *ABTestManager) GetStats(ctx context.Context) (*domain.Stats, error) {
	records, err := m.votes.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load votes: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return computeStats(records), nil
}

func computeStats(records []domain.ABTestRecord) *domain.Stats {
	s := &domain.Stats{
		TotalVotes: len(records),
		Wins:       map[domain.Source]int{domain.SourceCatalog: 0, domain.SourceReranked: 0},
		BySeed:     make(map[string]map[domain.Source]int),
		MeanScores: make(map[domain.Source]map[string]float64),
	}
	sums := make(map[domain.Source]map[string]int)
	counts := make(map[domain.Source]map[string]int)

	for _, r := range records {
		s.Wins[r.WinnerSource]++

		seed := s.BySeed[r.SeedQuery]
		if seed == nil {
			seed = make(map[domain.Source]int)
			s.BySeed[r.SeedQuery] = seed
		}
		seed[r.WinnerSource]++

		if sums[r.WinnerSource] == nil {
			sums[r.WinnerSource] = make(map[string]int)
			counts[r.WinnerSource] = make(map[string]int)
		}
		for criterion, v := range r.Scores {
			sums[r.WinnerSource][criterion] += v
			counts[r.WinnerSource][criterion]++
		}
	}

	for src, byCriterion := range sums {
		means := make(map[string]float64, len(byCriterion))
		for criterion, sum := range byCriterion {
			means[criterion] = float64(sum) / float64(counts[src][criterion])
		}
		s.MeanScores[src] = means
	}

	total := float64(s.TotalVotes)
	s.CatalogWinRate = 100 * float64(s.Wins[domain.SourceCatalog]) / total
	s.RerankedWinRate = 100 * float64(s.Wins[domain.SourceReranked]) / total
	return s
}
