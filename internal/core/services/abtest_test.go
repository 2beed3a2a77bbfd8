package services

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/vibereco/internal/core/domain"
)

func goodScores() domain.Scores {
	return domain.Scores{domain.CriterionEmotional: 4, domain.CriterionNarrative: 3, domain.CriterionKeepability: 5}
}

func TestPrepareBlindTest_Unbiased(t *testing.T) {
	m := NewABTestManager(&mockVotes{}, WithRand(rand.New(rand.NewPCG(42, 7))))
	catalog := []domain.Track{{Title: "c"}}
	reranked := []domain.Track{{Title: "r"}}

	const draws = 2000
	catalogIsA := 0
	ids := make(map[string]bool, draws)
	for range draws {
		s := m.PrepareBlindTest("seed", catalog, reranked)
		require.Len(t, s.Mapping, 2)
		require.NotEqual(t, s.Mapping[domain.LabelA], s.Mapping[domain.LabelB])
		if s.Mapping[domain.LabelA] == domain.SourceCatalog {
			catalogIsA++
			require.Equal(t, "c", s.A[0].Title)
		} else {
			require.Equal(t, "r", s.A[0].Title)
		}
		ids[s.TestID] = true
	}

	share := float64(catalogIsA) / draws
	assert.InDelta(t, 0.5, share, 0.05, "catalog was A in %d/%d draws", catalogIsA, draws)
	assert.Len(t, ids, draws, "test ids must be unique")
}

func TestSaveVote(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	setup := domain.BlindSetup{
		TestID:    "t-1",
		SeedQuery: "Iris",
		Mapping:   map[domain.Label]domain.Source{domain.LabelA: domain.SourceReranked, domain.LabelB: domain.SourceCatalog},
	}

	tests := []struct {
		name       string
		setup      domain.BlindSetup
		label      domain.Label
		scores     domain.Scores
		seed       string
		wantErr    bool
		wantWinner domain.Source
		wantSeed   string
	}{
		{name: "A is reranked", setup: setup, label: domain.LabelA, scores: goodScores(), wantWinner: domain.SourceReranked, wantSeed: "Iris"},
		{name: "B is catalog", setup: setup, label: domain.LabelB, scores: goodScores(), seed: "Override", wantWinner: domain.SourceCatalog, wantSeed: "Override"},
		{name: "unknown label", setup: setup, label: "C", scores: goodScores(), wantErr: true},
		{name: "score out of range", setup: setup, label: domain.LabelA, scores: domain.Scores{domain.CriterionEmotional: 6, domain.CriterionNarrative: 3, domain.CriterionKeepability: 5}, wantErr: true},
		{name: "missing criterion", setup: setup, label: domain.LabelA, scores: domain.Scores{domain.CriterionEmotional: 3}, wantErr: true},
		{name: "unknown criterion", setup: setup, label: domain.LabelA, scores: domain.Scores{domain.CriterionEmotional: 3, domain.CriterionNarrative: 3, domain.CriterionKeepability: 3, "vibes": 2}, wantErr: true},
		{name: "setup without mapping", setup: domain.BlindSetup{TestID: "t-2"}, label: domain.LabelA, scores: goodScores(), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			votes := &mockVotes{}
			m := NewABTestManager(votes, WithClock(func() time.Time { return now }))

			rec, err := m.SaveVote(context.Background(), tt.setup, tt.label, tt.scores, tt.seed)

			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrInvalidVote)
				assert.Empty(t, votes.records, "invalid votes must not be persisted")
				return
			}
			require.NoError(t, err)
			require.Len(t, votes.records, 1)
			assert.Equal(t, rec, votes.records[0])
			assert.Equal(t, tt.wantWinner, rec.WinnerSource)
			assert.Equal(t, tt.wantSeed, rec.SeedQuery)
			assert.Equal(t, now, rec.Timestamp)
			assert.Equal(t, tt.setup.Mapping, rec.Mapping)
		})
	}
}

func TestSaveVote_AppendOnly(t *testing.T) {
	votes := &mockVotes{}
	m := NewABTestManager(votes)
	setup := m.PrepareBlindTest("seed", nil, nil)

	for i := range 3 {
		_, err := m.SaveVote(context.Background(), setup, domain.LabelA, goodScores(), "")
		require.NoError(t, err)
		require.Len(t, votes.records, i+1)
	}

	first := votes.records[0]
	first.Mapping[domain.LabelA] = "tampered"
	assert.NotEqual(t, domain.Source("tampered"), setup.Mapping[domain.LabelA], "records must not share the setup's mapping")
}

func TestSaveVote_StoreFailure(t *testing.T) {
	m := NewABTestManager(&mockVotes{appendErr: errors.New("disk full")})
	setup := m.PrepareBlindTest("seed", nil, nil)

	_, err := m.SaveVote(context.Background(), setup, domain.LabelB, goodScores(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestGetStats(t *testing.T) {
	votes := &mockVotes{}
	m := NewABTestManager(votes)

	stats, err := m.GetStats(context.Background())
	require.NoError(t, err)
	assert.Nil(t, stats, "no votes means no stats")

	rec := func(seed string, winner domain.Source, emotional int) domain.ABTestRecord {
		return domain.ABTestRecord{
			SeedQuery:    seed,
			WinnerSource: winner,
			Scores:       domain.Scores{domain.CriterionEmotional: emotional, domain.CriterionNarrative: 3, domain.CriterionKeepability: 3},
		}
	}
	votes.records = []domain.ABTestRecord{
		rec("Iris", domain.SourceReranked, 5),
		rec("Iris", domain.SourceReranked, 4),
		rec("Hurt", domain.SourceCatalog, 2),
	}

	stats, err = m.GetStats(context.Background())
	require.NoError(t, err)
	require.NotNil(t, stats)

	assert.Equal(t, 3, stats.TotalVotes)
	assert.Equal(t, 2, stats.Wins[domain.SourceReranked])
	assert.Equal(t, 1, stats.Wins[domain.SourceCatalog])
	assert.InDelta(t, 66.666, stats.RerankedWinRate, 0.01)
	assert.InDelta(t, 33.333, stats.CatalogWinRate, 0.01)
	assert.InDelta(t, 100, stats.RerankedWinRate+stats.CatalogWinRate, 1e-9)
	assert.Equal(t, 2, stats.BySeed["Iris"][domain.SourceReranked])
	assert.Equal(t, 1, stats.BySeed["Hurt"][domain.SourceCatalog])
	assert.InDelta(t, 4.5, stats.MeanScores[domain.SourceReranked][domain.CriterionEmotional], 1e-9)
	assert.InDelta(t, 2.0, stats.MeanScores[domain.SourceCatalog][domain.CriterionEmotional], 1e-9)
}

func TestGetStats_OneSidedKeepsZeroWins(t *testing.T) {
	s := computeStats([]domain.ABTestRecord{{WinnerSource: domain.SourceCatalog, Scores: goodScores()}})

	assert.Equal(t, 0, s.Wins[domain.SourceReranked])
	assert.Equal(t, 100.0, s.CatalogWinRate)
	assert.False(t, math.IsNaN(s.RerankedWinRate))
}
