package domain

import (
	"errors"
	"fmt"
	"time"
)

// Label is the blind name shown to the rater.
type Label string

const (
	LabelA Label = "A"
	LabelB Label = "B"
)

// Other returns the opposite label.
func (l Label) Other() Label {
	if l == LabelA {
		return LabelB
	}
	return LabelA
}

// Valid reports whether l is A or B.
func (l Label) Valid() bool {
	return l == LabelA || l == LabelB
}

// Source identifies where an ordering came from.
type Source string

const (
	SourceCatalog  Source = "catalog"
	SourceReranked Source = "reranked"
)

// Score criteria, each rated 1..5.
const (
	CriterionEmotional   = "emotional"
	CriterionNarrative   = "narrative"
	CriterionKeepability = "keepability"
)

// Criteria lists the criteria a vote must rate.
var Criteria = []string{CriterionEmotional, CriterionNarrative, CriterionKeepability}

var ErrInvalidVote = errors.New("invalid vote")

// Scores maps criterion name to a 1..5 rating.
type Scores map[string]int

// Validate requires every criterion once, each within 1..5.
func (s Scores) Validate() error {
	for _, c := range Criteria {
		v, ok := s[c]
		if !ok {
			return fmt.Errorf("%w: missing score %q", ErrInvalidVote, c)
		}
		if v < 1 || v > 5 {
			return fmt.Errorf("%w: score %q=%d outside 1..5", ErrInvalidVote, c, v)
		}
	}
	for k := range s {
		if !isCriterion(k) {
			return fmt.Errorf("%w: unknown criterion %q", ErrInvalidVote, k)
		}
	}
	return nil
}

func isCriterion(name string) bool {
	for _, c := range Criteria {
		if c == name {
			return true
		}
	}
	return false
}

// BlindSetup pairs two orderings with hidden labels.
type BlindSetup struct {
	TestID    string           `json:"test_id"`
	SeedQuery string           `json:"seed_song"`
	A         []Track          `json:"playlist_a"`
	B         []Track          `json:"playlist_b"`
	Mapping   map[Label]Source `json:"mapping"`
	CreatedAt time.Time        `json:"timestamp"`
}

// ABTestRecord is one persisted vote. Records are append-only.
type ABTestRecord struct {
	TestID       string           `json:"test_id"`
	Timestamp    time.Time        `json:"timestamp"`
	SeedQuery    string           `json:"seed_song"`
	ChosenLabel  Label            `json:"vote_for_playlist"`
	WinnerSource Source           `json:"winner_source"`
	Scores       Scores           `json:"scores"`
	Mapping      map[Label]Source `json:"mapping"`
}

// Stats aggregates every recorded vote.
type Stats struct {
	TotalVotes      int                           `json:"total_votes"`
	Wins            map[Source]int                `json:"wins"`
	CatalogWinRate  float64                       `json:"catalog_win_rate"`
	RerankedWinRate float64                       `json:"reranked_win_rate"`
	BySeed          map[string]map[Source]int     `json:"by_seed"`
	MeanScores      map[Source]map[string]float64 `json:"mean_scores"`
}
