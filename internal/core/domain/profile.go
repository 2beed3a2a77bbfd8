package domain

import (
	"fmt"
	"math"
	"slices"
)

// Profile is the emotional and semantic reading of a track's lyrics.
// It is produced once by the profiler and never modified afterwards.
type Profile struct {
	Language            string   `json:"language,omitempty"`
	Valence             float64  `json:"valence"`
	Arousal             float64  `json:"arousal"`
	Dominance           float64  `json:"dominance"`
	EmotionalTrajectory string   `json:"emotionalTrajectory"`
	PrimaryTheme        string   `json:"primaryTheme"`
	SecondaryThemes     []string `json:"secondaryThemes"`
	Keywords            []string `json:"keywords"`
	NarrativeArc        string   `json:"narrativeArc"`
	ListeningContexts   []string `json:"listeningContexts"`
	SimilarityAnchors   string   `json:"similarityAnchors,omitempty"`
	// WholeScores names the scores ("valence", "arousal", "dominance") the
	// model wrote as JSON integers. Vibe text prints those without a
	// decimal point.
	WholeScores []string `json:"wholeScores,omitempty"`
}

// Validate enforces the numeric ranges the profiler prompt asks for.
func (p Profile) Validate() error {
	if err := checkRange("valence", p.Valence, -1, 1); err != nil {
		return err
	}
	if err := checkRange("arousal", p.Arousal, 0, 1); err != nil {
		return err
	}
	if err := checkRange("dominance", p.Dominance, 0, 1); err != nil {
		return err
	}
	if p.PrimaryTheme == "" {
		return fmt.Errorf("%w: primary theme is empty", ErrMalformedResponse)
	}
	return nil
}

func checkRange(name string, v, lo, hi float64) error {
	if math.IsNaN(v) || v < lo || v > hi {
		return fmt.Errorf("%w: %s %v outside [%v, %v]", ErrMalformedResponse, name, v, lo, hi)
	}
	return nil
}

func (p Profile) clone() Profile {
	c := p
	c.SecondaryThemes = slices.Clone(p.SecondaryThemes)
	c.Keywords = slices.Clone(p.Keywords)
	c.ListeningContexts = slices.Clone(p.ListeningContexts)
	c.WholeScores = slices.Clone(p.WholeScores)
	return c
}
