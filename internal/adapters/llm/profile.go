// Package llm holds the profiler prompt contract shared by every
// chat-completion backend, and the strict parser for its JSON answer.
package llm

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/vibereco/internal/core/domain"
)

// SystemPrompt asks for exactly one JSON object in the profile schema.
const SystemPrompt = `You are an expert in musicology and music psychology. Analyse the lyrics you are given and extract a structured emotional and semantic profile.
IMPORTANT: give no explanation, only one valid JSON object.

Expected output format (JSON):
{
  "song_meta": {
    "title": "Title",
    "artist": "Artist",
    "language": "Language"
  },
  "emotional_profile": {
    "valence": float between -1 (negative) and 1 (positive),
    "arousal": float between 0 (calm) and 1 (intense),
    "dominance": float between 0 (submissive) and 1 (in control),
    "emotional_trajectory": "short description of how the emotion evolves (e.g. Sad -> Hopeful)"
  },
  "semantic_layer": {
    "primary_theme": "Main theme (e.g. Love, Loss, Revolt...)",
    "secondary_themes": ["Theme 2", "Theme 3"],
    "keywords": ["word1", "word2", "word3", "word4", "word5"],
    "narrative_arc": "One-sentence summary of the story told"
  },
  "contextual_metadata": {
    "listening_context": ["Best moment to listen (e.g. Evening, Workout, Heartbreak)"],
    "similarity_anchors": "1 or 2 well-known artists or songs with a similar vibe"
  }
}
CRITICAL: output ONLY valid JSON. No explanation, no markdown, no preamble.
Start directly with { and end directly with }`

// UserMessage embeds the song in the user turn.
func UserMessage(title, artist, lyrics string) string {
	return fmt.Sprintf("Please analyse the following lyrics:\n%s\nfor the artist:\n%s\nand the title:\n%s", lyrics, artist, title)
}

type rawProfile struct {
	SongMeta struct {
		Title    string `json:"title"`
		Artist   string `json:"artist"`
		Language string `json:"language"`
	} `json:"song_meta"`
	EmotionalProfile struct {
		Valence             *flexFloat `json:"valence"`
		Arousal             *flexFloat `json:"arousal"`
		Dominance           *flexFloat `json:"dominance"`
		EmotionalTrajectory string     `json:"emotional_trajectory"`
	} `json:"emotional_profile"`
	SemanticLayer struct {
		PrimaryTheme    string   `json:"primary_theme"`
		SecondaryThemes []string `json:"secondary_themes"`
		Keywords        []string `json:"keywords"`
		NarrativeArc    string   `json:"narrative_arc"`
	} `json:"semantic_layer"`
	ContextualMetadata struct {
		ListeningContext  []string `json:"listening_context"`
		SimilarityAnchors string   `json:"similarity_anchors"`
	} `json:"contextual_metadata"`
}

// flexFloat accepts 0.7 as well as "0.7"; models quote numbers often enough.
// whole is set for bare integer literals such as 1.
type flexFloat struct {
	v     float64
	whole bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	lit := string(bytes.TrimSpace(b))
	s := strings.Trim(lit, `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", b)
	}
	f.v = v
	f.whole = s == lit && !strings.ContainsAny(s, ".eE")
	return nil
}

// ParseProfile decodes a model answer into a validated profile. Markdown
// fences and text around the outermost object are tolerated; anything else
// wrong is reported as domain.ErrMalformedResponse.
func ParseProfile(content string) (*domain.Profile, error) {
	obj, ok := outermostObject(content)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object in response", domain.ErrMalformedResponse)
	}

	var raw rawProfile
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	ep := raw.EmotionalProfile
	if ep.Valence == nil || ep.Arousal == nil || ep.Dominance == nil {
		return nil, fmt.Errorf("%w: emotional_profile is incomplete", domain.ErrMalformedResponse)
	}

	p := &domain.Profile{
		Language:            raw.SongMeta.Language,
		Valence:             ep.Valence.v,
		Arousal:             ep.Arousal.v,
		Dominance:           ep.Dominance.v,
		EmotionalTrajectory: ep.EmotionalTrajectory,
		PrimaryTheme:        raw.SemanticLayer.PrimaryTheme,
		SecondaryThemes:     raw.SemanticLayer.SecondaryThemes,
		Keywords:            raw.SemanticLayer.Keywords,
		NarrativeArc:        raw.SemanticLayer.NarrativeArc,
		ListeningContexts:   raw.ContextualMetadata.ListeningContext,
		SimilarityAnchors:   raw.ContextualMetadata.SimilarityAnchors,
	}
	for name, f := range map[string]*flexFloat{"valence": ep.Valence, "arousal": ep.Arousal, "dominance": ep.Dominance} {
		if f.whole {
			p.WholeScores = append(p.WholeScores, name)
		}
	}
	slices.Sort(p.WholeScores)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func outermostObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
