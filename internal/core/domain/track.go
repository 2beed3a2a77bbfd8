package domain

import "slices"

// LyricsStatus records the outcome of the lyrics stage for one track.
type LyricsStatus string

const (
	LyricsFound    LyricsStatus = "found"
	LyricsNotFound LyricsStatus = "not_found"
	LyricsError    LyricsStatus = "error"
)

// LyricsSource names the provider that supplied the lyrics.
type LyricsSource string

const (
	SourcePrimary   LyricsSource = "provider_primary"
	SourceSecondary LyricsSource = "provider_secondary"
	SourceNone      LyricsSource = "none"
)

// Track is one song moving through the pipeline. The catalog stage fills
// Title, Artist and ExternalID; every later stage mutates the same value.
type Track struct {
	Title        string       `json:"title"`
	Artist       string       `json:"artist"`
	ExternalID   string       `json:"externalId"`
	Lyrics       string       `json:"lyrics,omitempty"`
	LyricsStatus LyricsStatus `json:"status,omitempty"`
	LyricsSource LyricsSource `json:"lyricsSource,omitempty"`
	Profile      *Profile     `json:"analysis,omitempty"`
	VibeText     string       `json:"vibeText,omitempty"`
	Embedding    []float32    `json:"embedding,omitempty"`
	Issues       []Issue      `json:"issues,omitempty"`
}

// HasLyrics reports whether the lyrics stage found text for the track.
func (t Track) HasLyrics() bool {
	return t.LyricsStatus == LyricsFound && t.Lyrics != ""
}

// HasEmbedding reports whether the track can enter an index.
func (t Track) HasEmbedding() bool {
	return len(t.Embedding) > 0
}

// Label is "Title - Artist", used in logs and progress lines.
func (t Track) Label() string {
	return t.Title + " - " + t.Artist
}

// AddIssue records a per-track failure without aborting the batch.
func (t *Track) AddIssue(stage Stage, err error) {
	if err == nil {
		return
	}
	t.Issues = append(t.Issues, Issue{
		Stage:   stage,
		Kind:    KindOf(err),
		Message: err.Error(),
	})
}

// CloneTracks deep-copies a track slice so a stage snapshot is not mutated
// by later stages.
func CloneTracks(tracks []Track) []Track {
	if tracks == nil {
		return nil
	}
	out := make([]Track, len(tracks))
	for i, t := range tracks {
		c := t
		if t.Profile != nil {
			p := t.Profile.clone()
			c.Profile = &p
		}
		if t.Embedding != nil {
			c.Embedding = slices.Clone(t.Embedding)
		}
		if t.Issues != nil {
			c.Issues = slices.Clone(t.Issues)
		}
		out[i] = c
	}
	return out
}
