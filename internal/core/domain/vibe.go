package domain

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// ComposeVibeText flattens a track's profile into the sentence that gets
// embedded. Field order and labels are part of the embedding contract: a
// change here moves every vector in a persisted catalog.
func ComposeVibeText(t Track) string {
	if t.Profile == nil {
		return "Title: " + t.Title + ". Artist: " + t.Artist + ". Status: Instrumental or Lyrics not found"
	}
	p := t.Profile

	var b strings.Builder
	b.WriteString("Title: " + t.Title + ". ")
	b.WriteString("Artist: " + t.Artist + ". ")
	b.WriteString("Primary Theme: " + p.PrimaryTheme + ". ")
	b.WriteString("Secondary Themes: " + strings.Join(p.SecondaryThemes, ", ") + ". ")
	b.WriteString("Emotions: Valence " + p.score("valence", p.Valence) +
		", Arousal " + p.score("arousal", p.Arousal) +
		", Dominance " + p.score("dominance", p.Dominance) + ". ")
	b.WriteString("Vibe Description: " + p.EmotionalTrajectory + ". ")
	b.WriteString("Keywords: " + strings.Join(p.Keywords, ", ") + ". ")
	b.WriteString("Context: " + strings.Join(p.ListeningContexts, ", ") + ". ")
	b.WriteString("Narrative: " + p.NarrativeArc)
	return b.String()
}

func (p *Profile) score(name string, v float64) string {
	if slices.Contains(p.WholeScores, name) && v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return formatScore(v)
}

// formatScore prints a float the way the catalog's existing vectors were
// produced: shortest round-trip digits, always with a decimal point.
func formatScore(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if strings.ContainsAny(s, ".eIN") {
		return s
	}
	return s + ".0"
}

var annotationPattern = regexp.MustCompile(`(?i)\s*[(\[][^)\]]*(official|video|audio|lyrics|version|remaster)[^)\]]*[)\]]`)

// CleanTitle strips release annotations such as "(Official Audio)" or
// "[Remastered 2011]" before a lyrics lookup.
func CleanTitle(title string) string {
	return strings.TrimSpace(annotationPattern.ReplaceAllString(title, ""))
}
