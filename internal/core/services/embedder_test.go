package services

import (
	"context"
	"testing"

	"github.com/ewilliams-labs/vibereco/internal/core/domain"
)

func TestEmbedStage_Embed(t *testing.T) {
	profiled := func(title string) domain.Track {
		tr := lyricTrack(title)
		tr.Profile = profileFor("night")
		tr.VibeText = domain.ComposeVibeText(tr)
		return tr
	}
	fallback := domain.Track{Title: "instrumental", Artist: "Artist", LyricsStatus: domain.LyricsNotFound}
	fallback.VibeText = domain.ComposeVibeText(fallback)

	emb := &mockEmbedder{
		vectors: map[string][]float32{"a": {1, 0}, "b": {0, 1}},
		errs:    map[string]error{"broken": domain.ErrTransientAPI},
	}
	stage := NewEmbedStage(emb)

	tracks := []domain.Track{profiled("a"), fallback, profiled("broken"), profiled("b")}
	stage.Embed(context.Background(), tracks)

	if len(emb.texts) != 3 {
		t.Fatalf("embed calls = %d, want 3 (fallback text is never embedded)", len(emb.texts))
	}
	if !tracks[0].HasEmbedding() || !tracks[3].HasEmbedding() {
		t.Fatalf("profiled tracks should be embedded")
	}
	if tracks[1].HasEmbedding() {
		t.Fatalf("fallback track was embedded")
	}
	if tracks[2].HasEmbedding() || len(tracks[2].Issues) != 1 || tracks[2].Issues[0].Stage != domain.StageEmbed {
		t.Fatalf("broken track: embedding=%v issues=%+v", tracks[2].Embedding, tracks[2].Issues)
	}
	for _, tr := range tracks {
		if tr.HasEmbedding() && tr.VibeText == "" {
			t.Fatalf("%s embedded without vibe text", tr.Title)
		}
	}
}

func TestEmbedStage_FatalStopsCalls(t *testing.T) {
	emb := &mockEmbedder{errs: map[string]error{"a": domain.ErrFatal}}
	stage := NewEmbedStage(emb)

	var tracks []domain.Track
	for _, title := range []string{"a", "b", "c"} {
		tr := lyricTrack(title)
		tr.Profile = profileFor("x")
		tr.VibeText = domain.ComposeVibeText(tr)
		tracks = append(tracks, tr)
	}
	stage.Embed(context.Background(), tracks)

	if len(emb.texts) != 1 {
		t.Fatalf("embed calls = %d, want 1", len(emb.texts))
	}
	for _, tr := range tracks {
		if tr.HasEmbedding() || len(tr.Issues) != 1 || tr.Issues[0].Kind != domain.KindFatal {
			t.Fatalf("%s: embedding=%v issues=%+v", tr.Title, tr.Embedding, tr.Issues)
		}
	}
}
