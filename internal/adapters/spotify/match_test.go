package spotify

import (
	"math"
	"testing"
)

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want int
	}{
		{name: "kitten sitting", a: "kitten", b: "sitting", want: 3},
		{name: "empty to word", a: "", b: "sound", want: 5},
		{name: "identical", a: "queen", b: "queen", want: 0},
		{name: "unicode", a: "björk", b: "bjork", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := levenshteinDistance(tt.a, tt.b); got != tt.want {
				t.Fatalf("distance: got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSimilarity(t *testing.T) {
	if got := similarity("", ""); got != 1 {
		t.Fatalf("empty strings: got %v", got)
	}
	if got := similarity("abcd", "abcf"); math.Abs(got-0.75) > 1e-9 {
		t.Fatalf("one substitution: got %v", got)
	}
}

func track(name, artist string) spotifyTrack {
	return spotifyTrack{ID: "id-" + name, Name: name, Artists: []spotifyArtist{{Name: artist}}}
}

func TestResolvesToArtist(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		tracks  []spotifyTrack
		artists []spotifyArtist
		want    bool
	}{
		{
			name:    "song and artist query",
			query:   "Bohemian Rhapsody Queen",
			tracks:  []spotifyTrack{track("Bohemian Rhapsody - Remastered 2011", "Queen")},
			artists: []spotifyArtist{{Name: "Queen"}},
			want:    false,
		},
		{
			name:    "bare artist name",
			query:   "Queen",
			tracks:  []spotifyTrack{track("Don't Stop Me Now", "Queen")},
			artists: []spotifyArtist{{Name: "Queen"}},
			want:    true,
		},
		{
			name:    "self-titled song favours the track",
			query:   "Weezer Buddy Holly",
			tracks:  []spotifyTrack{track("Buddy Holly", "Weezer")},
			artists: []spotifyArtist{{Name: "Buddy Holly"}},
			want:    false,
		},
		{
			name:    "artist only results",
			query:   "Radiohead",
			artists: []spotifyArtist{{Name: "Radiohead"}},
			want:    true,
		},
		{
			name:   "no artists",
			query:  "Creep",
			tracks: []spotifyTrack{track("Creep", "Radiohead")},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := resolvesToArtist(tt.query, tt.tracks, tt.artists)
			if got != tt.want {
				t.Fatalf("resolvesToArtist(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}
