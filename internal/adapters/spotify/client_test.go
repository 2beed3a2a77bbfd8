package spotify_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ewilliams-labs/vibereco/internal/adapters/spotify"
	"github.com/ewilliams-labs/vibereco/internal/core/domain"
	"github.com/ewilliams-labs/vibereco/internal/core/ports"
)

const bohemianSearch = `{
	"tracks": {"items": [
		{"id": "seed1", "name": "Bohemian Rhapsody - Remastered 2011", "artists": [{"id": "a1", "name": "Queen"}]},
		{"id": "x2", "name": "Bohemian Rhapsody - Live", "artists": [{"id": "a1", "name": "Queen"}]}
	]},
	"artists": {"items": [{"id": "a1", "name": "Queen"}]}
}`

const bohemianRecs = `{"tracks": [
	{"id": "r1", "name": "Don't Stop Me Now", "artists": [{"name": "Queen"}]},
	{"id": "seed1", "name": "Bohemian Rhapsody - Remastered 2011", "artists": [{"name": "Queen"}]},
	{"id": "r2", "name": "Stairway to Heaven", "artists": [{"name": "Led Zeppelin"}, {"name": "Someone"}]},
	{"id": "r3", "name": "Hotel California", "artists": [{"name": "Eagles"}]},
	{"id": "r4", "name": "Dream On", "artists": [{"name": "Aerosmith"}]},
	{"id": "r5", "name": "Imagine", "artists": [{"name": "John Lennon"}]}
]}`

func newCatalogServer(t *testing.T, search string, searchStatus int, recs string) (*httptest.Server, *[]string) {
	t.Helper()
	var paths []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/search":
			if got := r.URL.Query().Get("type"); got != "track,artist" {
				t.Errorf("search type = %q", got)
			}
			w.WriteHeader(searchStatus)
			_, _ = w.Write([]byte(search))
		case "/recommendations":
			if got := r.URL.Query().Get("seed_tracks"); got != "seed1" {
				t.Errorf("seed_tracks = %q", got)
			}
			_, _ = w.Write([]byte(recs))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(ts.Close)
	return ts, &paths
}

func TestFetchCandidates(t *testing.T) {
	ts, _ := newCatalogServer(t, bohemianSearch, http.StatusOK, bohemianRecs)
	client := spotify.NewClient(ts.Client(), ts.URL, spotify.WithMarket("US"))

	tracks, err := client.FetchCandidates(context.Background(), "Bohemian Rhapsody Queen", 5)
	if err != nil {
		t.Fatalf("FetchCandidates: %v", err)
	}

	want := []domain.Track{
		{Title: "Bohemian Rhapsody - Remastered 2011", Artist: "Queen", ExternalID: "seed1"},
		{Title: "Don't Stop Me Now", Artist: "Queen", ExternalID: "r1"},
		{Title: "Stairway to Heaven", Artist: "Led Zeppelin", ExternalID: "r2"},
		{Title: "Hotel California", Artist: "Eagles", ExternalID: "r3"},
		{Title: "Dream On", Artist: "Aerosmith", ExternalID: "r4"},
	}
	if len(tracks) != len(want) {
		t.Fatalf("got %d tracks, want %d", len(tracks), len(want))
	}
	for i := range want {
		if tracks[i].Title != want[i].Title || tracks[i].Artist != want[i].Artist || tracks[i].ExternalID != want[i].ExternalID {
			t.Errorf("track %d: got %+v, want %+v", i, tracks[i], want[i])
		}
	}
}

func TestFetchCandidatesFailures(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		search       string
		status       int
		wantNoSongs  bool
		wantNotASong bool
		wantPaths    int
	}{
		{
			name:         "artist query",
			query:        "Queen",
			search:       `{"tracks":{"items":[{"id":"t","name":"Don't Stop Me Now","artists":[{"name":"Queen"}]}]},"artists":{"items":[{"id":"a1","name":"Queen"}]}}`,
			status:       http.StatusOK,
			wantNoSongs:  true,
			wantNotASong: true,
			wantPaths:    1,
		},
		{
			name:        "zero results",
			query:       "zzzzqqqq",
			search:      `{"tracks":{"items":[]},"artists":{"items":[]}}`,
			status:      http.StatusOK,
			wantNoSongs: true,
			wantPaths:   1,
		},
		{
			name:        "top result without id",
			query:       "Creep",
			search:      `{"tracks":{"items":[{"id":"","name":"Creep","artists":[{"name":"Radiohead"}]}]},"artists":{"items":[]}}`,
			status:      http.StatusOK,
			wantNoSongs: true,
			wantPaths:   1,
		},
		{
			name:      "server error is not retried",
			query:     "Creep",
			search:    `{}`,
			status:    http.StatusInternalServerError,
			wantPaths: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, paths := newCatalogServer(t, tt.search, tt.status, bohemianRecs)
			client := spotify.NewClient(ts.Client(), ts.URL)

			tracks, err := client.FetchCandidates(context.Background(), tt.query, 5)
			if err == nil {
				t.Fatalf("expected error, got %d tracks", len(tracks))
			}
			if tracks != nil {
				t.Fatalf("expected nil tracks on failure")
			}
			if got := errors.Is(err, ports.ErrNoSongs); got != tt.wantNoSongs {
				t.Fatalf("errors.Is(ErrNoSongs) = %v, want %v (err=%v)", got, tt.wantNoSongs, err)
			}
			var nas ports.NotASongError
			if got := errors.As(err, &nas); got != tt.wantNotASong {
				t.Fatalf("errors.As(NotASongError) = %v, want %v", got, tt.wantNotASong)
			}
			if len(*paths) != tt.wantPaths {
				t.Fatalf("requests = %v, want %d", *paths, tt.wantPaths)
			}
		})
	}
}

func TestFetchCandidatesLimitOne(t *testing.T) {
	ts, paths := newCatalogServer(t, bohemianSearch, http.StatusOK, bohemianRecs)
	client := spotify.NewClient(ts.Client(), ts.URL)

	tracks, err := client.FetchCandidates(context.Background(), "Bohemian Rhapsody Queen", 1)
	if err != nil {
		t.Fatalf("FetchCandidates: %v", err)
	}
	if len(tracks) != 1 || tracks[0].ExternalID != "seed1" {
		t.Fatalf("got %+v", tracks)
	}
	if len(*paths) != 1 {
		t.Fatalf("recommendations should not be called, requests = %v", *paths)
	}
}
