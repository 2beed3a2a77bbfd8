package spotify

import "github.com/ewilliams-labs/vibereco/internal/core/domain"

type spotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type spotifyTrack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Artists []spotifyArtist `json:"artists"`
}

func (t spotifyTrack) primaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0].Name
}

// toDomain keeps only what the pipeline needs. Multi-artist tracks are
// credited to their first artist, which is how lyrics providers index them.
func (t spotifyTrack) toDomain() domain.Track {
	return domain.Track{
		Title:      t.Name,
		Artist:     t.primaryArtist(),
		ExternalID: t.ID,
	}
}

type searchResponse struct {
	Tracks struct {
		Items []spotifyTrack `json:"items"`
	} `json:"tracks"`
	Artists struct {
		Items []spotifyArtist `json:"items"`
	} `json:"artists"`
}

type recommendationsResponse struct {
	Tracks []spotifyTrack `json:"tracks"`
}
