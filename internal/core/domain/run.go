package domain

// Neighbor is one ranked recommendation. Position indexes RunResult.Tracks.
type Neighbor struct {
	Position int     `json:"position"`
	Score    float32 `json:"score"`
	Track    Track   `json:"track"`
}

// RunResult accumulates what each stage produced. Fields belonging to stages
// the run never reached stay nil, so a failed run still shows how far it got.
type RunResult struct {
	Query         string  `json:"query"`
	Stage         Stage   `json:"stage"`
	OK            bool    `json:"ok"`
	Message       string  `json:"message,omitempty"`
	CatalogTracks []Track `json:"catalogTracks"`
	Tracks        []Track `json:"tracks"`
	// Indexed maps index position to Tracks position.
	Indexed   []int      `json:"indexed"`
	Scores    []float32  `json:"scores"`
	Positions []int      `json:"positions"`
	Ranked    []Neighbor `json:"ranked"`
}

// Seed returns the track used as the similarity query.
func (r *RunResult) Seed() (Track, bool) {
	if r == nil || len(r.Indexed) == 0 || len(r.Tracks) == 0 {
		return Track{}, false
	}
	return r.Tracks[r.Indexed[0]], true
}

// Orderings returns the catalog and reranked playlists compared in a blind
// test. The seed is excluded from both and the catalog ordering is cut to the
// reranked length so the rater sees lists of equal size.
func (r *RunResult) Orderings() (catalog, reranked []Track) {
	if r == nil || !r.OK {
		return nil, nil
	}
	seedPos := -1
	if len(r.Indexed) > 0 {
		seedPos = r.Indexed[0]
	}

	reranked = make([]Track, 0, len(r.Ranked))
	for _, n := range r.Ranked {
		reranked = append(reranked, n.Track)
	}

	catalog = make([]Track, 0, len(reranked))
	for i, t := range r.Tracks {
		if i == seedPos {
			continue
		}
		if len(catalog) == len(reranked) {
			break
		}
		catalog = append(catalog, t)
	}
	return catalog, reranked
}
