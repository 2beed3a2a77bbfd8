package domain

import (
	"math"
	"strconv"
	"time"
)

// BenchmarkSeed is one song of the fixed A/B benchmark set.
type BenchmarkSeed struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Query  string `json:"query"`
	Vibe   string `json:"vibe"`
}

// Key is the seed's key in PairsFile.Playlists.
func (s BenchmarkSeed) Key() string { return strconv.Itoa(s.ID) }

// BenchmarkSeeds returns the official seed set used to pre-generate pairs.
func BenchmarkSeeds() []BenchmarkSeed {
	return []BenchmarkSeed{
		{ID: 1, Title: "Melodrama", Artist: "Disiz, Theodora", Query: "Melodrama Disiz Theodora", Vibe: "introspection"},
		{ID: 2, Title: "DIPLOMATICO", Artist: "ELGRANDETOTO", Query: "DIPLOMATICO ELGRANDETOTO", Vibe: "ego"},
		{ID: 3, Title: "LOVE YOU", Artist: "Nono La Grinta", Query: "LOVE YOU Nono La Grinta", Vibe: "amour"},
		{ID: 4, Title: "Génération Impolie", Artist: "Franglish, KeBlack", Query: "Génération Impolie Franglish KeBlack", Vibe: "fête"},
		{ID: 5, Title: "PARISIENNE", Artist: "GIMS, La Mano 1.9", Query: "PARISIENNE GIMS La Mano 1.9", Vibe: "night_drive"},
		{ID: 6, Title: "The Fate of Ophelia", Artist: "Taylor Swift", Query: "The Fate of Ophelia Taylor Swift", Vibe: "storytelling"},
		{ID: 7, Title: "ZOU BISOU", Artist: "Theodora, Jul", Query: "ZOU BISOU Theodora Jul", Vibe: "amour"},
		{ID: 8, Title: "BIRDS OF A FEATHER", Artist: "Billie Eilish", Query: "BIRDS OF A FEATHER Billie Eilish", Vibe: "introspection"},
		{ID: 9, Title: "Biff pas d'love", Artist: "Bouss", Query: "Biff pas d'love Bouss", Vibe: "rupture"},
		{ID: 10, Title: "RUINART", Artist: "R2", Query: "RUINART R2", Vibe: "ego"},
		{ID: 11, Title: "FASHION DESIGNA", Artist: "Theodora", Query: "FASHION DESIGNA Theodora", Vibe: "ego"},
		{ID: 12, Title: "CARTIER SANTOS", Artist: "SDM", Query: "CARTIER SANTOS SDM", Vibe: "ego"},
		{ID: 13, Title: "Disfruto", Artist: "Carla Morrison", Query: "Disfruto Carla Morrison", Vibe: "nostalgie"},
		{ID: 14, Title: "Nostalgique", Artist: "Jul", Query: "Nostalgique Jul", Vibe: "nostalgie"},
		{ID: 15, Title: "Iris", Artist: "The Goo Goo Dolls", Query: "Iris The Goo Goo Dolls", Vibe: "emotionnel"},
	}
}

// PlaylistEntry is one row of a pre-generated playlist. Position is 1-based.
type PlaylistEntry struct {
	Position   int     `json:"position"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	ExternalID string  `json:"externalId"`
	VibeScore  float64 `json:"vibeScore"`
}

// PlaylistPair holds both orderings for one seed.
type PlaylistPair struct {
	Catalog  []PlaylistEntry `json:"catalog"`
	Reranked []PlaylistEntry `json:"reranked"`
}

// PairsFile is the on-disk document of pre-generated pairs. A nil entry in
// Playlists marks a seed whose run failed and should be retried.
type PairsFile struct {
	GeneratedAt time.Time                `json:"generatedAt"`
	LastUpdated time.Time                `json:"lastUpdated"`
	Seeds       []BenchmarkSeed          `json:"seeds"`
	Playlists   map[string]*PlaylistPair `json:"playlists"`
}

// NewPairsFile starts an empty document for the given seeds.
func NewPairsFile(seeds []BenchmarkSeed, now time.Time) *PairsFile {
	return &PairsFile{
		GeneratedAt: now,
		LastUpdated: now,
		Seeds:       seeds,
		Playlists:   make(map[string]*PlaylistPair),
	}
}

// Done reports whether the seed already has a successful pair.
func (f *PairsFile) Done(seed BenchmarkSeed) bool {
	return f != nil && f.Playlists[seed.Key()] != nil
}

// PairFromRun builds both playlists from a successful run. Catalog entries
// carry no score; reranked entries carry the cosine similarity rounded to
// three decimals.
func PairFromRun(r *RunResult, limit int) *PlaylistPair {
	catalog, _ := r.Orderings()
	if catalog == nil {
		return nil
	}
	pair := &PlaylistPair{
		Catalog:  make([]PlaylistEntry, 0, len(catalog)),
		Reranked: make([]PlaylistEntry, 0, len(r.Ranked)),
	}
	for i, t := range catalog {
		if limit > 0 && i >= limit {
			break
		}
		pair.Catalog = append(pair.Catalog, entry(i, t, 0))
	}
	for i, n := range r.Ranked {
		if limit > 0 && i >= limit {
			break
		}
		pair.Reranked = append(pair.Reranked, entry(i, n.Track, math.Round(float64(n.Score)*1000)/1000))
	}
	return pair
}

func entry(i int, t Track, score float64) PlaylistEntry {
	return PlaylistEntry{
		Position:   i + 1,
		Title:      t.Title,
		Artist:     t.Artist,
		ExternalID: t.ExternalID,
		VibeScore:  score,
	}
}
