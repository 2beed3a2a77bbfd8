package spotify

import "strings"

// minArtistSimilarity is how close the query must be to an artist name
// before the query is treated as an artist lookup.
const minArtistSimilarity = 0.8

// trackQueryScore is the best similarity between the query and any natural
// way of writing the track: "title", "title artist" or "artist title".
func trackQueryScore(query string, t spotifyTrack) float64 {
	q := normalize(query)
	title := normalize(t.Name)
	artist := normalize(t.primaryArtist())
	if q == "" || title == "" {
		return 0
	}

	best := similarity(q, title)
	for _, candidate := range []string{
		strings.TrimSpace(title + " " + artist),
		strings.TrimSpace(artist + " " + title),
	} {
		if s := similarity(q, candidate); s > best {
			best = s
		}
	}
	return best
}

func artistQueryScore(query string, a spotifyArtist) float64 {
	q := normalize(query)
	name := normalize(a.Name)
	if q == "" || name == "" {
		return 0
	}
	return similarity(q, name)
}

// resolvesToArtist decides whether the top search hit for the query is the
// artist rather than the track. Spotify returns tracks and artists as
// separate lists, so the two top entries are compared against the query.
func resolvesToArtist(query string, tracks []spotifyTrack, artists []spotifyArtist) (spotifyArtist, bool) {
	if len(artists) == 0 {
		return spotifyArtist{}, false
	}
	artistScore := artistQueryScore(query, artists[0])
	if artistScore < minArtistSimilarity {
		return spotifyArtist{}, false
	}
	if len(tracks) == 0 {
		return artists[0], true
	}
	return artists[0], artistScore > trackQueryScore(query, tracks[0])
}

// similarity is 1 minus the Levenshtein distance over the longer length.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshteinDistance(a, b))/float64(longest)
}

func levenshteinDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
