package services

import (
	"context"
	"strings"
	"sync"

	"github.com/ewilliams-labs/vibereco/internal/core/domain"
	"github.com/ewilliams-labs/vibereco/internal/core/ports"
)

// --- Mocks ---

// mockCatalog returns a fixed candidate list.
type mockCatalog struct {
	tracks []domain.Track
	err    error

	calledQuery string
	calledLimit int
}

func (m *mockCatalog) FetchCandidates(_ context.Context, query string, limit int) ([]domain.Track, error) {
	m.calledQuery = query
	m.calledLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	return domain.CloneTracks(m.tracks), nil
}

// mockLyrics answers from a title-keyed table; unknown titles are not found.
type mockLyrics struct {
	name   string
	lyrics map[string]string
	errs   map[string]error

	calledTitles []string
}

func (m *mockLyrics) Name() string { return m.name }

func (m *mockLyrics) Lyrics(_ context.Context, title, _ string) (string, error) {
	m.calledTitles = append(m.calledTitles, title)
	if err := m.errs[title]; err != nil {
		return "", err
	}
	if text, ok := m.lyrics[title]; ok {
		return text, nil
	}
	return "", domain.ErrNotFound
}

// mockAnalyzer returns a profile per title.
type mockAnalyzer struct {
	profiles map[string]*domain.Profile
	errs     map[string]error

	calls int
}

func (m *mockAnalyzer) AnalyzeProfile(_ context.Context, title, _, _ string) (*domain.Profile, error) {
	m.calls++
	if err := m.errs[title]; err != nil {
		return nil, err
	}
	if p, ok := m.profiles[title]; ok {
		return p, nil
	}
	return nil, domain.ErrMalformedResponse
}

// mockEmbedder maps the title found in a vibe text to a vector.
type mockEmbedder struct {
	vectors map[string][]float32
	errs    map[string]error

	texts []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.texts = append(m.texts, text)
	title := titleOf(text)
	if err := m.errs[title]; err != nil {
		return nil, err
	}
	if v, ok := m.vectors[title]; ok {
		return append([]float32(nil), v...), nil
	}
	return nil, domain.ErrTransientAPI
}

func titleOf(vibeText string) string {
	rest, _ := strings.CutPrefix(vibeText, "Title: ")
	title, _, _ := strings.Cut(rest, ". Artist:")
	return title
}

// mockSink records which stages were snapshotted.
type mockSink struct {
	mu     sync.Mutex
	stages []domain.Stage
	last   map[domain.Stage][]domain.Track
}

func (m *mockSink) WriteStage(_ context.Context, stage domain.Stage, tracks []domain.Track) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		m.last = make(map[domain.Stage][]domain.Track)
	}
	m.stages = append(m.stages, stage)
	m.last[stage] = domain.CloneTracks(tracks)
	return nil
}

// mockTrackStore is an in-memory ports.TrackRepository.
type mockTrackStore struct {
	tracks  []domain.Track
	saveErr error
	listErr error
}

var _ ports.TrackRepository = (*mockTrackStore)(nil)

func (m *mockTrackStore) SaveTracks(_ context.Context, tracks []domain.Track) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	for _, t := range tracks {
		replaced := false
		for i := range m.tracks {
			if m.tracks[i].ExternalID == t.ExternalID {
				m.tracks[i] = t
				replaced = true
			}
		}
		if !replaced {
			m.tracks = append(m.tracks, t)
		}
	}
	return nil
}

func (m *mockTrackStore) ListTracks(context.Context) ([]domain.Track, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return domain.CloneTracks(m.tracks), nil
}

func (m *mockTrackStore) FindByTitle(_ context.Context, title string) (domain.Track, error) {
	for _, t := range m.tracks {
		if strings.EqualFold(t.Title, strings.TrimSpace(title)) {
			return t, nil
		}
	}
	return domain.Track{}, domain.ErrNotFound
}

// mockVotes is an in-memory ports.VoteRepository.
type mockVotes struct {
	records   []domain.ABTestRecord
	appendErr error
}

func (m *mockVotes) Append(_ context.Context, rec domain.ABTestRecord) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *mockVotes) List(context.Context) ([]domain.ABTestRecord, error) {
	return append([]domain.ABTestRecord(nil), m.records...), nil
}

// mockPairs is an in-memory ports.PairsRepository.
type mockPairs struct {
	doc   *domain.PairsFile
	saves int
}

func (m *mockPairs) Load(context.Context) (*domain.PairsFile, error) { return m.doc, nil }

func (m *mockPairs) Save(_ context.Context, f *domain.PairsFile) error {
	m.saves++
	m.doc = f
	return nil
}

func profileFor(theme string) *domain.Profile {
	return &domain.Profile{
		Valence:             0.5,
		Arousal:             0.5,
		Dominance:           0.5,
		EmotionalTrajectory: "Calm -> Calm",
		PrimaryTheme:        theme,
		Keywords:            []string{theme},
	}
}
