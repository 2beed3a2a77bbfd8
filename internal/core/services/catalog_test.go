package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/vibereco/internal/core/domain"
	"github.com/ewilliams-labs/vibereco/internal/core/ports"
	"github.com/ewilliams-labs/vibereco/internal/index"
)

func catalogStore() *mockTrackStore {
	return &mockTrackStore{tracks: []domain.Track{
		{ExternalID: "a", Title: "Alpha", Embedding: []float32{1, 0}},
		{ExternalID: "b", Title: "Bravo", Embedding: []float32{0.8, 0.2}},
		{ExternalID: "c", Title: "Charlie", Embedding: []float32{0, 1}},
		{ExternalID: "d", Title: "Delta"},
		{ExternalID: "e", Title: "Echo", Embedding: []float32{0.5, 0.5}},
	}}
}

func TestCatalogService_RecommendByTitle(t *testing.T) {
	snapshot := filepath.Join(t.TempDir(), "catalog.idx")
	svc := NewCatalogService(catalogStore(), index.FlatBuilder{}, snapshot)

	got, err := svc.RecommendByTitle(context.Background(), "  alpha ", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Bravo", got[0].Track.Title)
	assert.Equal(t, "Echo", got[1].Track.Title)
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)

	_, err = os.Stat(snapshot)
	assert.NoError(t, err, "lazy rebuild should write the snapshot")

	loaded, err := index.LoadFile(snapshot)
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Len())
}

func TestCatalogService_RecommendByTitle_ClampsK(t *testing.T) {
	svc := NewCatalogService(catalogStore(), index.FlatBuilder{}, "")

	got, err := svc.RecommendByTitle(context.Background(), "Charlie", 50)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, n := range got {
		assert.NotEqual(t, "Charlie", n.Track.Title, "the query track is never its own recommendation")
	}
}

func TestCatalogService_RecommendByTitle_Errors(t *testing.T) {
	tests := []struct {
		name  string
		store *mockTrackStore
		title string
		want  error
	}{
		{name: "unknown title", store: catalogStore(), title: "Zulu", want: ErrTrackNotInCatalog},
		{name: "no embedding", store: catalogStore(), title: "Delta", want: ErrTrackNotInCatalog},
		{name: "catalog too small", store: &mockTrackStore{tracks: []domain.Track{{ExternalID: "a", Title: "Alpha", Embedding: []float32{1}}}}, title: "Alpha", want: ErrCatalogTooSmall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewCatalogService(tt.store, index.FlatBuilder{}, "")
			_, err := svc.RecommendByTitle(context.Background(), tt.title, 3)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCatalogService_Rebuild(t *testing.T) {
	store := catalogStore()
	svc := NewCatalogService(store, index.FlatBuilder{}, "")

	n, err := svc.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	store.tracks = append(store.tracks, domain.Track{ExternalID: "f", Title: "Foxtrot", Embedding: []float32{0.1, 0.9}})
	n, err = svc.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	got, err := svc.RecommendByTitle(context.Background(), "Charlie", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Foxtrot", got[0].Track.Title)
}

// countingBuilder records how often the index is built.
type countingBuilder struct {
	index.FlatBuilder
	builds int
}

func (b *countingBuilder) Build(ctx context.Context, vectors [][]float32) (ports.VectorIndex, error) {
	b.builds++
	return b.FlatBuilder.Build(ctx, vectors)
}

func loadFlat(path string) (ports.VectorIndex, error) {
	return index.LoadFile(path)
}

func TestCatalogService_LoadFromSnapshot(t *testing.T) {
	snapshot := filepath.Join(t.TempDir(), "catalog.idx")
	store := catalogStore()

	first := NewCatalogService(store, index.FlatBuilder{}, snapshot)
	_, err := first.Rebuild(context.Background())
	require.NoError(t, err)

	builder := &countingBuilder{}
	svc := NewCatalogService(store, builder, snapshot, WithSnapshotLoader(loadFlat))
	n, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Zero(t, builder.builds, "a matching snapshot is used as is")

	got, err := svc.RecommendByTitle(context.Background(), "Alpha", 1)
	require.NoError(t, err)
	assert.Equal(t, "Bravo", got[0].Track.Title)

	// A new embedded track makes the snapshot stale.
	store.tracks = append(store.tracks, domain.Track{ExternalID: "f", Title: "Foxtrot", Embedding: []float32{0.1, 0.9}})
	n, err = svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 1, builder.builds)
}

func TestCatalogService_LoadMissingSnapshotRebuilds(t *testing.T) {
	builder := &countingBuilder{}
	svc := NewCatalogService(catalogStore(), builder, filepath.Join(t.TempDir(), "missing.idx"), WithSnapshotLoader(loadFlat))

	n, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 1, builder.builds)
}

func TestCatalogService_LoadReembeddedTrackRebuilds(t *testing.T) {
	snapshot := filepath.Join(t.TempDir(), "catalog.idx")
	store := &mockTrackStore{tracks: []domain.Track{
		{ExternalID: "a", Title: "a", Embedding: []float32{1, 0}},
		{ExternalID: "b", Title: "b", Embedding: []float32{0, 1}},
		{ExternalID: "c", Title: "c", Embedding: []float32{1, 1}},
	}}
	_, err := NewCatalogService(store, index.FlatBuilder{}, snapshot).Rebuild(context.Background())
	require.NoError(t, err)

	// Same count, new vector for b.
	require.NoError(t, store.SaveTracks(context.Background(), []domain.Track{
		{ExternalID: "b", Title: "b", Embedding: []float32{1, 0}},
	}))

	builder := &countingBuilder{}
	svc := NewCatalogService(store, builder, snapshot, WithSnapshotLoader(loadFlat))
	got, err := svc.RecommendByTitle(context.Background(), "a", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].Track.Title)
	assert.InDelta(t, 1.0, got[0].Score, 1e-6)
	assert.Equal(t, 1, builder.builds, "a changed embedding invalidates the snapshot")
}

func TestCatalogService_RecommendByTitle_TrackStoredAfterLoad(t *testing.T) {
	store := catalogStore()
	builder := &countingBuilder{}
	svc := NewCatalogService(store, builder, "")
	_, err := svc.Rebuild(context.Background())
	require.NoError(t, err)

	store.tracks = append(store.tracks, domain.Track{ExternalID: "f", Title: "Foxtrot", Embedding: []float32{0.1, 0.9}})
	got, err := svc.RecommendByTitle(context.Background(), "Foxtrot", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Charlie", got[0].Track.Title)
	assert.Equal(t, 2, builder.builds)

	_, err = svc.RecommendByTitle(context.Background(), "Foxtrot", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, builder.builds, "an up to date index is not rebuilt")
}
