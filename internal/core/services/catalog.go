package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/vibereco/internal/core/domain"
	"github.com/ewilliams-labs/vibereco/internal/core/ports"
	"github.com/ewilliams-labs/vibereco/internal/logging"
)

var (
	ErrTrackNotInCatalog = errors.New("track not in catalog")
	ErrCatalogTooSmall   = errors.New("catalog needs at least 2 embedded tracks")
)

// snapshotter is implemented by indexes that can persist themselves.
type snapshotter interface {
	SaveFile(path string) error
}

// CatalogService answers "more like this title" over every stored track,
// without calling the catalog API.
type CatalogService struct {
	store        ports.TrackRepository
	builder      ports.IndexBuilder
	snapshotPath string
	loader       SnapshotLoader
	log          zerolog.Logger

	mu     sync.RWMutex
	idx    ports.VectorIndex
	tracks []domain.Track // index position -> track
	byID   map[string]int // external id -> index position
}

// SnapshotLoader reads a persisted index.
type SnapshotLoader func(path string) (ports.VectorIndex, error)

type CatalogOption func(*CatalogService)

// WithSnapshotLoader lets Load restore the index from snapshotPath instead
// of rebuilding it.
func WithSnapshotLoader(fn SnapshotLoader) CatalogOption {
	return func(c *CatalogService) { c.loader = fn }
}

// NewCatalogService builds a service. When snapshotPath is set, Rebuild
// also writes the index there if the builder's index supports it.
func NewCatalogService(store ports.TrackRepository, builder ports.IndexBuilder, snapshotPath string, opts ...CatalogOption) *CatalogService {
	c := &CatalogService{
		store:        store,
		builder:      builder,
		snapshotPath: snapshotPath,
		log:          logging.Component("catalog"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// embedded lists stored tracks that have an embedding, in store order.
func (c *CatalogService) embedded(ctx context.Context) ([]domain.Track, map[string]int, int, error) {
	all, err := c.store.ListTracks(ctx)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("service: failed to list catalog: %w", err)
	}
	tracks := make([]domain.Track, 0, len(all))
	byID := make(map[string]int, len(all))
	for _, t := range all {
		if !t.HasEmbedding() {
			continue
		}
		byID[t.ExternalID] = len(tracks)
		tracks = append(tracks, t)
	}
	if len(tracks) < 2 {
		return nil, nil, len(all), fmt.Errorf("%w: have %d", ErrCatalogTooSmall, len(tracks))
	}
	return tracks, byID, len(all), nil
}

// Load restores the index from the snapshot when it still matches the
// stored tracks and rebuilds it otherwise. A snapshot matches when its
// fingerprint sidecar equals the fingerprint of the current ids and
// embeddings.
func (c *CatalogService) Load(ctx context.Context) (int, error) {
	if c.loader == nil || c.snapshotPath == "" {
		return c.Rebuild(ctx)
	}
	tracks, byID, _, err := c.embedded(ctx)
	if err != nil {
		return 0, err
	}
	saved, err := os.ReadFile(fingerprintPath(c.snapshotPath))
	if err != nil || string(bytes.TrimSpace(saved)) != fingerprint(tracks) {
		c.log.Info().Err(err).Str("path", c.snapshotPath).Msg("snapshot stale, rebuilding")
		return c.Rebuild(ctx)
	}
	idx, err := c.loader(c.snapshotPath)
	if err != nil || idx.Len() != len(tracks) {
		c.log.Info().Err(err).Str("path", c.snapshotPath).Msg("snapshot unusable, rebuilding")
		return c.Rebuild(ctx)
	}

	c.mu.Lock()
	c.idx, c.tracks, c.byID = idx, tracks, byID
	c.mu.Unlock()

	c.log.Info().Int("tracks", len(tracks)).Str("path", c.snapshotPath).Msg("catalog index loaded from snapshot")
	return len(tracks), nil
}

func fingerprintPath(snapshotPath string) string { return snapshotPath + ".sum" }

// fingerprint hashes the ordered external ids and raw embeddings.
func fingerprint(tracks []domain.Track) string {
	h := sha256.New()
	var n [4]byte
	for _, t := range tracks {
		binary.LittleEndian.PutUint32(n[:], uint32(len(t.ExternalID)))
		h.Write(n[:])
		h.Write([]byte(t.ExternalID))
		binary.LittleEndian.PutUint32(n[:], uint32(len(t.Embedding)))
		h.Write(n[:])
		_ = binary.Write(h, binary.LittleEndian, t.Embedding)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Rebuild indexes every stored track that has an embedding and returns how
// many entered the index.
func (c *CatalogService) Rebuild(ctx context.Context) (int, error) {
	tracks, byID, total, err := c.embedded(ctx)
	if err != nil {
		return 0, err
	}
	vectors := make([][]float32, 0, len(tracks))
	for _, t := range tracks {
		vectors = append(vectors, slices.Clone(t.Embedding))
	}

	idx, err := c.builder.Build(ctx, vectors)
	if err != nil {
		return 0, fmt.Errorf("service: failed to build catalog index: %w", err)
	}
	if s, ok := idx.(snapshotter); ok && c.snapshotPath != "" {
		if err := s.SaveFile(c.snapshotPath); err != nil {
			return 0, fmt.Errorf("service: failed to write index snapshot: %w", err)
		}
		if err := os.WriteFile(fingerprintPath(c.snapshotPath), []byte(fingerprint(tracks)+"\n"), 0o644); err != nil {
			return 0, fmt.Errorf("service: failed to write snapshot fingerprint: %w", err)
		}
	}

	c.mu.Lock()
	c.idx, c.tracks, c.byID = idx, tracks, byID
	c.mu.Unlock()

	c.log.Info().Int("tracks", len(tracks)).Int("skipped", total-len(tracks)).Msg("catalog index rebuilt")
	return len(tracks), nil
}

// RecommendByTitle returns up to k neighbours of the stored track with the
// given title. The track itself is never part of the result.
func (c *CatalogService) RecommendByTitle(ctx context.Context, title string, k int) ([]domain.Neighbor, error) {
	c.mu.RLock()
	built := c.idx != nil
	c.mu.RUnlock()
	if !built {
		if _, err := c.Load(ctx); err != nil {
			return nil, err
		}
	}

	target, err := c.store.FindByTitle(ctx, title)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrTrackNotInCatalog, title)
	}
	if err != nil {
		return nil, fmt.Errorf("service: failed to look up %q: %w", title, err)
	}

	// Runs keep upserting tracks after the index was built; pick up a track
	// that is new or was re-embedded since.
	if target.HasEmbedding() && !c.indexedAs(target) {
		if _, err := c.Rebuild(ctx); err != nil {
			return nil, err
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	self, ok := c.byID[target.ExternalID]
	if !ok {
		return nil, fmt.Errorf("%w: %q has no embedding", ErrTrackNotInCatalog, title)
	}
	k = min(k, len(c.tracks)-1)
	if k <= 0 {
		return []domain.Neighbor{}, nil
	}

	scores, positions, err := c.idx.Search(ctx, c.tracks[self].Embedding, k)
	if err != nil {
		return nil, fmt.Errorf("service: catalog search failed: %w", err)
	}

	out := make([]domain.Neighbor, 0, k)
	for i, pos := range positions {
		if pos == self {
			continue
		}
		if len(out) == k {
			break
		}
		out = append(out, domain.Neighbor{Position: pos, Score: scores[i], Track: c.tracks[pos]})
	}
	return out, nil
}

// indexedAs reports whether the current index holds t with its stored
// embedding.
func (c *CatalogService) indexedAs(t domain.Track) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pos, ok := c.byID[t.ExternalID]
	return ok && slices.Equal(c.tracks[pos].Embedding, t.Embedding)
}
