// Package qdrant is a remote alternative to the in-process flat index. Each
// build recreates one collection with cosine distance, and point ids are the
// vectors' build positions.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/vibereco/internal/core/ports"
	"github.com/ewilliams-labs/vibereco/internal/logging"
)

const upsertBatch = 256

var ErrEmpty = errors.New("qdrant index: no vectors to index")

type Config struct {
	Host       string
	Port       int
	APIKey     string
	Collection string
}

// Builder owns the client connection; indexes it builds share it.
type Builder struct {
	client     *qdrant.Client
	collection string
	log        zerolog.Logger
}

var _ ports.IndexBuilder = (*Builder)(nil)

func NewBuilder(cfg Config) (*Builder, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant index: connect %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "vibereco_tracks"
	}
	return &Builder{client: client, collection: collection, log: logging.Component("qdrant")}, nil
}

func (b *Builder) Close() error {
	return b.client.Close()
}

// Build drops any previous collection and uploads vectors in order.
func (b *Builder) Build(ctx context.Context, vectors [][]float32) (ports.VectorIndex, error) {
	if len(vectors) == 0 {
		return nil, ErrEmpty
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("qdrant index: vector %d has dimension %d, want %d", i, len(v), dim)
		}
	}

	exists, err := b.client.CollectionExists(ctx, b.collection)
	if err != nil {
		return nil, fmt.Errorf("qdrant index: check collection: %w", err)
	}
	if exists {
		if err := b.client.DeleteCollection(ctx, b.collection); err != nil {
			return nil, fmt.Errorf("qdrant index: drop collection: %w", err)
		}
	}
	err = b.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: b.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant index: create collection: %w", err)
	}

	wait := true
	for start := 0; start < len(vectors); start += upsertBatch {
		end := min(start+upsertBatch, len(vectors))
		points := make([]*qdrant.PointStruct, 0, end-start)
		for pos := start; pos < end; pos++ {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDNum(uint64(pos)),
				Vectors: qdrant.NewVectors(vectors[pos]...),
			})
		}
		if _, err := b.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: b.collection,
			Points:         points,
			Wait:           &wait,
		}); err != nil {
			return nil, fmt.Errorf("qdrant index: upsert points %d..%d: %w", start, end-1, err)
		}
	}

	b.log.Info().
		Str("collection", b.collection).
		Int("points", len(vectors)).
		Int("dim", dim).
		Msg("collection rebuilt")

	return &Index{client: b.client, collection: b.collection, size: len(vectors), dim: dim}, nil
}

// Index queries one built collection.
type Index struct {
	client     *qdrant.Client
	collection string
	size       int
	dim        int
}

var _ ports.VectorIndex = (*Index)(nil)

func (x *Index) Len() int { return x.size }

// Search returns up to k+1 hits ordered like the flat index: descending
// score, lower position first on ties.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]float32, []int, error) {
	if k < 0 {
		return nil, nil, fmt.Errorf("qdrant index: negative k %d", k)
	}
	if len(query) != x.dim {
		return nil, nil, fmt.Errorf("qdrant index: query dimension %d, want %d", len(query), x.dim)
	}
	limit := uint64(min(k+1, x.size))

	hits, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: x.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("qdrant index: query: %w", err)
	}

	type hit struct {
		pos   int
		score float32
	}
	ordered := make([]hit, 0, len(hits))
	for _, h := range hits {
		num, ok := h.GetId().GetPointIdOptions().(*qdrant.PointId_Num)
		if !ok {
			return nil, nil, fmt.Errorf("qdrant index: unexpected point id %v", h.GetId())
		}
		ordered = append(ordered, hit{pos: int(num.Num), score: h.GetScore()})
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].score != ordered[j].score {
			return ordered[i].score > ordered[j].score
		}
		return ordered[i].pos < ordered[j].pos
	})

	scores := make([]float32, len(ordered))
	positions := make([]int, len(ordered))
	for i, h := range ordered {
		scores[i] = h.score
		positions[i] = h.pos
	}
	return scores, positions, nil
}
