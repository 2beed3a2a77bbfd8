package ports

import "context"

// VectorIndex answers nearest-neighbour queries over an immutable set of
// vectors. Scores are cosine similarities in descending order and positions
// refer to the order the vectors were given at build time.
type VectorIndex interface {
	Search(ctx context.Context, query []float32, k int) (scores []float32, positions []int, err error)
	Len() int
}

// IndexBuilder builds a fresh index from scratch. There is no incremental
// insert; rebuilding is the only update path.
type IndexBuilder interface {
	Build(ctx context.Context, vectors [][]float32) (VectorIndex, error)
}
