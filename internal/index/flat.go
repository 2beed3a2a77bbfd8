// Package index implements the exhaustive inner-product index used to rank
// candidates by vibe similarity.
//
// Every stored vector is L2-normalised at build time and every query is
// normalised the same way, so the inner product equals cosine similarity.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ewilliams-labs/vibereco/internal/core/ports"
)

var (
	ErrEmpty             = errors.New("index: no vectors")
	ErrDimensionMismatch = errors.New("index: dimension mismatch")
)

// Flat is an immutable, exhaustively scanned vector store.
type Flat struct {
	dim  int
	data []float32 // row-major, len = n*dim
}

var _ ports.VectorIndex = (*Flat)(nil)

// Build normalises vectors in place and copies them into a new index.
// All vectors must share one non-zero dimension.
func Build(vectors [][]float32) (*Flat, error) {
	if len(vectors) == 0 {
		return nil, ErrEmpty
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-length vector at position 0", ErrDimensionMismatch)
	}

	data := make([]float32, 0, len(vectors)*dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: position %d has %d, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
		Normalize(v)
		data = append(data, v...)
	}

	return &Flat{dim: dim, data: data}, nil
}

// Normalize scales v to unit L2 length in place. A zero vector is left as is.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}

// Len returns the number of stored vectors.
func (f *Flat) Len() int {
	if f == nil || f.dim == 0 {
		return 0
	}
	return len(f.data) / f.dim
}

// Dim returns the vector dimension.
func (f *Flat) Dim() int {
	return f.dim
}

// Vector returns a copy of the stored (normalised) vector at pos.
func (f *Flat) Vector(pos int) []float32 {
	out := make([]float32, f.dim)
	copy(out, f.data[pos*f.dim:(pos+1)*f.dim])
	return out
}

// Search returns the k+1 most similar stored vectors. The extra slot leaves
// room for the query itself when it is a member of the index; callers skip
// it. Results are ordered by descending score, equal scores by ascending
// position. The query slice is not modified.
func (f *Flat) Search(ctx context.Context, query []float32, k int) ([]float32, []int, error) {
	if k < 0 {
		return nil, nil, fmt.Errorf("index: negative k %d", k)
	}
	if len(query) != f.dim {
		return nil, nil, fmt.Errorf("%w: query has %d, want %d", ErrDimensionMismatch, len(query), f.dim)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	q := make([]float32, len(query))
	copy(q, query)
	Normalize(q)

	n := f.Len()
	scores := make([]float32, n)
	for i := 0; i < n; i++ {
		row := f.data[i*f.dim : (i+1)*f.dim]
		var dot float32
		for j, x := range row {
			dot += x * q[j]
		}
		scores[i] = dot
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	limit := min(k+1, n)
	outScores := make([]float32, limit)
	outPos := make([]int, limit)
	for i := 0; i < limit; i++ {
		outPos[i] = order[i]
		outScores[i] = scores[order[i]]
	}
	return outScores, outPos, nil
}

// FlatBuilder builds in-memory Flat indexes.
type FlatBuilder struct{}

var _ ports.IndexBuilder = FlatBuilder{}

func (FlatBuilder) Build(_ context.Context, vectors [][]float32) (ports.VectorIndex, error) {
	return Build(vectors)
}
