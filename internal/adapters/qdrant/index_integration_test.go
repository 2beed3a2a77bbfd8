package qdrant

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ewilliams-labs/vibereco/internal/core/ports"
)

func startQdrant(ctx context.Context, t *testing.T) (string, int) {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image: "qdrant/qdrant:v1.11.0",
		Env: map[string]string{
			"QDRANT__SERVICE__GRPC_PORT": "6334",
		},
		ExposedPorts: []string{"6334/tcp"},
		WaitingFor:   wait.ForListeningPort("6334/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, "6334")
	require.NoError(t, err)
	port, err := strconv.Atoi(mapped.Port())
	require.NoError(t, err)
	return host, port
}

func TestBuilder_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()
	host, port := startQdrant(ctx, t)

	b, err := NewBuilder(Config{Host: host, Port: port, Collection: "test_tracks"})
	require.NoError(t, err)
	defer b.Close()

	vectors := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
		{0, 0, 1},
		{0.5, 0.5, 0},
	}

	// Qdrant may lag a moment after the port opens; retry the first build.
	var idx ports.VectorIndex
	require.Eventually(t, func() bool {
		built, err := b.Build(ctx, vectors)
		if err != nil {
			return false
		}
		idx = built
		return true
	}, 30*time.Second, time.Second)

	assert.Equal(t, 5, idx.Len())

	scores, positions, err := idx.Search(ctx, vectors[0], 4)
	require.NoError(t, err)
	require.Len(t, positions, 5)
	assert.Equal(t, 0, positions[0])
	assert.InDelta(t, 1.0, scores[0], 1e-5)
	assert.Equal(t, 1, positions[1])
	for i := 1; i < len(scores); i++ {
		assert.GreaterOrEqual(t, scores[i-1], scores[i])
	}

	// A second build replaces the collection.
	rebuilt, err := b.Build(ctx, vectors[:2])
	require.NoError(t, err)
	_, positions, err = rebuilt.Search(ctx, vectors[0], 10)
	require.NoError(t, err)
	assert.Len(t, positions, 2)

	_, _, err = rebuilt.Search(ctx, []float32{1, 0}, 1)
	assert.Error(t, err)
}

func TestBuilder_RejectsBadInput(t *testing.T) {
	b := &Builder{collection: "unused"}

	_, err := b.Build(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = b.Build(context.Background(), [][]float32{{1, 2}, {1}})
	assert.Error(t, err)
}
