package ports

import (
	"context"
	"errors"
	"fmt"

	"github.com/ewilliams-labs/vibereco/internal/core/domain"
)

// ErrNoSongs means the catalog could not turn a query into a seed track.
var ErrNoSongs = errors.New("no songs found")

// NotASongError reports a query whose top result is a non-song entity,
// such as an artist.
type NotASongError struct {
	Query      string
	ResultType string
	Name       string
}

func (e NotASongError) Error() string {
	return fmt.Sprintf("query %q resolved to %s %q, not a song", e.Query, e.ResultType, e.Name)
}

func (e NotASongError) Is(target error) bool {
	return target == ErrNoSongs || target == domain.ErrNotFound
}

// CatalogProvider returns the seed track for a query followed by the
// catalog's own recommendations for it, in native order.
type CatalogProvider interface {
	FetchCandidates(ctx context.Context, query string, limit int) ([]domain.Track, error)
}
