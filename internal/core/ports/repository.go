package ports

import (
	"context"

	"github.com/ewilliams-labs/vibereco/internal/core/domain"
)

// VoteRepository is the append-only A/B vote log.
type VoteRepository interface {
	Append(ctx context.Context, rec domain.ABTestRecord) error
	List(ctx context.Context) ([]domain.ABTestRecord, error)
}

// TrackRepository stores analysed tracks for the static catalog.
type TrackRepository interface {
	SaveTracks(ctx context.Context, tracks []domain.Track) error
	ListTracks(ctx context.Context) ([]domain.Track, error)
	FindByTitle(ctx context.Context, title string) (domain.Track, error)
}

// ArtifactSink persists the track list after a stage completes.
type ArtifactSink interface {
	WriteStage(ctx context.Context, stage domain.Stage, tracks []domain.Track) error
}

// PairsRepository loads and saves the pre-generated playlist pairs. Load
// returns nil without error when nothing has been saved yet.
type PairsRepository interface {
	Load(ctx context.Context) (*domain.PairsFile, error)
	Save(ctx context.Context, f *domain.PairsFile) error
}
