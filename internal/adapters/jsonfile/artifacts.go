package jsonfile

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ewilliams-labs/vibereco/internal/core/domain"
	"github.com/ewilliams-labs/vibereco/internal/core/ports"
)

// stageFiles names the snapshot written after each track-producing stage.
var stageFiles = map[domain.Stage]string{
	domain.StageSearch:   "candidates.json",
	domain.StageLyrics:   "candidates_with_lyrics.json",
	domain.StageProfile:  "candidates_analyzed.json",
	domain.StageVibeText: "candidates_with_vibe_text.json",
	domain.StageEmbed:    "candidates_with_embedding.json",
}

// ArtifactWriter dumps the working track list to dir after each stage.
type ArtifactWriter struct {
	dir string
}

var _ ports.ArtifactSink = (*ArtifactWriter)(nil)

func NewArtifactWriter(dir string) *ArtifactWriter {
	return &ArtifactWriter{dir: dir}
}

// StagePath returns where the snapshot for stage is written, or "" for
// stages that produce no track list.
func (w *ArtifactWriter) StagePath(stage domain.Stage) string {
	name, ok := stageFiles[stage]
	if !ok {
		return ""
	}
	return filepath.Join(w.dir, name)
}

func (w *ArtifactWriter) WriteStage(ctx context.Context, stage domain.Stage, tracks []domain.Track) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := w.StagePath(stage)
	if path == "" {
		return nil
	}
	if tracks == nil {
		tracks = []domain.Track{}
	}
	if err := writeJSON(path, tracks); err != nil {
		return fmt.Errorf("jsonfile artifacts: %w", err)
	}
	return nil
}
