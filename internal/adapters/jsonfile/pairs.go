package jsonfile

import (
	"context"
	"fmt"

	"github.com/ewilliams-labs/vibereco/internal/core/domain"
	"github.com/ewilliams-labs/vibereco/internal/core/ports"
)

type PairsStore struct {
	path string
}

var _ ports.PairsRepository = (*PairsStore)(nil)

func NewPairsStore(path string) *PairsStore {
	return &PairsStore{path: path}
}

func (s *PairsStore) Load(ctx context.Context) (*domain.PairsFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var f domain.PairsFile
	ok, err := readJSON(s.path, &f)
	if err != nil {
		return nil, fmt.Errorf("jsonfile pairs: %w", err)
	}
	if !ok {
		return nil, nil
	}
	if f.Playlists == nil {
		f.Playlists = make(map[string]*domain.PlaylistPair)
	}
	return &f, nil
}

func (s *PairsStore) Save(ctx context.Context, f *domain.PairsFile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := writeJSON(s.path, f); err != nil {
		return fmt.Errorf("jsonfile pairs: %w", err)
	}
	return nil
}
