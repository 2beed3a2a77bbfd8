package jsonfile

import (
	"context"
	"fmt"
	"sync"

	"github.com/ewilliams-labs/vibereco/internal/core/domain"
	"github.com/ewilliams-labs/vibereco/internal/core/ports"
)

// VoteStore keeps the A/B log as one JSON array. Appends rewrite the whole
// file under a process-local mutex; there is no cross-process locking.
type VoteStore struct {
	mu   sync.Mutex
	path string
}

var _ ports.VoteRepository = (*VoteStore)(nil)

func NewVoteStore(path string) *VoteStore {
	return &VoteStore{path: path}
}

func (s *VoteStore) Append(ctx context.Context, rec domain.ABTestRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}
	records = append(records, rec)
	if err := writeJSON(s.path, records); err != nil {
		return fmt.Errorf("jsonfile votes: %w", err)
	}
	return nil
}

func (s *VoteStore) List(ctx context.Context) ([]domain.ABTestRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *VoteStore) read() ([]domain.ABTestRecord, error) {
	var records []domain.ABTestRecord
	if _, err := readJSON(s.path, &records); err != nil {
		return nil, fmt.Errorf("jsonfile votes: %w", err)
	}
	return records, nil
}
