// Package redis stores the A/B vote log as a Redis list of JSON records.
package redis

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ewilliams-labs/vibereco/internal/core/domain"
	"github.com/ewilliams-labs/vibereco/internal/core/ports"
)

const DefaultKey = "vibereco:votes"

// VoteStore appends with RPUSH, which Redis applies atomically, so several
// processes can share one log.
type VoteStore struct {
	client goredis.UniversalClient
	key    string
}

var _ ports.VoteRepository = (*VoteStore)(nil)

type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// Open connects and pings the server before returning the store.
func Open(ctx context.Context, cfg Config) (*VoteStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis votes: ping %s: %w", cfg.Addr, err)
	}
	return NewVoteStore(client, cfg.Key), nil
}

func NewVoteStore(client goredis.UniversalClient, key string) *VoteStore {
	if key == "" {
		key = DefaultKey
	}
	return &VoteStore{client: client, key: key}
}

func (s *VoteStore) Append(ctx context.Context, rec domain.ABTestRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redis votes: encode record: %w", err)
	}
	if err := s.client.RPush(ctx, s.key, data).Err(); err != nil {
		return fmt.Errorf("redis votes: rpush: %w", err)
	}
	return nil
}

func (s *VoteStore) List(ctx context.Context) ([]domain.ABTestRecord, error) {
	raw, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis votes: lrange: %w", err)
	}
	records := make([]domain.ABTestRecord, 0, len(raw))
	for i, item := range raw {
		var rec domain.ABTestRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("redis votes: decode record %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *VoteStore) Close() error {
	return s.client.Close()
}
