package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/rollkit/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Store implements ports.RollStore using Redis.
// Each record is a JSON string; each channel is a sorted set of record IDs
// scored by creation time in milliseconds.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for records.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for records and channel indexes.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "rollkit:",
		ttl:    0, // No expiration by default
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) key(id string) string {
	return s.prefix + "roll:" + id
}

func (s *Store) channelKey(channel string) string {
	return s.prefix + "channel:" + channel
}

// Save persists the record and indexes it under its channel.
func (s *Store) Save(ctx context.Context, record *domain.RollRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal roll: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(record.ID), data, s.ttl)
	pipe.ZAdd(ctx, s.channelKey(record.Channel), backend.Z{
		Score:  float64(record.CreatedAt.UnixMilli()),
		Member: record.ID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the record from Redis.
func (s *Store) Load(ctx context.Context, id string) (*domain.RollRecord, error) {
	val, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrRollNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var record domain.RollRecord
	if err := json.Unmarshal(val, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal roll: %w", err)
	}
	return &record, nil
}

// Delete removes the record and its channel index entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	record, err := s.Load(ctx, id)
	if errors.Is(err, domain.ErrRollNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(id))
	pipe.ZRem(ctx, s.channelKey(record.Channel), id)

	_, err = pipe.Exec(ctx)
	return err
}

// List returns the records of a channel, oldest first.
// Index entries whose record has expired are pruned lazily.
func (s *Store) List(ctx context.Context, channel string) ([]*domain.RollRecord, error) {
	ids, err := s.client.ZRange(ctx, s.channelKey(channel), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list channel: %w", err)
	}
	records := make([]*domain.RollRecord, 0, len(ids))
	if len(ids) == 0 {
		return records, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load channel records: %w", err)
	}

	var expired []any
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var record domain.RollRecord
		if err := json.Unmarshal([]byte(str), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal roll %s: %w", ids[i], err)
		}
		records = append(records, &record)
	}

	if len(expired) > 0 {
		if err := s.client.ZRem(ctx, s.channelKey(channel), expired...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune expired rolls: %w", err)
		}
	}
	return records, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
