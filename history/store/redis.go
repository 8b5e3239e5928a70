package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sweetpotato0/reasonchain/config"
	errorspkg "github.com/sweetpotato0/reasonchain/errors"
	"github.com/sweetpotato0/reasonchain/history"
)

// RedisStore implements history.Store using a Redis list. RPUSH keeps traces
// in submission order, which the history invariant requires.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a new Redis-backed trace store
func NewRedisStore(cfg *config.RedisConfig) *RedisStore {
	if cfg == nil {
		cfg = &config.RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "reasonchain:",
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisStore{
		client: client,
		key:    cfg.Prefix + "traces",
	}
}

// Append adds a trace to the end of the history list.
func (s *RedisStore) Append(ctx context.Context, trace *history.Trace) error {
	if trace == nil {
		return fmt.Errorf("trace cannot be nil")
	}

	data, err := json.Marshal(trace)
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}

	if err := s.client.RPush(ctx, s.key, data).Err(); err != nil {
		return fmt.Errorf("failed to append trace to Redis: %w", err)
	}
	return nil
}

// Last returns the most recently appended trace.
func (s *RedisStore) Last(ctx context.Context) (*history.Trace, error) {
	data, err := s.client.LIndex(ctx, s.key, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, errorspkg.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get last trace: %w", err)
	}

	var trace history.Trace
	if err := json.Unmarshal([]byte(data), &trace); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trace: %w", err)
	}
	return &trace, nil
}

// Len returns the number of traces in the history list.
func (s *RedisStore) Len(ctx context.Context) (int, error) {
	count, err := s.client.LLen(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count traces: %w", err)
	}
	return int(count), nil
}

// List returns all traces in submission order.
func (s *RedisStore) List(ctx context.Context) ([]*history.Trace, error) {
	items, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list traces: %w", err)
	}

	traces := make([]*history.Trace, 0, len(items))
	for _, data := range items {
		var trace history.Trace
		if err := json.Unmarshal([]byte(data), &trace); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trace: %w", err)
		}
		traces = append(traces, &trace)
	}
	return traces, nil
}

// Clear removes the history list.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to delete trace list: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis connection is alive
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
