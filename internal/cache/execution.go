package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/nba-datalake/internal/config"
	"github.com/andresuchdata/nba-datalake/internal/domain"
)

const (
	executionKeyPrefix = "datalake:execution:"
	executionIndexKey  = "datalake:executions"
	scanBatchSize      = 100
	defaultListLimit   = 20
)

// ErrExecutionNotFound is returned when no execution is remembered under an id.
var ErrExecutionNotFound = errors.New("query execution not found")

// ExecutionRegistry remembers submitted query executions so their status can
// be looked up later without the caller keeping the id.
type ExecutionRegistry interface {
	Remember(ctx context.Context, exec *domain.QueryExecution) error
	Get(ctx context.Context, id string) (*domain.QueryExecution, error)
	Latest(ctx context.Context) (*domain.QueryExecution, error)
	List(ctx context.Context, limit int) ([]domain.QueryExecution, error)
	Clear(ctx context.Context) error
	Close() error
}

type redisExecutionRegistry struct {
	client redis.UniversalClient
	ttl    time.Duration
}

type noopExecutionRegistry struct{}

// NewExecutionRegistry connects to Redis when the cache is enabled and
// falls back to a registry that remembers nothing otherwise.
func NewExecutionRegistry(cfg config.CacheConfig) (ExecutionRegistry, error) {
	if !cfg.Enabled {
		return &noopExecutionRegistry{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisExecutionRegistry{
		client: client,
		ttl:    ttl,
	}, nil
}

func NewNoopExecutionRegistry() ExecutionRegistry {
	return &noopExecutionRegistry{}
}

func (r *redisExecutionRegistry) Remember(ctx context.Context, exec *domain.QueryExecution) error {
	if exec == nil || exec.ID == "" {
		return nil
	}

	payload, err := json.Marshal(exec)
	if err != nil {
		return fmt.Errorf("encode query execution: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, executionKey(exec.ID), payload, r.ttl)
	pipe.ZAdd(ctx, executionIndexKey, redis.Z{
		Score:  float64(exec.SubmittedAt.UnixMilli()),
		Member: exec.ID,
	})
	pipe.Expire(ctx, executionIndexKey, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis remember failed: %w", err)
	}

	return nil
}

func (r *redisExecutionRegistry) Get(ctx context.Context, id string) (*domain.QueryExecution, error) {
	payload, err := r.client.Get(ctx, executionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrExecutionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var exec domain.QueryExecution
	if err := json.Unmarshal(payload, &exec); err != nil {
		return nil, fmt.Errorf("decode query execution: %w", err)
	}

	return &exec, nil
}

func (r *redisExecutionRegistry) Latest(ctx context.Context) (*domain.QueryExecution, error) {
	execs, err := r.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(execs) == 0 {
		return nil, ErrExecutionNotFound
	}
	return &execs[0], nil
}

// List returns remembered executions, newest first. Index entries whose
// payload already expired are pruned.
func (r *redisExecutionRegistry) List(ctx context.Context, limit int) ([]domain.QueryExecution, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	ids, err := r.client.ZRevRange(ctx, executionIndexKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrevrange failed: %w", err)
	}

	execs := make([]domain.QueryExecution, 0, len(ids))
	var stale []interface{}
	for _, id := range ids {
		exec, err := r.Get(ctx, id)
		if errors.Is(err, ErrExecutionNotFound) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		execs = append(execs, *exec)
	}

	if len(stale) > 0 {
		if err := r.client.ZRem(ctx, executionIndexKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("redis zrem failed: %w", err)
		}
	}

	return execs, nil
}

func (r *redisExecutionRegistry) Clear(ctx context.Context) error {
	if err := deleteKeysWithPrefix(ctx, r.client, executionKeyPrefix, scanBatchSize); err != nil {
		return err
	}
	if err := r.client.Del(ctx, executionIndexKey).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *redisExecutionRegistry) Close() error {
	return r.client.Close()
}

func (n *noopExecutionRegistry) Remember(ctx context.Context, exec *domain.QueryExecution) error {
	return nil
}

func (n *noopExecutionRegistry) Get(ctx context.Context, id string) (*domain.QueryExecution, error) {
	return nil, ErrExecutionNotFound
}

func (n *noopExecutionRegistry) Latest(ctx context.Context) (*domain.QueryExecution, error) {
	return nil, ErrExecutionNotFound
}

func (n *noopExecutionRegistry) List(ctx context.Context, limit int) ([]domain.QueryExecution, error) {
	return []domain.QueryExecution{}, nil
}

func (n *noopExecutionRegistry) Clear(ctx context.Context) error {
	return nil
}

func (n *noopExecutionRegistry) Close() error {
	return nil
}

func executionKey(id string) string {
	return executionKeyPrefix + id
}
