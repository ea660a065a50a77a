package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/nba-datalake/internal/cache"
	"github.com/andresuchdata/nba-datalake/internal/domain"
)

// ErrNoExecution means no id was given and none has been remembered.
var ErrNoExecution = errors.New("no query execution to look up")

type QueryBackend interface {
	Submit(ctx context.Context, database, sql string) (*domain.QueryExecution, error)
	Status(ctx context.Context, id string) (*domain.QueryStatus, error)
}

type QueryService struct {
	backend  QueryBackend
	registry cache.ExecutionRegistry
	database string
}

func NewQueryService(backend QueryBackend, registry cache.ExecutionRegistry, database string) *QueryService {
	if registry == nil {
		registry = cache.NewNoopExecutionRegistry()
	}
	return &QueryService{backend: backend, registry: registry, database: database}
}

// Submit starts sql against the configured database and remembers the
// execution. A registry failure does not fail the submission.
func (s *QueryService) Submit(ctx context.Context, sql string) (*domain.QueryExecution, error) {
	exec, err := s.backend.Submit(ctx, s.database, sql)
	if err != nil {
		return nil, err
	}

	if err := s.registry.Remember(ctx, exec); err != nil {
		log.Warn().Err(err).Str("execution_id", exec.ID).Msg("failed to remember query execution")
	}
	return exec, nil
}

// Status looks up an execution. An empty id resolves to the most recently
// remembered execution.
func (s *QueryService) Status(ctx context.Context, id string) (*domain.QueryStatus, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		latest, err := s.registry.Latest(ctx)
		if errors.Is(err, cache.ErrExecutionNotFound) {
			return nil, ErrNoExecution
		}
		if err != nil {
			return nil, fmt.Errorf("resolve latest execution: %w", err)
		}
		id = latest.ID
	}

	return s.backend.Status(ctx, id)
}

// Executions lists remembered executions, newest first.
func (s *QueryService) Executions(ctx context.Context, limit int) ([]domain.QueryExecution, error) {
	return s.registry.List(ctx, limit)
}

// ClearExecutions forgets every remembered execution. Executions themselves
// are not cancelled.
func (s *QueryService) ClearExecutions(ctx context.Context) error {
	if err := s.registry.Clear(ctx); err != nil {
		return fmt.Errorf("clear executions: %w", err)
	}
	return nil
}
