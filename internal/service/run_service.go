package service

import (
	"context"
	"errors"

	"github.com/andresuchdata/nba-datalake/internal/domain"
	"github.com/andresuchdata/nba-datalake/internal/pipeline"
)

// ErrLedgerDisabled is returned for run lookups when no ledger is configured.
var ErrLedgerDisabled = errors.New("run ledger is disabled")

type Runner interface {
	Run(ctx context.Context, opts pipeline.RunOptions) *domain.RunReport
}

// RunStore reads recorded runs back from the ledger.
type RunStore interface {
	ListRuns(ctx context.Context, limit int) ([]domain.RunReport, error)
	GetRun(ctx context.Context, id string) (*domain.RunReport, error)
}

type RunService struct {
	runner Runner
	store  RunStore
}

// NewRunService wires the pipeline to an optional ledger; store may be nil.
func NewRunService(runner Runner, store RunStore) *RunService {
	return &RunService{runner: runner, store: store}
}

// Run executes the pipeline once and returns its report.
func (s *RunService) Run(ctx context.Context, opts pipeline.RunOptions) *domain.RunReport {
	return s.runner.Run(ctx, opts)
}

// ListRuns returns recent runs; without a ledger the list is empty.
func (s *RunService) ListRuns(ctx context.Context, limit int) ([]domain.RunReport, error) {
	if s.store == nil {
		return []domain.RunReport{}, nil
	}
	return s.store.ListRuns(ctx, limit)
}

func (s *RunService) GetRun(ctx context.Context, id string) (*domain.RunReport, error) {
	if s.store == nil {
		return nil, ErrLedgerDisabled
	}
	return s.store.GetRun(ctx, id)
}
