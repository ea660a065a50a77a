package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/andresuchdata/nba-datalake/internal/domain"
	"github.com/andresuchdata/nba-datalake/internal/sportsdata"
	"github.com/andresuchdata/nba-datalake/internal/storage"
)

// Pipeline runs the bootstrap sequence: provision bucket, fetch, upload,
// register catalog database and table, and optionally trigger a query.
type Pipeline struct {
	settings   Settings
	storage    storage.ObjectStorage
	fetcher    sportsdata.Fetcher
	catalog    Catalog
	query      QueryRunner
	recorder   Recorder
	executions ExecutionRegistry
	log        zerolog.Logger
	now        func() time.Time

	mu sync.Mutex
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithRecorder persists every run report.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithExecutionRegistry remembers submitted query executions.
func WithExecutionRegistry(r ExecutionRegistry) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.executions = r
		}
	}
}

// WithLogger replaces the default no-op logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.log = l
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New creates a Pipeline from its collaborators. The collaborators are
// built once by the caller and shared read-only for the life of the process.
func New(settings Settings, store storage.ObjectStorage, fetcher sportsdata.Fetcher, cat Catalog, q QueryRunner, opts ...Option) *Pipeline {
	p := &Pipeline{
		settings:   settings,
		storage:    store,
		fetcher:    fetcher,
		catalog:    cat,
		query:      q,
		recorder:   noopRecorder{},
		executions: noopRegistry{},
		log:        zerolog.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Settings returns the resource names the pipeline works on.
func (p *Pipeline) Settings() Settings {
	return p.settings
}

// Run executes the whole sequence once. Only an empty fetch stops it early;
// every other failure is recorded in the report and the run continues.
// Concurrent calls are serialized.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) *domain.RunReport {
	p.mu.Lock()
	defer p.mu.Unlock()

	fileName := opts.FileName
	if fileName == "" {
		fileName = p.settings.FileName
	}

	report := &domain.RunReport{
		ID:        uuid.NewString(),
		Bucket:    p.settings.Bucket,
		ObjectKey: p.settings.ObjectKey(fileName),
		StartedAt: p.now().UTC(),
	}
	l := p.log.With().Str("run_id", report.ID).Logger()
	l.Info().Str("bucket", report.Bucket).Msg("Starting pipeline run")

	report.Add(p.ProvisionBucket(ctx))

	records, fetchResult := p.Fetch(ctx)
	report.Add(fetchResult)
	report.RecordCount = records.Len()

	if records.Empty() {
		for _, step := range p.downstreamSteps(opts) {
			report.Add(p.result(step, p.now(), domain.StatusSkipped, "no records fetched", nil))
		}
		l.Warn().Msg("No records fetched; skipping upload and catalog registration")
		return p.finish(ctx, report, l)
	}

	report.Add(p.Upload(ctx, records, fileName))
	report.Add(p.CreateDatabase(ctx, p.settings.Database))
	report.Add(p.CreateTable(ctx, p.settings.Database, p.settings.TableDefinition()))

	if opts.Query != "" {
		exec, res := p.Query(ctx, p.settings.Database, opts.Query)
		report.Add(res)
		if exec != nil {
			report.ExecutionID = exec.ID
		}
	}

	return p.finish(ctx, report, l)
}

func (p *Pipeline) downstreamSteps(opts RunOptions) []domain.Step {
	steps := []domain.Step{domain.StepUpload, domain.StepCreateDatabase, domain.StepCreateTable}
	if opts.Query != "" {
		steps = append(steps, domain.StepQuery)
	}
	return steps
}

func (p *Pipeline) finish(ctx context.Context, report *domain.RunReport, l zerolog.Logger) *domain.RunReport {
	report.CompletedAt = p.now().UTC()

	if err := p.recorder.RecordRun(ctx, report); err != nil {
		l.Warn().Err(err).Msg("failed to record pipeline run")
	}

	event := l.Info()
	if !report.OK() {
		event = l.Warn().Int("failed_steps", len(report.Failures()))
	}
	event.
		Int("records", report.RecordCount).
		Dur("elapsed", report.CompletedAt.Sub(report.StartedAt)).
		Msg("Pipeline run finished")

	return report
}
