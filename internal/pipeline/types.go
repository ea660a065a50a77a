package pipeline

import (
	"context"

	"github.com/andresuchdata/nba-datalake/internal/config"
	"github.com/andresuchdata/nba-datalake/internal/domain"
)

// Catalog registers databases and tables in the metadata catalog.
type Catalog interface {
	CreateDatabase(ctx context.Context, name string) error
	CreateTable(ctx context.Context, database string, def domain.TableDefinition) error
}

// QueryRunner submits SQL for asynchronous execution.
type QueryRunner interface {
	Submit(ctx context.Context, database, sql string) (*domain.QueryExecution, error)
}

// Recorder persists finished run reports.
type Recorder interface {
	RecordRun(ctx context.Context, report *domain.RunReport) error
}

// ExecutionRegistry remembers submitted query executions for later lookups.
type ExecutionRegistry interface {
	Remember(ctx context.Context, exec *domain.QueryExecution) error
}

// Settings holds the resource names a pipeline works on.
type Settings struct {
	Bucket       string
	Region       string
	BucketPolicy string
	RawPrefix    string
	FileName     string
	Database     string
	Table        string
	Columns      []domain.Column
}

// SettingsFromConfig derives Settings from the loaded configuration.
func SettingsFromConfig(cfg *config.Config, columns []domain.Column) Settings {
	return Settings{
		Bucket:       cfg.Storage.Bucket,
		Region:       cfg.AWS.Region,
		BucketPolicy: cfg.Storage.Policy,
		RawPrefix:    cfg.Storage.RawPrefix,
		FileName:     cfg.Storage.RawFileName,
		Database:     cfg.Catalog.Database,
		Table:        cfg.Catalog.Table,
		Columns:      columns,
	}
}

// ObjectKey is where the raw payload for fileName is stored.
func (s Settings) ObjectKey(fileName string) string {
	return s.RawPrefix + fileName
}

// Location is the s3:// URI of the raw prefix.
func (s Settings) Location() string {
	return "s3://" + s.Bucket + "/" + s.RawPrefix
}

// TableDefinition is the external table laid over the raw prefix.
func (s Settings) TableDefinition() domain.TableDefinition {
	return domain.TableDefinition{
		Name:     s.Table,
		Columns:  s.Columns,
		Location: s.Location(),
	}
}

// RunOptions tunes a single Run.
type RunOptions struct {
	// Query, when set, is submitted after the table is registered.
	Query string
	// FileName overrides Settings.FileName for this run.
	FileName string
}

type noopRecorder struct{}

func (noopRecorder) RecordRun(context.Context, *domain.RunReport) error { return nil }

type noopRegistry struct{}

func (noopRegistry) Remember(context.Context, *domain.QueryExecution) error { return nil }
