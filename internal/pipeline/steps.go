package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andresuchdata/nba-datalake/internal/catalog"
	"github.com/andresuchdata/nba-datalake/internal/config"
	"github.com/andresuchdata/nba-datalake/internal/domain"
	"github.com/andresuchdata/nba-datalake/internal/sportsdata"
	"github.com/andresuchdata/nba-datalake/internal/storage"
)

const jsonContentType = "application/json"

// ProvisionBucket ensures the bucket exists according to the bucket policy.
// It never stops the pipeline.
func (p *Pipeline) ProvisionBucket(ctx context.Context) domain.StepResult {
	start := p.now()
	bucket := p.settings.Bucket

	if p.settings.BucketPolicy == config.PolicyCheck {
		exists, err := p.storage.BucketExists(ctx, bucket)
		switch {
		case err != nil:
			p.log.Error().Err(err).Str("bucket", bucket).Msg("Error checking bucket")
			return p.result(domain.StepProvisionBucket, start, domain.StatusFailed, err.Error(), err)
		case !exists:
			p.log.Warn().Str("bucket", bucket).Msg("Bucket does not exist")
			return p.result(domain.StepProvisionBucket, start, domain.StatusFailed,
				fmt.Sprintf("bucket %s does not exist", bucket), storage.ErrBucketNotFound)
		}
		p.log.Info().Str("bucket", bucket).Msg("Bucket exists")
		return p.result(domain.StepProvisionBucket, start, domain.StatusSucceeded, "bucket exists", nil)
	}

	if !config.KnownBucketPolicy(p.settings.BucketPolicy) {
		p.log.Warn().
			Str("policy", p.settings.BucketPolicy).
			Msgf("Unknown bucket policy; falling back to %q", config.PolicyCreate)
	}

	err := p.storage.CreateBucket(ctx, bucket, p.settings.Region)
	switch {
	case err == nil:
		p.log.Info().Str("bucket", bucket).Msg("Bucket created successfully")
		return p.result(domain.StepProvisionBucket, start, domain.StatusSucceeded, "bucket created", nil)
	case errors.Is(err, storage.ErrBucketOwned):
		p.log.Info().Str("bucket", bucket).Msg("Bucket already exists and is owned by you")
		return p.result(domain.StepProvisionBucket, start, domain.StatusAlreadyExists, err.Error(), nil)
	default:
		p.log.Error().Err(err).Str("bucket", bucket).Msg("Error creating bucket")
		return p.result(domain.StepProvisionBucket, start, domain.StatusFailed, err.Error(), err)
	}
}

// Fetch pulls the players feed. Failures come back as an empty, non-nil
// Records value together with a failed result.
func (p *Pipeline) Fetch(ctx context.Context) (domain.Records, domain.StepResult) {
	start := p.now()

	records, err := sportsdata.FetchOrEmpty(ctx, p.fetcher, p.log)
	if err != nil {
		return records, p.result(domain.StepFetch, start, domain.StatusFailed, err.Error(), err)
	}
	if records.Empty() {
		return records, p.result(domain.StepFetch, start, domain.StatusSkipped, "no records returned", nil)
	}
	return records, p.result(domain.StepFetch, start, domain.StatusSucceeded,
		fmt.Sprintf("%d records", records.Len()), nil)
}

// Upload writes records as one JSON object under the raw prefix. Empty input
// issues no write.
func (p *Pipeline) Upload(ctx context.Context, records domain.Records, fileName string) domain.StepResult {
	start := p.now()

	if records.Empty() {
		p.log.Info().Msg("No data to upload")
		return p.result(domain.StepUpload, start, domain.StatusSkipped, "no data to upload", nil)
	}

	key := p.settings.ObjectKey(fileName)
	body, err := records.Marshal()
	if err != nil {
		p.log.Error().Err(err).Msg("Error encoding records")
		return p.result(domain.StepUpload, start, domain.StatusFailed, err.Error(), err)
	}

	if err := p.storage.PutObject(ctx, p.settings.Bucket, key, body, jsonContentType); err != nil {
		p.log.Error().Err(err).Str("key", key).Msg("Error uploading file")
		return p.result(domain.StepUpload, start, domain.StatusFailed, err.Error(), err)
	}

	p.log.Info().Str("key", key).Int("bytes", len(body)).Msg("Uploaded file to bucket")
	return p.result(domain.StepUpload, start, domain.StatusSucceeded, key, nil)
}

// CreateDatabase registers the catalog database; an existing one counts as success.
func (p *Pipeline) CreateDatabase(ctx context.Context, name string) domain.StepResult {
	start := p.now()

	err := p.catalog.CreateDatabase(ctx, name)
	switch {
	case err == nil:
		p.log.Info().Str("database", name).Msg("Catalog database created successfully")
		return p.result(domain.StepCreateDatabase, start, domain.StatusSucceeded, "database created", nil)
	case errors.Is(err, catalog.ErrAlreadyExists):
		p.log.Info().Str("database", name).Msg("Catalog database already exists")
		return p.result(domain.StepCreateDatabase, start, domain.StatusAlreadyExists, err.Error(), nil)
	default:
		p.log.Error().Err(err).Str("database", name).Msg("Error creating catalog database")
		return p.result(domain.StepCreateDatabase, start, domain.StatusFailed, err.Error(), err)
	}
}

// CreateTable defines the external table. Any error, already-exists
// included, is reported as a failure; existing tables are never replaced.
func (p *Pipeline) CreateTable(ctx context.Context, database string, def domain.TableDefinition) domain.StepResult {
	start := p.now()

	if err := p.catalog.CreateTable(ctx, database, def); err != nil {
		p.log.Error().Err(err).Str("database", database).Str("table", def.Name).Msg("Error creating catalog table")
		return p.result(domain.StepCreateTable, start, domain.StatusFailed, err.Error(), err)
	}

	p.log.Info().Str("database", database).Str("table", def.Name).Msg("Catalog table created successfully")
	return p.result(domain.StepCreateTable, start, domain.StatusSucceeded, "table created", nil)
}

// Query submits sql and returns the execution handle without waiting for it.
func (p *Pipeline) Query(ctx context.Context, database, sql string) (*domain.QueryExecution, domain.StepResult) {
	start := p.now()

	exec, err := p.query.Submit(ctx, database, sql)
	if err != nil {
		p.log.Error().Err(err).Str("database", database).Msg("Error starting query")
		return nil, p.result(domain.StepQuery, start, domain.StatusFailed, err.Error(), err)
	}

	if err := p.executions.Remember(ctx, exec); err != nil {
		p.log.Warn().Err(err).Str("execution_id", exec.ID).Msg("failed to remember query execution")
	}

	p.log.Info().Str("execution_id", exec.ID).Msg("Query started successfully")
	return exec, p.result(domain.StepQuery, start, domain.StatusSucceeded, exec.ID, nil)
}

func (p *Pipeline) result(step domain.Step, start time.Time, status domain.StepStatus, msg string, err error) domain.StepResult {
	finished := p.now()
	return domain.StepResult{
		Step:       step,
		Status:     status,
		Message:    msg,
		Duration:   finished.Sub(start),
		FinishedAt: finished,
		Err:        err,
	}
}
