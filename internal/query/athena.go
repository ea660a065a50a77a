// Package query submits SQL to Amazon Athena. Submission is fire-and-forget:
// the returned handle is not polled and results are never fetched.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"

	"github.com/andresuchdata/nba-datalake/internal/awsutil"
	"github.com/andresuchdata/nba-datalake/internal/config"
	"github.com/andresuchdata/nba-datalake/internal/domain"
)

// ErrEmptyQuery is returned when no SQL is given.
var ErrEmptyQuery = errors.New("empty query")

// AthenaAPI is the subset of the Athena client used here.
type AthenaAPI interface {
	StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
}

// Trigger submits queries whose results land under OutputLocation.
type Trigger struct {
	api            AthenaAPI
	outputLocation string
	now            func() time.Time
}

// NewTrigger builds a Trigger from the default AWS credential chain.
func NewTrigger(ctx context.Context, cfg config.AWSConfig, outputLocation string) (*Trigger, error) {
	awsCfg, err := awsutil.Load(ctx, cfg)
	if err != nil {
		return nil, err
	}
	api := athena.NewFromConfig(awsCfg, func(o *athena.Options) {
		o.BaseEndpoint = awsutil.BaseEndpoint(cfg)
	})
	return NewTriggerWithAPI(api, outputLocation), nil
}

// NewTriggerWithAPI wraps an existing Athena API implementation.
func NewTriggerWithAPI(api AthenaAPI, outputLocation string) *Trigger {
	return &Trigger{
		api:            api,
		outputLocation: outputLocation,
		now:            time.Now,
	}
}

// Submit starts sql against database and returns the execution handle.
func (t *Trigger) Submit(ctx context.Context, database, sql string) (*domain.QueryExecution, error) {
	if sql == "" {
		return nil, ErrEmptyQuery
	}

	out, err := t.api.StartQueryExecution(ctx, &athena.StartQueryExecutionInput{
		QueryString: aws.String(sql),
		QueryExecutionContext: &athenatypes.QueryExecutionContext{
			Database: aws.String(database),
		},
		ResultConfiguration: &athenatypes.ResultConfiguration{
			OutputLocation: aws.String(t.outputLocation),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("start query execution: %w", err)
	}

	return &domain.QueryExecution{
		ID:             aws.ToString(out.QueryExecutionId),
		Database:       database,
		SQL:            sql,
		OutputLocation: t.outputLocation,
		SubmittedAt:    t.now().UTC(),
	}, nil
}

// Status reads the current state of execution id. It does not wait and does
// not read result rows.
func (t *Trigger) Status(ctx context.Context, id string) (*domain.QueryStatus, error) {
	out, err := t.api.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
		QueryExecutionId: aws.String(id),
	})
	if err != nil {
		return nil, fmt.Errorf("get query execution %s: %w", id, err)
	}

	status := &domain.QueryStatus{ID: id}
	if out.QueryExecution == nil || out.QueryExecution.Status == nil {
		return status, nil
	}

	s := out.QueryExecution.Status
	status.State = string(s.State)
	status.Reason = aws.ToString(s.StateChangeReason)
	status.SubmittedAt = s.SubmissionDateTime
	status.CompletedAt = s.CompletionDateTime
	return status, nil
}
