package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/nba-datalake/internal/catalog"
	"github.com/andresuchdata/nba-datalake/internal/config"
	"github.com/andresuchdata/nba-datalake/internal/domain"
	"github.com/andresuchdata/nba-datalake/internal/storage"
)

// calls is shared by the fakes so tests can assert ordering across collaborators.
type calls []string

func (c *calls) add(format string, args ...any) {
	*c = append(*c, fmt.Sprintf(format, args...))
}

type fakeStorage struct {
	log         *calls
	createErr   error
	exists      bool
	existsErr   error
	putErr      error
	putBody     []byte
	contentType string
}

func (f *fakeStorage) CreateBucket(_ context.Context, bucket, region string) error {
	f.log.add("create_bucket %s %s", bucket, region)
	return f.createErr
}

func (f *fakeStorage) BucketExists(_ context.Context, bucket string) (bool, error) {
	f.log.add("bucket_exists %s", bucket)
	return f.exists, f.existsErr
}

func (f *fakeStorage) PutObject(_ context.Context, bucket, key string, body []byte, contentType string) error {
	f.log.add("put_object %s %s", bucket, key)
	f.putBody = body
	f.contentType = contentType
	return f.putErr
}

type fakeFetcher struct {
	log     *calls
	records domain.Records
	err     error
}

func (f *fakeFetcher) Fetch(context.Context) (domain.Records, error) {
	f.log.add("fetch")
	return f.records, f.err
}

type fakeCatalog struct {
	log      *calls
	dbErr    error
	tableErr error
	table    domain.TableDefinition
}

func (f *fakeCatalog) CreateDatabase(_ context.Context, name string) error {
	f.log.add("create_database %s", name)
	return f.dbErr
}

func (f *fakeCatalog) CreateTable(_ context.Context, database string, def domain.TableDefinition) error {
	f.log.add("create_table %s.%s", database, def.Name)
	f.table = def
	return f.tableErr
}

type fakeQuery struct {
	log *calls
	err error
}

func (f *fakeQuery) Submit(_ context.Context, database, sql string) (*domain.QueryExecution, error) {
	f.log.add("query %s %s", database, sql)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.QueryExecution{ID: "exec-1", Database: database, SQL: sql}, nil
}

type fakeRecorder struct {
	reports []*domain.RunReport
	err     error
}

func (f *fakeRecorder) RecordRun(_ context.Context, r *domain.RunReport) error {
	f.reports = append(f.reports, r)
	return f.err
}

type fakeRegistry struct {
	remembered []string
}

func (f *fakeRegistry) Remember(_ context.Context, exec *domain.QueryExecution) error {
	f.remembered = append(f.remembered, exec.ID)
	return nil
}

type fixture struct {
	log      calls
	storage  *fakeStorage
	fetcher  *fakeFetcher
	catalog  *fakeCatalog
	query    *fakeQuery
	recorder *fakeRecorder
	registry *fakeRegistry
	settings Settings
}

func newFixture(records string) *fixture {
	f := &fixture{
		recorder: &fakeRecorder{},
		registry: &fakeRegistry{},
		settings: Settings{
			Bucket:       "test_bucket",
			Region:       "test_region",
			BucketPolicy: config.PolicyCreate,
			RawPrefix:    "raw-data/",
			FileName:     "nba_players.json",
			Database:     "glue_nba_datalake",
			Table:        "nba_players",
			Columns:      catalog.PlayerColumns(),
		},
	}
	f.storage = &fakeStorage{log: &f.log}
	f.fetcher = &fakeFetcher{log: &f.log}
	f.catalog = &fakeCatalog{log: &f.log}
	f.query = &fakeQuery{log: &f.log}
	if records != "" {
		if err := json.Unmarshal([]byte(records), &f.fetcher.records); err != nil {
			panic(err)
		}
	}
	return f
}

func (f *fixture) pipeline() *Pipeline {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return New(f.settings, f.storage, f.fetcher, f.catalog, f.query,
		WithRecorder(f.recorder),
		WithExecutionRegistry(f.registry),
		WithClock(func() time.Time {
			clock = clock.Add(time.Millisecond)
			return clock
		}),
	)
}

func TestRun_FetchSucceeds(t *testing.T) {
	f := newFixture(`[{"PlayerID": 1, "FirstName": "Test"}, {"PlayerID": 2}]`)

	report := f.pipeline().Run(context.Background(), RunOptions{})

	assert.Equal(t, calls{
		"create_bucket test_bucket test_region",
		"fetch",
		"put_object test_bucket raw-data/nba_players.json",
		"create_database glue_nba_datalake",
		"create_table glue_nba_datalake.nba_players",
	}, f.log)
	assert.True(t, report.OK())
	assert.Equal(t, 2, report.RecordCount)
	assert.Equal(t, "raw-data/nba_players.json", report.ObjectKey)
	assert.NotEmpty(t, report.ID)
	assert.Empty(t, report.ExecutionID)

	assert.Equal(t, "application/json", f.storage.contentType)
	assert.JSONEq(t, `[{"PlayerID": 1, "FirstName": "Test"}, {"PlayerID": 2}]`, string(f.storage.putBody))

	assert.Equal(t, "s3://test_bucket/raw-data/", f.catalog.table.Location)
	assert.Equal(t, catalog.PlayerColumns(), f.catalog.table.Columns)

	require.Len(t, f.recorder.reports, 1)
	assert.Same(t, report, f.recorder.reports[0])
}

func TestRun_FetchFailsStopsDownstream(t *testing.T) {
	f := newFixture("")
	f.fetcher.err = errors.New("connection refused")

	report := f.pipeline().Run(context.Background(), RunOptions{Query: "SELECT 1"})

	assert.Equal(t, calls{"create_bucket test_bucket test_region", "fetch"}, f.log)
	assert.Zero(t, report.RecordCount)

	fetch, ok := report.Step(domain.StepFetch)
	require.True(t, ok)
	assert.Equal(t, domain.StatusFailed, fetch.Status)
	assert.Contains(t, fetch.Message, "connection refused")

	for _, step := range []domain.Step{domain.StepUpload, domain.StepCreateDatabase, domain.StepCreateTable, domain.StepQuery} {
		res, ok := report.Step(step)
		require.True(t, ok, step)
		assert.Equal(t, domain.StatusSkipped, res.Status, step)
	}
	require.Len(t, f.recorder.reports, 1)
}

func TestRun_EmptyArrayStopsDownstream(t *testing.T) {
	f := newFixture(`[]`)

	report := f.pipeline().Run(context.Background(), RunOptions{})

	assert.Equal(t, calls{"create_bucket test_bucket test_region", "fetch"}, f.log)
	assert.True(t, report.OK())
}

func TestRun_ProviderFailuresAreNotFatal(t *testing.T) {
	f := newFixture(`[{"PlayerID": 1}]`)
	f.storage.createErr = errors.New("AccessDenied")
	f.catalog.dbErr = errors.New("throttled")
	f.catalog.tableErr = fmt.Errorf("create table: %w", catalog.ErrAlreadyExists)

	report := f.pipeline().Run(context.Background(), RunOptions{Query: "SELECT * FROM nba_players"})

	assert.Equal(t, calls{
		"create_bucket test_bucket test_region",
		"fetch",
		"put_object test_bucket raw-data/nba_players.json",
		"create_database glue_nba_datalake",
		"create_table glue_nba_datalake.nba_players",
		"query glue_nba_datalake SELECT * FROM nba_players",
	}, f.log)

	var failed []domain.Step
	for _, res := range report.Failures() {
		failed = append(failed, res.Step)
	}
	assert.Equal(t, []domain.Step{domain.StepProvisionBucket, domain.StepCreateDatabase, domain.StepCreateTable}, failed)
	assert.Equal(t, "exec-1", report.ExecutionID)
	assert.Equal(t, []string{"exec-1"}, f.registry.remembered)
}

func TestRun_FileNameOverride(t *testing.T) {
	f := newFixture(`[{"PlayerID": 1}]`)

	report := f.pipeline().Run(context.Background(), RunOptions{FileName: "players_2024.json"})

	assert.Equal(t, "raw-data/players_2024.json", report.ObjectKey)
	assert.Contains(t, f.log, "put_object test_bucket raw-data/players_2024.json")
}

func TestRun_RecorderErrorIgnored(t *testing.T) {
	f := newFixture(`[{"PlayerID": 1}]`)
	f.recorder.err = errors.New("ledger down")

	report := f.pipeline().Run(context.Background(), RunOptions{})
	assert.True(t, report.OK())
}

func TestProvisionBucket_CreatePolicy(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status domain.StepStatus
	}{
		{name: "created", status: domain.StatusSucceeded},
		{name: "owned", err: storage.ErrBucketOwned, status: domain.StatusAlreadyExists},
		{name: "other", err: errors.New("BucketAlreadyExists: taken"), status: domain.StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture("")
			f.storage.createErr = tt.err

			res := f.pipeline().ProvisionBucket(context.Background())
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, domain.StepProvisionBucket, res.Step)
			if tt.status == domain.StatusFailed {
				assert.Contains(t, res.Message, "taken")
			}
		})
	}
}

func TestProvisionBucket_CheckPolicy(t *testing.T) {
	f := newFixture("")
	f.settings.BucketPolicy = config.PolicyCheck

	f.storage.exists = true
	res := f.pipeline().ProvisionBucket(context.Background())
	assert.Equal(t, domain.StatusSucceeded, res.Status)

	f.storage.exists = false
	res = f.pipeline().ProvisionBucket(context.Background())
	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, storage.ErrBucketNotFound)

	f.storage.existsErr = errors.New("forbidden")
	res = f.pipeline().ProvisionBucket(context.Background())
	assert.Equal(t, domain.StatusFailed, res.Status)

	assert.Equal(t, calls{
		"bucket_exists test_bucket",
		"bucket_exists test_bucket",
		"bucket_exists test_bucket",
	}, f.log)
}

func TestUpload_EmptyIsNoop(t *testing.T) {
	f := newFixture("")

	res := f.pipeline().Upload(context.Background(), domain.Records{}, "nba_players.json")
	assert.Equal(t, domain.StatusSkipped, res.Status)
	assert.Empty(t, f.log)

	res = f.pipeline().Upload(context.Background(), nil, "nba_players.json")
	assert.Equal(t, domain.StatusSkipped, res.Status)
	assert.Empty(t, f.log)
}

func TestUpload_Error(t *testing.T) {
	f := newFixture("")
	f.storage.putErr = errors.New("SlowDown")

	res := f.pipeline().Upload(context.Background(), domain.Records{json.RawMessage(`{"PlayerID":1}`)}, "nba_players.json")
	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Equal(t, calls{"put_object test_bucket raw-data/nba_players.json"}, f.log)
}

func TestCreateDatabase_AlreadyExists(t *testing.T) {
	f := newFixture("")
	f.catalog.dbErr = fmt.Errorf("create database: %w", catalog.ErrAlreadyExists)

	res := f.pipeline().CreateDatabase(context.Background(), "test_database")
	assert.Equal(t, domain.StatusAlreadyExists, res.Status)
	assert.True(t, res.Status.OK())
	assert.Equal(t, calls{"create_database test_database"}, f.log)
}

func TestQuery_Error(t *testing.T) {
	f := newFixture("")
	f.query.err = errors.New("InvalidRequestException")

	exec, res := f.pipeline().Query(context.Background(), "test_database", "SELECT * FROM test_table")
	assert.Nil(t, exec)
	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Empty(t, f.registry.remembered)
}

func TestQuery_ReturnsHandle(t *testing.T) {
	f := newFixture("")

	exec, res := f.pipeline().Query(context.Background(), "test_database", "SELECT * FROM test_table")
	require.NotNil(t, exec)
	assert.Equal(t, "exec-1", exec.ID)
	assert.Equal(t, domain.StatusSucceeded, res.Status)
	assert.Equal(t, calls{"query test_database SELECT * FROM test_table"}, f.log)
	assert.Equal(t, []string{"exec-1"}, f.registry.remembered)
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := &config.Config{
		AWS:     config.AWSConfig{Region: "eu-west-1"},
		Storage: config.StorageConfig{Bucket: "test_bucket", Policy: config.PolicyCheck, RawPrefix: "raw/", RawFileName: "nba_players.json"},
		Catalog: config.CatalogConfig{Database: "glue_nba_datalake", Table: "nba_players"},
	}

	s := SettingsFromConfig(cfg, catalog.PlayerColumns())
	assert.Equal(t, "raw/nba_players.json", s.ObjectKey(s.FileName))
	assert.Equal(t, "s3://test_bucket/raw/", s.Location())
	assert.Equal(t, config.PolicyCheck, s.BucketPolicy)

	def := s.TableDefinition()
	assert.Equal(t, "nba_players", def.Name)
	assert.Equal(t, "s3://test_bucket/raw/", def.Location)
}

func TestProvisionBucket_UnknownPolicyWarnsAndCreates(t *testing.T) {
	f := newFixture("")
	f.settings.BucketPolicy = "chek"

	var buf bytes.Buffer
	p := New(f.settings, f.storage, f.fetcher, f.catalog, f.query, WithLogger(zerolog.New(&buf)))

	res := p.ProvisionBucket(context.Background())
	assert.Equal(t, domain.StatusSucceeded, res.Status)
	assert.Equal(t, calls{"create_bucket test_bucket test_region"}, f.log)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"policy":"chek"`)
}
