package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	gluetypes "github.com/aws/aws-sdk-go-v2/service/glue/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/nba-datalake/internal/domain"
)

type mockGlue struct {
	CreateDatabaseFn func(ctx context.Context, in *glue.CreateDatabaseInput) (*glue.CreateDatabaseOutput, error)
	CreateTableFn    func(ctx context.Context, in *glue.CreateTableInput) (*glue.CreateTableOutput, error)

	databaseCalls []*glue.CreateDatabaseInput
	tableCalls    []*glue.CreateTableInput
}

func (m *mockGlue) CreateDatabase(ctx context.Context, in *glue.CreateDatabaseInput, _ ...func(*glue.Options)) (*glue.CreateDatabaseOutput, error) {
	m.databaseCalls = append(m.databaseCalls, in)
	if m.CreateDatabaseFn == nil {
		return &glue.CreateDatabaseOutput{}, nil
	}
	return m.CreateDatabaseFn(ctx, in)
}

func (m *mockGlue) CreateTable(ctx context.Context, in *glue.CreateTableInput, _ ...func(*glue.Options)) (*glue.CreateTableOutput, error) {
	m.tableCalls = append(m.tableCalls, in)
	if m.CreateTableFn == nil {
		return &glue.CreateTableOutput{}, nil
	}
	return m.CreateTableFn(ctx, in)
}

func TestCreateDatabase(t *testing.T) {
	m := &mockGlue{}
	r := NewRegistrarWithAPI(m)

	require.NoError(t, r.CreateDatabase(context.Background(), "test_database"))
	require.Len(t, m.databaseCalls, 1)
	require.NotNil(t, m.databaseCalls[0].DatabaseInput)
	assert.Equal(t, "test_database", aws.ToString(m.databaseCalls[0].DatabaseInput.Name))
}

func TestCreateDatabase_AlreadyExists(t *testing.T) {
	m := &mockGlue{
		CreateDatabaseFn: func(context.Context, *glue.CreateDatabaseInput) (*glue.CreateDatabaseOutput, error) {
			return nil, &gluetypes.AlreadyExistsException{Message: aws.String("Database already exists.")}
		},
	}

	err := NewRegistrarWithAPI(m).CreateDatabase(context.Background(), "test_database")
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestCreateDatabase_OtherError(t *testing.T) {
	m := &mockGlue{
		CreateDatabaseFn: func(context.Context, *glue.CreateDatabaseInput) (*glue.CreateDatabaseOutput, error) {
			return nil, &gluetypes.AccessDeniedException{Message: aws.String("not allowed")}
		},
	}

	err := NewRegistrarWithAPI(m).CreateDatabase(context.Background(), "test_database")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAlreadyExists)
	var denied *gluetypes.AccessDeniedException
	assert.True(t, errors.As(err, &denied))
	assert.Equal(t, 1, strings.Count(err.Error(), "not allowed"))
}

func TestCreateTable(t *testing.T) {
	m := &mockGlue{}
	r := NewRegistrarWithAPI(m)

	columns := []domain.Column{{Name: "PlayerID", Type: "int"}}
	err := r.CreateTable(context.Background(), "test_database", domain.TableDefinition{
		Name:     "test_table",
		Columns:  columns,
		Location: "s3://test_bucket/raw-data/",
	})
	require.NoError(t, err)
	require.Len(t, m.tableCalls, 1)

	in := m.tableCalls[0]
	assert.Equal(t, "test_database", aws.ToString(in.DatabaseName))
	assert.Equal(t, "test_table", aws.ToString(in.TableInput.Name))
	assert.Equal(t, ExternalTableType, aws.ToString(in.TableInput.TableType))

	sd := in.TableInput.StorageDescriptor
	require.NotNil(t, sd)
	require.Len(t, sd.Columns, 1)
	assert.Equal(t, "PlayerID", aws.ToString(sd.Columns[0].Name))
	assert.Equal(t, "int", aws.ToString(sd.Columns[0].Type))
	assert.Equal(t, "s3://test_bucket/raw-data/", aws.ToString(sd.Location))
	assert.Equal(t, InputFormat, aws.ToString(sd.InputFormat))
	assert.Equal(t, OutputFormat, aws.ToString(sd.OutputFormat))
	assert.Equal(t, SerializationLib, aws.ToString(sd.SerdeInfo.SerializationLibrary))
}

func TestCreateTable_AlreadyExists(t *testing.T) {
	m := &mockGlue{
		CreateTableFn: func(context.Context, *glue.CreateTableInput) (*glue.CreateTableOutput, error) {
			return nil, &gluetypes.AlreadyExistsException{Message: aws.String("Table already exists.")}
		},
	}

	err := NewRegistrarWithAPI(m).CreateTable(context.Background(), "db", domain.TableDefinition{Name: "t"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.Len(t, m.tableCalls, 1)
}

func TestPlayerColumns(t *testing.T) {
	cols := PlayerColumns()
	require.Len(t, cols, 6)
	assert.Equal(t, domain.Column{Name: "PlayerID", Type: "int"}, cols[0])
	assert.Equal(t, domain.Column{Name: "Points", Type: "int"}, cols[5])
}
