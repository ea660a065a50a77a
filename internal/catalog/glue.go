// Package catalog registers the raw data prefix as an external table in the
// AWS Glue Data Catalog.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	gluetypes "github.com/aws/aws-sdk-go-v2/service/glue/types"

	"github.com/andresuchdata/nba-datalake/internal/awsutil"
	"github.com/andresuchdata/nba-datalake/internal/config"
	"github.com/andresuchdata/nba-datalake/internal/domain"
)

// Hive formats for newline-delimited JSON rows.
const (
	InputFormat       = "org.apache.hadoop.mapred.TextInputFormat"
	OutputFormat      = "org.apache.hadoop.hive.ql.io.HiveIgnoreKeyTextOutputFormat"
	SerializationLib  = "org.openx.data.jsonserde.JsonSerDe"
	ExternalTableType = "EXTERNAL_TABLE"
)

// ErrAlreadyExists is returned when the database or table is already registered.
var ErrAlreadyExists = errors.New("already exists")

// GlueAPI is the subset of the Glue client used here.
type GlueAPI interface {
	CreateDatabase(ctx context.Context, params *glue.CreateDatabaseInput, optFns ...func(*glue.Options)) (*glue.CreateDatabaseOutput, error)
	CreateTable(ctx context.Context, params *glue.CreateTableInput, optFns ...func(*glue.Options)) (*glue.CreateTableOutput, error)
}

// Registrar creates catalog databases and tables.
type Registrar struct {
	api GlueAPI
}

// NewRegistrar builds a Registrar from the default AWS credential chain.
func NewRegistrar(ctx context.Context, cfg config.AWSConfig) (*Registrar, error) {
	awsCfg, err := awsutil.Load(ctx, cfg)
	if err != nil {
		return nil, err
	}
	api := glue.NewFromConfig(awsCfg, func(o *glue.Options) {
		o.BaseEndpoint = awsutil.BaseEndpoint(cfg)
	})
	return NewRegistrarWithAPI(api), nil
}

// NewRegistrarWithAPI wraps an existing Glue API implementation.
func NewRegistrarWithAPI(api GlueAPI) *Registrar {
	return &Registrar{api: api}
}

// PlayerColumns is the schema of the players table.
func PlayerColumns() []domain.Column {
	return []domain.Column{
		{Name: "PlayerID", Type: "int"},
		{Name: "FirstName", Type: "string"},
		{Name: "LastName", Type: "string"},
		{Name: "Team", Type: "string"},
		{Name: "Position", Type: "string"},
		{Name: "Points", Type: "int"},
	}
}

// CreateDatabase registers database name. An existing database yields ErrAlreadyExists.
func (r *Registrar) CreateDatabase(ctx context.Context, name string) error {
	_, err := r.api.CreateDatabase(ctx, &glue.CreateDatabaseInput{
		DatabaseInput: &gluetypes.DatabaseInput{
			Name: aws.String(name),
		},
	})
	if err != nil {
		return wrap(err, "create database %s", name)
	}
	return nil
}

// CreateTable defines def as an external JSON table in database. The schema
// is taken as given; it is not checked against the stored data.
func (r *Registrar) CreateTable(ctx context.Context, database string, def domain.TableDefinition) error {
	_, err := r.api.CreateTable(ctx, &glue.CreateTableInput{
		DatabaseName: aws.String(database),
		TableInput: &gluetypes.TableInput{
			Name: aws.String(def.Name),
			StorageDescriptor: &gluetypes.StorageDescriptor{
				Columns:      toGlueColumns(def.Columns),
				Location:     aws.String(def.Location),
				InputFormat:  aws.String(InputFormat),
				OutputFormat: aws.String(OutputFormat),
				SerdeInfo: &gluetypes.SerDeInfo{
					SerializationLibrary: aws.String(SerializationLib),
				},
			},
			TableType: aws.String(ExternalTableType),
		},
	})
	if err != nil {
		return wrap(err, "create table %s.%s", database, def.Name)
	}
	return nil
}

func toGlueColumns(columns []domain.Column) []gluetypes.Column {
	out := make([]gluetypes.Column, 0, len(columns))
	for _, c := range columns {
		out = append(out, gluetypes.Column{
			Name: aws.String(c.Name),
			Type: aws.String(c.Type),
		})
	}
	return out
}

func wrap(err error, format string, args ...any) error {
	what := fmt.Sprintf(format, args...)
	var exists *gluetypes.AlreadyExistsException
	if errors.As(err, &exists) || awsutil.ErrorCode(err) == "AlreadyExistsException" {
		return fmt.Errorf("%s: %w: %s", what, ErrAlreadyExists, awsutil.Describe(err))
	}
	return fmt.Errorf("%s: %w", what, err)
}
