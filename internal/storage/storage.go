package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/andresuchdata/nba-datalake/internal/config"
)

var (
	// ErrBucketOwned means the bucket already exists and belongs to the caller.
	ErrBucketOwned = errors.New("bucket already exists and is owned by you")
	// ErrBucketNotFound means the bucket does not exist or is not reachable.
	ErrBucketNotFound = errors.New("bucket not found")
)

// ObjectStorage captures the minimal S3-compatible operations the pipeline needs.
type ObjectStorage interface {
	CreateBucket(ctx context.Context, bucket, region string) error
	BucketExists(ctx context.Context, bucket string) (bool, error)
	PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error
}

// New returns the backend selected by cfg.Storage.Backend.
func New(ctx context.Context, cfg *config.Config) (ObjectStorage, error) {
	switch cfg.Storage.Backend {
	case config.BackendS3, "":
		return NewS3Client(ctx, cfg.AWS)
	case config.BackendMinIO:
		return NewMinIOClient(MinIOConfig{
			Endpoint:  cfg.Storage.MinIO.Endpoint,
			AccessKey: cfg.Storage.MinIO.AccessKey,
			SecretKey: cfg.Storage.MinIO.SecretKey,
			Region:    cfg.AWS.Region,
			UseSSL:    cfg.Storage.MinIO.UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
