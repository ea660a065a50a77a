package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig encapsulates the connection info for MinIO or other S3-compatible storage.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

type minioAPI interface {
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinIOClient implements ObjectStorage for MinIO / S3-compatible services.
type MinIOClient struct {
	api minioAPI
}

var _ ObjectStorage = (*MinIOClient)(nil)

// NewMinIOClient builds a MinIOClient using static credentials.
func NewMinIOClient(cfg MinIOConfig) (*MinIOClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials must be provided")
	}

	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		useSSL = true
	case strings.HasPrefix(endpoint, "http://"):
		useSSL = false
	}
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	endpoint = strings.TrimSuffix(endpoint, "/")

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	return &MinIOClient{api: client}, nil
}

// CreateBucket creates bucket; an existing bucket owned by the caller maps to ErrBucketOwned.
func (c *MinIOClient) CreateBucket(ctx context.Context, bucket, region string) error {
	err := c.api.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region})
	if err == nil {
		return nil
	}

	if minio.ToErrorResponse(err).Code == "BucketAlreadyOwnedByYou" {
		return ErrBucketOwned
	}
	return fmt.Errorf("create bucket %s: %w", bucket, err)
}

// BucketExists reports whether bucket exists.
func (c *MinIOClient) BucketExists(ctx context.Context, bucket string) (bool, error) {
	exists, err := c.api.BucketExists(ctx, bucket)
	if err != nil {
		return false, fmt.Errorf("bucket exists %s: %w", bucket, err)
	}
	return exists, nil
}

// PutObject uploads body in a single request.
func (c *MinIOClient) PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	_, err := c.api.PutObject(ctx, bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("minio put %s/%s: %w", bucket, key, err)
	}
	return nil
}
