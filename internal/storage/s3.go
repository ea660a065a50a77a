package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/andresuchdata/nba-datalake/internal/awsutil"
	"github.com/andresuchdata/nba-datalake/internal/config"
)

// S3API is the subset of the S3 client used here.
type S3API interface {
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Client implements ObjectStorage on Amazon S3.
type S3Client struct {
	api S3API
}

var _ ObjectStorage = (*S3Client)(nil)

// NewS3Client builds an S3 backend from the default AWS credential chain.
func NewS3Client(ctx context.Context, cfg config.AWSConfig) (*S3Client, error) {
	awsCfg, err := awsutil.Load(ctx, cfg)
	if err != nil {
		return nil, err
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := awsutil.BaseEndpoint(cfg); endpoint != nil {
			o.BaseEndpoint = endpoint
			o.UsePathStyle = true
		}
	})

	return NewS3ClientWithAPI(api), nil
}

// NewS3ClientWithAPI wraps an existing S3 API implementation.
func NewS3ClientWithAPI(api S3API) *S3Client {
	return &S3Client{api: api}
}

// CreateBucket creates bucket in region. us-east-1 is S3's implicit default
// and must not be sent as a location constraint.
func (c *S3Client) CreateBucket(ctx context.Context, bucket, region string) error {
	input := &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	}
	if region != "" && region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(region),
		}
	}

	if _, err := c.api.CreateBucket(ctx, input); err != nil {
		var owned *s3types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) || awsutil.ErrorCode(err) == "BucketAlreadyOwnedByYou" {
			return ErrBucketOwned
		}
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}

// BucketExists issues a HeadBucket request.
func (c *S3Client) BucketExists(ctx context.Context, bucket string) (bool, error) {
	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err == nil {
		return true, nil
	}

	var notFound *s3types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	switch awsutil.ErrorCode(err) {
	case "NotFound", "NoSuchBucket":
		return false, nil
	}
	return false, fmt.Errorf("head bucket %s: %w", bucket, err)
}

// PutObject writes body as a single object.
func (c *S3Client) PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}
