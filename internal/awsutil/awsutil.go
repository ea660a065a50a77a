// Package awsutil builds the shared AWS SDK configuration and inspects
// provider errors for the storage, catalog and query clients.
package awsutil

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/smithy-go"

	"github.com/andresuchdata/nba-datalake/internal/config"
)

// Load resolves credentials through the default chain (env, shared profile,
// instance role) and pins the configured region. Static keys, when set,
// replace the chain.
func Load(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if provider := StaticCredentials(cfg); provider != nil {
		opts = append(opts, awsconfig.WithCredentialsProvider(provider))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

// StaticCredentials returns a fixed provider when both static keys are set.
func StaticCredentials(cfg config.AWSConfig) aws.CredentialsProvider {
	if cfg.StaticAccessKeyID == "" || cfg.StaticSecretAccessKey == "" {
		return nil
	}
	return credentials.NewStaticCredentialsProvider(
		cfg.StaticAccessKeyID, cfg.StaticSecretAccessKey, cfg.StaticSessionToken)
}

// BaseEndpoint returns the endpoint override, or nil to use the SDK resolver.
func BaseEndpoint(cfg config.AWSConfig) *string {
	if cfg.EndpointURL == "" {
		return nil
	}
	return aws.String(cfg.EndpointURL)
}

// ErrorCode returns the provider error code carried by err, or "".
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// Describe formats err as "<code>: <message>" when it is a provider error.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return err.Error()
}
