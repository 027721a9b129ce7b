package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// s3MinPartSize is the smallest part S3 accepts in a multipart upload,
// except for the final part.
const s3MinPartSize = 5 * 1024 * 1024

// S3Config configures access to S3-compatible object storage.
type S3Config struct {
	// Region is the AWS region.
	Region string

	// Endpoint overrides the S3 endpoint URL (for MinIO or other
	// S3-compatible services). Empty uses the AWS default resolver.
	Endpoint string

	// AccessKeyID and SecretAccessKey are static credentials. When
	// empty, the default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// ForcePathStyle uses path-style addressing (required for MinIO).
	ForcePathStyle bool

	// PartSize is the multipart upload part size. Values below the S3
	// minimum of 5 MiB are raised to it.
	PartSize uint64

	// Client overrides the constructed client. Set by tests.
	Client *s3.Client
}

// NewS3Client creates an S3 client from the configuration.
//
// Static credentials are used when both keys are set; otherwise the
// default AWS credential chain applies (environment, shared config,
// IAM roles).
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	if cfg.Client != nil {
		return cfg.Client, nil
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"", // session token (empty for static credentials)
			)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return client, nil
}

// partSize returns the configured part size, raised to the S3 minimum.
func (c S3Config) partSize() uint64 {
	if c.PartSize < s3MinPartSize {
		return s3MinPartSize
	}
	return c.PartSize
}

// isNotFoundError reports whether err is an S3 missing-object error.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if code == "NoSuchKey" || code == "NotFound" || code == "404" {
			return true
		}
	}

	return false
}
