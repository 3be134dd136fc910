package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/reviewguard/reviewguard/pkg/config"
	apperrors "github.com/reviewguard/reviewguard/pkg/errors"
	"github.com/reviewguard/reviewguard/pkg/resilience"
)

// S3Store implements BlobStore against a single S3 bucket.
type S3Store struct {
	client  *s3.Client
	bucket  string
	timeout time.Duration
	logger  *slog.Logger
}

var _ BlobStore = (*S3Store)(nil)

// NewS3Store builds an S3 client from config. A non-empty Endpoint switches
// to path-style addressing for S3-compatible stores.
func NewS3Store(cfg config.S3Config) *S3Store {
	client := s3.NewFromConfig(aws.Config{Region: cfg.Region}, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.AccessKeyID != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		}
	})
	return &S3Store{
		client:  client,
		bucket:  cfg.Bucket,
		timeout: cfg.RequestTimeout,
		logger:  slog.Default().With("component", "s3-store", "bucket", cfg.Bucket),
	}
}

// Put uploads the object, replacing any existing object under the key.
func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	err := resilience.WithTimeout(ctx, s.timeout, "s3 put", func(ctx context.Context) error {
		input := &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		}
		if contentType != "" {
			input.ContentType = aws.String(contentType)
		}
		_, err := s.client.PutObject(ctx, input)
		return err
	})
	if err != nil {
		s.logger.Error("put failed", "key", key, "size", len(data), "error", err)
		return fmt.Errorf("%w: putting %s: %v", apperrors.ErrStorage, key, err)
	}
	s.logger.Debug("object stored", "key", key, "size", len(data))
	return nil
}

// Get downloads the object. An absent key is reported as ErrObjectNotFound,
// which callers must treat as a valid state rather than a failure.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := resilience.WithTimeout(ctx, s.timeout, "s3 get", func(ctx context.Context) error {
		result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return err
		}
		defer result.Body.Close()
		data, err = io.ReadAll(result.Body)
		return err
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrObjectNotFound, key)
		}
		s.logger.Error("get failed", "key", key, "error", err)
		return nil, fmt.Errorf("%w: getting %s: %v", apperrors.ErrStorage, key, err)
	}
	return data, nil
}

// Ping probes the bucket; used by the readiness checker.
func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("head bucket %s: %w", s.bucket, err)
	}
	return nil
}
