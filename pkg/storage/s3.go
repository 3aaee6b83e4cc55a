package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/suteetoe/tradeflow/pkg/config"
	"go.uber.org/zap"
)

// S3Store stores blobs in any S3-compatible bucket (AWS S3, MinIO, ...)
type S3Store struct {
	client   *s3.Client
	bucket   string
	endpoint string
	region   string
	logger   *zap.Logger
}

// S3StoreOption is a functional option for configuring S3Store
type S3StoreOption func(*S3Store)

// WithLogger sets a custom logger for S3Store
func WithLogger(logger *zap.Logger) S3StoreOption {
	return func(s *S3Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewS3Store creates an S3Store from configuration
func NewS3Store(cfg *config.StorageConfig, opts ...S3StoreOption) (*S3Store, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("storage secret key is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint != "" {
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		if _, err := url.Parse(endpoint); err != nil {
			return nil, fmt.Errorf("invalid storage endpoint: %w", err)
		}
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	store := &S3Store{
		client:   client,
		bucket:   cfg.Bucket,
		endpoint: endpoint,
		region:   region,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// ObjectURL is the public URL of key
func (s *S3Store) ObjectURL(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// UploadBlob implements BlobStore
func (s *S3Store) UploadBlob(ctx context.Context, localPath, key, mimeType string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open source file: %w", err)
	}
	defer f.Close()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		s.logger.Error("Failed to upload object",
			zap.String("bucket", s.bucket),
			zap.String("key", key),
			zap.Error(err))
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	s.logger.Info("Object uploaded", zap.String("bucket", s.bucket), zap.String("key", key))
	return s.ObjectURL(key), nil
}

// Download implements BlobStore
func (s *S3Store) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}
