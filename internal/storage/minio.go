package storage

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// MinioOptions configures a MinioSink.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioSink uploads artifacts to a MinIO (or any S3-compatible) bucket.
type MinioSink struct {
	client *minio.Client
	bucket string
}

func NewMinioSink(opts MinioOptions) (*MinioSink, error) {
	if opts.Endpoint == "" || opts.Bucket == "" {
		return nil, fmt.Errorf("minio: endpoint and bucket are required")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &MinioSink{client: client, bucket: opts.Bucket}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *MinioSink) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

// BucketExists lets the sink serve as a statuscheck.BucketChecker.
func (s *MinioSink) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return s.client.BucketExists(ctx, bucket)
}

// Bucket returns the configured bucket name.
func (s *MinioSink) Bucket() string { return s.bucket }

func (s *MinioSink) Upload(ctx context.Context, key, localPath, contentType string) error {
	info, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	log.Debug().Str("key", key).Int64("size", info.Size).Msg("uploaded artifact to minio")
	return nil
}
