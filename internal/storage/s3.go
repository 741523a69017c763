package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// S3Sink uploads artifacts to an S3 bucket
type S3Sink struct {
	client     *s3.Client
	uploader   *manager.Uploader
	bucketName string
}

// NewS3Sink creates a new S3 sink using the default AWS credential chain
func NewS3Sink(ctx context.Context, bucketName string) (*S3Sink, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("s3: bucket not configured")
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	cli := s3.NewFromConfig(cfg)

	return &S3Sink{
		client:     cli,
		uploader:   manager.NewUploader(cli),
		bucketName: bucketName,
	}, nil
}

// Upload streams localPath to key; large files use multipart upload.
func (s *S3Sink) Upload(ctx context.Context, key, localPath, contentType string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	out, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("s3 upload failed")
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	log.Debug().Str("key", key).Str("location", out.Location).Msg("uploaded artifact to S3")
	return nil
}
