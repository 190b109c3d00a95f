// Package media stores uploaded audio/video frames in object storage.
//
// This file implements the S3-backed uploader.
package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Opts holds S3 uploader configuration options.
type Opts struct {
	Bucket string
	Region string
}

// Option defines a configuration option for the S3 uploader.
type Option func(*Opts)

// WithBucket sets the S3 bucket media is stored in.
func WithBucket(bucket string) Option {
	return func(o *Opts) {
		o.Bucket = bucket
	}
}

// WithRegion sets the AWS region.
func WithRegion(region string) Option {
	return func(o *Opts) {
		o.Region = region
	}
}

// S3Uploader stores media objects in an S3 bucket. Credentials come from the
// standard AWS credential chain.
type S3Uploader struct {
	client *s3.Client
	bucket string
}

// Ensure S3Uploader satisfies Uploader.
var _ Uploader = (*S3Uploader)(nil)

// NewS3Uploader creates an S3-backed uploader.
func NewS3Uploader(ctx context.Context, opts ...Option) (*S3Uploader, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Bucket == "" {
		slog.Error("S3Uploader bucket not set")
		return nil, fmt.Errorf("S3 bucket not set")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		slog.Error("S3Uploader.NewS3Uploader: failed to load AWS config", "error", err)
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	slog.Debug("S3Uploader.NewS3Uploader: uploader created", "bucket", cfg.Bucket, "region", cfg.Region)
	return &S3Uploader{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
	}, nil
}

// Upload stores the object and returns its s3:// reference URL.
func (u *S3Uploader) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	slog.Debug("S3Uploader.Upload: uploading object", "bucket", u.bucket, "key", key, "content_type", contentType, "size", len(data))

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		slog.Error("S3Uploader.Upload: put object failed", "error", err, "bucket", u.bucket, "key", key)
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	url := fmt.Sprintf("s3://%s/%s", u.bucket, key)
	slog.Info("S3Uploader.Upload: object uploaded", "url", url, "size", len(data))
	return url, nil
}
