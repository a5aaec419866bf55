// Package export writes CSV snapshots of the candidate pool and uploads them
// to S3-compatible object storage. When no endpoint is configured the
// NoopUploader is used and exports stay local-only.
package export

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/soundreach/fanscout/internal/config"
)

// ErrNotConfigured is returned when object storage is not configured.
var ErrNotConfigured = errors.New("export storage not configured")

// Uploader uploads candidate exports and generates pre-signed download URLs.
type Uploader interface {
	// Upload pushes an export file to object storage under the given name.
	Upload(ctx context.Context, objectName string, filePath string) error

	// PresignedURL returns a pre-signed GET URL for a previously uploaded
	// export. Returns ErrNotConfigured when storage is not configured.
	PresignedURL(ctx context.Context, objectName string) (url string, expiry time.Time, err error)
}

// s3Client defines the minimal minio.Client operations used by S3Uploader.
// This interface enables testing with mock implementations.
type s3Client interface {
	FPutObject(ctx context.Context, bucket, objectName, filePath string) error
	PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error)
}

// minioClientWrapper wraps *minio.Client to satisfy the s3Client interface.
type minioClientWrapper struct {
	client *minio.Client
}

func (w *minioClientWrapper) FPutObject(ctx context.Context, bucket, objectName, filePath string) error {
	putOpts := minio.PutObjectOptions{
		ContentType: "text/csv",
	}
	_, err := w.client.FPutObject(ctx, bucket, objectName, filePath, putOpts)
	return err
}

func (w *minioClientWrapper) PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error) {
	return w.client.PresignedGetObject(ctx, bucket, objectName, expiry, nil)
}

// S3Uploader uploads exports to S3-compatible storage.
type S3Uploader struct {
	client    s3Client
	bucket    string
	urlExpiry time.Duration
}

// Upload pushes the export file at filePath to the configured bucket.
func (u *S3Uploader) Upload(ctx context.Context, objectName string, filePath string) error {
	if err := u.client.FPutObject(ctx, u.bucket, objectName, filePath); err != nil {
		return fmt.Errorf("upload export to S3: %w", err)
	}
	return nil
}

// PresignedURL returns a pre-signed GET URL for the export object.
func (u *S3Uploader) PresignedURL(ctx context.Context, objectName string) (string, time.Time, error) {
	presigned, err := u.client.PresignedGetObject(ctx, u.bucket, objectName, u.urlExpiry)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate pre-signed URL: %w", err)
	}
	expiry := time.Now().Add(u.urlExpiry)
	return presigned.String(), expiry, nil
}

// NoopUploader is used when object storage is not configured.
type NoopUploader struct{}

// Upload is a no-op when storage is not configured.
func (u *NoopUploader) Upload(ctx context.Context, objectName string, filePath string) error {
	return nil
}

// PresignedURL returns ErrNotConfigured when storage is not configured.
func (u *NoopUploader) PresignedURL(ctx context.Context, objectName string) (string, time.Time, error) {
	return "", time.Time{}, ErrNotConfigured
}

// NewUploader creates the appropriate Uploader based on configuration.
// Returns NoopUploader when no endpoint is configured, S3Uploader otherwise.
func NewUploader(cfg config.ExportConfig) (Uploader, error) {
	if cfg.Endpoint == "" {
		return &NoopUploader{}, nil
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	return &S3Uploader{
		client:    &minioClientWrapper{client: client},
		bucket:    cfg.Bucket,
		urlExpiry: 24 * time.Hour,
	}, nil
}
