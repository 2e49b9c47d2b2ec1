package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"zonewatch/internal/config"
)

// Uploader copies finished clips to an S3-compatible bucket.
type Uploader struct {
	client *minio.Client
	bucket string
}

// NewUploader creates a MinIO client for cfg.
func NewUploader(cfg config.MinioConfig) (*Uploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &Uploader{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (u *Uploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", u.bucket, err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", u.bucket, err)
	}
	return nil
}

// Upload stores the clip at path and returns its object key.
func (u *Uploader) Upload(ctx context.Context, path string, triggeredAt time.Time) (string, error) {
	key := ObjectKey(path, triggeredAt)

	_, err := u.client.FPutObject(ctx, u.bucket, key, path, minio.PutObjectOptions{
		ContentType: "video/x-msvideo",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", path, err)
	}
	return key, nil
}

// ObjectKey groups clips by trigger day: "2025/06/15/alert_20250615_143000.avi".
func ObjectKey(path string, triggeredAt time.Time) string {
	return triggeredAt.Format("2006/01/02") + "/" + filepath.Base(path)
}
