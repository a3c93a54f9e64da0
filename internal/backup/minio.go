package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/felixgeelhaar/mediabot/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Bucket stores and fetches whole objects.
type Bucket interface {
	Upload(ctx context.Context, key string, data []byte) error
	Download(ctx context.Context, key string) ([]byte, error)
}

// MinioBucket is a Bucket on any S3-compatible endpoint.
type MinioBucket struct {
	api    *minio.Client
	bucket string
	region string
}

var _ Bucket = (*MinioBucket)(nil)

func NewMinioBucket(cfg config.BackupConfig) (*MinioBucket, error) {
	api, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}
	return &MinioBucket{api: api, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (b *MinioBucket) EnsureBucket(ctx context.Context) error {
	exists, err := b.api.BucketExists(ctx, b.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %q: %w", b.bucket, err)
	}
	if exists {
		return nil
	}
	if err := b.api.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{Region: b.region}); err != nil {
		return fmt.Errorf("failed to create bucket %q: %w", b.bucket, err)
	}
	return nil
}

func (b *MinioBucket) Upload(ctx context.Context, key string, data []byte) error {
	_, err := b.api.PutObject(ctx, b.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

func (b *MinioBucket) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := b.api.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}
