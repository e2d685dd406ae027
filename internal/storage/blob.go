package storage

import (
	"bytes"
	"context"
	"fmt"

	"staffdesk/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BlobStorage stores avatar images in an S3-compatible bucket.
type BlobStorage struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
}

func NewBlobStorage(cfg config.StorageConfig) (*BlobStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to blob storage: %w", err)
	}
	return &BlobStorage{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: cfg.PublicBaseURL,
	}, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *BlobStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
}

// Put uploads the object and returns its public URL.
func (s *BlobStorage) Put(ctx context.Context, object, contentType string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, object, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType:  contentType,
			CacheControl: "max-age=3600",
		})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, s.bucket, object), nil
}

func (s *BlobStorage) Delete(ctx context.Context, object string) error {
	return s.client.RemoveObject(ctx, s.bucket, object, minio.RemoveObjectOptions{})
}
