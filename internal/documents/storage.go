package documents

import (
	"context"
	"fmt"
	"io"
	"time"

	"aero-portal/maintenance-portal/inspection-backend/pkg/storage"
)

type StorageProvider struct {
	s3     storage.S3Client
	bucket string
}

func NewStorageProvider(s3 storage.S3Client, bucket string) *StorageProvider {
	return &StorageProvider{
		s3:     s3,
		bucket: bucket,
	}
}

func (p *StorageProvider) Upload(ctx context.Context, key string, body io.Reader) error {
	return p.s3.Upload(ctx, p.bucket, key, body)
}

func (p *StorageProvider) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	return p.s3.Download(ctx, p.bucket, key)
}

func (p *StorageProvider) Delete(ctx context.Context, key string) error {
	return p.s3.Delete(ctx, p.bucket, key)
}

func (p *StorageProvider) PresignedURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	return p.s3.GetPresignedURL(ctx, p.bucket, key, expiration)
}

// GenerateKey returns the object key of a rendered document
func (p *StorageProvider) GenerateKey(templateID, ref string) string {
	return fmt.Sprintf("documents/%s/%s.pdf", templateID, ref)
}
