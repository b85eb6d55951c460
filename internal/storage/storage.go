// Package storage archives synthesized audio in object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nikhilbhutani/aidoctor/internal/config"
)

// ErrObjectNotFound is returned by Download when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

type Storage interface {
	Upload(ctx context.Context, bucket, path string, data io.Reader, size int64, contentType string) error
	Download(ctx context.Context, bucket, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, bucket, path string) error
	GetPublicURL(bucket, path string) string
}

// New returns the backend selected by STORAGE_BACKEND, or nil when archiving is off.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "supabase":
		return NewSupabaseStorage(cfg.SupabaseURL, cfg.SupabaseKey), nil
	case "minio":
		return NewMinioStorage(ctx, MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Region:    cfg.MinioRegion,
			UseSSL:    cfg.MinioUseSSL,
			Bucket:    cfg.Bucket,
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend %q (supported: supabase, minio)", cfg.Backend)
	}
}
