package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string // created on startup when missing
}

// MinioStorage archives objects in MinIO or any S3-compatible service.
type MinioStorage struct {
	client *minio.Client
}

func NewMinioStorage(ctx context.Context, cfg MinioConfig) (*MinioStorage, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	if cfg.Bucket != "" {
		exists, err := cli.BucketExists(ctx, cfg.Bucket)
		if err != nil {
			return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
		}
		if !exists {
			if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
				return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
			}
		}
	}

	return &MinioStorage{client: cli}, nil
}

func (s *MinioStorage) Upload(ctx context.Context, bucket, path string, data io.Reader, size int64, contentType string) error {
	if _, err := s.client.PutObject(ctx, bucket, path, data, size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	return nil
}

// Download stats the object first so a missing key surfaces here rather than on first read.
func (s *MinioStorage) Download(ctx context.Context, bucket, path string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", path, err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("download %s: %w", path, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return obj, nil
}

func (s *MinioStorage) Delete(ctx context.Context, bucket, path string) error {
	if err := s.client.RemoveObject(ctx, bucket, path, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (s *MinioStorage) GetPublicURL(bucket, path string) string {
	u := *s.client.EndpointURL()
	u.Path = "/" + bucket + "/" + path
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}).String()
}
