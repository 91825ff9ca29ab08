package objectstore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/apexlend/docpipeline/internal/config"
	"github.com/apexlend/docpipeline/internal/domain"
)

// GCS stores objects in a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

// NewGCS builds the client from application default credentials unless the
// config carries explicit JSON.
func NewGCS(ctx context.Context, cfg config.Storage) (*GCS, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	bucket := client.Bucket(cfg.Bucket)
	if _, err := bucket.Attrs(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("bucket %q not accessible: %w", cfg.Bucket, err)
	}

	return &GCS{client: client, bucket: bucket}, nil
}

func (s *GCS) Put(ctx context.Context, key string, data []byte, contentType string) error {
	wc := s.bucket.Object(key).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return &domain.TransientIOError{Op: "object write", Err: err}
	}

	if err := wc.Close(); err != nil {
		return &domain.TransientIOError{Op: "object write", Err: err}
	}

	return nil
}

func (s *GCS) Head(ctx context.Context, key string) (ObjectInfo, error) {
	attrs, err := s.bucket.Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ObjectInfo{}, nil
	}
	if err != nil {
		return ObjectInfo{}, &domain.TransientIOError{Op: "object probe", Err: err}
	}

	return ObjectInfo{Exists: true, Size: attrs.Size}, nil
}

func (s *GCS) Delete(ctx context.Context, key string) error {
	err := s.bucket.Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	if err != nil {
		return &domain.TransientIOError{Op: "object delete", Err: err}
	}

	return nil
}

func (s *GCS) Close() error {
	return s.client.Close()
}
